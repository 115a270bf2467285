package reply

import (
	"net"
	"testing"
	"time"

	"github.com/beaconmdns/beacon/internal/protocol"
	"github.com/beaconmdns/beacon/internal/records"
	"github.com/beaconmdns/beacon/internal/wire"
)

func activeTestRepo(t *testing.T) (*records.Repository, records.ServiceRegistration) {
	t.Helper()
	host := records.HostRecords{Hostname: "Host.local", IPv4: net.ParseIP("192.0.2.5")}
	repo := records.NewRepository(host)

	reg := records.ServiceRegistration{
		InstanceName: "Office Printer",
		ServiceType:  "_http._tcp",
		Port:         8080,
		TXT:          map[string]string{"path": "/"},
	}
	id := repo.AddService(reg)
	if _, err := repo.SetServiceProbing(id); err != nil {
		t.Fatalf("SetServiceProbing() error = %v", err)
	}
	if _, err := repo.OnProbingSucceeded(id); err != nil {
		t.Fatalf("OnProbingSucceeded() error = %v", err)
	}
	if err := repo.OnAnnounced(id); err != nil {
		t.Fatalf("OnAnnounced() error = %v", err)
	}
	return repo, reg
}

func TestBuildAdditionals_PTRAnswerPullsInSRVAndTXT(t *testing.T) {
	repo, reg := activeTestRepo(t)
	now := time.Now()

	ptrAnswers := repo.GetReply(wire.Question{
		Name:  "_http._tcp.local",
		Type:  protocol.RecordTypePTR,
		Class: protocol.ClassIN,
	}, nil, now)
	if len(ptrAnswers) != 1 {
		t.Fatalf("got %d PTR answers, want 1", len(ptrAnswers))
	}

	additionals := BuildAdditionals(repo, ptrAnswers, now)

	var hasSRV, hasTXT bool
	for _, rr := range additionals {
		switch rr.Data.(type) {
		case wire.SRVData:
			hasSRV = true
		case wire.TXTData:
			hasTXT = true
		}
	}
	if !hasSRV {
		t.Error("additionals missing SRV record for the PTR target")
	}
	if !hasTXT {
		t.Error("additionals missing TXT record for the PTR target")
	}
	_ = reg
}

func TestBuildAdditionals_SRVAnswerPullsInHostAddress(t *testing.T) {
	repo, _ := activeTestRepo(t)
	now := time.Now()

	srvAnswers := repo.GetReply(wire.Question{
		Name:  "Office Printer._http._tcp.local",
		Type:  protocol.RecordTypeSRV,
		Class: protocol.ClassIN,
	}, nil, now)
	if len(srvAnswers) != 1 {
		t.Fatalf("got %d SRV answers, want 1", len(srvAnswers))
	}

	additionals := BuildAdditionals(repo, srvAnswers, now)

	var hasA, hasNSEC bool
	for _, rr := range additionals {
		switch rr.Data.(type) {
		case wire.AData:
			hasA = true
		case wire.NSECData:
			hasNSEC = true
		}
	}
	if !hasA {
		t.Error("additionals missing A record for the SRV target host")
	}
	if !hasNSEC {
		t.Error("additionals missing NSEC record for the SRV target host")
	}
}

func TestBuildAdditionals_DoesNotRepeatAnAlreadyPresentAnswer(t *testing.T) {
	repo, _ := activeTestRepo(t)
	now := time.Now()

	ptrAnswers := repo.GetReply(wire.Question{
		Name:  "_http._tcp.local",
		Type:  protocol.RecordTypePTR,
		Class: protocol.ClassIN,
	}, nil, now)

	srv := repo.GetReply(wire.Question{
		Name:  "Office Printer._http._tcp.local",
		Type:  protocol.RecordTypeSRV,
		Class: protocol.ClassIN,
	}, nil, now)

	combined := append(append([]wire.ResourceRecord(nil), ptrAnswers...), srv...)
	additionals := BuildAdditionals(repo, combined, now)

	for _, rr := range additionals {
		if rr.Type() == protocol.RecordTypeSRV {
			t.Error("additionals repeated an SRV record already present among the answers")
		}
	}
}
