package records

import (
	"errors"
	"net"
	"testing"
	"time"

	beaconerrors "github.com/beaconmdns/beacon/internal/errors"
	"github.com/beaconmdns/beacon/internal/protocol"
	"github.com/beaconmdns/beacon/internal/wire"
)

func newTestRepo() *Repository {
	return NewRepository(HostRecords{
		Hostname: "myhost.local",
		IPv4:     net.IPv4(192, 168, 1, 100),
	})
}

func TestRepository_AddServiceLifecycle(t *testing.T) {
	repo := newTestRepo()
	id := repo.AddService(ServiceRegistration{InstanceName: "Printer", ServiceType: "_http._tcp", Port: 80})

	probing, err := repo.SetServiceProbing(id)
	if err != nil {
		t.Fatalf("SetServiceProbing error: %v", err)
	}
	if len(probing.Records) == 0 {
		t.Fatal("SetServiceProbing returned no records")
	}

	if _, err := repo.OnProbingSucceeded(id); err != nil {
		t.Fatalf("OnProbingSucceeded error: %v", err)
	}
	if err := repo.OnAnnounced(id); err != nil {
		t.Fatalf("OnAnnounced error: %v", err)
	}
	if !repo.HasActiveService() {
		t.Error("HasActiveService() = false after OnAnnounced, want true")
	}

	exitInfo, err := repo.ExitService(id)
	if err != nil {
		t.Fatalf("ExitService error: %v", err)
	}
	for _, rr := range exitInfo.Records {
		if rr.TTL != 0 {
			t.Errorf("exit announcement record %q has TTL %v, want 0", rr.Name, rr.TTL)
		}
	}

	repo.RemoveService(id)
	if repo.HasActiveService() {
		t.Error("HasActiveService() = true after RemoveService, want false")
	}
}

func TestRepository_FirstServiceOwnsAddressRecords(t *testing.T) {
	repo := newTestRepo()
	id1 := repo.AddService(ServiceRegistration{InstanceName: "First", ServiceType: "_http._tcp", Port: 80})
	id2 := repo.AddService(ServiceRegistration{InstanceName: "Second", ServiceType: "_http._tcp", Port: 81})

	p1, _ := repo.SetServiceProbing(id1)
	p2, _ := repo.SetServiceProbing(id2)

	if !hasType(p1.Records, protocol.RecordTypeA) {
		t.Error("first registered service should carry the address records")
	}
	if hasType(p2.Records, protocol.RecordTypeA) {
		t.Error("second registered service should not duplicate the address records")
	}
}

func hasType(rrs []wire.ResourceRecord, rt protocol.RecordType) bool {
	for _, rr := range rrs {
		if rr.Type() == rt {
			return true
		}
	}
	return false
}

func TestRepository_RenameServiceForConflict(t *testing.T) {
	repo := newTestRepo()
	id := repo.AddService(ServiceRegistration{InstanceName: "Printer", ServiceType: "_http._tcp", Port: 80})

	name, err := repo.RenameServiceForConflict(id)
	if err != nil {
		t.Fatalf("RenameServiceForConflict error: %v", err)
	}
	if name != "Printer (2)" {
		t.Errorf("renamed instance = %q, want %q", name, "Printer (2)")
	}
}

func TestRepository_RenameServiceExceedsMaxAttempts(t *testing.T) {
	repo := newTestRepo()
	id := repo.AddService(ServiceRegistration{InstanceName: "Printer", ServiceType: "_http._tcp", Port: 80})

	var lastErr error
	for i := 0; i < protocol.MaxRenameAttempts+1; i++ {
		_, lastErr = repo.RenameServiceForConflict(id)
	}

	var capErr *beaconerrors.CapacityError
	if lastErr == nil {
		t.Fatal("expected an error after exceeding max rename attempts, got nil")
	}
	if !errors.As(lastErr, &capErr) {
		t.Errorf("expected a capacity error, got %T: %v", lastErr, lastErr)
	}
}

func TestRepository_GetReply_MatchesQuestionCaseInsensitive(t *testing.T) {
	repo := newTestRepo()
	id := repo.AddService(ServiceRegistration{InstanceName: "Printer", ServiceType: "_http._tcp", Port: 80})
	repo.SetServiceProbing(id)
	repo.OnProbingSucceeded(id)
	repo.OnAnnounced(id)

	answers := repo.GetReply(wire.Question{Name: "_HTTP._TCP.LOCAL", Type: protocol.RecordTypePTR, Class: protocol.ClassIN}, nil, time.Now())
	if len(answers) != 1 {
		t.Fatalf("GetReply() returned %d answers, want 1", len(answers))
	}
}

func TestRepository_GetReply_SuppressesFreshKnownAnswer(t *testing.T) {
	repo := newTestRepo()
	id := repo.AddService(ServiceRegistration{InstanceName: "Printer", ServiceType: "_http._tcp", Port: 80})
	repo.SetServiceProbing(id)
	repo.OnProbingSucceeded(id)
	repo.OnAnnounced(id)

	now := time.Now()
	known := wire.ResourceRecord{
		Name:     "_http._tcp.local",
		Class:    protocol.ClassIN,
		TTL:      protocol.TTLShared,
		Received: now,
		Data:     wire.PTRData{Target: "Printer._http._tcp.local"},
	}

	answers := repo.GetReply(wire.Question{Name: "_http._tcp.local", Type: protocol.RecordTypePTR, Class: protocol.ClassIN}, []wire.ResourceRecord{known}, now)
	if len(answers) != 0 {
		t.Errorf("GetReply() with a fresh known answer returned %d answers, want 0", len(answers))
	}
}

func TestRepository_GetReply_DoesNotSuppressStaleKnownAnswer(t *testing.T) {
	repo := newTestRepo()
	id := repo.AddService(ServiceRegistration{InstanceName: "Printer", ServiceType: "_http._tcp", Port: 80})
	repo.SetServiceProbing(id)
	repo.OnProbingSucceeded(id)
	repo.OnAnnounced(id)

	received := time.Now().Add(-(protocol.TTLShared * 9) / 10) // <50% TTL remaining
	known := wire.ResourceRecord{
		Name:     "_http._tcp.local",
		Class:    protocol.ClassIN,
		TTL:      protocol.TTLShared,
		Received: received,
		Data:     wire.PTRData{Target: "Printer._http._tcp.local"},
	}

	answers := repo.GetReply(wire.Question{Name: "_http._tcp.local", Type: protocol.RecordTypePTR, Class: protocol.ClassIN}, []wire.ResourceRecord{known}, time.Now())
	if len(answers) != 1 {
		t.Errorf("GetReply() with a stale known answer returned %d answers, want 1", len(answers))
	}
}

func TestRepository_GetConflictingServices(t *testing.T) {
	repo := newTestRepo()
	id := repo.AddService(ServiceRegistration{InstanceName: "Printer", ServiceType: "_http._tcp", Port: 80})
	repo.SetServiceProbing(id)
	repo.OnProbingSucceeded(id)
	repo.OnAnnounced(id)

	conflicting := wire.ResourceRecord{
		Name:  "Printer._http._tcp.local",
		Class: protocol.ClassIN,
		Data:  wire.SRVData{Port: 9999, Target: "someone-else.local"},
	}

	ids := repo.GetConflictingServices(conflicting)
	if len(ids) != 1 || ids[0] != id {
		t.Errorf("GetConflictingServices() = %v, want [%d]", ids, id)
	}
}

func TestRepository_ConflictKind(t *testing.T) {
	repo := newTestRepo()
	id := repo.AddService(ServiceRegistration{InstanceName: "Printer", ServiceType: "_http._tcp", Port: 80})
	repo.SetServiceProbing(id)
	repo.OnProbingSucceeded(id)
	repo.OnAnnounced(id)

	hostnameRR := wire.ResourceRecord{Name: "myhost.local", Class: protocol.ClassIN, Data: wire.AData{}}
	if got := repo.ConflictKind(hostnameRR); got != beaconerrors.HostnameConflict {
		t.Errorf("ConflictKind(hostname record) = %v, want HostnameConflict", got)
	}

	serviceRR := wire.ResourceRecord{Name: "Printer._http._tcp.local", Class: protocol.ClassIN, Data: wire.SRVData{}}
	if got := repo.ConflictKind(serviceRR); got != beaconerrors.ServiceConflict {
		t.Errorf("ConflictKind(service record) = %v, want ServiceConflict", got)
	}
}

func TestRepository_UpdateSubtypesDoesNotChangeStatus(t *testing.T) {
	repo := newTestRepo()
	id := repo.AddService(ServiceRegistration{InstanceName: "Printer", ServiceType: "_http._tcp", Port: 80})
	repo.SetServiceProbing(id)

	if err := repo.UpdateSubtypes(id, []string{"_color"}); err != nil {
		t.Fatalf("UpdateSubtypes() error = %v", err)
	}
	status, ok := repo.ServiceStatus(id)
	if !ok || status != StatusProbing {
		t.Errorf("ServiceStatus() after UpdateSubtypes = %v, %v, want StatusProbing unchanged", status, ok)
	}

	info, err := repo.OnProbingSucceeded(id)
	if err != nil {
		t.Fatalf("OnProbingSucceeded() error = %v", err)
	}
	var foundSubtypePTR bool
	for _, rr := range info.Records {
		if rr.Name == "_color._sub._http._tcp.local" {
			foundSubtypePTR = true
		}
	}
	if !foundSubtypePTR {
		t.Error("announcement records do not reflect the updated subtype")
	}
}

func TestRepository_ActiveServiceCount(t *testing.T) {
	repo := newTestRepo()
	if repo.ActiveServiceCount() != 0 {
		t.Fatalf("ActiveServiceCount() on empty repo = %d, want 0", repo.ActiveServiceCount())
	}

	id := repo.AddService(ServiceRegistration{InstanceName: "Printer", ServiceType: "_http._tcp", Port: 80})
	repo.SetServiceProbing(id)
	repo.OnProbingSucceeded(id)
	if repo.ActiveServiceCount() != 0 {
		t.Errorf("ActiveServiceCount() while announcing = %d, want 0", repo.ActiveServiceCount())
	}

	repo.OnAnnounced(id)
	if repo.ActiveServiceCount() != 1 {
		t.Errorf("ActiveServiceCount() once active = %d, want 1", repo.ActiveServiceCount())
	}
}
