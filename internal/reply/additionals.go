package reply

import (
	"time"

	"github.com/beaconmdns/beacon/internal/protocol"
	"github.com/beaconmdns/beacon/internal/records"
	"github.com/beaconmdns/beacon/internal/wire"
)

// Repository is the subset of records.Repository the additionals builder
// needs: a name/type lookup against the interface's owned records.
type Repository interface {
	GetReply(q wire.Question, knownAnswers []wire.ResourceRecord, now time.Time) []wire.ResourceRecord
}

var _ Repository = (*records.Repository)(nil)

// BuildAdditionals returns the mandated additional-section records for a
// set of answers per RFC 6763 §12 / RFC 6762 §6.1: SRV and TXT for every
// PTR answer, and A/AAAA/NSEC for every SRV answer's target host.
// Records already present in answers are not repeated.
func BuildAdditionals(repo Repository, answers []wire.ResourceRecord, now time.Time) []wire.ResourceRecord {
	var out []wire.ResourceRecord
	for _, a := range answers {
		switch d := a.Data.(type) {
		case wire.PTRData:
			out = append(out, lookupMissing(repo, d.Target, protocol.RecordTypeSRV, answers, out, now)...)
			out = append(out, lookupMissing(repo, d.Target, protocol.RecordTypeTXT, answers, out, now)...)
		case wire.SRVData:
			out = append(out, lookupMissing(repo, d.Target, protocol.RecordTypeANY, answers, out, now)...)
		}
	}
	return out
}

func lookupMissing(repo Repository, name string, rtype protocol.RecordType, answers, alreadyAdded []wire.ResourceRecord, now time.Time) []wire.ResourceRecord {
	found := repo.GetReply(wire.Question{Name: name, Type: rtype, Class: protocol.ClassIN}, nil, now)

	var out []wire.ResourceRecord
	for _, rr := range found {
		if containsRecord(answers, rr) || containsRecord(alreadyAdded, rr) || containsRecord(out, rr) {
			continue
		}
		out = append(out, rr)
	}
	return out
}
