package records

import (
	"sort"
	"sync"
	"time"

	"github.com/beaconmdns/beacon/internal/errors"
	"github.com/beaconmdns/beacon/internal/protocol"
	"github.com/beaconmdns/beacon/internal/wire"
)

// ProbingInfo is the set of records a Prober (C4) must carry in the
// authority section of a probe query: the tentative records for a
// service, so peers can tie-break against them.
type ProbingInfo struct {
	ServiceID uint64
	Records   []wire.ResourceRecord
}

// AnnouncementInfo is the set of records an Announcer (C5) sends,
// either as a positive announcement (TTL as configured) or an exit
// announcement (TTL forced to zero by the caller).
type AnnouncementInfo struct {
	ServiceID uint64
	Records   []wire.ResourceRecord
}

// Repository is the record repository (C2): the authoritative set of
// local records for one interface advertiser. It is not safe for
// concurrent use from multiple goroutines without external
// synchronization beyond its own mutex guarding map access, matching
// the single-threaded cooperative scheduling model the advertiser
// assumes (see the repeater package).
type Repository struct {
	mu       sync.RWMutex
	services map[uint64]*serviceEntry
	host     HostRecords
	nextID   uint64
}

// NewRepository returns an empty repository for one interface, with
// host initialized to the shared hostname records the coordinator owns.
func NewRepository(host HostRecords) *Repository {
	return &Repository{
		services: make(map[uint64]*serviceEntry),
		host:     host,
	}
}

// SetHostRecords updates the shared hostname records, e.g. after the
// coordinator regenerates the hostname on an active-count transition
// through zero.
func (repo *Repository) SetHostRecords(host HostRecords) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.host = host
}

// AddService registers a new service in status=adding and returns the
// id assigned to it.
func (repo *Repository) AddService(reg ServiceRegistration) uint64 {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.nextID++
	id := repo.nextID
	repo.services[id] = &serviceEntry{reg: reg, status: StatusAdding}
	return id
}

// SetServiceProbing transitions a service to status=probing and
// returns the authority-section records a Prober should carry.
func (repo *Repository) SetServiceProbing(id uint64) (ProbingInfo, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	entry, ok := repo.services[id]
	if !ok {
		return ProbingInfo{}, errors.ErrInternal
	}
	entry.status = StatusProbing

	includeAddress := repo.firstActiveLocked(id)
	records := BuildRecordSet(entry.reg, repo.host, includeAddress)
	return ProbingInfo{ServiceID: id, Records: records}, nil
}

// OnProbingSucceeded transitions a service to status=probed and
// returns the records an Announcer should send.
func (repo *Repository) OnProbingSucceeded(id uint64) (AnnouncementInfo, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	entry, ok := repo.services[id]
	if !ok {
		return AnnouncementInfo{}, errors.ErrInternal
	}
	entry.status = StatusProbed

	includeAddress := repo.firstActiveLocked(id)
	records := BuildRecordSet(entry.reg, repo.host, includeAddress)
	return AnnouncementInfo{ServiceID: id, Records: records}, nil
}

// OnAnnounced transitions a service from announcing to active.
func (repo *Repository) OnAnnounced(id uint64) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	entry, ok := repo.services[id]
	if !ok {
		return errors.ErrInternal
	}
	entry.status = StatusActive
	return nil
}

// ExitService transitions a service to status=exiting and returns its
// records with TTL forced to zero, for the exit announcement.
func (repo *Repository) ExitService(id uint64) (AnnouncementInfo, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	entry, ok := repo.services[id]
	if !ok {
		return AnnouncementInfo{}, errors.ErrInternal
	}
	entry.status = StatusExiting

	records := BuildRecordSet(entry.reg, repo.host, repo.firstActiveLocked(id))
	for i := range records {
		records[i].TTL = 0
	}
	return AnnouncementInfo{ServiceID: id, Records: records}, nil
}

// RemoveService deletes a service entirely. It is called once its exit
// announcement has been sent (or immediately, if it never reached
// status=active).
func (repo *Repository) RemoveService(id uint64) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	delete(repo.services, id)
}

// HasActiveService reports whether any service on this interface is
// announcing or active.
func (repo *Repository) HasActiveService() bool {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	return repo.hasActiveLocked()
}

func (repo *Repository) hasActiveLocked() bool {
	for _, e := range repo.services {
		if e.status == StatusActive || e.status == StatusAnnouncing {
			return true
		}
	}
	return false
}

// firstActiveLocked reports whether id is (or would be) the first
// service to reach an address-owning status on this interface: address
// records should ride along with exactly one service's record set
// rather than be duplicated across every registration.
func (repo *Repository) firstActiveLocked(id uint64) bool {
	ids := make([]uint64, 0, len(repo.services))
	for sid, e := range repo.services {
		if e.status == StatusRemoved {
			continue
		}
		ids = append(ids, sid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return len(ids) > 0 && ids[0] == id
}

// ServiceStatus returns id's current lifecycle status. The second
// return value is false if id is not registered.
func (repo *Repository) ServiceStatus(id uint64) (Status, bool) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	entry, ok := repo.services[id]
	if !ok {
		return 0, false
	}
	return entry.status, true
}

// ServiceIDs returns the ids of every registered, non-removed service,
// used by the interface advertiser to drive shutdown.
func (repo *Repository) ServiceIDs() []uint64 {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	ids := make([]uint64, 0, len(repo.services))
	for id, e := range repo.services {
		if e.status == StatusRemoved {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// UpdateSubtypes replaces a service's subtype list in place without
// affecting its lifecycle status or triggering a re-probe: subtypes are
// not subject to probing, only the instance name, service type, and
// target host are.
func (repo *Repository) UpdateSubtypes(id uint64, subtypes []string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	entry, ok := repo.services[id]
	if !ok {
		return errors.ErrInternal
	}
	entry.reg.Subtypes = subtypes
	return nil
}

// ActiveServiceCount returns the number of services currently in
// status=active, used by the coordinator to detect the active-count
// transition through zero that triggers hostname regeneration.
func (repo *Repository) ActiveServiceCount() int {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	n := 0
	for _, e := range repo.services {
		if e.status == StatusActive {
			n++
		}
	}
	return n
}

// ConflictKind reports whether incoming's name matches this repository's
// shared hostname (a HostnameConflict, since A/AAAA/NSEC ride on the
// hostname rather than any one service) or a service-owned name
// (ServiceConflict).
func (repo *Repository) ConflictKind(incoming wire.ResourceRecord) errors.ConflictKind {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	if sameName(incoming.Name, repo.host.Hostname) {
		return errors.HostnameConflict
	}
	return errors.ServiceConflict
}

// ClearServices removes every service, used when an interface is
// destroyed.
func (repo *Repository) ClearServices() {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.services = make(map[uint64]*serviceEntry)
}

// RenameServiceForConflict applies Rename to a service's instance name
// in place and resets it to status=adding so it can be re-probed,
// tracking the attempt count against protocol.MaxRenameAttempts.
func (repo *Repository) RenameServiceForConflict(id uint64) (string, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	entry, ok := repo.services[id]
	if !ok {
		return "", errors.ErrInternal
	}

	entry.renameAttempt++
	if entry.renameAttempt > protocol.MaxRenameAttempts {
		return "", &errors.CapacityError{
			ServiceID: id,
			Attempts:  entry.renameAttempt,
			LastName:  entry.reg.InstanceName,
		}
	}

	entry.reg.InstanceName = Rename(entry.reg.InstanceName)
	entry.status = StatusAdding
	return entry.reg.InstanceName, nil
}

// GetConflictingServices returns the ids of services past status=adding
// (probing, announcing, active or exiting) whose owned records the
// incoming record conflicts with.
func (repo *Repository) GetConflictingServices(incoming wire.ResourceRecord) []uint64 {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	var out []uint64
	for id, entry := range repo.services {
		if entry.status == StatusRemoved || entry.status == StatusAdding {
			continue
		}
		owned := BuildRecordSet(entry.reg, repo.host, repo.firstActiveLocked(id))
		for _, rr := range owned {
			if IsConflict(rr, incoming) {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// GetReply returns the records that answer question q, excluding any
// already present in the caller's known-answer set with a remaining TTL
// of at least half the TTL we would answer with (RFC 6762 §7.1's
// known-answer suppression rule), evaluated as of now.
func (repo *Repository) GetReply(q wire.Question, knownAnswers []wire.ResourceRecord, now time.Time) []wire.ResourceRecord {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	var matches []wire.ResourceRecord
	for id, entry := range repo.services {
		if entry.status != StatusActive && entry.status != StatusAnnouncing {
			continue
		}
		for _, rr := range BuildRecordSet(entry.reg, repo.host, repo.firstActiveLocked(id)) {
			if matchesQuestion(rr, q) {
				matches = append(matches, rr)
			}
		}
	}
	return suppressKnownAnswers(matches, knownAnswers, now)
}

func matchesQuestion(rr wire.ResourceRecord, q wire.Question) bool {
	if !sameName(rr.Name, q.Name) {
		return false
	}
	if q.Type != protocol.RecordTypeANY && rr.Type() != q.Type {
		return false
	}
	return rr.Class == q.Class
}

func sameName(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// suppressKnownAnswers drops any candidate answer whose rdata matches a
// known answer whose remaining TTL as of now is at least half the
// candidate's TTL, per RFC 6762 §7.1.
func suppressKnownAnswers(candidates, known []wire.ResourceRecord, now time.Time) []wire.ResourceRecord {
	if len(known) == 0 {
		return candidates
	}

	out := make([]wire.ResourceRecord, 0, len(candidates))
	for _, c := range candidates {
		suppressed := false
		for _, k := range known {
			if !sameName(c.Name, k.Name) || c.Type() != k.Type() || c.Class != k.Class {
				continue
			}
			cBytes, err1 := wire.EncodeRData(c.Data)
			kBytes, err2 := wire.EncodeRData(k.Data)
			if err1 != nil || err2 != nil {
				continue
			}
			if string(cBytes) != string(kBytes) {
				continue
			}
			if k.RemainingTTL(now)*2 >= c.TTL {
				suppressed = true
			}
			break
		}
		if !suppressed {
			out = append(out, c)
		}
	}
	return out
}
