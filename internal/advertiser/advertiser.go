// Package advertiser implements the interface advertiser (C7): the
// per-network-interface state machine driving each registered service
// through adding -> probing -> probed -> announcing -> active, handling
// defensive re-probing on conflict, and exit announcements on removal.
//
// The advertiser never blocks and owns no goroutine of its own: every
// transition is a callback fired by the repeater/prober/announcer (C3-C5)
// against the shared clock.Clock, matching the single-threaded cooperative
// event handler the coordinator (C8) drives.
package advertiser

import (
	"github.com/beaconmdns/beacon/internal/clock"
	"github.com/beaconmdns/beacon/internal/errors"
	"github.com/beaconmdns/beacon/internal/protocol"
	"github.com/beaconmdns/beacon/internal/records"
	"github.com/beaconmdns/beacon/internal/repeater"
	"github.com/beaconmdns/beacon/internal/wire"
)

// Callbacks notify the coordinator (C8) of lifecycle events it must act
// on: sending a packet, reporting a service as live, permanently
// failed, defensively conflicted, or fully withdrawn.
type Callbacks struct {
	SendProbe    func(records.ProbingInfo)
	SendAnnounce func(records.AnnouncementInfo)

	OnServiceActive func(serviceID uint64)
	OnServiceFailed func(serviceID uint64, err error)
	OnServiceExited func(serviceID uint64)
	OnConflict      func(serviceID uint64, kind errors.ConflictKind)
}

// Advertiser owns one records.Repository and its Prober/Announcer for a
// single network interface.
type Advertiser struct {
	clk       clock.Clock
	repo      *records.Repository
	prober    *repeater.Prober
	announcer *repeater.Announcer
	cb        Callbacks
}

// New returns an Advertiser for one interface, backed by host's shared
// address records.
func New(clk clock.Clock, host records.HostRecords, cb Callbacks) *Advertiser {
	return &Advertiser{
		clk:       clk,
		repo:      records.NewRepository(host),
		prober:    repeater.NewProber(clk),
		announcer: repeater.NewAnnouncer(clk),
		cb:        cb,
	}
}

// SetHostRecords updates the shared hostname records, e.g. after the
// coordinator regenerates the hostname.
func (a *Advertiser) SetHostRecords(host records.HostRecords) {
	a.repo.SetHostRecords(host)
}

// HasActiveService reports whether any service on this interface is
// announcing or active.
func (a *Advertiser) HasActiveService() bool {
	return a.repo.HasActiveService()
}

// Repository exposes the underlying record repository, e.g. for the
// reply sender (C6) to answer incoming queries against.
func (a *Advertiser) Repository() *records.Repository {
	return a.repo
}

// RegisterService adds a new service and begins probing for it.
func (a *Advertiser) RegisterService(reg records.ServiceRegistration) uint64 {
	id := a.repo.AddService(reg)
	a.beginProbing(id)
	return id
}

func (a *Advertiser) beginProbing(id uint64) {
	info, err := a.repo.SetServiceProbing(id)
	if err != nil {
		a.fail(id, err)
		return
	}
	a.prober.Start(info, repeater.ProberCallbacks{
		OnProbe: func(info records.ProbingInfo) {
			if a.cb.SendProbe != nil {
				a.cb.SendProbe(info)
			}
		},
		OnProbingComplete: func(info records.ProbingInfo) {
			a.onProbingComplete(info.ServiceID)
		},
	})
}

func (a *Advertiser) onProbingComplete(id uint64) {
	info, err := a.repo.OnProbingSucceeded(id)
	if err != nil {
		a.fail(id, err)
		return
	}
	a.announcer.StartAnnouncing(info, repeater.AnnouncerCallbacks{
		OnAnnounce: func(info records.AnnouncementInfo) {
			if a.cb.SendAnnounce != nil {
				a.cb.SendAnnounce(info)
			}
		},
		OnComplete: func(info records.AnnouncementInfo) {
			if err := a.repo.OnAnnounced(info.ServiceID); err != nil {
				a.fail(info.ServiceID, err)
				return
			}
			if a.cb.OnServiceActive != nil {
				a.cb.OnServiceActive(info.ServiceID)
			}
		},
	})
}

// HandleConflict responds to a detected naming conflict for serviceID
// per RFC 6762 §8.2/§9: during probing, the probe sequence is stopped,
// the service backs off for protocol.ConflictBackoff, renames, and
// re-probes; once active, any conflict restarts probing immediately
// with no backoff or rename (defensive conflict handling).
func (a *Advertiser) HandleConflict(serviceID uint64) {
	status, ok := a.repo.ServiceStatus(serviceID)
	if !ok {
		return
	}

	switch status {
	case records.StatusProbing:
		a.prober.Stop(serviceID)
		a.clk.AfterFunc(protocol.ConflictBackoff, func() {
			a.renameAndReprobe(serviceID)
		})
	case records.StatusAnnouncing, records.StatusActive:
		a.announcer.Stop(serviceID)
		a.beginProbing(serviceID)
	}
}

func (a *Advertiser) renameAndReprobe(serviceID uint64) {
	if _, err := a.repo.RenameServiceForConflict(serviceID); err != nil {
		a.fail(serviceID, err)
		return
	}
	a.beginProbing(serviceID)
}

// ExitService begins the exit (goodbye) announcement for serviceID,
// removing it from the repository once the announcement completes. It
// is a no-op if serviceID is not registered.
func (a *Advertiser) ExitService(serviceID uint64) {
	a.prober.Stop(serviceID)
	a.announcer.Stop(serviceID)

	info, err := a.repo.ExitService(serviceID)
	if err != nil {
		return
	}
	a.announcer.StartExiting(info, repeater.AnnouncerCallbacks{
		OnAnnounce: func(info records.AnnouncementInfo) {
			if a.cb.SendAnnounce != nil {
				a.cb.SendAnnounce(info)
			}
		},
		OnComplete: func(info records.AnnouncementInfo) {
			a.repo.RemoveService(info.ServiceID)
			if a.cb.OnServiceExited != nil {
				a.cb.OnServiceExited(info.ServiceID)
			}
		},
	})
}

// UpdateSubtypes replaces serviceID's subtype list without re-probing:
// subtypes are not part of the probed name and may change freely.
func (a *Advertiser) UpdateSubtypes(serviceID uint64, subtypes []string) error {
	return a.repo.UpdateSubtypes(serviceID, subtypes)
}

// IsProbing reports whether serviceID is currently in the probing phase.
func (a *Advertiser) IsProbing(serviceID uint64) bool {
	status, ok := a.repo.ServiceStatus(serviceID)
	return ok && status == records.StatusProbing
}

// HandleInboundRecord checks incoming against every owned record on this
// interface: a conflict drives the owning service through its defensive
// or probing-time conflict edge (see HandleConflict) and is reported to
// the coordinator with the kind of name that collided.
func (a *Advertiser) HandleInboundRecord(incoming wire.ResourceRecord) {
	ids := a.repo.GetConflictingServices(incoming)
	if len(ids) == 0 {
		return
	}
	kind := a.repo.ConflictKind(incoming)
	for _, id := range ids {
		a.HandleConflict(id)
		if a.cb.OnConflict != nil {
			a.cb.OnConflict(id, kind)
		}
	}
}

// Close forces an immediate teardown of every service on this interface
// with no exit announcement, used when the interface's socket is torn
// down and a goodbye packet would have nowhere to go.
func (a *Advertiser) Close() {
	for _, id := range a.repo.ServiceIDs() {
		a.prober.Stop(id)
		a.announcer.Stop(id)
	}
	a.repo.ClearServices()
}

func (a *Advertiser) fail(serviceID uint64, err error) {
	if a.cb.OnServiceFailed != nil {
		a.cb.OnServiceFailed(serviceID, err)
	}
}
