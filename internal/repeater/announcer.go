package repeater

import (
	"time"

	"github.com/beaconmdns/beacon/internal/clock"
	"github.com/beaconmdns/beacon/internal/protocol"
	"github.com/beaconmdns/beacon/internal/records"
)

// Announcer drives the RFC 6762 §8.3 announcement sequence (three
// unsolicited responses with doubling delays) and the RFC 6762 §10.1
// exit-announcement sequence (a single response, TTL zero, delayed to
// allow coalescing with other services exiting at the same time).
type Announcer struct {
	rep *Repeater[records.AnnouncementInfo]
}

// NewAnnouncer returns an Announcer driven by clk.
func NewAnnouncer(clk clock.Clock) *Announcer {
	return &Announcer{rep: New[records.AnnouncementInfo](clk)}
}

// AnnouncerCallbacks are invoked as an announcement sequence progresses.
type AnnouncerCallbacks struct {
	OnAnnounce func(info records.AnnouncementInfo)
	OnComplete func(info records.AnnouncementInfo)
}

// announceDelay implements the doubling schedule: 1s before the second
// send, 2s before the third.
func announceDelay(nextIndex int) time.Duration {
	d := protocol.AnnounceInitialDelay
	for i := 1; i < nextIndex; i++ {
		d *= protocol.AnnounceDelayMultiplier
	}
	return d
}

// StartAnnouncing begins the three-send initial announcement sequence
// for info.ServiceID, sending immediately.
func (a *Announcer) StartAnnouncing(info records.AnnouncementInfo, cb AnnouncerCallbacks) {
	a.rep.StartSending(info.ServiceID, info, protocol.AnnounceCount, announceDelay, 0, Callbacks[records.AnnouncementInfo]{
		OnSent: func(_ int, payload records.AnnouncementInfo) {
			if cb.OnAnnounce != nil {
				cb.OnAnnounce(payload)
			}
		},
		OnFinished: func(payload records.AnnouncementInfo) {
			if cb.OnComplete != nil {
				cb.OnComplete(payload)
			}
		},
	})
}

// StartExiting begins the single-send exit announcement for
// info.ServiceID (TTL already forced to zero by the caller), delayed
// by protocol.ExitAnnounceDelay to allow coalescing with other
// services exiting on the same interface at the same time.
func (a *Announcer) StartExiting(info records.AnnouncementInfo, cb AnnouncerCallbacks) {
	delay := func(int) time.Duration { return 0 }
	a.rep.StartSending(info.ServiceID, info, protocol.ExitAnnounceCount, delay, protocol.ExitAnnounceDelay, Callbacks[records.AnnouncementInfo]{
		OnSent: func(_ int, payload records.AnnouncementInfo) {
			if cb.OnAnnounce != nil {
				cb.OnAnnounce(payload)
			}
		},
		OnFinished: func(payload records.AnnouncementInfo) {
			if cb.OnComplete != nil {
				cb.OnComplete(payload)
			}
		},
	})
}

// Stop cancels any in-flight announcement or exit sequence for
// serviceID. It returns true iff a sequence was stopped before
// completing.
func (a *Announcer) Stop(serviceID uint64) bool {
	return a.rep.Stop(serviceID)
}
