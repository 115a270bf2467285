package repeater

import (
	"time"

	"github.com/beaconmdns/beacon/internal/clock"
	"github.com/beaconmdns/beacon/internal/protocol"
	"github.com/beaconmdns/beacon/internal/records"
)

// Prober drives the RFC 6762 §8.1 probing sequence: three probe
// queries 250ms apart, with an initial delay chosen uniformly in
// [0, 250ms) so simultaneously starting hosts don't probe in lockstep.
type Prober struct {
	rep *Repeater[records.ProbingInfo]
}

// NewProber returns a Prober driven by clk.
func NewProber(clk clock.Clock) *Prober {
	return &Prober{rep: New[records.ProbingInfo](clk)}
}

// ProberCallbacks are invoked as a probe sequence progresses.
type ProberCallbacks struct {
	// OnProbe fires for each of the three probe sends; info carries the
	// records to place in the probe's authority section.
	OnProbe func(info records.ProbingInfo)
	// OnProbingComplete fires once probing finishes without being
	// stopped (e.g. by a detected conflict).
	OnProbingComplete func(info records.ProbingInfo)
}

// Start begins probing for info.ServiceID.
func (p *Prober) Start(info records.ProbingInfo, cb ProberCallbacks) {
	delay := func(int) time.Duration { return protocol.ProbeInterval }
	p.rep.StartSending(info.ServiceID, info, protocol.ProbeCount, delay, RandomDelay(protocol.ProbeInitialDelayMax), Callbacks[records.ProbingInfo]{
		OnSent: func(_ int, payload records.ProbingInfo) {
			if cb.OnProbe != nil {
				cb.OnProbe(payload)
			}
		},
		OnFinished: func(payload records.ProbingInfo) {
			if cb.OnProbingComplete != nil {
				cb.OnProbingComplete(payload)
			}
		},
	})
}

// Stop cancels probing for serviceID, e.g. because a conflict was
// detected and the advertiser needs to rename and restart. It returns
// true iff probing was in flight and was stopped before completing.
func (p *Prober) Stop(serviceID uint64) bool {
	return p.rep.Stop(serviceID)
}
