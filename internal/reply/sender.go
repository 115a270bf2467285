package reply

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/beaconmdns/beacon/internal/clock"
	"github.com/beaconmdns/beacon/internal/protocol"
	"github.com/beaconmdns/beacon/internal/wire"
)

// Transport is the subset of a socket (C9) the sender needs: serialized
// packet out, destination in. A socket's Send takes a *net.UDPAddr, so
// the advertiser wraps its sockets in an adapter; tests use a fake.
type Transport interface {
	Send(ctx context.Context, packet []byte, dest net.Addr) error
}

// ReplyInfo is one candidate reply to a query, before coalescing.
// Source is the querier's endpoint and is the coalescing key; Destination
// is already resolved (see ResolveDestination). KnownAnswers, when
// non-empty, are subtracted from this reply's Answers and, once those are
// folded into a reply already pending for the same Source, from the
// merged set — the RFC 6762 §7.1 multi-packet accumulation case.
type ReplyInfo struct {
	Source       *net.UDPAddr
	Destination  *net.UDPAddr
	Answers      []wire.ResourceRecord
	KnownAnswers []wire.ResourceRecord
	SendDelay    time.Duration
}

// OnReplyFunc is invoked when a coalesced reply is finalized and ready
// to serialize and send.
type OnReplyFunc func(dest *net.UDPAddr, answers []wire.ResourceRecord)

type pendingReply struct {
	firstSeen   time.Time
	destination *net.UDPAddr
	answers     []wire.ResourceRecord
	timer       clock.Timer
}

// Sender is the reply sender (C6): it serializes and sends packets,
// splitting across multiple packets with TC set on all but the last
// when a reply overflows the transport's MTU, and it coalesces replies
// queued for the same querier within their delay/accumulation windows.
type Sender struct {
	clk       clock.Clock
	transport Transport
	maxLen    int

	mu      sync.Mutex
	pending map[string]*pendingReply
}

// NewSender returns a Sender driven by clk, writing through transport.
// A maxLen of 0 uses protocol.DefaultMTU.
func NewSender(clk clock.Clock, transport Transport, maxLen int) *Sender {
	if maxLen <= 0 {
		maxLen = protocol.DefaultMTU
	}
	return &Sender{
		clk:       clk,
		transport: transport,
		maxLen:    maxLen,
		pending:   make(map[string]*pendingReply),
	}
}

// SendNow serializes answers immediately and sends them to dest,
// splitting across multiple packets with the TC bit set on all but the
// last if the full answer set would overflow the transport's MTU.
func (s *Sender) SendNow(ctx context.Context, dest *net.UDPAddr, header wire.Header, answers []wire.ResourceRecord) error {
	batches := splitIntoPackets(header, answers, s.maxLen)
	for i, batch := range batches {
		flags := header.Flags &^ protocol.FlagTC
		if i < len(batches)-1 {
			flags |= protocol.FlagTC
		}
		msg := &wire.Message{
			Header:  wire.Header{ID: header.ID, Flags: flags},
			Answers: batch,
		}
		packet, err := wire.Encode(msg, s.maxLen)
		if err != nil {
			return err
		}
		if err := s.transport.Send(ctx, packet, dest); err != nil {
			return err
		}
	}
	return nil
}

// QueueReply schedules info for send after info.SendDelay. If a reply is
// already pending for the same source endpoint, info's answers are
// folded into it and info.KnownAnswers is subtracted from the merged
// set; if that empties the pending reply it is canceled outright. The
// pending entry is finalized no later than
// protocol.KnownAnswerAccumulationWindow after the first reply queued
// for that source, regardless of how many follow-up packets arrive.
func (s *Sender) QueueReply(info ReplyInfo, onReply OnReplyFunc) {
	key := info.Source.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pending[key]; ok {
		p.answers = subtractKnownAnswers(append(p.answers, info.Answers...), info.KnownAnswers)
		if len(p.answers) == 0 {
			p.timer.Stop()
			delete(s.pending, key)
			return
		}
		p.timer.Stop()
		remaining := protocol.KnownAnswerAccumulationWindow - s.clk.Now().Sub(p.firstSeen)
		if remaining < 0 {
			remaining = 0
		}
		p.timer = s.clk.AfterFunc(remaining, func() { s.finalize(key, onReply) })
		return
	}

	answers := subtractKnownAnswers(append([]wire.ResourceRecord(nil), info.Answers...), info.KnownAnswers)
	if len(answers) == 0 {
		return
	}
	p := &pendingReply{
		firstSeen:   s.clk.Now(),
		destination: info.Destination,
		answers:     answers,
	}
	s.pending[key] = p
	p.timer = s.clk.AfterFunc(info.SendDelay, func() { s.finalize(key, onReply) })
}

func (s *Sender) finalize(key string, onReply OnReplyFunc) {
	s.mu.Lock()
	p, ok := s.pending[key]
	if ok {
		delete(s.pending, key)
	}
	s.mu.Unlock()

	if !ok || onReply == nil {
		return
	}
	onReply(p.destination, p.answers)
}

// subtractKnownAnswers removes from answers any record that also appears
// (identical name/type/class/rdata) in known.
func subtractKnownAnswers(answers, known []wire.ResourceRecord) []wire.ResourceRecord {
	if len(known) == 0 {
		return answers
	}
	out := answers[:0]
	for _, a := range answers {
		if !containsRecord(known, a) {
			out = append(out, a)
		}
	}
	return out
}

func containsRecord(set []wire.ResourceRecord, rr wire.ResourceRecord) bool {
	rrBytes, err := wire.EncodeRData(rr.Data)
	if err != nil {
		return false
	}
	for _, k := range set {
		if k.Name != rr.Name || k.Type() != rr.Type() || k.Class != rr.Class {
			continue
		}
		kBytes, err := wire.EncodeRData(k.Data)
		if err != nil {
			continue
		}
		if string(kBytes) == string(rrBytes) {
			return true
		}
	}
	return false
}

// splitIntoPackets greedily packs answers into as few batches as will
// fit within maxLen, starting a new batch whenever the next record
// would overflow the current one.
func splitIntoPackets(header wire.Header, answers []wire.ResourceRecord, maxLen int) [][]wire.ResourceRecord {
	if len(answers) == 0 {
		return [][]wire.ResourceRecord{nil}
	}

	var batches [][]wire.ResourceRecord
	var current []wire.ResourceRecord
	for _, rr := range answers {
		candidate := append(append([]wire.ResourceRecord(nil), current...), rr)
		msg := &wire.Message{Header: header, Answers: candidate}
		if _, err := wire.Encode(msg, maxLen); err != nil && len(current) > 0 {
			batches = append(batches, current)
			current = []wire.ResourceRecord{rr}
			continue
		}
		current = candidate
	}
	batches = append(batches, current)
	return batches
}
