// Package advertiser is the public facade over the multi-interface
// advertiser (C8): it binds the concrete multicast socket facade (C9) on
// every eligible network interface, wires the coordinator's outbound
// callbacks to those sockets, answers inbound queries through the reply
// sender (C6), and feeds inbound responses back for conflict detection.
// It is the top-level responder package for the advertising side.
package advertiser

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/beaconmdns/beacon/internal/clock"
	"github.com/beaconmdns/beacon/internal/coordinator"
	"github.com/beaconmdns/beacon/internal/errors"
	"github.com/beaconmdns/beacon/internal/protocol"
	"github.com/beaconmdns/beacon/internal/records"
	"github.com/beaconmdns/beacon/internal/repeater"
	"github.com/beaconmdns/beacon/internal/reply"
	"github.com/beaconmdns/beacon/internal/security"
	"github.com/beaconmdns/beacon/internal/socket"
	"github.com/beaconmdns/beacon/internal/wire"
)

// rateLimiterCleanupInterval is how often security.RateLimiter.Cleanup
// sweeps the per-source entries; each sweep drops entries not seen for
// more than a minute.
const rateLimiterCleanupInterval = 5 * time.Minute

// ConflictKind re-exports errors.ConflictKind so callers never need to
// import internal/errors directly.
type ConflictKind = errors.ConflictKind

// Handle is returned by Register and identifies a service registration
// for later Update/Remove calls.
type Handle uint64

type serviceState struct {
	selector coordinator.NetworkSelector
}

// Advertiser is the process-wide mDNS service advertiser: one shared
// hostname, one coordinator (C8), and one bound socket (C9) plus reply
// sender (C6) per eligible network interface.
type Advertiser struct {
	clk    clock.Clock
	log    *slog.Logger
	filter socket.InterfaceFilter
	addrs  coordinator.AddressProvider
	maxLen int

	filterSources bool
	rlEnabled     bool
	rlThreshold   int
	rlCooldown    time.Duration
	rlMaxEntries  int
	limiter       *security.RateLimiter
	cleanupTimer  clock.Timer

	explicitIfaces []net.Interface

	onRegistered func(Handle, Service)
	onFailed     func(Handle, error)
	onUpdated    func(Handle)
	onConflict   func(Handle, ConflictKind)

	mu       sync.Mutex
	coord    *coordinator.Coordinator
	sockets  map[string]socket.Socket
	senders  map[string]*reply.Sender
	services map[uint64]*serviceState
	nextID   uint64
	closed   bool

	gate *records.MulticastGate
}

// New returns an Advertiser bound to every interface socket.DefaultInterfaceFilter
// accepts (override with WithInterfaces / WithInterfaceFilter). It fails
// if not a single interface could be bound.
func New(opts ...Option) (*Advertiser, error) {
	a := &Advertiser{
		clk:           clock.Real{},
		log:           slog.Default(),
		filter:        socket.DefaultInterfaceFilter,
		addrs:         defaultAddressProvider,
		sockets:       make(map[string]socket.Socket),
		senders:       make(map[string]*reply.Sender),
		services:      make(map[uint64]*serviceState),
		filterSources: true,
		rlEnabled:     true,
		rlThreshold:   100,
		rlCooldown:    60 * time.Second,
		rlMaxEntries:  10000,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("advertiser: applying option: %w", err)
		}
	}
	a.gate = records.NewMulticastGate(a.clk)
	if a.rlEnabled {
		a.limiter = security.NewRateLimiter(a.rlThreshold, a.rlCooldown, a.rlMaxEntries)
		a.startRateLimiterCleanup()
	}

	a.coord = coordinator.New(a.clk, a.addrs, coordinator.Callbacks{
		SendProbe:           a.sendProbe,
		SendAnnounce:        a.sendAnnounce,
		OnRegisterSucceeded: a.onRegisterSucceeded,
		OnRegisterFailed:    a.onRegisterFailed,
		OnServiceUpdated:    a.onServiceUpdated,
		OnServiceConflict:   a.onServiceConflict,
	})

	ifaces := a.explicitIfaces
	if ifaces == nil {
		all, err := net.Interfaces()
		if err != nil {
			return nil, err
		}
		for _, iface := range all {
			if a.filter(iface) {
				ifaces = append(ifaces, iface)
			}
		}
	}

	for _, iface := range ifaces {
		if err := a.addInterface(iface); err != nil {
			a.log.Warn("advertiser skipping interface", "interface", iface.Name, "error", err)
		}
	}
	if len(a.sockets) == 0 {
		return nil, fmt.Errorf("advertiser: no interface could be bound")
	}
	return a, nil
}

// OnRegistered sets the callback fired once a registration is active on
// every interface it was attached to (RFC 6762 §8.3 announcement
// complete).
func (a *Advertiser) OnRegistered(fn func(Handle, Service)) { a.onRegistered = fn }

// OnFailed sets the callback fired when a registration cannot be probed
// successfully on any attached interface (e.g. the rename budget is
// exhausted defensively elsewhere).
func (a *Advertiser) OnFailed(fn func(Handle, error)) { a.onFailed = fn }

// OnUpdated sets the callback fired after an in-place Update commits.
func (a *Advertiser) OnUpdated(fn func(Handle)) { a.onUpdated = fn }

// OnConflict sets the callback fired when an active registration's
// records collide with a record observed on the wire.
func (a *Advertiser) OnConflict(fn func(Handle, ConflictKind)) { a.onConflict = fn }

func (a *Advertiser) addInterface(iface net.Interface) error {
	ifaceName := iface.Name
	sock, err := socket.New(iface, func(msg *wire.Message, src *net.UDPAddr, name string) {
		a.handlePacket(msg, src, name)
	}, socket.Options{
		Logger:        a.log,
		RateLimiter:   a.limiter,
		FilterSources: a.filterSources,
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.sockets[ifaceName] = sock
	a.senders[ifaceName] = reply.NewSender(a.clk, &transportAdapter{sock: sock}, a.maxLen)
	a.mu.Unlock()

	a.coord.AddInterface(ifaceName)
	return nil
}

// Register begins probing and announcing svc on every bound interface,
// returning a Handle for later Update/Remove calls.
func (a *Advertiser) Register(svc Service) (Handle, error) {
	return a.register(svc, coordinator.NetworkSelector{AllNetworks: true})
}

// RegisterOn is Register restricted to a single named interface.
func (a *Advertiser) RegisterOn(svc Service, interfaceName string) (Handle, error) {
	return a.register(svc, coordinator.NetworkSelector{InterfaceName: interfaceName})
}

func (a *Advertiser) register(svc Service, selector coordinator.NetworkSelector) (Handle, error) {
	if err := svc.Validate(); err != nil {
		return 0, err
	}

	a.mu.Lock()
	a.nextID++
	id := a.nextID
	a.services[id] = &serviceState{selector: selector}
	a.mu.Unlock()

	if err := a.coord.AddOrUpdateService(id, toRegistration(svc), selector); err != nil {
		a.mu.Lock()
		delete(a.services, id)
		a.mu.Unlock()
		return 0, err
	}
	return Handle(id), nil
}

// Update applies svc in place to an existing registration: only
// Subtypes and TTL may differ from the original registration, matching
// records.Equivalent's rule. Every other field mismatching the original
// fails with errors.ErrInternal and leaves the registration untouched.
func (a *Advertiser) Update(h Handle, svc Service) error {
	if err := svc.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	st, ok := a.services[uint64(h)]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("advertiser: unknown handle %d", h)
	}
	selector := st.selector
	a.mu.Unlock()

	return a.coord.AddOrUpdateService(uint64(h), toRegistration(svc), selector)
}

// Remove withdraws h, sending goodbye announcements on every interface
// it was attached to.
func (a *Advertiser) Remove(h Handle) {
	a.coord.RemoveService(uint64(h))
	a.mu.Lock()
	delete(a.services, uint64(h))
	a.mu.Unlock()
}

// Hostname returns the advertiser's current shared hostname.
func (a *Advertiser) Hostname() string {
	return a.coord.Hostname()
}

func toRegistration(svc Service) records.ServiceRegistration {
	return records.ServiceRegistration{
		InstanceName: svc.InstanceName,
		ServiceType:  svc.ServiceType,
		Subtypes:     svc.Subtypes,
		Port:         svc.Port,
		TXT:          svc.TXT,
		TTLOverride:  svc.TTL,
	}
}

func (a *Advertiser) onRegisterSucceeded(serviceID uint64, final records.ServiceRegistration) {
	if a.onRegistered == nil {
		return
	}
	a.onRegistered(Handle(serviceID), Service{
		InstanceName: final.InstanceName,
		ServiceType:  final.ServiceType,
		Subtypes:     final.Subtypes,
		Port:         final.Port,
		TXT:          final.TXT,
		TTL:          final.TTLOverride,
	})
}

func (a *Advertiser) onRegisterFailed(serviceID uint64, err error) {
	if a.onFailed != nil {
		a.onFailed(Handle(serviceID), err)
	}
}

func (a *Advertiser) onServiceUpdated(serviceID uint64) {
	if a.onUpdated != nil {
		a.onUpdated(Handle(serviceID))
	}
}

func (a *Advertiser) onServiceConflict(serviceID uint64, kind errors.ConflictKind) {
	if a.onConflict != nil {
		a.onConflict(Handle(serviceID), kind)
	}
}

// sendProbe encodes a probe query (a question per probed name, plus the
// tentative records in the Authority section per RFC 6762 §8.1) and
// sends it to the IPv4/IPv6 multicast groups on interfaceName.
func (a *Advertiser) sendProbe(interfaceName string, info records.ProbingInfo) {
	msg := &wire.Message{
		Questions:   probeQuestions(info.Records),
		Authorities: info.Records,
	}
	a.sendMulticast(interfaceName, msg)
}

// sendAnnounce encodes a positive or goodbye (TTL=0) announcement as an
// unsolicited response per RFC 6762 §8.3/§10.1 and sends it to the
// multicast groups on interfaceName.
func (a *Advertiser) sendAnnounce(interfaceName string, info records.AnnouncementInfo) {
	msg := &wire.Message{
		Header:  wire.Header{Flags: protocol.FlagQR | protocol.FlagAA},
		Answers: info.Records,
	}
	a.sendMulticast(interfaceName, msg)
}

func probeQuestions(recs []wire.ResourceRecord) []wire.Question {
	seen := make(map[string]bool, len(recs))
	var qs []wire.Question
	for _, rr := range recs {
		if seen[rr.Name] {
			continue
		}
		seen[rr.Name] = true
		qs = append(qs, wire.Question{Name: rr.Name, Type: protocol.RecordTypeANY, Class: protocol.ClassIN})
	}
	return qs
}

func (a *Advertiser) sendMulticast(interfaceName string, msg *wire.Message) {
	a.mu.Lock()
	sock, ok := a.sockets[interfaceName]
	a.mu.Unlock()
	if !ok {
		return
	}

	packet, err := wire.Encode(msg, a.maxLen)
	if err != nil {
		a.log.Warn("failed to encode outbound packet", "interface", interfaceName, "error", err)
		return
	}
	for _, dest := range []*net.UDPAddr{protocol.MulticastGroupIPv4(), protocol.MulticastGroupIPv6()} {
		if err := sock.Send(context.Background(), packet, dest); err != nil {
			a.log.Debug("failed to send multicast packet", "interface", interfaceName, "destination", dest, "error", err)
		}
	}
}

func (a *Advertiser) handlePacket(msg *wire.Message, src *net.UDPAddr, ifaceName string) {
	if msg.Header.IsQuery() {
		a.handleQuery(msg, src, ifaceName)
		return
	}
	a.handleResponse(msg, ifaceName)
}

func (a *Advertiser) handleQuery(msg *wire.Message, src *net.UDPAddr, ifaceName string) {
	repo, ok := a.coord.Repository(ifaceName)
	if !ok {
		return
	}
	a.mu.Lock()
	sender, ok := a.senders[ifaceName]
	a.mu.Unlock()
	if !ok {
		return
	}

	now := a.clk.Now()
	for _, q := range msg.Questions {
		answers := repo.GetReply(q, msg.Answers, now)
		if len(answers) == 0 {
			continue
		}
		answers = append(answers, reply.BuildAdditionals(repo, answers, now)...)

		dest := reply.ResolveDestination(src, q.QU)
		if dest.IP.IsMulticast() {
			answers = a.gateMulticastAnswers(answers, ifaceName)
			if len(answers) == 0 {
				continue
			}
		}
		sender.QueueReply(reply.ReplyInfo{
			Source:       src,
			Destination:  dest,
			Answers:      answers,
			KnownAnswers: msg.Answers,
			SendDelay:    replyDelay(dest),
		}, func(dest *net.UDPAddr, answers []wire.ResourceRecord) {
			header := wire.Header{ID: msg.Header.ID, Flags: protocol.FlagQR | protocol.FlagAA}
			if err := sender.SendNow(context.Background(), dest, header, answers); err != nil {
				a.log.Debug("failed to send reply", "interface", ifaceName, "error", err)
			}
			if dest.IP.IsMulticast() {
				a.recordMulticastAnswers(answers, ifaceName)
			}
		})
	}
}

// gateMulticastAnswers drops any answer that was multicast on ifaceName
// less than one second ago (RFC 6762 §6.2), so a burst of identical
// questions from several peers does not trigger repeated multicast
// replies for the same record.
func (a *Advertiser) gateMulticastAnswers(answers []wire.ResourceRecord, ifaceName string) []wire.ResourceRecord {
	var kept []wire.ResourceRecord
	for _, rr := range answers {
		if a.gate.CanMulticast(rr, ifaceName) {
			kept = append(kept, rr)
		}
	}
	return kept
}

func (a *Advertiser) recordMulticastAnswers(answers []wire.ResourceRecord, ifaceName string) {
	for _, rr := range answers {
		a.gate.RecordMulticast(rr, ifaceName)
	}
}

// startRateLimiterCleanup arms a, self-rescheduling timer that sweeps
// stale per-source entries from a.limiter every rateLimiterCleanupInterval,
// so a long-running advertiser's rate-limiter map doesn't grow unbounded
// between LRU evictions.
func (a *Advertiser) startRateLimiterCleanup() {
	var tick func()
	tick = func() {
		a.limiter.Cleanup()
		a.mu.Lock()
		if !a.closed {
			a.cleanupTimer = a.clk.AfterFunc(rateLimiterCleanupInterval, tick)
		}
		a.mu.Unlock()
	}
	a.cleanupTimer = a.clk.AfterFunc(rateLimiterCleanupInterval, tick)
}

// replyDelay applies RFC 6762 §6's 20-120ms random delay to multicast
// replies (shared among potentially many simultaneous responders) and
// sends unicast replies immediately.
func replyDelay(dest *net.UDPAddr) time.Duration {
	if dest.IP.IsMulticast() {
		return protocol.UnicastResponseDelayMin + repeater.RandomDelay(protocol.UnicastResponseDelayMax-protocol.UnicastResponseDelayMin)
	}
	return 0
}

func (a *Advertiser) handleResponse(msg *wire.Message, ifaceName string) {
	all := append(append([]wire.ResourceRecord{}, msg.Answers...), msg.Additionals...)
	for _, rr := range all {
		a.coord.HandleInboundRecord(ifaceName, rr)
	}
}

// Close releases every bound interface socket with no exit
// announcements (RemoveInterface's documented behavior; a goodbye sent
// through a socket already being torn down has nowhere reliable to go).
// Close is idempotent.
func (a *Advertiser) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	sockets := a.sockets
	a.sockets = nil
	if a.cleanupTimer != nil {
		a.cleanupTimer.Stop()
	}
	a.mu.Unlock()

	for name := range sockets {
		a.coord.RemoveInterface(name)
	}

	var firstErr error
	for _, sock := range sockets {
		if err := sock.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// transportAdapter narrows a socket.Socket (dest *net.UDPAddr) to the
// reply sender's Transport interface (dest net.Addr).
type transportAdapter struct {
	sock socket.Socket
}

func (t *transportAdapter) Send(ctx context.Context, packet []byte, dest net.Addr) error {
	udpAddr, ok := dest.(*net.UDPAddr)
	if !ok {
		return fmt.Errorf("advertiser: unsupported destination address type %T", dest)
	}
	return t.sock.Send(ctx, packet, udpAddr)
}

var _ reply.Transport = (*transportAdapter)(nil)
