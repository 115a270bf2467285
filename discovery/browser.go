package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/beaconmdns/beacon/internal/clock"
	"github.com/beaconmdns/beacon/internal/protocol"
	"github.com/beaconmdns/beacon/internal/security"
	"github.com/beaconmdns/beacon/internal/socket"
	"github.com/beaconmdns/beacon/internal/wire"
)

// rateLimiterCleanupInterval is how often security.RateLimiter.Cleanup
// sweeps the per-source entries; each sweep drops entries not seen for
// more than a minute.
const rateLimiterCleanupInterval = 5 * time.Minute

// EventKind distinguishes the three ways a ServiceInstance's visibility
// can change.
type EventKind int

const (
	// Added fires the first time an instance has enough records
	// (currently: an SRV target) to be reported.
	Added EventKind = iota

	// Updated fires when an already-reported instance's records change
	// (TXT contents, SRV target/port, resolved addresses).
	Updated

	// Removed fires when an instance's records expire, or a goodbye
	// (TTL=0) PTR record withdraws it.
	Removed
)

func (k EventKind) String() string {
	switch k {
	case Added:
		return "Added"
	case Updated:
		return "Updated"
	case Removed:
		return "Removed"
	default:
		return "Unknown"
	}
}

// Event is delivered to a Browser's OnEvent callback for every instance
// visibility change.
type Event struct {
	Kind     EventKind
	Instance ServiceInstance
}

// OnEventFunc receives discovery events. It is called from the Browser's
// per-interface read-loop goroutine and must not block.
type OnEventFunc func(Event)

type ifaceState struct {
	sock      socket.Socket
	instances map[string]*ServiceInstance // instanceKey -> instance
	hosts     map[string][]net.IP         // host name -> resolved addresses
	timers    map[string]clock.Timer      // instanceKey -> pending expiry timer
}

// Browser implements the discovery/browse path: it binds the socket
// facade (C9) on a set of interfaces, decodes every inbound response
// with the shared wire codec (C1), and maintains one service-instance
// table per interface for a single service type, aging entries out by
// TTL and surfacing Added/Updated/Removed events.
type Browser struct {
	serviceType string
	clk         clock.Clock
	log         *slog.Logger
	onEvent     OnEventFunc
	filter      socket.InterfaceFilter
	explicit    []net.Interface
	opts        socket.Options

	filterSources bool
	rlEnabled     bool
	rlThreshold   int
	rlCooldown    time.Duration
	rlMaxEntries  int
	limiter       *security.RateLimiter
	cleanupTimer  clock.Timer

	mu     sync.Mutex
	ifaces map[string]*ifaceState
	closed bool
}

// New returns a Browser watching for instances of serviceType (e.g.
// "_http._tcp"), reporting events to onEvent. By default it binds every
// interface socket.DefaultInterfaceFilter accepts; see WithInterfaces and
// WithInterfaceFilter to override.
func New(serviceType string, onEvent OnEventFunc, opts ...Option) (*Browser, error) {
	if err := protocol.ValidateName(serviceType + ".local"); err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	if err := protocol.ValidateRecordType(uint16(protocol.RecordTypePTR)); err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	b := &Browser{
		serviceType:   serviceType,
		clk:           clock.Real{},
		log:           slog.Default(),
		onEvent:       onEvent,
		filter:        socket.DefaultInterfaceFilter,
		ifaces:        make(map[string]*ifaceState),
		filterSources: true,
		rlEnabled:     true,
		rlThreshold:   100,
		rlCooldown:    60 * time.Second,
		rlMaxEntries:  10000,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rlEnabled {
		b.limiter = security.NewRateLimiter(b.rlThreshold, b.rlCooldown, b.rlMaxEntries)
		b.startRateLimiterCleanup()
	}
	b.opts = socket.Options{
		Logger:        b.log,
		RateLimiter:   b.limiter,
		FilterSources: b.filterSources,
	}

	ifaces := b.explicit
	if ifaces == nil {
		all, err := net.Interfaces()
		if err != nil {
			return nil, err
		}
		for _, iface := range all {
			if b.filter(iface) {
				ifaces = append(ifaces, iface)
			}
		}
	}

	for _, iface := range ifaces {
		if err := b.addInterface(iface); err != nil {
			b.log.Warn("browser skipping interface", "interface", iface.Name, "error", err)
		}
	}
	if len(b.ifaces) == 0 {
		return nil, fmt.Errorf("discovery: no interface could be bound")
	}
	return b, nil
}

func (b *Browser) addInterface(iface net.Interface) error {
	ifaceName := iface.Name
	sock, err := socket.New(iface, func(msg *wire.Message, src *net.UDPAddr, name string) {
		b.handlePacket(msg, src, name)
	}, b.opts)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.ifaces[ifaceName] = &ifaceState{
		sock:      sock,
		instances: make(map[string]*ServiceInstance),
		hosts:     make(map[string][]net.IP),
		timers:    make(map[string]clock.Timer),
	}
	b.mu.Unlock()
	return nil
}

// Query sends a PTR question for the browsed service type to the
// multicast group on every bound interface, prompting peers to respond;
// Browser otherwise operates passively off whatever traffic it observes.
func (b *Browser) Query() {
	msg := &wire.Message{
		Questions: []wire.Question{{
			Name:  b.serviceType + ".local",
			Type:  protocol.RecordTypePTR,
			Class: protocol.ClassIN,
		}},
	}
	packet, err := wire.Encode(msg, 0)
	if err != nil {
		b.log.Warn("failed to encode browse query", "error", err)
		return
	}

	b.mu.Lock()
	sockets := make(map[string]socket.Socket, len(b.ifaces))
	for name, st := range b.ifaces {
		sockets[name] = st.sock
	}
	b.mu.Unlock()

	for name, sock := range sockets {
		dest := protocol.MulticastGroupIPv4()
		if err := sock.Send(context.Background(), packet, dest); err != nil {
			b.log.Debug("failed to send browse query", "interface", name, "error", err)
		}
	}
}

func (b *Browser) handlePacket(msg *wire.Message, _ *net.UDPAddr, ifaceName string) {
	if !msg.Header.IsResponse() {
		return
	}
	if err := protocol.ValidateResponse(msg.Header.Flags); err != nil {
		b.log.Debug("discarding malformed response", "interface", ifaceName, "error", err)
		return
	}

	b.mu.Lock()
	st, ok := b.ifaces[ifaceName]
	b.mu.Unlock()
	if !ok {
		return
	}

	now := b.clk.Now()
	all := append(append([]wire.ResourceRecord{}, msg.Answers...), msg.Additionals...)
	for _, rr := range all {
		b.applyRecord(st, ifaceName, rr, now)
	}
}

func (b *Browser) applyRecord(st *ifaceState, ifaceName string, rr wire.ResourceRecord, now time.Time) {
	switch data := rr.Data.(type) {
	case wire.PTRData:
		if !strings.EqualFold(rr.Name, b.serviceType+".local") {
			return
		}
		name := b.instanceName(data.Target)
		if name == "" {
			return
		}
		if rr.TTL == 0 {
			b.remove(st, ifaceName, name)
			return
		}
		inst := b.getOrCreate(st, ifaceName, name)
		inst.expires = now.Add(rr.RemainingTTL(now))
		b.scheduleExpiry(st, ifaceName, name, rr.RemainingTTL(now))

	case wire.SRVData:
		name := b.instanceNameFromOwner(rr.Name)
		if name == "" {
			return
		}
		inst := b.getOrCreate(st, ifaceName, name)
		inst.Host = data.Target
		inst.Port = data.Port
		inst.Addresses = st.hosts[normalizeName(data.Target)]
		b.refresh(st, ifaceName, inst, rr, now)

	case wire.TXTData:
		name := b.instanceNameFromOwner(rr.Name)
		if name == "" {
			return
		}
		inst := b.getOrCreate(st, ifaceName, name)
		inst.TXT = decodeTXT(data.Strings)
		b.refresh(st, ifaceName, inst, rr, now)

	case wire.AData:
		ip := net.IP(data.Addr[:])
		b.addHostAddress(st, ifaceName, rr.Name, ip, rr, now)

	case wire.AAAAData:
		ip := net.IP(data.Addr[:])
		b.addHostAddress(st, ifaceName, rr.Name, ip, rr, now)
	}
}

func (b *Browser) addHostAddress(st *ifaceState, ifaceName, host string, ip net.IP, rr wire.ResourceRecord, now time.Time) {
	key := normalizeName(host)

	b.mu.Lock()
	if rr.TTL == 0 {
		delete(st.hosts, key)
	} else {
		st.hosts[key] = appendUniqueIP(st.hosts[key], ip)
	}
	addrs := append([]net.IP(nil), st.hosts[key]...)
	b.mu.Unlock()

	for _, inst := range b.instancesWithHost(st, host) {
		inst.Addresses = addrs
		b.refresh(st, ifaceName, inst, rr, now)
	}
}

func appendUniqueIP(addrs []net.IP, ip net.IP) []net.IP {
	for _, a := range addrs {
		if a.Equal(ip) {
			return addrs
		}
	}
	return append(addrs, ip)
}

func (b *Browser) instancesWithHost(st *ifaceState, host string) []*ServiceInstance {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*ServiceInstance
	for _, inst := range st.instances {
		if strings.EqualFold(inst.Host, host) {
			out = append(out, inst)
		}
	}
	return out
}

func (b *Browser) instanceName(ptrTarget string) string {
	suffix := "." + b.serviceType + ".local"
	if !strings.HasSuffix(strings.ToLower(ptrTarget), strings.ToLower(suffix)) {
		return ""
	}
	return ptrTarget[:len(ptrTarget)-len(suffix)]
}

func (b *Browser) instanceNameFromOwner(owner string) string {
	return b.instanceName(owner)
}

func (b *Browser) getOrCreate(st *ifaceState, ifaceName, name string) *ServiceInstance {
	key := instanceKey(name, b.serviceType)

	b.mu.Lock()
	inst, ok := st.instances[key]
	if !ok {
		inst = &ServiceInstance{Name: name, ServiceType: b.serviceType, Interface: ifaceName, TXT: map[string]string{}}
		st.instances[key] = inst
	}
	b.mu.Unlock()
	return inst
}

func (b *Browser) refresh(st *ifaceState, ifaceName string, inst *ServiceInstance, rr wire.ResourceRecord, now time.Time) {
	if remaining := rr.RemainingTTL(now); now.Add(remaining).After(inst.expires) {
		inst.expires = now.Add(remaining)
	}

	if inst.Host == "" {
		return // not enough to report yet (no SRV target resolved)
	}

	kind := Updated
	if !inst.reported {
		kind = Added
		inst.reported = true
	}
	b.emit(kind, *inst)
}

func (b *Browser) remove(st *ifaceState, ifaceName, name string) {
	key := instanceKey(name, b.serviceType)

	b.mu.Lock()
	inst, ok := st.instances[key]
	if ok {
		delete(st.instances, key)
	}
	if timer, ok := st.timers[key]; ok {
		timer.Stop()
		delete(st.timers, key)
	}
	b.mu.Unlock()

	if ok && inst.reported {
		b.emit(Removed, *inst)
	}
}

// scheduleExpiry (re)arms the removal timer for name on interface
// ifaceName: if no PTR record refreshes it before remaining elapses, the
// instance is dropped and a Removed event fires.
func (b *Browser) scheduleExpiry(st *ifaceState, ifaceName, name string, remaining time.Duration) {
	key := instanceKey(name, b.serviceType)

	b.mu.Lock()
	if timer, ok := st.timers[key]; ok {
		timer.Stop()
	}
	st.timers[key] = b.clk.AfterFunc(remaining, func() {
		b.remove(st, ifaceName, name)
	})
	b.mu.Unlock()
}

func (b *Browser) emit(kind EventKind, inst ServiceInstance) {
	if b.onEvent != nil {
		b.onEvent(Event{Kind: kind, Instance: inst.clone()})
	}
}

// startRateLimiterCleanup arms a self-rescheduling timer that sweeps
// stale per-source entries from b.limiter every rateLimiterCleanupInterval,
// so a long-running browser's rate-limiter map doesn't grow unbounded
// between LRU evictions.
func (b *Browser) startRateLimiterCleanup() {
	var tick func()
	tick = func() {
		b.limiter.Cleanup()
		b.mu.Lock()
		if !b.closed {
			b.cleanupTimer = b.clk.AfterFunc(rateLimiterCleanupInterval, tick)
		}
		b.mu.Unlock()
	}
	b.cleanupTimer = b.clk.AfterFunc(rateLimiterCleanupInterval, tick)
}

// Close releases every bound interface socket. Close is idempotent.
func (b *Browser) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	ifaces := b.ifaces
	b.ifaces = nil
	if b.cleanupTimer != nil {
		b.cleanupTimer.Stop()
	}
	b.mu.Unlock()

	var firstErr error
	for _, st := range ifaces {
		for _, timer := range st.timers {
			timer.Stop()
		}
		if err := st.sock.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func decodeTXT(strs []string) map[string]string {
	out := make(map[string]string, len(strs))
	for _, s := range strs {
		if s == "" {
			continue
		}
		if i := strings.IndexByte(s, '='); i >= 0 {
			out[s[:i]] = s[i+1:]
		} else {
			out[s] = ""
		}
	}
	return out
}
