// Package socket implements the concrete multicast Socket facade (C9):
// one MulticastSocket per network interface, bound to both mDNS groups
// (224.0.0.251:5353 and [ff02::fb]:5353), decoding inbound packets with
// the wire codec (C1) and dispatching them to a Handler, and serving as
// the Transport the reply sender (C6) and repeater family (C3-C5) send
// through. Everything above this package (C2-C8) talks to Socket, never
// to net.PacketConn or golang.org/x/net/ipv4/ipv6 directly.
package socket

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/beaconmdns/beacon/internal/errors"
	"github.com/beaconmdns/beacon/internal/protocol"
	"github.com/beaconmdns/beacon/internal/security"
	"github.com/beaconmdns/beacon/internal/wire"
)

// Handler processes one successfully decoded inbound message, naming the
// interface it arrived on and the endpoint it came from.
type Handler func(msg *wire.Message, src *net.UDPAddr, ifaceName string)

// Socket is the subset of a concrete multicast socket the rest of the
// engine depends on. The reply sender (C6) and repeater transports
// (C4/C5) hold one as their Transport; Mock satisfies it for tests.
type Socket interface {
	Send(ctx context.Context, packet []byte, dest *net.UDPAddr) error
	Close() error
}

// Options configures a MulticastSocket beyond the interface it binds.
type Options struct {
	// Logger receives Debug-level malformed-packet and source-filter
	// drops and Warn-level rate-limit rejections. Defaults to
	// slog.Default() when nil.
	Logger *slog.Logger

	// RateLimiter, when set, drops inbound packets from sources
	// exceeding the configured query rate (RFC 6762 §6 storm
	// protection). Nil disables rate limiting.
	RateLimiter *security.RateLimiter

	// FilterSources, when true, rejects inbound packets whose source
	// address is neither link-local nor on the bound interface's own
	// subnet, per RFC 6762 §2's link-local scope.
	FilterSources bool
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// MulticastSocket binds one network interface to the mDNS IPv4 and (when
// the interface carries a link-local IPv6 address) IPv6 multicast
// groups, joins both, and runs a read loop per address family that
// decodes inbound packets and dispatches them to handler.
type MulticastSocket struct {
	iface   net.Interface
	handler Handler
	log     *slog.Logger
	limiter *security.RateLimiter
	filter  *security.SourceFilter

	pc4 *ipv4.PacketConn
	pc6 *ipv6.PacketConn

	wg        sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
}

// New binds iface to both mDNS multicast groups and starts its read
// loops. handler is invoked from a read-loop goroutine for every
// successfully decoded inbound packet; it must not block.
func New(iface net.Interface, handler Handler, opts Options) (*MulticastSocket, error) {
	s := &MulticastSocket{
		iface:   iface,
		handler: handler,
		log:     opts.logger(),
		limiter: opts.RateLimiter,
		done:    make(chan struct{}),
	}

	if opts.FilterSources {
		filter, err := security.NewSourceFilter(iface)
		if err != nil {
			return nil, &errors.NetworkError{Operation: "create source filter", Err: err}
		}
		s.filter = filter
	}

	pc4, err := joinIPv4(iface)
	if err != nil {
		return nil, err
	}
	s.pc4 = pc4

	pc6, err := joinIPv6(iface)
	if err != nil {
		// IPv6 is best-effort: an interface with no link-local IPv6
		// address still advertises fine over IPv4 alone.
		s.log.Debug("ipv6 multicast join skipped", "interface", iface.Name, "error", err)
	} else {
		s.pc6 = pc6
	}

	s.wg.Add(1)
	go s.readLoop4()
	if s.pc6 != nil {
		s.wg.Add(1)
		go s.readLoop6()
	}

	return s, nil
}

func joinIPv4(iface net.Interface) (*ipv4.PacketConn, error) {
	lc := net.ListenConfig{Control: PlatformControl}
	conn, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", protocol.Port))
	if err != nil {
		return nil, &errors.NetworkError{Operation: "bind ipv4 socket", Err: err, Details: iface.Name}
	}

	pc := ipv4.NewPacketConn(conn)
	group := protocol.MulticastGroupIPv4()
	if err := pc.JoinGroup(&iface, &net.UDPAddr{IP: group.IP}); err != nil {
		_ = conn.Close()
		return nil, &errors.NetworkError{Operation: "join ipv4 multicast group", Err: err, Details: iface.Name}
	}
	if err := pc.SetControlMessage(ipv4.FlagDst|ipv4.FlagInterface, true); err != nil {
		_ = conn.Close()
		return nil, &errors.NetworkError{Operation: "set ipv4 control messages", Err: err, Details: iface.Name}
	}
	if err := pc.SetMulticastTTL(protocol.MulticastTTL); err != nil {
		_ = conn.Close()
		return nil, &errors.NetworkError{Operation: "set ipv4 multicast ttl", Err: err, Details: iface.Name}
	}
	if err := pc.SetMulticastInterface(&iface); err != nil {
		_ = conn.Close()
		return nil, &errors.NetworkError{Operation: "set ipv4 multicast interface", Err: err, Details: iface.Name}
	}
	_ = pc.SetMulticastLoopback(true)

	return pc, nil
}

func joinIPv6(iface net.Interface) (*ipv6.PacketConn, error) {
	lc := net.ListenConfig{Control: PlatformControl}
	conn, err := lc.ListenPacket(context.Background(), "udp6", fmt.Sprintf(":%d", protocol.Port))
	if err != nil {
		return nil, fmt.Errorf("bind ipv6 socket on %s: %w", iface.Name, err)
	}

	pc := ipv6.NewPacketConn(conn)
	group := protocol.MulticastGroupIPv6()
	if err := pc.JoinGroup(&iface, &net.UDPAddr{IP: group.IP}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("join ipv6 multicast group on %s: %w", iface.Name, err)
	}
	if err := pc.SetControlMessage(ipv6.FlagDst|ipv6.FlagInterface, true); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set ipv6 control messages on %s: %w", iface.Name, err)
	}
	if err := pc.SetHopLimit(protocol.MulticastTTL); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set ipv6 hop limit on %s: %w", iface.Name, err)
	}
	if err := pc.SetMulticastInterface(&iface); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set ipv6 multicast interface on %s: %w", iface.Name, err)
	}
	_ = pc.SetMulticastLoopback(true)

	return pc, nil
}

func (s *MulticastSocket) readLoop4() {
	defer s.wg.Done()
	buf := make([]byte, protocol.JumboFrameSize)
	for {
		n, _, src, err := s.pc4.ReadFrom(buf)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.log.Debug("ipv4 read error", "interface", s.iface.Name, "error", err)
				return
			}
		}
		s.dispatch(buf[:n], src)
	}
}

func (s *MulticastSocket) readLoop6() {
	defer s.wg.Done()
	buf := make([]byte, protocol.JumboFrameSize)
	for {
		n, _, src, err := s.pc6.ReadFrom(buf)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.log.Debug("ipv6 read error", "interface", s.iface.Name, "error", err)
				return
			}
		}
		s.dispatch(buf[:n], src)
	}
}

func (s *MulticastSocket) dispatch(packet []byte, src net.Addr) {
	udpSrc, ok := src.(*net.UDPAddr)
	if !ok {
		return
	}

	if s.filter != nil && !s.filter.IsValid(udpSrc.IP) {
		s.log.Debug("dropped packet from out-of-scope source", "interface", s.iface.Name, "source", udpSrc.IP)
		return
	}
	if s.limiter != nil && !s.limiter.Allow(udpSrc.IP.String()) {
		s.log.Warn("dropped packet from rate-limited source", "interface", s.iface.Name, "source", udpSrc.IP)
		return
	}

	msg, err := wire.Decode(packet)
	if err != nil {
		s.log.Debug("dropped malformed packet", "interface", s.iface.Name, "source", udpSrc.IP, "error", err)
		return
	}

	if s.handler != nil {
		s.handler(msg, udpSrc, s.iface.Name)
	}
}

// Send transmits a pre-encoded packet to dest over whichever bound
// connection matches its address family.
func (s *MulticastSocket) Send(_ context.Context, packet []byte, dest *net.UDPAddr) error {
	if dest.IP.To4() != nil {
		if s.pc4 == nil {
			return &errors.NetworkError{Operation: "send", Err: fmt.Errorf("no ipv4 socket bound on %s", s.iface.Name)}
		}
		_, err := s.pc4.WriteTo(packet, nil, dest)
		if err != nil {
			return &errors.NetworkError{Operation: "send ipv4 packet", Err: err, Details: s.iface.Name}
		}
		return nil
	}

	if s.pc6 == nil {
		return &errors.NetworkError{Operation: "send", Err: fmt.Errorf("no ipv6 socket bound on %s", s.iface.Name)}
	}
	_, err := s.pc6.WriteTo(packet, nil, dest)
	if err != nil {
		return &errors.NetworkError{Operation: "send ipv6 packet", Err: err, Details: s.iface.Name}
	}
	return nil
}

// Close stops both read loops and releases the underlying connections.
func (s *MulticastSocket) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.pc4 != nil {
			_ = s.pc4.Close()
		}
		if s.pc6 != nil {
			_ = s.pc6.Close()
		}
	})
	s.wg.Wait()
	return nil
}

var _ Socket = (*MulticastSocket)(nil)
