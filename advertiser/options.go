package advertiser

import (
	"log/slog"
	"net"
	"time"

	"github.com/beaconmdns/beacon/internal/clock"
	"github.com/beaconmdns/beacon/internal/coordinator"
	"github.com/beaconmdns/beacon/internal/socket"
)

// Option is a functional option for configuring an Advertiser.
type Option func(*Advertiser) error

// WithLogger sets the *slog.Logger the Advertiser and its bound sockets
// log through. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Advertiser) error {
		a.log = logger
		return nil
	}
}

// WithClock overrides the Advertiser's time source. Tests use a
// clock.Fake to make probing and announcing deterministic.
func WithClock(clk clock.Clock) Option {
	return func(a *Advertiser) error {
		a.clk = clk
		return nil
	}
}

// WithInterfaces restricts the Advertiser to exactly the given
// interfaces, bypassing WithInterfaceFilter / socket.DefaultInterfaceFilter
// entirely.
func WithInterfaces(ifaces []net.Interface) Option {
	return func(a *Advertiser) error {
		a.explicitIfaces = ifaces
		return nil
	}
}

// WithInterfaceFilter overrides socket.DefaultInterfaceFilter for
// selecting which system interfaces to bind, when WithInterfaces was not
// also given.
func WithInterfaceFilter(filter socket.InterfaceFilter) Option {
	return func(a *Advertiser) error {
		a.filter = filter
		return nil
	}
}

// WithAddressProvider overrides how the shared hostname's A/AAAA
// addresses are chosen. Defaults to the first address of each family
// found via net.InterfaceAddrs that is neither loopback nor link-local.
func WithAddressProvider(addrs coordinator.AddressProvider) Option {
	return func(a *Advertiser) error {
		a.addrs = addrs
		return nil
	}
}

// WithMaxPacketLength overrides the reply sender's (C6) MTU used to
// decide when a reply must be split across multiple truncated packets.
// Zero uses protocol.DefaultMTU.
func WithMaxPacketLength(maxLen int) Option {
	return func(a *Advertiser) error {
		a.maxLen = maxLen
		return nil
	}
}

// WithSourceFiltering controls whether inbound packets are checked
// against RFC 6762 §2's link-local scope (source must be link-local or
// on the bound interface's own subnet). Enabled by default.
func WithSourceFiltering(enabled bool) Option {
	return func(a *Advertiser) error {
		a.filterSources = enabled
		return nil
	}
}

// WithRateLimit configures per-source-IP query rate limiting (RFC 6762
// §6 storm protection): threshold queries/second before a source enters
// cooldown, cooldown duration, and the maximum number of tracked source
// IPs. Enabled by default at 100 qps / 60s cooldown / 10,000 entries;
// call WithoutRateLimiting to disable it entirely.
func WithRateLimit(threshold int, cooldown time.Duration, maxEntries int) Option {
	return func(a *Advertiser) error {
		a.rlEnabled = true
		a.rlThreshold = threshold
		a.rlCooldown = cooldown
		a.rlMaxEntries = maxEntries
		return nil
	}
}

// WithoutRateLimiting disables per-source-IP rate limiting entirely.
func WithoutRateLimiting() Option {
	return func(a *Advertiser) error {
		a.rlEnabled = false
		return nil
	}
}
