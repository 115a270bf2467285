package discovery

import (
	"log/slog"
	"net"
	"time"

	"github.com/beaconmdns/beacon/internal/clock"
	"github.com/beaconmdns/beacon/internal/socket"
)

// Option configures a Browser at construction.
type Option func(*Browser)

// WithLogger sets the *slog.Logger the Browser and its bound sockets log
// through. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Browser) { b.log = logger }
}

// WithInterfaces restricts the Browser to exactly the given interfaces,
// bypassing WithInterfaceFilter / socket.DefaultInterfaceFilter entirely.
func WithInterfaces(ifaces []net.Interface) Option {
	return func(b *Browser) { b.explicit = ifaces }
}

// WithInterfaceFilter overrides socket.DefaultInterfaceFilter for
// selecting which system interfaces to bind, when WithInterfaces was not
// also given.
func WithInterfaceFilter(filter socket.InterfaceFilter) Option {
	return func(b *Browser) { b.filter = filter }
}

// WithClock overrides the Browser's time source; tests use a clock.Fake
// to make TTL expiry deterministic instead of sleeping on the wall
// clock.
func WithClock(clk clock.Clock) Option {
	return func(b *Browser) { b.clk = clk }
}

// WithSourceFiltering controls whether inbound packets are checked
// against RFC 6762 §2's link-local scope (source must be link-local or
// on the bound interface's own subnet). Enabled by default.
func WithSourceFiltering(enabled bool) Option {
	return func(b *Browser) { b.filterSources = enabled }
}

// WithRateLimit configures per-source-IP query rate limiting (RFC 6762
// §6 storm protection): threshold queries/second before a source enters
// cooldown, cooldown duration, and the maximum number of tracked source
// IPs. Enabled by default at 100 qps / 60s cooldown / 10,000 entries;
// call WithoutRateLimiting to disable it entirely.
func WithRateLimit(threshold int, cooldown time.Duration, maxEntries int) Option {
	return func(b *Browser) {
		b.rlEnabled = true
		b.rlThreshold = threshold
		b.rlCooldown = cooldown
		b.rlMaxEntries = maxEntries
	}
}

// WithoutRateLimiting disables per-source-IP rate limiting entirely.
func WithoutRateLimiting() Option {
	return func(b *Browser) { b.rlEnabled = false }
}
