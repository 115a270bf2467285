package repeater

import (
	"crypto/rand"
	"math/big"
	"time"
)

// RandomDelay returns a uniformly distributed duration in [0, max). It
// uses crypto/rand, the same source the records package uses for
// hostname generation, so the module carries a single RNG source.
func RandomDelay(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}
