package records

import (
	"crypto/rand"
	"encoding/hex"
)

// hostnameRandomBytes yields a 32-hex-character label once encoded.
const hostnameRandomBytes = 16

// GenerateHostname returns a freshly randomized advertiser hostname of
// the form "Android_<32 hex chars>.local". The coordinator calls this
// once at startup and again whenever the active-service count
// transitions through zero.
func GenerateHostname() string {
	buf := make([]byte, hostnameRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		// A broken platform RNG shouldn't take down the advertiser; fall
		// back to an all-zero suffix rather than panicking.
		buf = make([]byte, hostnameRandomBytes)
	}
	return "Android_" + hex.EncodeToString(buf) + ".local"
}
