package records

import (
	"bytes"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/beaconmdns/beacon/internal/wire"
)

// maxInstanceNameBytes is the RFC 1035 §2.3.4 label length limit that
// also bounds a DNS-SD instance name, since the instance name occupies
// a single label (RFC 6763 §4.3).
const maxInstanceNameBytes = 63

var renameSuffixPattern = regexp.MustCompile(`^(.*) \((\d+)\)$`)

// CompareRData reports whether our rdata wins the RFC 6762 §8.2
// lexicographic tie-break against theirs: the record with the
// lexicographically later rdata, comparing corresponding bytes and
// treating a shorter rdata as ordering before a longer one, wins.
func CompareRData(ours, theirs []byte) bool {
	return bytes.Compare(ours, theirs) > 0
}

// CompareRecordSets implements RFC 6762 §8.2.1's tie-break across a
// full authority section: records are compared pairwise in order, and
// the first differing pair decides the winner; if every pair matches
// but one list has extra records, the longer list wins.
func CompareRecordSets(ours, theirs [][]byte) bool {
	n := len(ours)
	if len(theirs) < n {
		n = len(theirs)
	}
	for i := 0; i < n; i++ {
		if cmp := bytes.Compare(ours[i], theirs[i]); cmp != 0 {
			return cmp > 0
		}
	}
	return len(ours) > len(theirs)
}

// IsConflict reports whether an incoming record conflicts with an
// owned unique record of the same name, type and class: a
// byte-identical rdata is a duplicate answer, not a conflict.
func IsConflict(owned, incoming wire.ResourceRecord) bool {
	if owned.Name != incoming.Name || owned.Type() != incoming.Type() || owned.Class != incoming.Class {
		return false
	}
	ownedBytes, err1 := wire.EncodeRData(owned.Data)
	incomingBytes, err2 := wire.EncodeRData(incoming.Data)
	if err1 != nil || err2 != nil {
		return true // can't compare: treat as a conflict rather than silently ignore it
	}
	return !bytes.Equal(ownedBytes, incomingBytes)
}

// Rename produces the next candidate instance name after a conflict,
// per RFC 6762 §9: append " (n)" where n starts at 2 and increments on
// repeated conflicts, truncating the base name from the right so the
// full result never exceeds maxInstanceNameBytes.
func Rename(instanceName string) string {
	base := instanceName
	next := 2

	if m := renameSuffixPattern.FindStringSubmatch(instanceName); m != nil {
		base = m[1]
		if n, err := strconv.Atoi(m[2]); err == nil {
			next = n + 1
		}
	}

	suffix := " (" + strconv.Itoa(next) + ")"
	base = truncateBytes(base, maxInstanceNameBytes-len(suffix))
	return base + suffix
}

// truncateBytes truncates s to at most n bytes from the right, without
// splitting a UTF-8 rune in two.
func truncateBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	b := []byte(s)[:n]
	for len(b) > 0 && !utf8.Valid(b) {
		b = b[:len(b)-1]
	}
	return string(b)
}
