package records

import (
	"strings"
	"testing"

	"github.com/beaconmdns/beacon/internal/protocol"
	"github.com/beaconmdns/beacon/internal/wire"
)

func TestCompareRData_LexicographicTieBreak(t *testing.T) {
	// RFC 6762 §8.2 example: 169.254.99.200 vs 169.254.200.50 - the
	// second address wins since 200 > 99 at the differing octet.
	ours := []byte{169, 254, 99, 200}
	theirs := []byte{169, 254, 200, 50}

	if CompareRData(ours, theirs) {
		t.Error("CompareRData(99.200, 200.50) = true, want false (theirs should win)")
	}
	if !CompareRData(theirs, ours) {
		t.Error("CompareRData(200.50, 99.200) = false, want true (this side should win)")
	}
}

func TestCompareRecordSets_FirstDifferenceDecides(t *testing.T) {
	ours := [][]byte{{1}, {5}}
	theirs := [][]byte{{1}, {3}}
	if !CompareRecordSets(ours, theirs) {
		t.Error("CompareRecordSets: expected our side to win on the second record")
	}
}

func TestCompareRecordSets_LongerListWinsOnFullTie(t *testing.T) {
	ours := [][]byte{{1}, {2}, {3}}
	theirs := [][]byte{{1}, {2}}
	if !CompareRecordSets(ours, theirs) {
		t.Error("CompareRecordSets: expected longer list to win when shared records tie")
	}
}

func TestIsConflict_IdenticalRDataIsNotConflict(t *testing.T) {
	a := wire.ResourceRecord{Name: "host.local", Class: protocol.ClassIN, Data: wire.AData{Addr: [4]byte{1, 2, 3, 4}}}
	b := wire.ResourceRecord{Name: "host.local", Class: protocol.ClassIN, Data: wire.AData{Addr: [4]byte{1, 2, 3, 4}}}
	if IsConflict(a, b) {
		t.Error("IsConflict() = true for byte-identical rdata, want false (duplicate answer)")
	}
}

func TestIsConflict_DifferentRDataConflicts(t *testing.T) {
	a := wire.ResourceRecord{Name: "host.local", Class: protocol.ClassIN, Data: wire.AData{Addr: [4]byte{1, 2, 3, 4}}}
	b := wire.ResourceRecord{Name: "host.local", Class: protocol.ClassIN, Data: wire.AData{Addr: [4]byte{5, 6, 7, 8}}}
	if !IsConflict(a, b) {
		t.Error("IsConflict() = false for differing rdata, want true")
	}
}

func TestIsConflict_DifferentNameIsNotConflict(t *testing.T) {
	a := wire.ResourceRecord{Name: "host1.local", Class: protocol.ClassIN, Data: wire.AData{Addr: [4]byte{1, 2, 3, 4}}}
	b := wire.ResourceRecord{Name: "host2.local", Class: protocol.ClassIN, Data: wire.AData{Addr: [4]byte{1, 2, 3, 4}}}
	if IsConflict(a, b) {
		t.Error("IsConflict() = true for records with different names, want false")
	}
}

func TestRename_AppendsStartingAtTwo(t *testing.T) {
	if got := Rename("My Printer"); got != "My Printer (2)" {
		t.Errorf("Rename(%q) = %q, want %q", "My Printer", got, "My Printer (2)")
	}
}

func TestRename_IncrementsExistingSuffix(t *testing.T) {
	if got := Rename("My Printer (2)"); got != "My Printer (3)" {
		t.Errorf("Rename(%q) = %q, want %q", "My Printer (2)", got, "My Printer (3)")
	}
	if got := Rename("My Printer (9)"); got != "My Printer (10)" {
		t.Errorf("Rename(%q) = %q, want %q", "My Printer (9)", got, "My Printer (10)")
	}
}

func TestRename_TruncatesBaseNameToFit63Bytes(t *testing.T) {
	long := strings.Repeat("a", 70)
	got := Rename(long)

	if len(got) > maxInstanceNameBytes {
		t.Fatalf("Rename() result is %d bytes, want <= %d", len(got), maxInstanceNameBytes)
	}
	if !strings.HasSuffix(got, " (2)") {
		t.Errorf("Rename(%q) = %q, want suffix \" (2)\"", long, got)
	}
}

func TestRename_TruncationPreservesUTF8Boundary(t *testing.T) {
	// 70 two-byte runes; truncation must not split the last rune in half.
	long := strings.Repeat("é", 70)
	got := Rename(long)

	if len(got) > maxInstanceNameBytes {
		t.Fatalf("Rename() result is %d bytes, want <= %d", len(got), maxInstanceNameBytes)
	}
	base := strings.TrimSuffix(got, " (2)")
	for _, r := range base {
		if r == '�' {
			t.Fatalf("Rename() produced an invalid UTF-8 replacement rune in %q", got)
		}
	}
}
