package protocol

import (
	"testing"
)

// TestPort validates that the mDNS port constant is 5353 per RFC 6762 §5.
func TestPort(t *testing.T) {
	want := 5353
	if Port != want {
		t.Errorf("Port = %d, want %d per RFC 6762 §5", Port, want)
	}
}

// TestMulticastAddrIPv4 validates that the mDNS IPv4 multicast address is
// 224.0.0.251 per RFC 6762 §5.
func TestMulticastAddrIPv4(t *testing.T) {
	want := "224.0.0.251" // nosemgrep: beacon-hardcoded-multicast-address
	if MulticastAddrIPv4 != want {
		t.Errorf("MulticastAddrIPv4 = %s, want %s per RFC 6762 §5", MulticastAddrIPv4, want)
	}
}

// TestMulticastAddrIPv6 validates that the mDNS IPv6 multicast address is
// ff02::fb per RFC 6762 §5.
func TestMulticastAddrIPv6(t *testing.T) {
	want := "ff02::fb" // nosemgrep: beacon-hardcoded-multicast-address
	if MulticastAddrIPv6 != want {
		t.Errorf("MulticastAddrIPv6 = %s, want %s per RFC 6762 §5", MulticastAddrIPv6, want)
	}
}

func TestMulticastGroupIPv4(t *testing.T) {
	addr := MulticastGroupIPv4()

	wantIP := "224.0.0.251" // nosemgrep: beacon-hardcoded-multicast-address
	wantPort := 5353

	if addr.IP.String() != wantIP {
		t.Errorf("MulticastGroupIPv4().IP = %s, want %s per RFC 6762 §5", addr.IP, wantIP)
	}
	if addr.Port != wantPort {
		t.Errorf("MulticastGroupIPv4().Port = %d, want %d per RFC 6762 §5", addr.Port, wantPort)
	}
	if !addr.IP.IsMulticast() {
		t.Errorf("MulticastGroupIPv4().IP is not a multicast address")
	}
}

func TestMulticastGroupIPv6(t *testing.T) {
	addr := MulticastGroupIPv6()

	if addr.Port != Port {
		t.Errorf("MulticastGroupIPv6().Port = %d, want %d", addr.Port, Port)
	}
	if !addr.IP.IsMulticast() {
		t.Errorf("MulticastGroupIPv6().IP is not a multicast address")
	}
}

// TestRecordType_String validates that RecordType.String() returns correct
// human-readable names per RFC 1035, RFC 2782, RFC 3596, and RFC 4034.
func TestRecordType_String(t *testing.T) {
	tests := []struct {
		name       string
		recordType RecordType
		want       string
	}{
		{"A record", RecordTypeA, "A"},
		{"PTR record", RecordTypePTR, "PTR"},
		{"TXT record", RecordTypeTXT, "TXT"},
		{"AAAA record", RecordTypeAAAA, "AAAA"},
		{"SRV record", RecordTypeSRV, "SRV"},
		{"NSEC record", RecordTypeNSEC, "NSEC"},
		{"ANY record", RecordTypeANY, "ANY"},
		{"Unknown record type", RecordType(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.recordType.String()
			if got != tt.want {
				t.Errorf("RecordType(%d).String() = %s, want %s", tt.recordType, got, tt.want)
			}
		})
	}
}

// TestRecordType_IsSupported validates that RecordType.IsSupported() returns
// true for the record types the repository serves (PTR, SRV, TXT, A, AAAA,
// NSEC) plus the ANY probe/query type.
func TestRecordType_IsSupported(t *testing.T) {
	tests := []struct {
		name       string
		recordType RecordType
		want       bool
	}{
		{"A record supported", RecordTypeA, true},
		{"PTR record supported", RecordTypePTR, true},
		{"TXT record supported", RecordTypeTXT, true},
		{"AAAA record supported", RecordTypeAAAA, true},
		{"SRV record supported", RecordTypeSRV, true},
		{"NSEC record supported", RecordTypeNSEC, true},
		{"ANY supported for probing", RecordTypeANY, true},
		{"MX record not supported", RecordType(15), false},
		{"Unknown record type not supported", RecordType(999), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.recordType.IsSupported()
			if got != tt.want {
				t.Errorf("RecordType(%d).IsSupported() = %v, want %v", tt.recordType, got, tt.want)
			}
		})
	}
}

// TestRecordType_Values validates that record type constants have the
// correct numeric values per RFC 1035 §3.2.2, RFC 2782, RFC 3596, and RFC 4034.
func TestRecordType_Values(t *testing.T) {
	tests := []struct {
		name       string
		recordType RecordType
		wantValue  uint16
	}{
		{"A record value per RFC 1035 §3.2.2", RecordTypeA, 1},
		{"PTR record value per RFC 1035 §3.2.2", RecordTypePTR, 12},
		{"TXT record value per RFC 1035 §3.2.2", RecordTypeTXT, 16},
		{"AAAA record value per RFC 3596", RecordTypeAAAA, 28},
		{"SRV record value per RFC 2782", RecordTypeSRV, 33},
		{"NSEC record value per RFC 4034", RecordTypeNSEC, 47},
		{"ANY record value per RFC 1035 §3.2.3", RecordTypeANY, 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := uint16(tt.recordType)
			if got != tt.wantValue {
				t.Errorf("RecordType constant = %d, want %d", got, tt.wantValue)
			}
		})
	}
}

func TestClassIN(t *testing.T) {
	want := uint16(1)
	got := uint16(ClassIN)
	if got != want {
		t.Errorf("ClassIN = %d, want %d per RFC 1035 §3.2.4", got, want)
	}
}

func TestClassFlushIN(t *testing.T) {
	want := uint16(0x8001)
	got := uint16(ClassFlushIN)
	if got != want {
		t.Errorf("ClassFlushIN = 0x%04X, want 0x%04X per RFC 6762 §10.2", got, want)
	}
}

// TestDNSHeaderFlags validates DNS header flag bit positions per RFC 1035
// §4.1.1 and RFC 6762 §18.
func TestDNSHeaderFlags(t *testing.T) {
	tests := []struct {
		name      string
		flag      uint16
		wantValue uint16
	}{
		{"QR bit (bit 15)", FlagQR, 0x8000},
		{"AA bit (bit 10)", FlagAA, 0x0400},
		{"TC bit (bit 9)", FlagTC, 0x0200},
		{"RD bit (bit 8)", FlagRD, 0x0100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.flag != tt.wantValue {
				t.Errorf("Flag = 0x%04X, want 0x%04X", tt.flag, tt.wantValue)
			}
		})
	}
}

func TestOpcodeQuery(t *testing.T) {
	want := uint16(0)
	if OpcodeQuery != want {
		t.Errorf("OpcodeQuery = %d, want %d per RFC 6762 §18.3", OpcodeQuery, want)
	}
}

func TestRCodeNoError(t *testing.T) {
	want := uint16(0)
	if RCodeNoError != want {
		t.Errorf("RCodeNoError = %d, want %d per RFC 6762 §18.11", RCodeNoError, want)
	}
}

// TestDNSNameConstraints validates DNS name constraint constants per RFC
// 1035 §3.1 and the label-count/jump-count decode guards.
func TestDNSNameConstraints(t *testing.T) {
	tests := []struct {
		name      string
		constant  int
		wantValue int
	}{
		{"MaxLabelLength", MaxLabelLength, 63},
		{"MaxNameLength", MaxNameLength, 255},
		{"MaxLabelsPerName", MaxLabelsPerName, 128},
		{"MaxCompressionJumps", MaxCompressionJumps, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.constant != tt.wantValue {
				t.Errorf("%s = %d, want %d", tt.name, tt.constant, tt.wantValue)
			}
		})
	}
}

func TestCompressionMask(t *testing.T) {
	want := byte(0xC0)
	if CompressionMask != want {
		t.Errorf("CompressionMask = 0x%02X, want 0x%02X per RFC 1035 §4.1.4", CompressionMask, want)
	}
}

// TestTTLValues validates the RFC 6762 §10 recommended TTLs.
func TestTTLValues(t *testing.T) {
	if TTLHostnameSeconds != 120 {
		t.Errorf("TTLHostnameSeconds = %d, want 120", TTLHostnameSeconds)
	}
	if TTLSharedSeconds != 4500 {
		t.Errorf("TTLSharedSeconds = %d, want 4500", TTLSharedSeconds)
	}
}

// TestTimingConstants spot-checks the probing/announcing/reply timing
// constants against RFC 6762 §8 and §6.
func TestTimingConstants(t *testing.T) {
	if ProbeCount != 3 {
		t.Errorf("ProbeCount = %d, want 3", ProbeCount)
	}
	if AnnounceCount != 3 {
		t.Errorf("AnnounceCount = %d, want 3", AnnounceCount)
	}
	if MaxRenameAttempts != 15 {
		t.Errorf("MaxRenameAttempts = %d, want 15", MaxRenameAttempts)
	}
	if KnownAnswerAccumulationWindow.Milliseconds() != 400 {
		t.Errorf("KnownAnswerAccumulationWindow = %v, want 400ms", KnownAnswerAccumulationWindow)
	}
}

func TestMulticastGroupIPv4_IsLinkLocal(t *testing.T) {
	addr := MulticastGroupIPv4()

	ip := addr.IP.To4()
	if ip == nil {
		t.Fatal("MulticastGroupIPv4() returned non-IPv4 address")
	}
	if ip[0] != 224 || ip[1] != 0 || ip[2] != 0 {
		t.Errorf("MulticastGroupIPv4() IP %s is not in link-local range 224.0.0.0/24 per RFC 6762 §5", ip)
	}
}

func TestMulticastGroupIPv4_NotNil(t *testing.T) {
	addr := MulticastGroupIPv4()
	if addr == nil {
		t.Fatal("MulticastGroupIPv4() returned nil")
	}
	if addr.IP == nil {
		t.Fatal("MulticastGroupIPv4().IP is nil")
	}
}
