package socket

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/beaconmdns/beacon/internal/protocol"
	"github.com/beaconmdns/beacon/internal/wire"
)

func TestDefaultInterfaceFilter_ExcludesVirtualInterfaces(t *testing.T) {
	up := net.FlagUp | net.FlagMulticast

	tests := []struct {
		name string
		flag net.Flags
		want bool
	}{
		{"eth0", up, true},
		{"en0", up, true},
		{"lo0", up | net.FlagLoopback, false},
		{"utun3", up, false},
		{"tun0", up, false},
		{"wg0", up, false},
		{"tailscale0", up, false},
		{"docker0", up, false},
		{"veth1234", up, false},
		{"br-abcdef", up, false},
		{"down0", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iface := net.Interface{Name: tt.name, Flags: tt.flag}
			if got := DefaultInterfaceFilter(iface); got != tt.want {
				t.Errorf("DefaultInterfaceFilter(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestMock_RecordsSentPackets(t *testing.T) {
	m := NewMock("eth0", nil)
	dest := &net.UDPAddr{IP: net.IPv4(224, 0, 0, 251), Port: protocol.Port}

	if err := m.Send(context.Background(), []byte{1, 2, 3}, dest); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	sent := m.Sent()
	if len(sent) != 1 {
		t.Fatalf("Sent() returned %d packets, want 1", len(sent))
	}
	if sent[0].Dest.String() != dest.String() {
		t.Errorf("Sent()[0].Dest = %v, want %v", sent[0].Dest, dest)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !m.Closed() {
		t.Error("Closed() = false after Close()")
	}
}

func TestMock_DeliverDrivesHandler(t *testing.T) {
	var gotName string
	var gotIface string

	handler := func(msg *wire.Message, src *net.UDPAddr, ifaceName string) {
		if len(msg.Questions) > 0 {
			gotName = msg.Questions[0].Name
		}
		gotIface = ifaceName
	}

	m := NewMock("wlan0", handler)
	msg := &wire.Message{Questions: []wire.Question{{Name: "printer._http._tcp.local", Type: protocol.RecordTypePTR, Class: protocol.ClassIN}}}
	m.Deliver(msg, &net.UDPAddr{IP: net.ParseIP("192.0.2.5"), Port: protocol.Port})

	if gotName != "printer._http._tcp.local" {
		t.Errorf("handler saw question name %q, want %q", gotName, "printer._http._tcp.local")
	}
	if gotIface != "wlan0" {
		t.Errorf("handler saw interface %q, want %q", gotIface, "wlan0")
	}
}

// TestNew_LoopbackRoundTrip exercises a real MulticastSocket against the
// loopback interface: binds, joins, sends a packet to itself, and
// asserts the decoded message reaches the handler. Skipped when no
// loopback interface with multicast support is present (e.g. some
// sandboxes expose a loopback interface that is not flagged multicast).
func TestNew_LoopbackRoundTrip(t *testing.T) {
	iface := findLoopback(t)

	received := make(chan *wire.Message, 1)
	sock, err := New(iface, func(msg *wire.Message, _ *net.UDPAddr, _ string) {
		select {
		case received <- msg:
		default:
		}
	}, Options{})
	if err != nil {
		t.Skipf("could not bind multicast socket on %s: %v", iface.Name, err)
	}
	defer sock.Close()

	packet, err := wire.Encode(&wire.Message{
		Header:    wire.Header{Flags: protocol.FlagQR},
		Questions: []wire.Question{{Name: "probe.local", Type: protocol.RecordTypePTR, Class: protocol.ClassIN}},
	}, 0)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	dest := protocol.MulticastGroupIPv4()
	if err := sock.Send(context.Background(), packet, dest); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked with the looped-back packet")
	}
}

func findLoopback(t *testing.T) net.Interface {
	t.Helper()
	ifaces, err := net.Interfaces()
	if err != nil {
		t.Skipf("net.Interfaces() error: %v", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 && iface.Flags&net.FlagMulticast != 0 {
			return iface
		}
	}
	t.Skip("no multicast-capable loopback interface available")
	return net.Interface{}
}
