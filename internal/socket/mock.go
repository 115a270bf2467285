package socket

import (
	"context"
	"net"
	"sync"

	"github.com/beaconmdns/beacon/internal/wire"
)

// SentPacket records one Mock.Send call for test assertions.
type SentPacket struct {
	Packet []byte
	Dest   *net.UDPAddr
}

// Mock is a test double for Socket: it records every sent packet and
// lets tests inject inbound packets through the same Handler a real
// MulticastSocket would drive, without touching the network.
type Mock struct {
	mu      sync.Mutex
	sent    []SentPacket
	closed  bool
	handler Handler
	iface   string
}

// NewMock returns a Mock that dispatches injected inbound traffic to
// handler as if it arrived on ifaceName.
func NewMock(ifaceName string, handler Handler) *Mock {
	return &Mock{handler: handler, iface: ifaceName}
}

// Send records packet/dest for later inspection via Sent.
func (m *Mock) Send(_ context.Context, packet []byte, dest *net.UDPAddr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]byte(nil), packet...)
	m.sent = append(m.sent, SentPacket{Packet: cp, Dest: dest})
	return nil
}

// Close marks the mock closed; further Send calls still succeed since
// nothing in this codebase sends after calling Close.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Sent returns every packet recorded by Send so far.
func (m *Mock) Sent() []SentPacket {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentPacket, len(m.sent))
	copy(out, m.sent)
	return out
}

// Closed reports whether Close has been called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Deliver feeds msg to the configured Handler as if it had arrived from
// src on this mock's interface, exercising the same dispatch path a real
// socket's read loop would.
func (m *Mock) Deliver(msg *wire.Message, src *net.UDPAddr) {
	if m.handler != nil {
		m.handler(msg, src, m.iface)
	}
}

var _ Socket = (*Mock)(nil)
