//go:build darwin

package socket

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// setSocketOptions sets SO_REUSEADDR and SO_REUSEPORT so beacon's
// sockets can coexist with mDNSResponder (Bonjour) on the same port.
// Unlike Linux, macOS has supported SO_REUSEPORT across every shipping
// version, so there is no kernel-version gate here.
func setSocketOptions(fd uintptr) error {
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("set SO_REUSEADDR: %w", err)
	}
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		return fmt.Errorf("set SO_REUSEPORT: %w", err)
	}
	return nil
}

// PlatformControl is the net.ListenConfig.Control hook that applies
// setSocketOptions before the socket facade (C9) binds.
func PlatformControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	if err := c.Control(func(fd uintptr) { sockErr = setSocketOptions(fd) }); err != nil {
		return fmt.Errorf("control socket: %w", err)
	}
	return sockErr
}
