//go:build windows

package socket

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/windows"
)

// setSocketOptions sets SO_REUSEADDR, which on Windows grants the
// multiple-bind semantics POSIX gets from SO_REUSEPORT (a constant
// golang.org/x/sys/windows does not even define, since the platform has
// no equivalent option).
func setSocketOptions(fd uintptr) error {
	if err := windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("set SO_REUSEADDR: %w", err)
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
