//go:build linux

package socket

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// setSocketOptions sets SO_REUSEADDR and, on kernels new enough to
// support it, SO_REUSEPORT, so beacon's sockets can coexist with Avahi
// and other mDNS responders bound to the same port.
func setSocketOptions(fd uintptr) error {
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("set SO_REUSEADDR: %w", err)
	}

	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		if err == unix.ENOPROTOOPT || !kernelSupportsReusePort() {
			return nil
		}
		return fmt.Errorf("set SO_REUSEPORT: %w", err)
	}
	return nil
}

// kernelSupportsReusePort reports whether the running kernel is new
// enough (>= 3.9) to honor SO_REUSEPORT; older kernels silently ignore
// the option's UDP-fanout semantics even when the setsockopt call
// succeeds.
func kernelSupportsReusePort() bool {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return false
	}
	release := string(uts.Release[:])
	if i := strings.IndexByte(release, 0); i >= 0 {
		release = release[:i]
	}
	parts := strings.SplitN(release, ".", 3)
	if len(parts) < 2 {
		return false
	}
	major, err1 := strconv.Atoi(parts[0])
	minor, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return false
	}
	return major > 3 || (major == 3 && minor >= 9)
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
