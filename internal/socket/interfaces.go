package socket

import (
	"net"
	"strings"
)

// InterfaceFilter decides whether iface is a candidate for binding a
// MulticastSocket. DefaultInterfaceFilter is used when the advertiser or
// discovery facade is not given an explicit override.
type InterfaceFilter func(iface net.Interface) bool

// DefaultInterfaces returns every system interface DefaultInterfaceFilter
// accepts: up, multicast-capable, non-loopback, and not a VPN or
// container-networking interface.
func DefaultInterfaces() ([]net.Interface, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []net.Interface
	for _, iface := range all {
		if DefaultInterfaceFilter(iface) {
			out = append(out, iface)
		}
	}
	return out, nil
}

// DefaultInterfaceFilter excludes down interfaces, non-multicast
// interfaces, loopback, and the common VPN/tunnel and container-network
// interface name families, so a bare advertiser doesn't probe and
// announce over a tunnel or a docker bridge by default.
func DefaultInterfaceFilter(iface net.Interface) bool {
	if iface.Flags&net.FlagUp == 0 {
		return false
	}
	if iface.Flags&net.FlagMulticast == 0 {
		return false
	}
	if iface.Flags&net.FlagLoopback != 0 {
		return false
	}
	if isVirtualInterface(iface.Name) {
		return false
	}
	return true
}

// vpnPrefixes and containerPrefixes cover the interface-naming
// conventions of the common VPN clients and container network stacks;
// see DESIGN.md for the pack repo these patterns are grounded on.
var (
	vpnPrefixes       = []string{"utun", "tun", "ppp", "wg", "tailscale", "wireguard"}
	containerPrefixes = []string{"docker0", "veth", "br-"}
)

func isVirtualInterface(name string) bool {
	for _, p := range vpnPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	for _, p := range containerPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
