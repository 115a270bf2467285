package advertiser

import (
	"net"
)

// defaultAddressProvider picks the first IPv4 and IPv6 address found on
// the host that is neither loopback nor link-local.
func defaultAddressProvider() (ipv4, ipv6 net.IP) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, nil
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() || ipnet.IP.IsLinkLocalUnicast() {
			continue
		}
		if v4 := ipnet.IP.To4(); v4 != nil {
			if ipv4 == nil {
				ipv4 = v4
			}
			continue
		}
		if ipv6 == nil {
			ipv6 = ipnet.IP
		}
	}
	return ipv4, ipv6
}
