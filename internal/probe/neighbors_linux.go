//go:build linux

package probe

import (
	"strings"

	"github.com/vishvananda/netlink"
)

// kernelNeighbors renders the IPv4 neighbor table as "ip mac" lines, skipping
// entries that never resolved.
func kernelNeighbors() (string, error) {
	neighs, err := netlink.NeighList(0, netlink.FAMILY_V4)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, n := range neighs {
		if n.IP == nil || len(n.HardwareAddr) != 6 {
			continue
		}
		if n.State&(netlink.NUD_INCOMPLETE|netlink.NUD_FAILED|netlink.NUD_NOARP) != 0 {
			continue
		}
		b.WriteString(n.IP.String())
		b.WriteByte(' ')
		b.WriteString(n.HardwareAddr.String())
		b.WriteByte('\n')
	}
	return b.String(), nil
}
