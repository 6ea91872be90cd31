package probe

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	psnet "github.com/shirou/gopsutil/v3/net"

	"lanscope/core-go/internal/device"
)

func gopsutilLocalHost(ctx context.Context) (LocalHost, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return LocalHost{}, fmt.Errorf("list interfaces: %w", err)
	}
	ip, mac, ok := pickLocalInterface(ifaces)
	if !ok {
		return LocalHost{}, ErrUnsupported
	}
	out := LocalHost{IP: ip, MAC: mac}
	if info, err := host.InfoWithContext(ctx); err == nil && info != nil {
		out.Hostname = info.Hostname
		out.OS = platformName(info)
	}
	return out, nil
}

// pickLocalInterface returns the first interface that is up, is not loopback,
// has a valid hardware address and carries a routable IPv4 address.
func pickLocalInterface(ifaces []psnet.InterfaceStat) (string, string, bool) {
	for _, ifc := range ifaces {
		if !hasFlag(ifc.Flags, "up") || hasFlag(ifc.Flags, "loopback") {
			continue
		}
		mac := device.NormalizeMAC(ifc.HardwareAddr)
		if mac == "" || device.IsZeroMAC(mac) {
			continue
		}
		for _, a := range ifc.Addrs {
			ip := a.Addr
			if i := strings.IndexByte(ip, '/'); i >= 0 {
				ip = ip[:i]
			}
			if !device.IsValidIPv4(ip) || strings.HasPrefix(ip, "169.254.") || strings.HasPrefix(ip, "127.") {
				continue
			}
			return ip, mac, true
		}
	}
	return "", "", false
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}

func platformName(info *host.InfoStat) string {
	name := info.Platform
	if name == "" {
		name = info.OS
	}
	if info.PlatformVersion != "" {
		name = strings.TrimSpace(name + " " + info.PlatformVersion)
	}
	return name
}
