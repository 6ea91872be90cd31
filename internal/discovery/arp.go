package discovery

import (
	"bufio"
	"context"
	"strings"
	"time"

	"lanscope/core-go/internal/device"
	"lanscope/core-go/internal/probe"
)

// ARP reads the platform neighbor table.
type ARP struct {
	sys probe.System
	now func() time.Time
}

func NewARP(sys probe.System, now func() time.Time) *ARP {
	return &ARP{sys: sys, now: nowOrDefault(now)}
}

func (d *ARP) Name() string { return DriverARP }

func (d *ARP) Discover(ctx context.Context) ([]device.Record, error) {
	text, err := d.sys.NeighborTable(ctx)
	if err != nil {
		return nil, err
	}
	return ParseNeighborTable(text, d.now()), nil
}

// ParseNeighborTable turns any of the supported neighbor-table dumps (`arp -a`
// on Windows, `arp -an` on BSD, `ip neigh`, /proc/net/arp) into records.
// Headers, localized labels and incomplete entries are dropped by structure
// alone; no keywords are matched.
func ParseNeighborTable(text string, now time.Time) []device.Record {
	var out []device.Record
	seen := make(map[string]struct{})

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		ip, mac, ok := ParseNeighborLine(sc.Text())
		if !ok {
			continue
		}
		key := ip + "|" + mac
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		r := device.NewRecord(ip, mac, now)
		r.Source = DriverARP
		out = append(out, r)
	}
	return out
}

// ParseNeighborLine extracts the first valid IPv4 address on line and the
// first valid hardware address after it. Lines without both are rejected, as
// are multicast addresses and the broadcast and all-zero hardware addresses.
func ParseNeighborLine(line string) (ip string, mac string, ok bool) {
	fields := strings.Fields(line)
	i := 0
	for ; i < len(fields); i++ {
		if cand := strings.Trim(fields[i], "()[]"); device.IsValidIPv4(cand) {
			ip = cand
			break
		}
	}
	if ip == "" {
		return "", "", false
	}
	for _, f := range fields[i+1:] {
		if m := device.NormalizeMAC(f); m != "" {
			mac = m
			break
		}
	}
	if mac == "" {
		return "", "", false
	}
	if device.IsMulticastIPv4(ip) || device.IsBroadcastMAC(mac) || device.IsZeroMAC(mac) {
		return "", "", false
	}
	return ip, mac, true
}
