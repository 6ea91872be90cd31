package probe

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// bsdSystem covers macOS and the BSDs, which share the `arp -an` format.
type bsdSystem struct {
	name string
	run  Runner
}

func (s *bsdSystem) Name() string { return s.name }

func (s *bsdSystem) NeighborTable(ctx context.Context) (string, error) {
	out, err := s.run.Run(ctx, "arp", "-an")
	if err != nil {
		return "", err
	}
	return padShortMACGroups(string(out)), nil
}

func (s *bsdSystem) LocalHost(ctx context.Context) (LocalHost, error) {
	return gopsutilLocalHost(ctx)
}

func (s *bsdSystem) Ping(ctx context.Context, ip string, timeout time.Duration) error {
	// -t is the overall timeout in seconds on BSD ping.
	_, err := s.run.Run(ctx, "ping", "-c", "1", "-t", strconv.Itoa(pingWaitSeconds(timeout)), ip)
	return err
}

func (s *bsdSystem) NetBIOSStatus(ctx context.Context, ip string) (string, error) {
	out, err := s.run.Run(ctx, "nmblookup", "-A", ip)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (s *bsdSystem) WiFiScan(context.Context) (WiFiListing, error) {
	return WiFiListing{}, ErrUnsupported
}

// padShortMACGroups rewrites BSD-style hardware addresses such as
// "0:1b:2c:d:e:f" to two digits per group. Tokens that are not six groups of
// one or two hex digits are left alone; the line's other tokens are kept.
func padShortMACGroups(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		fields := strings.Fields(line)
		changed := false
		for j, f := range fields {
			if padded, ok := padMAC(f); ok && padded != f {
				fields[j] = padded
				changed = true
			}
		}
		if changed {
			lines[i] = strings.Join(fields, " ")
		}
	}
	return strings.Join(lines, "\n")
}

func padMAC(token string) (string, bool) {
	groups := strings.Split(token, ":")
	if len(groups) != 6 {
		return "", false
	}
	for i, g := range groups {
		if len(g) == 0 || len(g) > 2 {
			return "", false
		}
		if _, err := strconv.ParseUint(g, 16, 8); err != nil {
			return "", false
		}
		if len(g) == 1 {
			groups[i] = "0" + g
		}
	}
	return strings.Join(groups, ":"), true
}
