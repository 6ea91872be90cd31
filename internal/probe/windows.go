package probe

import (
	"bufio"
	"context"
	"strconv"
	"strings"
	"time"

	"lanscope/core-go/internal/device"
)

type windowsSystem struct {
	run Runner
}

func (s *windowsSystem) Name() string { return "windows" }

func (s *windowsSystem) NeighborTable(ctx context.Context) (string, error) {
	out, err := s.run.Run(ctx, "arp", "-a")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (s *windowsSystem) LocalHost(ctx context.Context) (LocalHost, error) {
	out, err := s.run.Run(ctx, "ipconfig", "/all")
	if err != nil {
		return LocalHost{}, err
	}
	h := parseIPConfig(string(out))
	if h.IP == "" {
		return LocalHost{}, ErrUnsupported
	}
	h.OS = "Windows"
	return h, nil
}

func (s *windowsSystem) Ping(ctx context.Context, ip string, timeout time.Duration) error {
	ms := int(timeout / time.Millisecond)
	if ms <= 0 {
		ms = 1000
	}
	_, err := s.run.Run(ctx, "ping", "-n", "1", "-w", strconv.Itoa(ms), ip)
	return err
}

func (s *windowsSystem) NetBIOSStatus(ctx context.Context, ip string) (string, error) {
	out, err := s.run.Run(ctx, "nbtstat", "-A", ip)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (s *windowsSystem) WiFiScan(context.Context) (WiFiListing, error) {
	return WiFiListing{}, ErrUnsupported
}

// parseIPConfig reads `ipconfig /all` output and returns the first adapter that
// has both an IPv4 address and a physical address. Labels are localized, so
// fields are recognized by their values: the host name is the first entry of
// the global section, the physical address is the value that parses as a MAC,
// and the address is the first IPv4 value of the block, preferring one that
// carries a "(Preferred)"-style suffix over masks and gateways.
func parseIPConfig(text string) LocalHost {
	var (
		host    LocalHost
		entries int
		curIP   string
		curMAC  string
		tagged  bool
		decided bool
	)
	block := -1
	flush := func() {
		if !decided && curIP != "" && curMAC != "" {
			host.IP, host.MAC = curIP, curMAC
			decided = true
		}
		curIP, curMAC, tagged = "", "", false
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		// Section headers start in column 0.
		if line[0] != ' ' && line[0] != '\t' {
			flush()
			block++
			entries = 0
			continue
		}
		_, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		entries++

		if block <= 0 {
			if entries == 1 && value != "" {
				host.Hostname = value
			}
			continue
		}
		if mac := device.NormalizeMAC(value); mac != "" {
			if curMAC == "" {
				curMAC = mac
			}
			continue
		}
		addr, suffixed := value, false
		if i := strings.IndexByte(addr, '('); i >= 0 {
			addr, suffixed = strings.TrimSpace(addr[:i]), true
		}
		if !device.IsValidIPv4(addr) {
			continue
		}
		if curIP == "" || (suffixed && !tagged) {
			curIP, tagged = addr, suffixed
		}
	}
	flush()
	return host
}
