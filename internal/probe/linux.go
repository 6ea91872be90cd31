package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type linuxSystem struct {
	run     Runner
	arpPath string
}

func (s *linuxSystem) Name() string { return "linux" }

// NeighborTable reads the neighbor table over netlink, then falls back to
// `ip neigh` and finally /proc/net/arp.
func (s *linuxSystem) NeighborTable(ctx context.Context) (string, error) {
	if text, err := kernelNeighbors(); err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	if out, err := s.run.Run(ctx, "ip", "-4", "neigh", "show"); err == nil && len(out) > 0 {
		return string(out), nil
	}
	b, err := os.ReadFile(s.arpPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrUnsupported
		}
		return "", fmt.Errorf("read %s: %w", s.arpPath, err)
	}
	return string(b), nil
}

func (s *linuxSystem) LocalHost(ctx context.Context) (LocalHost, error) {
	return gopsutilLocalHost(ctx)
}

func (s *linuxSystem) Ping(ctx context.Context, ip string, timeout time.Duration) error {
	_, err := s.run.Run(ctx, "ping", "-c", "1", "-W", strconv.Itoa(pingWaitSeconds(timeout)), ip)
	return err
}

func (s *linuxSystem) NetBIOSStatus(ctx context.Context, ip string) (string, error) {
	out, err := s.run.Run(ctx, "nmblookup", "-A", ip)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (s *linuxSystem) WiFiScan(ctx context.Context) (WiFiListing, error) {
	out, err := s.run.Run(ctx, "nmcli", "-t", "-f", "SSID,BSSID,SIGNAL,CHAN,SECURITY,FREQ", "dev", "wifi", "list")
	if err == nil && len(out) > 0 {
		return WiFiListing{Format: WiFiFormatNmcli, Text: string(out)}, nil
	}
	out, err = s.run.Run(ctx, "iwlist", "scan")
	if err != nil {
		return WiFiListing{}, err
	}
	return WiFiListing{Format: WiFiFormatIwlist, Text: string(out)}, nil
}
