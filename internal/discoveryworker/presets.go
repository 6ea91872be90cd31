package discoveryworker

import (
	"strings"
	"time"

	"lanscope/core-go/internal/discovery"
	"lanscope/core-go/internal/inventory"
)

const (
	ScanPresetFast   = "fast"
	ScanPresetNormal = "normal"
	ScanPresetDeep   = "deep"
)

func canonicalizeScanPreset(value any) string {
	switch v := value.(type) {
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		if s == "" {
			return ScanPresetNormal
		}
		switch s {
		case ScanPresetFast, ScanPresetNormal, ScanPresetDeep:
			return s
		default:
			return ScanPresetNormal
		}
	default:
		return ScanPresetNormal
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a <= 0 {
		return b
	}
	if b <= 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

func maxDuration(a, b time.Duration) time.Duration {
	if a <= 0 {
		return b
	}
	if b <= 0 {
		return a
	}
	if a > b {
		return a
	}
	return b
}

// applyScanPreset narrows or widens a pass. Fast reads only the local
// neighbor table and interface; deep runs every available driver.
func applyScanPreset(opts *inventory.PassOptions, preset string, available []string) {
	switch preset {
	case ScanPresetFast:
		opts.MaxRuntime = minDuration(opts.MaxRuntime, 15*time.Second)
		opts.Drivers = intersect([]string{discovery.DriverARP, discovery.DriverDHCP}, available)
		opts.SkipPrime = true
		opts.SkipEnrich = true
	case ScanPresetDeep:
		opts.MaxRuntime = maxDuration(opts.MaxRuntime, 2*time.Minute)
		opts.Drivers = append([]string(nil), available...)
	default:
		// normal: the service's default drivers
	}
}

func intersect(want, available []string) []string {
	out := make([]string, 0, len(want))
	for _, w := range want {
		for _, a := range available {
			if w == a {
				out = append(out, w)
				break
			}
		}
	}
	return out
}
