package discoveryworker

import (
	"sort"
	"strings"

	"lanscope/core-go/internal/discovery"
	"lanscope/core-go/internal/inventory"
)

const (
	ScanTagNames = "names"
	ScanTagPrime = "prime"
	ScanTagSSDP  = discovery.DriverSSDP
	ScanTagMDNS  = discovery.DriverMDNS
	ScanTagNmap  = discovery.DriverNmap
)

func canonicalizeScanTags(value any) []string {
	var raw []string

	switch v := value.(type) {
	case []string:
		raw = v
	case []any:
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = []string{v}
	default:
		return nil
	}

	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, entry := range raw {
		s := strings.ToLower(strings.TrimSpace(entry))
		if s == "" {
			continue
		}
		switch s {
		case ScanTagNames, ScanTagPrime, ScanTagSSDP, ScanTagMDNS, ScanTagNmap:
		default:
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// applyScanTags re-enables steps a preset turned off and adds driver tags to
// the pass. A pass with no explicit driver list starts from defaults.
func applyScanTags(opts *inventory.PassOptions, tags []string, available, defaults []string) {
	for _, tag := range tags {
		switch tag {
		case ScanTagNames:
			opts.SkipEnrich = false
		case ScanTagPrime:
			opts.SkipPrime = false
		case ScanTagSSDP, ScanTagMDNS, ScanTagNmap:
			if len(intersect([]string{tag}, available)) == 0 {
				continue
			}
			if opts.Drivers == nil {
				opts.Drivers = append([]string(nil), defaults...)
			}
			if len(intersect([]string{tag}, opts.Drivers)) == 0 {
				opts.Drivers = append(opts.Drivers, tag)
			}
		}
	}
}
