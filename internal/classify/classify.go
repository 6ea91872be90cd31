// Package classify infers device types and operating systems from the loose
// text that discovery sources report: vendor names, SSDP headers, SNMP
// sysDescr strings and server banners.
package classify

import (
	"sort"
	"strings"

	"lanscope/core-go/internal/device"
)

type Suggestion struct {
	Type       string
	Confidence int
	Evidence   map[string]any
}

// Best returns the highest-confidence type across all groups, or "Unknown".
// Ties are broken by type name so the result does not depend on group order.
func Best(groups ...[]Suggestion) string {
	merged := MergeSuggestions(groups...)
	if len(merged) == 0 {
		return device.TypeUnknown
	}
	return merged[0].Type
}

func MergeSuggestions(groups ...[]Suggestion) []Suggestion {
	byType := make(map[string]Suggestion)

	for _, group := range groups {
		for _, s := range group {
			t := NormalizeType(s.Type)
			if device.IsUnknown(t) || s.Confidence <= 0 {
				continue
			}
			existing, ok := byType[t]
			if !ok || s.Confidence > existing.Confidence {
				s.Type = t
				byType[t] = s
			}
		}
	}

	out := make([]Suggestion, 0, len(byType))
	for _, v := range byType {
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// FromVendor classifies by vendor-name substrings: hypervisor vendors are
// computers, handset makers are phones, and router/AP makers are routers.
func FromVendor(vendor string) []Suggestion {
	v := strings.ToLower(strings.TrimSpace(vendor))
	if v == "" || v == "unknown" {
		return nil
	}

	add := func(kind, match string, confidence int) []Suggestion {
		return []Suggestion{{
			Type:       kind,
			Confidence: confidence,
			Evidence:   map[string]any{"signal": "vendor", "vendor": vendor, "match": match},
		}}
	}

	switch {
	case containsAny(v, "vmware", "virtualbox", "parallels", "microsoft"):
		return add(device.TypeComputer, "hypervisor", 80)
	case containsAny(v, "apple", "samsung", "xiaomi"):
		return add(device.TypePhone, "handset", 70)
	case containsAny(v, "tp-link", "ubiquiti", "asus"):
		return add(device.TypeRouter, "network", 75)
	}
	return nil
}

// VendorType is FromVendor reduced to a single type.
func VendorType(vendor string) string {
	return Best(FromVendor(vendor))
}

// FromSSDP applies the keyword table to the concatenated search-target, USN
// and server header values of an SSDP reply.
func FromSSDP(st, usn, server string) []Suggestion {
	combined := strings.ToLower(st + " " + usn + " " + server)
	return fromServiceText(combined, "ssdp")
}

// FromServices classifies from advertised DNS-SD service types such as
// "_ipp._tcp" or "_googlecast._tcp".
func FromServices(services []string) []Suggestion {
	combined := strings.ToLower(strings.Join(services, " "))
	var out []Suggestion
	switch {
	case containsAny(combined, "_airplay", "_googlecast", "_raop", "_spotify-connect"):
		out = append(out, Suggestion{Type: device.TypeTV, Confidence: 70, Evidence: map[string]any{"signal": "mdns"}})
	case containsAny(combined, "_companion-link", "_apple-mobdev"):
		out = append(out, Suggestion{Type: device.TypePhone, Confidence: 65, Evidence: map[string]any{"signal": "mdns"}})
	case containsAny(combined, "_workstation", "_smb", "_ssh", "_rfb"):
		out = append(out, Suggestion{Type: device.TypeComputer, Confidence: 60, Evidence: map[string]any{"signal": "mdns"}})
	}
	return append(out, fromServiceText(combined, "mdns")...)
}

func fromServiceText(combined, signal string) []Suggestion {
	add := func(kind, match string) []Suggestion {
		return []Suggestion{{
			Type:       kind,
			Confidence: 75,
			Evidence:   map[string]any{"signal": signal, "match": match},
		}}
	}

	switch {
	case containsAny(combined, "printer", "ipp"):
		return add(device.TypePrinter, "printer")
	case strings.Contains(combined, "camera"):
		return add(device.TypeCamera, "camera")
	case containsAny(combined, "tv", "dlna", "media"):
		return add(device.TypeTV, "media")
	case containsAny(combined, "igd", "gateway", "router"):
		return add(device.TypeRouter, "gateway")
	}
	return nil
}

// FromSNMP classifies from an SNMP sysDescr value.
func FromSNMP(sysDescr string) []Suggestion {
	descr := strings.ToLower(strings.TrimSpace(sysDescr))
	if descr == "" {
		return nil
	}

	add := func(kind, match string, confidence int) Suggestion {
		return Suggestion{
			Type:       kind,
			Confidence: confidence,
			Evidence: map[string]any{
				"signal":    "snmp",
				"match":     match,
				"sys_descr": truncate(sysDescr, 240),
			},
		}
	}

	var out []Suggestion
	switch {
	case containsAny(descr, "router", "routing", "gateway", "access point", "wireless"):
		out = append(out, add(device.TypeRouter, "router", 88))
	case strings.Contains(descr, "printer"), strings.Contains(descr, "jetdirect"):
		out = append(out, add(device.TypePrinter, "printer", 86))
	case strings.Contains(descr, "camera"):
		out = append(out, add(device.TypeCamera, "camera", 84))
	case containsAny(descr, "windows", "darwin", "linux"):
		out = append(out, add(device.TypeComputer, "os", 60))
	}
	return out
}

// ExtractOS reduces a server banner to a platform name. Unrecognized
// non-empty banners are returned as-is.
func ExtractOS(server string) string {
	s := strings.TrimSpace(server)
	if s == "" {
		return ""
	}
	low := strings.ToLower(s)
	switch {
	case strings.Contains(low, "android"):
		return "Android"
	case containsAny(low, "darwin", "mac os", "macos"):
		return "macOS"
	case strings.Contains(low, "ios"):
		return "iOS"
	case strings.Contains(low, "windows"):
		return "Windows"
	case strings.Contains(low, "linux"):
		return "Linux"
	}
	return s
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 1 {
		return value[:1]
	}
	return value[:limit-1] + "…"
}
