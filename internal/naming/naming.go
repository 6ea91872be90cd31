// Package naming normalizes and scores hostname candidates from the different
// name sources so that every source is held to the same quality bar.
package naming

import (
	"sort"
	"strings"
)

const (
	SourceDHCP       = "dhcp"
	SourceReverseDNS = "reverse_dns"
	SourceSNMP       = "snmp"
	SourceMDNS       = "mdns"
	SourceSSDP       = "ssdp"
	SourceNetBIOS    = "netbios"
	SourceNmap       = "nmap"
	SourceManual     = "manual"
)

// MinScore is the bar a candidate must clear to become a device hostname.
const MinScore = 70

type Candidate struct {
	Name   string
	Source string
}

type scoredCandidate struct {
	Source   string
	Hostname string
	Short    string
	Score    int
}

// Normalize cleans a raw name from source. hostname is the value stored on a
// device record; short is its first label.
func Normalize(source, rawName string) (hostname string, short string, score int, ok bool) {
	source = strings.ToLower(strings.TrimSpace(source))
	name := strings.TrimSpace(rawName)
	name = strings.Trim(name, "\x00")
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return "", "", 0, false
	}

	hostname = name
	switch source {
	case SourceReverseDNS, SourceMDNS, SourceNmap:
		hostname = strings.ToLower(hostname)
	}

	short = ShortName(hostname)
	s := scoreCandidate(source, hostname, short)
	if s < 0 {
		return hostname, short, s, false
	}
	return hostname, short, s, true
}

// Clean returns the stored hostname for a single candidate when it clears
// MinScore.
func Clean(source, rawName string) (string, bool) {
	hostname, _, score, ok := Normalize(source, rawName)
	if !ok || score < MinScore {
		return "", false
	}
	return hostname, true
}

// ShortName returns the first label of a dotted host name. Names with
// whitespace are returned unchanged.
func ShortName(name string) string {
	if strings.Contains(name, ".") && !strings.ContainsAny(name, " \t") {
		if first, _, _ := strings.Cut(name, "."); first != "" {
			return first
		}
	}
	return name
}

// Choose picks the best hostname among candidates from several sources.
func Choose(candidates []Candidate) (string, bool) {
	best := scoredCandidate{Score: -1_000_000}

	for _, c := range candidates {
		hostname, short, score, ok := Normalize(c.Source, c.Name)
		if !ok || score < MinScore {
			continue
		}
		next := scoredCandidate{Source: c.Source, Hostname: hostname, Short: short, Score: score}
		if betterCandidate(next, best) {
			best = next
		}
	}

	if best.Score < MinScore || strings.TrimSpace(best.Hostname) == "" {
		return "", false
	}
	return best.Hostname, true
}

// SortCandidates orders candidates best-first; rejected names sort last.
func SortCandidates(candidates []Candidate) []Candidate {
	type scored struct {
		orig Candidate
		sc   scoredCandidate
		ok   bool
	}

	list := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		hostname, short, score, ok := Normalize(c.Source, c.Name)
		list = append(list, scored{
			orig: c,
			sc:   scoredCandidate{Source: c.Source, Hostname: hostname, Short: short, Score: score},
			ok:   ok,
		})
	}

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.ok != b.ok {
			return a.ok
		}
		return betterCandidate(a.sc, b.sc)
	})

	out := make([]Candidate, 0, len(list))
	for _, item := range list {
		out = append(out, item.orig)
	}
	return out
}

func betterCandidate(a, b scoredCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	// Shorter names first when equal; FQDNs are noisier.
	if len(a.Short) != len(b.Short) {
		return len(a.Short) < len(b.Short)
	}
	if a.Short != b.Short {
		return a.Short < b.Short
	}
	return a.Hostname < b.Hostname
}

func scoreCandidate(source, hostname, short string) int {
	normalized := strings.ToLower(hostname)
	if looksGarbage(normalized) {
		return -1
	}

	base := 50
	switch source {
	case SourceDHCP:
		base = 95
	case SourceReverseDNS:
		base = 90
	case SourceSNMP:
		base = 88
	case SourceNmap:
		base = 85
	case SourceMDNS:
		base = 80
	case SourceSSDP:
		base = 80
	case SourceNetBIOS:
		base = 78
	case SourceManual:
		base = 70
	}

	if len(short) < 2 {
		base -= 50
	}
	// SSDP friendly names ("Living Room TV") legitimately contain spaces.
	if strings.ContainsAny(short, " \t") && source != SourceSSDP && source != SourceManual {
		base -= 25
	}
	if !looksHostnameLabel(short) && source != SourceSSDP && source != SourceManual {
		base -= 20
	}
	if strings.HasSuffix(normalized, ".local") || strings.HasSuffix(normalized, ".localdomain") {
		base -= 5
	}
	return base
}

func looksHostnameLabel(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

func looksGarbage(normalized string) bool {
	if normalized == "" {
		return true
	}
	if strings.Contains(normalized, "in-addr.arpa") || strings.Contains(normalized, "ip6.arpa") {
		return true
	}
	switch normalized {
	case "workgroup", "mshome", "__msbrowse__", "localdomain", "localhost", "unknown":
		return true
	}
	return false
}
