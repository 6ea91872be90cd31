package device

import (
	"strconv"
	"strings"
)

const broadcastMAC = "ff:ff:ff:ff:ff:ff"

// IsValidIPv4 reports whether s is exactly four dot-separated decimal octets
// in the range 0-255.
func IsValidIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || len(p) > 3 {
			return false
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
		n, err := strconv.Atoi(p)
		if err != nil || n > 255 {
			return false
		}
	}
	return true
}

// IsValidMAC reports whether s is exactly six colon- or hyphen-separated
// groups of two hex digits.
func IsValidMAC(s string) bool {
	m := strings.ReplaceAll(s, "-", ":")
	parts := strings.Split(m, ":")
	if len(parts) != 6 {
		return false
	}
	for _, p := range parts {
		if len(p) != 2 || !isHex(p[0]) || !isHex(p[1]) {
			return false
		}
	}
	return true
}

func isHex(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
	case c >= 'a' && c <= 'f':
	case c >= 'A' && c <= 'F':
	default:
		return false
	}
	return true
}

// NormalizeMAC returns the canonical lower-case colon-separated form of mac, or
// "" when mac is not a valid hardware address.
func NormalizeMAC(mac string) string {
	mac = strings.TrimSpace(mac)
	if !IsValidMAC(mac) {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(mac, "-", ":"))
}

// IsMulticastIPv4 reports whether ip lies in 224.0.0.0/4.
func IsMulticastIPv4(ip string) bool {
	if !IsValidIPv4(ip) {
		return false
	}
	first, _ := strconv.Atoi(ip[:strings.IndexByte(ip, '.')])
	return first >= 224 && first <= 239
}

// IsBroadcastMAC reports whether mac is the all-ones hardware address.
func IsBroadcastMAC(mac string) bool {
	return NormalizeMAC(mac) == broadcastMAC
}

// IsZeroMAC reports whether mac is the all-zero address that incomplete
// neighbor entries carry.
func IsZeroMAC(mac string) bool {
	return NormalizeMAC(mac) == "00:00:00:00:00:00"
}

// OUI returns the first three octets of a normalized hardware address.
func OUI(mac string) (string, bool) {
	m := NormalizeMAC(mac)
	if m == "" {
		return "", false
	}
	return m[:8], true
}

// Subnet24 returns the first three dot-separated components of an IPv4
// address.
func Subnet24(ip string) (string, bool) {
	if !IsValidIPv4(ip) {
		return "", false
	}
	return ip[:strings.LastIndexByte(ip, '.')], true
}

// CompareIPs orders dotted-quad addresses numerically and anything else after
// them lexically.
func CompareIPs(a, b string) int {
	av, aok := ipv4Value(a)
	bv, bok := ipv4Value(b)
	switch {
	case aok && bok:
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case aok:
		return -1
	case bok:
		return 1
	}
	return strings.Compare(a, b)
}

func ipv4Value(ip string) (uint32, bool) {
	if !IsValidIPv4(ip) {
		return 0, false
	}
	var v uint32
	for _, p := range strings.Split(ip, ".") {
		n, _ := strconv.Atoi(p)
		v = v<<8 | uint32(n)
	}
	return v, true
}
