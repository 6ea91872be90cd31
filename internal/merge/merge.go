// Package merge folds partial device observations into one record per device.
//
// Records match when their hardware addresses are equal or, failing that, when
// their IP addresses are equal. An IP match between two records that carry
// different non-empty hardware addresses is a conflict (an address reused by a
// different host), not a match: the incoming record is kept as its own entry.
package merge

import "lanscope/core-go/internal/device"

// Merge folds incoming into existing and returns the combined set. Fields that
// already hold a value are never overwritten; only empty or "Unknown" fields
// are filled. existing may be modified in place; incoming is not.
func Merge(existing, incoming []device.Record) []device.Record {
	return fold(existing, incoming, false)
}

// Refresh is Merge for the cross-pass cache: matching is identical, but the IP
// address and status follow the newer observation so that address changes and
// returning devices are reflected.
func Refresh(existing, incoming []device.Record) []device.Record {
	return fold(existing, incoming, true)
}

func fold(existing, incoming []device.Record, refresh bool) []device.Record {
	for _, in := range incoming {
		in = in.Clone()
		in.MAC = canonicalMAC(in.MAC)
		in.Tags = device.NormalizeTags(in.Tags)

		idx := Find(existing, in)
		if idx < 0 {
			existing = append(existing, in)
			continue
		}
		fill(&existing[idx], in, refresh)
	}
	return existing
}

// Find returns the index of the record in set that in should merge into, or -1.
func Find(set []device.Record, in device.Record) int {
	mac := canonicalMAC(in.MAC)
	if mac != "" {
		for i := range set {
			if set[i].MAC == mac {
				return i
			}
		}
	}
	if in.IP == "" {
		return -1
	}
	for i := range set {
		if set[i].IP != in.IP {
			continue
		}
		if set[i].MAC != "" && mac != "" && set[i].MAC != mac {
			continue
		}
		return i
	}
	return -1
}

func fill(dst *device.Record, src device.Record, refresh bool) {
	newer := src.LastSeen >= dst.LastSeen

	if dst.IP == "" || (refresh && newer && src.IP != "") {
		dst.IP = src.IP
	}
	if dst.MAC == "" {
		dst.MAC = src.MAC
	}
	if dst.Hostname == "" {
		dst.Hostname = src.Hostname
	}
	if device.IsUnknown(dst.Vendor) && !device.IsUnknown(src.Vendor) {
		dst.Vendor = src.Vendor
	}
	if device.IsUnknown(dst.DeviceType) && !device.IsUnknown(src.DeviceType) {
		dst.DeviceType = src.DeviceType
	}
	if dst.OS == "" {
		dst.OS = src.OS
	}
	if dst.Notes == "" {
		dst.Notes = src.Notes
	}
	if src.Status != "" && (statusUnknown(dst.Status) || (refresh && newer)) {
		dst.Status = src.Status
	}
	dst.Tags = device.UnionTags(dst.Tags, src.Tags)

	if dst.FirstSeen == 0 {
		dst.FirstSeen = src.FirstSeen
	}
	if src.LastSeen > dst.LastSeen {
		dst.LastSeen = src.LastSeen
	}
	if dst.Source == "" {
		dst.Source = src.Source
	}
}

func statusUnknown(s string) bool {
	return s == "" || s == device.StatusUnknown
}

func canonicalMAC(mac string) string {
	if mac == "" {
		return ""
	}
	if m := device.NormalizeMAC(mac); m != "" {
		return m
	}
	return mac
}
