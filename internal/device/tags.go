package device

import "strings"

// NormalizeTag lower-cases and trims a free-form label.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeTags drops empty labels and duplicates while keeping first-seen
// order. It never returns nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, raw := range tags {
		t := NormalizeTag(raw)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// HasTag reports whether tags contains tag after normalization.
func HasTag(tags []string, tag string) bool {
	tag = NormalizeTag(tag)
	if tag == "" {
		return false
	}
	for _, t := range tags {
		if NormalizeTag(t) == tag {
			return true
		}
	}
	return false
}

// UnionTags returns a followed by every tag of b not already present.
func UnionTags(a, b []string) []string {
	return NormalizeTags(append(append([]string{}, a...), b...))
}
