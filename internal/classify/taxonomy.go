package classify

import (
	"strings"

	"lanscope/core-go/internal/device"
)

var allTypes = []string{
	device.TypeRouter,
	device.TypeComputer,
	device.TypePhone,
	device.TypePrinter,
	device.TypeCamera,
	device.TypeTV,
	device.TypeUnknown,
}

func AllTypes() []string {
	out := make([]string, len(allTypes))
	copy(out, allTypes)
	return out
}

// NormalizeType maps a case-insensitive type label onto its canonical
// spelling, or "Unknown" when it is not part of the taxonomy.
func NormalizeType(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, t := range allTypes {
		if strings.EqualFold(t, raw) {
			return t
		}
	}
	return device.TypeUnknown
}

func IsValidType(raw string) bool {
	raw = strings.TrimSpace(raw)
	for _, t := range allTypes {
		if strings.EqualFold(t, raw) {
			return true
		}
	}
	return false
}
