package discoveryworker

import (
	"testing"

	"lanscope/core-go/internal/discovery"
	"lanscope/core-go/internal/inventory"
)

func TestCanonicalizeScanTags(t *testing.T) {
	got := canonicalizeScanTags([]any{" Nmap ", "names", "banana", 123, "nmap", "MDNS"})
	want := []string{"mdns", "names", "nmap"}

	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestApplyScanTags_AddsDriversToDefaults(t *testing.T) {
	opts := inventory.PassOptions{}
	applyScanTags(&opts, []string{ScanTagNmap}, allDrivers, defaultDrivers)

	if len(opts.Drivers) != len(defaultDrivers)+1 || opts.Drivers[len(opts.Drivers)-1] != discovery.DriverNmap {
		t.Fatalf("expected defaults plus nmap, got %v", opts.Drivers)
	}
}

func TestApplyScanTags_ReenablesSkippedSteps(t *testing.T) {
	opts := inventory.PassOptions{SkipPrime: true, SkipEnrich: true, Drivers: []string{discovery.DriverARP}}
	applyScanTags(&opts, []string{ScanTagNames, ScanTagPrime, ScanTagSSDP, ScanTagSSDP}, allDrivers, defaultDrivers)

	if opts.SkipPrime || opts.SkipEnrich {
		t.Fatalf("expected steps re-enabled, got %+v", opts)
	}
	if len(opts.Drivers) != 2 || opts.Drivers[1] != discovery.DriverSSDP {
		t.Fatalf("expected ssdp appended once, got %v", opts.Drivers)
	}
}

func TestApplyScanTags_IgnoresUnavailableDrivers(t *testing.T) {
	opts := inventory.PassOptions{}
	applyScanTags(&opts, []string{ScanTagNmap}, defaultDrivers, defaultDrivers)
	if opts.Drivers != nil {
		t.Fatalf("expected no driver list when nmap is unavailable, got %v", opts.Drivers)
	}
}
