package app

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"lanscope/core-go/internal/config"
	"lanscope/core-go/internal/prime"
	"lanscope/core-go/internal/probe"
)

func TestBuild_RegistersEveryDriver(t *testing.T) {
	cfg, _, err := config.Load("", func(k string) string {
		return map[string]string{
			"EXTRA_CIDRS": "10.1.2.0/24,10.0.0.0/16",
			"DRIVERS":     "arp,dhcp",
		}[k]
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	runner := probe.RunnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, probe.ErrUnsupported
	})
	svc, warnings := Build(zerolog.Nop(), cfg, probe.ForOS("plan9", runner), nil)

	names := svc.DriverNames()
	if len(names) != 5 {
		t.Fatalf("expected every driver registered, got %v", names)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected the /16 range to be rejected, got %v", warnings)
	}
}

func TestRangeTargets_OnlyAcceptedRanges(t *testing.T) {
	ranges, errs := prime.ParseRanges([]string{"10.1.2.0/24", "10.0.0.0/16", "192.168.7.9/24"})
	if len(errs) != 1 {
		t.Fatalf("expected one rejected range, got %v", errs)
	}
	got := rangeTargets(ranges)
	if len(got) != 2 || got[0] != "10.1.2.0/24" || got[1] != "192.168.7.0/24" {
		t.Fatalf("unexpected targets %v", got)
	}
}
