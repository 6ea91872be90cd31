// Package app assembles the inventory service from configuration. Both the
// server and the CLI build their service here.
package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"lanscope/core-go/internal/config"
	"lanscope/core-go/internal/discovery"
	"lanscope/core-go/internal/enrichment"
	"lanscope/core-go/internal/enrichment/resolver"
	"lanscope/core-go/internal/enrichment/snmp"
	"lanscope/core-go/internal/inventory"
	"lanscope/core-go/internal/metrics"
	"lanscope/core-go/internal/prime"
	"lanscope/core-go/internal/probe"
)

// Build wires drivers, priming, enrichment and the inventory around sys. A nil
// sys selects the variant for the running platform. Configuration problems
// that do not prevent startup come back as warnings.
func Build(log zerolog.Logger, cfg config.Config, sys probe.System, m *metrics.Metrics) (*inventory.Service, []string) {
	if sys == nil {
		sys = probe.Detect(probe.NewExecRunner(cfg.CommandTimeout.Duration()))
	}

	var warnings []string
	ranges, errs := prime.ParseRanges(cfg.ExtraCIDRs)
	for _, err := range errs {
		warnings = append(warnings, fmt.Sprintf("ignoring extra cidr: %v", err))
	}

	drivers := []discovery.Driver{
		discovery.NewARP(sys, nil),
		discovery.NewLocal(sys, nil),
		discovery.NewSSDP(log.With().Str("driver", discovery.DriverSSDP).Logger(), discovery.SSDPOptions{
			Window:            cfg.SSDPWindow.Duration(),
			DescriptorTimeout: cfg.DescriptorTimeout.Duration(),
		}),
		discovery.NewMDNS(log.With().Str("driver", discovery.DriverMDNS).Logger(), discovery.MDNSOptions{
			Window: cfg.MDNSWindow.Duration(),
		}),
		discovery.NewNmap(log.With().Str("driver", discovery.DriverNmap).Logger(), sys, discovery.NmapOptions{
			Targets: rangeTargets(ranges),
			Timeout: cfg.DiscoveryMaxRuntime.Duration(),
		}),
	}

	var snmpSource enrichment.SystemSource
	if cfg.SNMP.Enabled {
		snmpSource = snmp.NewClient(snmp.Config{
			Community: cfg.SNMP.Community,
			Version:   cfg.SNMP.Version,
			Timeout:   cfg.NameTimeout.Duration(),
		})
	}
	pipeline := enrichment.New(
		log.With().Str("component", "enrichment").Logger(),
		resolver.NewReverseDNS(cfg.DNSServers, cfg.NameTimeout.Duration()),
		resolver.NewNetBIOS(sys),
		enrichment.Options{
			Workers:     cfg.EnrichWorkers,
			NameTimeout: cfg.NameTimeout.Duration(),
			SNMP:        snmpSource,
		},
	)

	svc := inventory.New(log.With().Str("component", "inventory").Logger(), inventory.Options{
		Drivers:        drivers,
		DefaultDrivers: cfg.Drivers,
		Primer: prime.New(sys, prime.Options{
			Rate:    *cfg.PrimeRate,
			Timeout: cfg.PingTimeout.Duration(),
		}),
		Ranges:             ranges,
		Enricher:           pipeline,
		APs:                discovery.NewAccessPoints(sys),
		CacheMaxAge:        cfg.CacheMaxAge.Duration(),
		PassTimeout:        cfg.DiscoveryMaxRuntime.Duration(),
		OfflineAfterPasses: cfg.OfflineAfterPasses,
		MaxPageSize:        cfg.MaxPageSize,
		Metrics:            m,
	})

	log.Info().
		Str("platform", sys.Name()).
		Strs("drivers", cfg.Drivers).
		Int("prime_ranges", len(ranges)).
		Bool("snmp", cfg.SNMP.Enabled).
		Msg("inventory service assembled")
	return svc, warnings
}

// rangeTargets renders the accepted priming ranges as scan targets, so the
// nmap driver never sweeps a range the primer rejected.
func rangeTargets(ranges []prime.Range) []string {
	out := make([]string, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, r.String())
	}
	return out
}
