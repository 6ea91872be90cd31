package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ullaakut/nmap/v3"
	"github.com/rs/zerolog"

	"lanscope/core-go/internal/device"
	"lanscope/core-go/internal/naming"
	"lanscope/core-go/internal/probe"
)

type NmapOptions struct {
	// Targets are extra CIDRs to sweep in addition to the local /24.
	Targets []string
	Timeout time.Duration
	Now     func() time.Time
}

// Nmap runs an nmap host-discovery (ping) scan. It is opt-in: the binary is
// often missing and the scan is slower than the passive sources.
type Nmap struct {
	log  zerolog.Logger
	sys  probe.System
	opts NmapOptions
}

func NewNmap(log zerolog.Logger, sys probe.System, opts NmapOptions) *Nmap {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	opts.Now = nowOrDefault(opts.Now)
	return &Nmap{log: log, sys: sys, opts: opts}
}

func (d *Nmap) Name() string { return DriverNmap }

func (d *Nmap) Discover(ctx context.Context) ([]device.Record, error) {
	targets := d.targets(ctx)
	if len(targets) == 0 {
		return nil, nil
	}

	scanCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	scanner, err := nmap.NewScanner(scanCtx,
		nmap.WithTargets(targets...),
		nmap.WithPingScan(),
	)
	if err != nil {
		if errors.Is(err, nmap.ErrNmapNotInstalled) {
			return nil, fmt.Errorf("nmap: %w", probe.ErrUnsupported)
		}
		return nil, fmt.Errorf("create nmap scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if warnings != nil && len(*warnings) > 0 {
		d.log.Debug().Strs("warnings", *warnings).Msg("nmap warnings")
	}
	if err != nil && result == nil {
		return nil, fmt.Errorf("nmap scan: %w", err)
	}
	return RecordsFromNmap(result, d.opts.Now()), nil
}

func (d *Nmap) targets(ctx context.Context) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		if t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if d.sys != nil {
		if h, err := d.sys.LocalHost(ctx); err == nil {
			if prefix, ok := device.Subnet24(h.IP); ok {
				add(prefix + ".0/24")
			}
		}
	}
	for _, t := range d.opts.Targets {
		add(t)
	}
	return out
}

// RecordsFromNmap converts hosts that are up into records.
func RecordsFromNmap(run *nmap.Run, now time.Time) []device.Record {
	if run == nil {
		return nil
	}
	var out []device.Record
	for _, host := range run.Hosts {
		if host.Status.State != "up" {
			continue
		}
		var ip, mac, vendor string
		for _, addr := range host.Addresses {
			switch addr.AddrType {
			case "ipv4":
				if ip == "" {
					ip = addr.Addr
				}
			case "mac":
				mac = device.NormalizeMAC(addr.Addr)
				vendor = addr.Vendor
			}
		}
		if !device.IsValidIPv4(ip) {
			continue
		}
		r := device.NewRecord(ip, mac, now)
		r.Source = DriverNmap
		if vendor != "" {
			r.Vendor = vendor
		}
		for _, hn := range host.Hostnames {
			if name, ok := naming.Clean(naming.SourceNmap, hn.Name); ok {
				r.Hostname = name
				break
			}
		}
		out = append(out, r)
	}
	return out
}
