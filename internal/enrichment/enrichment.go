// Package enrichment fills gaps in merged device records. For every record it
// runs, in order: hostname resolution (reverse DNS, then NetBIOS, then SNMP
// sysName when enabled), vendor lookup from the hardware-address prefix, and
// device-type classification. Each step only touches empty or "Unknown"
// fields, so enriching an enriched record changes nothing.
package enrichment

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"lanscope/core-go/internal/classify"
	"lanscope/core-go/internal/device"
	"lanscope/core-go/internal/enrichment/resolver"
	"lanscope/core-go/internal/enrichment/snmp"
	"lanscope/core-go/internal/enrichment/vendor"
	"lanscope/core-go/internal/naming"
)

// NameSource resolves hostname candidates for one address.
type NameSource interface {
	LookupAddr(ctx context.Context, address string) ([]resolver.Candidate, error)
}

// SystemSource reads the SNMP system group from one address.
type SystemSource interface {
	GetSystem(ctx context.Context, address string) (snmp.SystemInfo, error)
}

type Options struct {
	Workers     int
	NameTimeout time.Duration
	// SNMP is optional; nil disables the SNMP step.
	SNMP SystemSource
}

type Pipeline struct {
	log         zerolog.Logger
	reverse     NameSource
	netbios     NameSource
	snmp        SystemSource
	workers     int
	nameTimeout time.Duration
}

// Stats counts the fields filled by one Enrich call.
type Stats struct {
	Records   int `json:"records"`
	Hostnames int `json:"hostnames"`
	Vendors   int `json:"vendors"`
	Types     int `json:"types"`
	SNMP      int `json:"snmp"`
}

func New(log zerolog.Logger, reverse, netbios NameSource, opts Options) *Pipeline {
	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}
	nameTimeout := opts.NameTimeout
	if nameTimeout <= 0 {
		nameTimeout = 750 * time.Millisecond
	}
	return &Pipeline{
		log:         log,
		reverse:     reverse,
		netbios:     netbios,
		snmp:        opts.SNMP,
		workers:     workers,
		nameTimeout: nameTimeout,
	}
}

// Enrich fills recs in place using a bounded worker pool.
func (p *Pipeline) Enrich(ctx context.Context, recs []device.Record) Stats {
	var hostnames, vendors, types, snmpOK int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range recs {
		r := &recs[i]
		g.Go(func() error {
			res := p.enrichOne(gctx, r)
			if res.hostname {
				atomic.AddInt32(&hostnames, 1)
			}
			if res.vendor {
				atomic.AddInt32(&vendors, 1)
			}
			if res.kind {
				atomic.AddInt32(&types, 1)
			}
			if res.snmp {
				atomic.AddInt32(&snmpOK, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return Stats{
		Records:   len(recs),
		Hostnames: int(hostnames),
		Vendors:   int(vendors),
		Types:     int(types),
		SNMP:      int(snmpOK),
	}
}

type filled struct {
	hostname bool
	vendor   bool
	kind     bool
	snmp     bool
}

func (p *Pipeline) enrichOne(ctx context.Context, r *device.Record) filled {
	var res filled
	var sysDescr string

	if r.Hostname == "" && device.IsValidIPv4(r.IP) && ctx.Err() == nil {
		if name, ok := p.lookupName(ctx, p.reverse, r.IP); ok {
			r.Hostname = name
		} else if name, ok := p.lookupName(ctx, p.netbios, r.IP); ok {
			r.Hostname = name
		} else if p.snmp != nil {
			info, ok := p.lookupSNMP(ctx, r.IP)
			if ok {
				res.snmp = true
				sysDescr = info.SysDescr
				if name, ok := naming.Clean(naming.SourceSNMP, info.SysName); ok {
					r.Hostname = name
				}
				if r.OS == "" {
					r.OS = classify.ExtractOS(info.SysDescr)
				}
			}
		}
		res.hostname = r.Hostname != ""
	}

	if device.IsUnknown(r.Vendor) {
		if v := vendor.Lookup(r.MAC); !device.IsUnknown(v) {
			r.Vendor = v
			res.vendor = true
		} else {
			r.Vendor = device.Unknown
		}
	}

	if device.IsUnknown(r.DeviceType) {
		kind := classify.VendorType(r.Vendor)
		if device.IsUnknown(kind) && sysDescr != "" {
			kind = classify.Best(classify.FromSNMP(sysDescr))
		}
		r.DeviceType = kind
		res.kind = !device.IsUnknown(kind)
	}
	return res
}

func (p *Pipeline) lookupName(ctx context.Context, src NameSource, ip string) (string, bool) {
	if src == nil {
		return "", false
	}
	lctx, cancel := context.WithTimeout(ctx, p.nameTimeout)
	defer cancel()

	cands, err := src.LookupAddr(lctx, ip)
	if err != nil && len(cands) == 0 {
		p.log.Debug().Err(err).Str("ip", ip).Msg("name resolution failed")
		return "", false
	}
	list := make([]naming.Candidate, 0, len(cands))
	for _, c := range cands {
		list = append(list, naming.Candidate{Name: c.Name, Source: c.Source})
	}
	return naming.Choose(list)
}

func (p *Pipeline) lookupSNMP(ctx context.Context, ip string) (snmp.SystemInfo, bool) {
	sctx, cancel := context.WithTimeout(ctx, p.nameTimeout)
	defer cancel()
	info, err := p.snmp.GetSystem(sctx, ip)
	if err != nil {
		p.log.Debug().Err(err).Str("ip", ip).Msg("snmp system query failed")
		return snmp.SystemInfo{}, false
	}
	return info, true
}
