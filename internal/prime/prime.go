// Package prime populates the neighbor table before it is read by pinging
// every host address of the configured /24 ranges once. Replies are not
// inspected; the side effect on the table is the point.
package prime

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"lanscope/core-go/internal/device"
)

// Pinger sends one echo request.
type Pinger interface {
	Ping(ctx context.Context, ip string, timeout time.Duration) error
}

// Range is a /24 network identified by its first three octets.
type Range struct {
	Prefix string // "192.168.1"
}

func (r Range) String() string { return r.Prefix + ".0/24" }

// Hosts returns .1 through .254 in order.
func (r Range) Hosts() []string {
	out := make([]string, 0, 254)
	for h := 1; h <= 254; h++ {
		out = append(out, r.Prefix+"."+strconv.Itoa(h))
	}
	return out
}

// ParseRange accepts only /24 CIDRs such as "192.168.1.0/24". The host part
// of the address is ignored.
func ParseRange(cidr string) (Range, error) {
	cidr = strings.TrimSpace(cidr)
	addr, bits, ok := strings.Cut(cidr, "/")
	if !ok || bits != "24" {
		return Range{}, fmt.Errorf("prime range %q: only /24 ranges are supported", cidr)
	}
	prefix, ok := device.Subnet24(addr)
	if !ok {
		return Range{}, fmt.Errorf("prime range %q: invalid ipv4 address", cidr)
	}
	return Range{Prefix: prefix}, nil
}

// ParseRanges parses a list of CIDRs, returning the valid ranges and one
// error per rejected entry. Duplicates are dropped.
func ParseRanges(cidrs []string) ([]Range, []error) {
	var (
		out  []Range
		errs []error
		seen = make(map[string]struct{})
	)
	for _, c := range cidrs {
		if strings.TrimSpace(c) == "" {
			continue
		}
		r, err := ParseRange(c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[r.Prefix]; dup {
			continue
		}
		seen[r.Prefix] = struct{}{}
		out = append(out, r)
	}
	return out, errs
}

type Options struct {
	// Rate caps pings per second; zero or less means no pacing.
	Rate    float64
	Timeout time.Duration
}

type Primer struct {
	pinger  Pinger
	limiter *rate.Limiter
	timeout time.Duration
}

func New(pinger Pinger, opts Options) *Primer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}
	return &Primer{pinger: pinger, limiter: limiter, timeout: timeout}
}

// Result counts the pings sent and answered.
type Result struct {
	Attempted int `json:"attempted"`
	Replied   int `json:"replied"`
}

// Prime pings every host of every range sequentially. Ping failures are
// ignored; only cancellation stops the sweep early.
func (p *Primer) Prime(ctx context.Context, ranges []Range) (Result, error) {
	var res Result
	for _, r := range ranges {
		for _, ip := range r.Hosts() {
			if err := p.limiter.Wait(ctx); err != nil {
				return res, ctx.Err()
			}
			res.Attempted++
			if err := p.pinger.Ping(ctx, ip, p.timeout); err == nil {
				res.Replied++
			}
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
		}
	}
	return res, nil
}
