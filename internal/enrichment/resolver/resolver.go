// Package resolver turns an IP address into hostname candidates using reverse
// DNS and NetBIOS node-status queries.
package resolver

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"lanscope/core-go/internal/naming"
)

// Candidate is one name a source reported for an address.
type Candidate struct {
	Name    string
	Address string
	Source  string
}

const resolvConf = "/etc/resolv.conf"

// ReverseDNS issues PTR queries directly to the configured name servers.
// Without any servers it falls back to the system resolver.
type ReverseDNS struct {
	client  *dns.Client
	servers []string
}

// NewReverseDNS uses servers ("host:port") when given, otherwise the servers
// listed in /etc/resolv.conf.
func NewReverseDNS(servers []string, timeout time.Duration) *ReverseDNS {
	if timeout <= 0 {
		timeout = 750 * time.Millisecond
	}
	if len(servers) == 0 {
		if cfg, err := dns.ClientConfigFromFile(resolvConf); err == nil {
			for _, s := range cfg.Servers {
				servers = append(servers, net.JoinHostPort(s, cfg.Port))
			}
		}
	}
	return &ReverseDNS{
		client:  &dns.Client{Net: "udp", Timeout: timeout},
		servers: servers,
	}
}

func (r *ReverseDNS) LookupAddr(ctx context.Context, address string) ([]Candidate, error) {
	if len(r.servers) == 0 {
		names, err := net.DefaultResolver.LookupAddr(ctx, address)
		if err != nil {
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
				return nil, nil
			}
			return nil, err
		}
		return candidates(address, naming.SourceReverseDNS, names), nil
	}

	arpa, err := dns.ReverseAddr(address)
	if err != nil {
		return nil, err
	}
	q := new(dns.Msg)
	q.SetQuestion(arpa, dns.TypePTR)

	var lastErr error
	for _, srv := range r.servers {
		in, _, err := r.client.ExchangeContext(ctx, q, srv)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if in.Rcode != dns.RcodeSuccess {
			// NXDOMAIN is an answer: the address has no name.
			return nil, nil
		}
		var names []string
		for _, rr := range in.Answer {
			if ptr, ok := rr.(*dns.PTR); ok {
				names = append(names, ptr.Ptr)
			}
		}
		return candidates(address, naming.SourceReverseDNS, names), nil
	}
	return nil, lastErr
}

func candidates(address, source string, names []string) []Candidate {
	out := make([]Candidate, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(strings.TrimSuffix(raw, "."))
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Candidate{Name: name, Address: address, Source: source})
	}
	return out
}
