package discovery

import (
	"context"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"

	"lanscope/core-go/internal/classify"
	"lanscope/core-go/internal/device"
	"lanscope/core-go/internal/naming"
)

const (
	MDNSGroup         = "224.0.0.251:5353"
	defaultMDNSWindow = 1200 * time.Millisecond
)

// browseServices are queried alongside the DNS-SD meta query; many responders
// only answer for their own service types.
var browseServices = []string{
	"_services._dns-sd._udp.local.",
	"_workstation._tcp.local.",
	"_device-info._tcp.local.",
	"_ipp._tcp.local.",
	"_printer._tcp.local.",
	"_airplay._tcp.local.",
	"_googlecast._tcp.local.",
	"_smb._tcp.local.",
}

type MDNSOptions struct {
	// Window is how long answers are collected; capped at 1.5s.
	Window time.Duration
	Group  string
	Now    func() time.Time
}

// MDNS sends one legacy-unicast DNS-SD browse to the multicast group and
// builds a record per responding host.
type MDNS struct {
	log  zerolog.Logger
	opts MDNSOptions
}

func NewMDNS(log zerolog.Logger, opts MDNSOptions) *MDNS {
	if opts.Window <= 0 {
		opts.Window = defaultMDNSWindow
	}
	if opts.Window > maxSSDPWindow {
		opts.Window = maxSSDPWindow
	}
	if strings.TrimSpace(opts.Group) == "" {
		opts.Group = MDNSGroup
	}
	opts.Now = nowOrDefault(opts.Now)
	return &MDNS{log: log, opts: opts}
}

func (d *MDNS) Name() string { return DriverMDNS }

// BrowseQuery returns the query message the driver sends.
func BrowseQuery() *dns.Msg {
	m := new(dns.Msg)
	m.Id = dns.Id()
	m.RecursionDesired = false
	for _, svc := range browseServices {
		m.Question = append(m.Question, dns.Question{Name: svc, Qtype: dns.TypePTR, Qclass: dns.ClassINET})
	}
	return m
}

func (d *MDNS) Discover(ctx context.Context) ([]device.Record, error) {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", "0.0.0.0:0")
	if err != nil {
		return nil, socketError(err)
	}
	defer conn.Close()

	dst, err := net.ResolveUDPAddr("udp4", d.opts.Group)
	if err != nil {
		return nil, err
	}
	packed, err := BrowseQuery().Pack()
	if err != nil {
		return nil, err
	}
	if _, err := conn.WriteTo(packed, dst); err != nil {
		return nil, err
	}

	_ = conn.SetReadDeadline(listenDeadline(ctx, d.opts.Window))
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Unix(1, 0)) })
	defer stop()

	hosts := make(map[string]*mdnsHost)
	var order []string
	buf := make([]byte, 9000)
	for {
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			break
		}
		udp, ok := src.(*net.UDPAddr)
		if !ok || udp.IP.To4() == nil {
			continue
		}
		msg := new(dns.Msg)
		if err := msg.Unpack(buf[:n]); err != nil || !msg.Response {
			continue
		}
		ip := udp.IP.To4().String()
		h, ok := hosts[ip]
		if !ok {
			h = &mdnsHost{services: make(map[string]struct{})}
			hosts[ip] = h
			order = append(order, ip)
		}
		h.absorb(ip, msg)
	}

	observed := d.opts.Now()
	out := make([]device.Record, 0, len(order))
	for _, ip := range order {
		out = append(out, hosts[ip].record(ip, observed))
	}
	return out, nil
}

type mdnsHost struct {
	hostname string
	target   string
	services map[string]struct{}
}

// absorb folds one response from ip into h. The host name comes from an A
// record that points back at the responder, falling back to an SRV target.
func (h *mdnsHost) absorb(ip string, msg *dns.Msg) {
	rrs := make([]dns.RR, 0, len(msg.Answer)+len(msg.Extra))
	rrs = append(rrs, msg.Answer...)
	rrs = append(rrs, msg.Extra...)

	for _, rr := range rrs {
		switch v := rr.(type) {
		case *dns.A:
			if h.hostname == "" && v.A.To4() != nil && v.A.To4().String() == ip {
				h.hostname = v.Hdr.Name
			}
		case *dns.SRV:
			if h.target == "" {
				h.target = v.Target
			}
			h.addService(v.Hdr.Name)
		case *dns.PTR:
			if strings.EqualFold(v.Hdr.Name, "_services._dns-sd._udp.local.") {
				h.addService(v.Ptr)
			} else {
				h.addService(v.Hdr.Name)
			}
		}
	}
}

func (h *mdnsHost) addService(name string) {
	if svc := serviceType(name); svc != "" {
		h.services[svc] = struct{}{}
	}
}

// serviceType reduces "Living Room._airplay._tcp.local." to "_airplay._tcp".
func serviceType(name string) string {
	labels := dns.SplitDomainName(strings.ToLower(name))
	for i := 0; i+1 < len(labels); i++ {
		if strings.HasPrefix(labels[i], "_") && (labels[i+1] == "_tcp" || labels[i+1] == "_udp") {
			return labels[i] + "." + labels[i+1]
		}
	}
	return ""
}

func (h *mdnsHost) record(ip string, now time.Time) device.Record {
	r := device.NewRecord(ip, "", now)
	r.Source = DriverMDNS
	for _, cand := range []string{h.hostname, h.target} {
		if name, ok := naming.Clean(naming.SourceMDNS, cand); ok {
			r.Hostname = name
			break
		}
	}
	services := make([]string, 0, len(h.services))
	for s := range h.services {
		services = append(services, s)
	}
	sort.Strings(services)
	r.DeviceType = classify.Best(classify.FromServices(services))
	return r
}
