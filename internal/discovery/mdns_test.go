package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"

	"lanscope/core-go/internal/device"
)

func startMDNSResponder(t *testing.T, answer func(q *dns.Msg) *dns.Msg) string {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, 2048)
		for {
			n, src, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			q := new(dns.Msg)
			if err := q.Unpack(buf[:n]); err != nil {
				continue
			}
			resp := answer(q)
			packed, err := resp.Pack()
			if err != nil {
				continue
			}
			_, _ = conn.WriteTo(packed, src)
		}
	}()
	return conn.LocalAddr().String()
}

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	if err != nil {
		t.Fatalf("bad rr %q: %v", s, err)
	}
	return rr
}

func TestMDNS_BuildsRecordFromResponse(t *testing.T) {
	group := startMDNSResponder(t, func(q *dns.Msg) *dns.Msg {
		resp := new(dns.Msg)
		resp.SetReply(q)
		resp.Answer = []dns.RR{
			mustRR(t, "_services._dns-sd._udp.local. 120 IN PTR _ipp._tcp.local."),
			mustRR(t, "_ipp._tcp.local. 120 IN PTR Office\\ Printer._ipp._tcp.local."),
		}
		resp.Extra = []dns.RR{
			mustRR(t, "Office\\ Printer._ipp._tcp.local. 120 IN SRV 0 0 631 brn-office.local."),
			mustRR(t, "brn-office.local. 120 IN A 127.0.0.1"),
		}
		return resp
	})

	d := NewMDNS(zerolog.Nop(), MDNSOptions{Window: 300 * time.Millisecond, Group: group, Now: fixedNow})
	recs, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	r := recs[0]
	if r.IP != "127.0.0.1" || r.Hostname != "brn-office.local" {
		t.Fatalf("unexpected record %+v", r)
	}
	if r.DeviceType != device.TypePrinter {
		t.Fatalf("expected printer from _ipp service, got %q", r.DeviceType)
	}
}

func TestBrowseQuery_AsksForServiceTypes(t *testing.T) {
	q := BrowseQuery()
	if q.RecursionDesired || len(q.Question) != len(browseServices) {
		t.Fatalf("unexpected query %+v", q)
	}
	if q.Question[0].Name != "_services._dns-sd._udp.local." || q.Question[0].Qtype != dns.TypePTR {
		t.Fatalf("unexpected first question %+v", q.Question[0])
	}
}

func TestServiceType(t *testing.T) {
	cases := map[string]string{
		"Living Room._airplay._tcp.local.": "_airplay._tcp",
		"_ipp._tcp.local.":                 "_ipp._tcp",
		"brn-office.local.":                "",
	}
	for in, want := range cases {
		if got := serviceType(in); got != want {
			t.Fatalf("serviceType(%q)=%q, want %q", in, got, want)
		}
	}
}
