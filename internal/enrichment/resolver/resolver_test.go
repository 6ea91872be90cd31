package resolver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"

	"lanscope/core-go/internal/probe"
)

func startDNSServer(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	<-started
	return pc.LocalAddr().String()
}

func TestReverseDNS_LookupAddr(t *testing.T) {
	addr := startDNSServer(t, func(w dns.ResponseWriter, q *dns.Msg) {
		resp := new(dns.Msg)
		resp.SetReply(q)
		if q.Question[0].Name == "10.1.168.192.in-addr.arpa." {
			rr, _ := dns.NewRR("10.1.168.192.in-addr.arpa. 60 IN PTR nas.home.arpa.")
			resp.Answer = append(resp.Answer, rr, rr)
		} else {
			resp.Rcode = dns.RcodeNameError
		}
		_ = w.WriteMsg(resp)
	})

	r := NewReverseDNS([]string{addr}, time.Second)
	cands, err := r.LookupAddr(context.Background(), "192.168.1.10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 || cands[0].Name != "nas.home.arpa" || cands[0].Source != "reverse_dns" {
		t.Fatalf("unexpected candidates %+v", cands)
	}

	none, err := r.LookupAddr(context.Background(), "192.168.1.11")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected nxdomain to yield no names, got %+v %v", none, err)
	}
}

func TestReverseDNS_RejectsInvalidAddress(t *testing.T) {
	r := NewReverseDNS([]string{"127.0.0.1:1"}, 10*time.Millisecond)
	if _, err := r.LookupAddr(context.Background(), "not-an-ip"); err == nil {
		t.Fatalf("expected error for invalid address")
	}
}

func TestParseNodeStatus(t *testing.T) {
	nbtstat := `
Ethernet:
Node IpAddress: [192.168.1.50] Scope Id: []

           NetBIOS Remote Machine Name Table

       Name               Type         Status
    ---------------------------------------------
    WORKGROUP      <00>  GROUP       Registered
    DESKTOP-7      <00>  UNIQUE      Registered
    DESKTOP-7      <20>  UNIQUE      Registered
`
	if name, ok := ParseNodeStatus(nbtstat); !ok || name != "DESKTOP-7" {
		t.Fatalf("unexpected nbtstat name %q ok=%v", name, ok)
	}

	nmblookup := "Looking up status of 192.168.1.60\n\tFILESRV         <00> -         B <ACTIVE>\n\tWORKGROUP       <00> - <GROUP> B <ACTIVE>\n"
	if name, ok := ParseNodeStatus(nmblookup); !ok || name != "FILESRV" {
		t.Fatalf("unexpected nmblookup name %q ok=%v", name, ok)
	}

	if _, ok := ParseNodeStatus("No reply from 192.168.1.70"); ok {
		t.Fatalf("expected no name")
	}
}

func TestParseNodeStatus_LocalizedTypeColumn(t *testing.T) {
	nbtstat := `
    Таблица NetBIOS-имен удаленных компьютеров

       Имя               Тип         Состояние
    ---------------------------------------------
    РАБОЧАЯГРУППА  <00>  Группа       Зарегистрирован
    BUH-PC         <00>  Уникальный   Зарегистрирован
    BUH-PC         <20>  Уникальный   Зарегистрирован
    РАБОЧАЯГРУППА  <1E>  Группа       Зарегистрирован
`
	if name, ok := ParseNodeStatus(nbtstat); !ok || name != "BUH-PC" {
		t.Fatalf("unexpected localized name %q ok=%v", name, ok)
	}
}

func TestParseNodeStatus_NameContainingGroup(t *testing.T) {
	nbtstat := "    GROUPWARE-PC   <00>  UNIQUE      Registered\n    WORKGROUP      <00>  GROUP       Registered\n"
	if name, ok := ParseNodeStatus(nbtstat); !ok || name != "GROUPWARE-PC" {
		t.Fatalf("unexpected nbtstat name %q ok=%v", name, ok)
	}

	nmblookup := "\tGROUPSRV        <00> -         B <ACTIVE>\n\tWORKGROUP       <00> - <GROUP> B <ACTIVE>\n"
	if name, ok := ParseNodeStatus(nmblookup); !ok || name != "GROUPSRV" {
		t.Fatalf("unexpected nmblookup name %q ok=%v", name, ok)
	}
}

type fakeSystem struct {
	probe.System
	status string
}

func (f fakeSystem) NetBIOSStatus(context.Context, string) (string, error) {
	return f.status, nil
}

func TestNetBIOS_LookupAddr(t *testing.T) {
	n := NewNetBIOS(fakeSystem{status: "    PRINTSRV      <00>  UNIQUE      Registered\n"})
	cands, err := n.LookupAddr(context.Background(), "192.168.1.80")
	if err != nil || len(cands) != 1 || cands[0].Name != "PRINTSRV" {
		t.Fatalf("unexpected result %+v %v", cands, err)
	}
}
