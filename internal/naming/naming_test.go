package naming

import "testing"

func TestNormalize(t *testing.T) {
	hostname, short, score, ok := Normalize(SourceReverseDNS, "NAS.Home.ARPA.")
	if !ok {
		t.Fatalf("expected ok")
	}
	if hostname != "nas.home.arpa" {
		t.Fatalf("expected lowercased name without trailing dot, got %q", hostname)
	}
	if short != "nas" {
		t.Fatalf("expected first label, got %q", short)
	}
	if score < MinScore {
		t.Fatalf("expected score >= %d, got %d", MinScore, score)
	}
}

func TestChoose_PrefersHigherSignal(t *testing.T) {
	name, ok := Choose([]Candidate{
		{Name: "DESKTOP-7", Source: SourceNetBIOS},
		{Name: "desktop-7.lan", Source: SourceReverseDNS},
	})
	if !ok {
		t.Fatalf("expected ok")
	}
	if name != "desktop-7.lan" {
		t.Fatalf("expected reverse dns to win, got %q", name)
	}
}

func TestChoose_RejectsGarbage(t *testing.T) {
	name, ok := Choose([]Candidate{
		{Name: "10.1.168.192.in-addr.arpa", Source: SourceReverseDNS},
		{Name: "__MSBROWSE__", Source: SourceNetBIOS},
		{Name: "WORKGROUP", Source: SourceNetBIOS},
	})
	if ok {
		t.Fatalf("expected ok=false, got name=%q", name)
	}
}

func TestClean_AllowsFriendlyNamesFromSSDP(t *testing.T) {
	name, ok := Clean(SourceSSDP, "Living Room TV")
	if !ok || name != "Living Room TV" {
		t.Fatalf("expected friendly name kept, got %q ok=%v", name, ok)
	}
	if _, ok := Clean(SourceNetBIOS, "x"); ok {
		t.Fatalf("expected single-character name to be rejected")
	}
}
