package discovery

import (
	"context"
	"testing"

	"github.com/Ullaakut/nmap/v3"

	"lanscope/core-go/internal/probe"
)

func TestParseNmcli(t *testing.T) {
	text := "HomeNet:AA\\:BB\\:CC\\:DD\\:EE\\:01:80:6:WPA2:2437 MHz\n" +
		"Cafe:AA\\:BB\\:CC\\:DD\\:EE\\:02:40:36:--:5180 MHz\n" +
		"broken line\n"
	aps := ParseNmcli(text)
	if len(aps) != 2 {
		t.Fatalf("expected 2 access points, got %d: %+v", len(aps), aps)
	}
	if aps[0].SSID != "HomeNet" || aps[0].BSSID != "aa:bb:cc:dd:ee:01" || aps[0].RSSI != -60 || aps[0].Channel != 6 || aps[0].Frequency != 2437 {
		t.Fatalf("unexpected first ap %+v", aps[0])
	}
	if aps[1].Security != "Open" || aps[1].Frequency != 5180 {
		t.Fatalf("unexpected second ap %+v", aps[1])
	}
}

const iwlistScan = `wlan0     Scan completed :
          Cell 01 - Address: AA:BB:CC:DD:EE:10
                    Channel:11
                    Frequency:2.462 GHz (Channel 11)
                    Quality=46/70  Signal level=-64 dBm
                    Encryption key:on
                    ESSID:"Upstairs"
                    IE: IEEE 802.11i/WPA2 Version 1
          Cell 02 - Address: AA:BB:CC:DD:EE:11
                    Channel:1
                    Quality=60/70  Signal level=-50 dBm
                    Encryption key:off
                    ESSID:"Guest"
`

func TestParseIwlist(t *testing.T) {
	aps := ParseIwlist(iwlistScan)
	if len(aps) != 2 {
		t.Fatalf("expected 2 access points, got %d", len(aps))
	}
	if aps[0].SSID != "Upstairs" || aps[0].Security != "WPA2" || aps[0].Frequency != 2462 || aps[0].RSSI != -64 {
		t.Fatalf("unexpected first ap %+v", aps[0])
	}
	if aps[1].Security != "Open" || aps[1].Frequency != 2412 {
		t.Fatalf("unexpected second ap %+v", aps[1])
	}
}

func TestAccessPoints_SortsByStrongestSignal(t *testing.T) {
	sys := &fakeSystem{wifiFn: func(context.Context) (probe.WiFiListing, error) {
		return probe.WiFiListing{Format: probe.WiFiFormatIwlist, Text: iwlistScan}, nil
	}}
	aps, err := NewAccessPoints(sys).Scan(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(aps) != 2 || aps[0].SSID != "Guest" {
		t.Fatalf("expected strongest first, got %+v", aps)
	}
}

func TestRecordsFromNmap(t *testing.T) {
	run := &nmap.Run{Hosts: []nmap.Host{
		{
			Status:    nmap.Status{State: "up"},
			Addresses: []nmap.Address{{Addr: "192.168.1.30", AddrType: "ipv4"}, {Addr: "B8:27:EB:01:02:03", AddrType: "mac", Vendor: "Raspberry Pi Foundation"}},
			Hostnames: []nmap.Hostname{{Name: "pi.lan"}},
		},
		{
			Status:    nmap.Status{State: "down"},
			Addresses: []nmap.Address{{Addr: "192.168.1.31", AddrType: "ipv4"}},
		},
	}}
	recs := RecordsFromNmap(run, testNow)
	if len(recs) != 1 {
		t.Fatalf("expected only hosts that are up, got %d", len(recs))
	}
	r := recs[0]
	if r.MAC != "b8:27:eb:01:02:03" || r.Vendor != "Raspberry Pi Foundation" || r.Hostname != "pi.lan" {
		t.Fatalf("unexpected record %+v", r)
	}
}
