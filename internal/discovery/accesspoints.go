package discovery

import (
	"bufio"
	"context"
	"sort"
	"strconv"
	"strings"

	"lanscope/core-go/internal/device"
	"lanscope/core-go/internal/probe"
)

// AccessPoints lists nearby wireless networks. The result is an independent
// view and is never merged into device records.
type AccessPoints struct {
	sys probe.System
}

func NewAccessPoints(sys probe.System) *AccessPoints {
	return &AccessPoints{sys: sys}
}

func (a *AccessPoints) Scan(ctx context.Context) ([]device.AccessPoint, error) {
	listing, err := a.sys.WiFiScan(ctx)
	if err != nil {
		return nil, err
	}
	var aps []device.AccessPoint
	switch listing.Format {
	case probe.WiFiFormatNmcli:
		aps = ParseNmcli(listing.Text)
	case probe.WiFiFormatIwlist:
		aps = ParseIwlist(listing.Text)
	}
	sort.SliceStable(aps, func(i, j int) bool { return aps[i].RSSI > aps[j].RSSI })
	return aps, nil
}

// ParseNmcli reads `nmcli -t -f SSID,BSSID,SIGNAL,CHAN,SECURITY,FREQ dev wifi
// list` output. Colons inside fields are escaped as "\:".
func ParseNmcli(text string) []device.AccessPoint {
	var out []device.AccessPoint
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		fields := splitTerse(sc.Text())
		if len(fields) < 5 {
			continue
		}
		bssid := device.NormalizeMAC(fields[1])
		if bssid == "" {
			continue
		}
		ap := device.AccessPoint{
			SSID:     fields[0],
			BSSID:    bssid,
			Security: normalizeSecurity(fields[4]),
		}
		if pct, err := strconv.Atoi(strings.TrimSpace(fields[2])); err == nil {
			ap.RSSI = percentToDBm(pct)
		}
		ap.Channel, _ = strconv.Atoi(strings.TrimSpace(fields[3]))
		if len(fields) > 5 {
			ap.Frequency = leadingInt(fields[5])
		}
		if ap.Frequency == 0 {
			ap.Frequency = channelFrequency(ap.Channel)
		}
		out = append(out, ap)
	}
	return out
}

func splitTerse(line string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line):
			i++
			cur.WriteByte(line[i])
		case c == ':':
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(out, cur.String())
}

// ParseIwlist reads `iwlist scan` cell blocks.
func ParseIwlist(text string) []device.AccessPoint {
	var (
		out []device.AccessPoint
		cur *device.AccessPoint
		enc bool
		ie  string
	)
	flush := func() {
		if cur == nil {
			return
		}
		switch {
		case ie != "":
			cur.Security = ie
		case enc:
			cur.Security = "WEP"
		default:
			cur.Security = "Open"
		}
		if cur.Frequency == 0 {
			cur.Frequency = channelFrequency(cur.Channel)
		}
		out = append(out, *cur)
		cur, enc, ie = nil, false, ""
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "Cell "):
			flush()
			_, addr, ok := strings.Cut(line, "Address:")
			if !ok {
				continue
			}
			cur = &device.AccessPoint{BSSID: device.NormalizeMAC(strings.TrimSpace(addr))}
		case cur == nil:
		case strings.HasPrefix(line, "ESSID:"):
			cur.SSID = strings.Trim(strings.TrimPrefix(line, "ESSID:"), "\"")
		case strings.HasPrefix(line, "Channel:"):
			cur.Channel, _ = strconv.Atoi(strings.TrimPrefix(line, "Channel:"))
		case strings.HasPrefix(line, "Frequency:"):
			// "Frequency:2.437 GHz (Channel 6)"
			val := strings.Fields(strings.TrimPrefix(line, "Frequency:"))
			if len(val) > 0 {
				if ghz, err := strconv.ParseFloat(val[0], 64); err == nil {
					cur.Frequency = int(ghz*1000 + 0.5)
				}
			}
		case strings.Contains(line, "Signal level="):
			_, lvl, _ := strings.Cut(line, "Signal level=")
			cur.RSSI = leadingInt(lvl)
		case strings.HasPrefix(line, "Encryption key:"):
			enc = strings.HasSuffix(line, "on")
		case strings.HasPrefix(line, "IE:"):
			switch {
			case strings.Contains(line, "WPA2"), strings.Contains(line, "802.11i"):
				ie = "WPA2"
			case strings.Contains(line, "WPA") && ie == "":
				ie = "WPA"
			}
		}
	}
	flush()

	filtered := out[:0]
	for _, ap := range out {
		if ap.BSSID != "" {
			filtered = append(filtered, ap)
		}
	}
	return filtered
}

func normalizeSecurity(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "--" {
		return "Open"
	}
	return s
}

// percentToDBm maps nmcli's 0-100 signal quality onto an approximate RSSI.
func percentToDBm(pct int) int {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct/2 - 100
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] == '-' && end == 0 || s[end] >= '0' && s[end] <= '9') {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

func channelFrequency(ch int) int {
	switch {
	case ch >= 1 && ch <= 13:
		return 2407 + 5*ch
	case ch == 14:
		return 2484
	case ch >= 32 && ch <= 177:
		return 5000 + 5*ch
	}
	return 0
}
