package discovery

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"
	"golang.org/x/sync/errgroup"

	"lanscope/core-go/internal/classify"
	"lanscope/core-go/internal/device"
	"lanscope/core-go/internal/merge"
	"lanscope/core-go/internal/naming"
)

const (
	SSDPGroup         = "239.255.255.250:1900"
	maxSSDPWindow     = 1500 * time.Millisecond
	defaultSSDPWindow = 1200 * time.Millisecond
)

const mSearch = "M-SEARCH * HTTP/1.1\r\n" +
	"HOST: 239.255.255.250:1900\r\n" +
	"MAN: \"ssdp:discover\"\r\n" +
	"MX: 1\r\n" +
	"ST: ssdp:all\r\n\r\n"

type SSDPOptions struct {
	// Window is how long replies are collected; capped at 1.5s.
	Window time.Duration
	// DescriptorTimeout bounds each descriptor-document fetch.
	DescriptorTimeout time.Duration
	// Group is the destination of the search request.
	Group  string
	Client *http.Client
	Now    func() time.Time
}

// SSDP sends one multicast search and collects unicast replies.
type SSDP struct {
	log  zerolog.Logger
	opts SSDPOptions
}

func NewSSDP(log zerolog.Logger, opts SSDPOptions) *SSDP {
	if opts.Window <= 0 {
		opts.Window = defaultSSDPWindow
	}
	if opts.Window > maxSSDPWindow {
		opts.Window = maxSSDPWindow
	}
	if opts.DescriptorTimeout <= 0 {
		opts.DescriptorTimeout = time.Second
	}
	if strings.TrimSpace(opts.Group) == "" {
		opts.Group = SSDPGroup
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.DescriptorTimeout}
	}
	opts.Now = nowOrDefault(opts.Now)
	return &SSDP{log: log, opts: opts}
}

func (d *SSDP) Name() string { return DriverSSDP }

type ssdpReply struct {
	ip       string
	location string
	record   device.Record
}

func (d *SSDP) Discover(ctx context.Context) ([]device.Record, error) {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", "0.0.0.0:0")
	if err != nil {
		return nil, socketError(err)
	}
	defer conn.Close()

	pc := ipv4.NewPacketConn(conn)
	_ = pc.SetMulticastTTL(2)
	_ = pc.SetMulticastLoopback(true)

	dst, err := net.ResolveUDPAddr("udp4", d.opts.Group)
	if err != nil {
		return nil, err
	}
	if _, err := conn.WriteTo([]byte(mSearch), dst); err != nil {
		return nil, err
	}

	_ = conn.SetReadDeadline(listenDeadline(ctx, d.opts.Window))
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Unix(1, 0)) })
	defer stop()

	var (
		replies  []ssdpReply
		byIP     = make(map[string]int)
		buf      = make([]byte, 4096)
		observed = d.opts.Now()
	)
	for {
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			// Deadline or cancellation closes the window; replies so far stand.
			break
		}
		udp, ok := src.(*net.UDPAddr)
		if !ok || udp.IP.To4() == nil {
			continue
		}
		ip := udp.IP.To4().String()
		headers, ok := ParseSSDPReply(string(buf[:n]))
		if !ok {
			continue
		}
		rec := recordFromSSDP(ip, headers, observed)
		if i, seen := byIP[ip]; seen {
			// One device answers once per advertised service.
			replies[i].record = merge.Merge([]device.Record{replies[i].record}, []device.Record{rec})[0]
			if replies[i].location == "" {
				replies[i].location = headers["location"]
			}
			continue
		}
		byIP[ip] = len(replies)
		replies = append(replies, ssdpReply{ip: ip, location: headers["location"], record: rec})
	}

	d.fetchDescriptors(ctx, replies)

	out := make([]device.Record, 0, len(replies))
	for _, r := range replies {
		out = append(out, r.record)
	}
	return out, nil
}

func (d *SSDP) fetchDescriptors(ctx context.Context, replies []ssdpReply) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range replies {
		r := &replies[i]
		if !descriptorAllowed(r.location, r.ip) {
			continue
		}
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, d.opts.DescriptorTimeout)
			defer cancel()
			desc, err := FetchDescriptor(fctx, d.opts.Client, r.location)
			if err != nil {
				d.log.Debug().Err(err).Str("ip", r.ip).Str("location", r.location).Msg("ssdp descriptor fetch failed")
				return nil
			}
			applyDescriptor(&r.record, desc)
			return nil
		})
	}
	_ = g.Wait()
}

// descriptorAllowed limits secondary fetches to http(s) URLs served by the
// host that sent the reply.
func descriptorAllowed(location, ip string) bool {
	if location == "" {
		return false
	}
	u, err := url.Parse(location)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return u.Hostname() == ip
}

// ParseSSDPReply parses the header block of an SSDP response or NOTIFY.
// Keys are lower-cased; the first occurrence of a key wins. Our own search
// requests are rejected.
func ParseSSDPReply(text string) (map[string]string, bool) {
	sc := bufio.NewScanner(strings.NewReader(text))
	if !sc.Scan() {
		return nil, false
	}
	start := strings.TrimSpace(sc.Text())
	if strings.HasPrefix(strings.ToUpper(start), "M-SEARCH") {
		return nil, false
	}

	headers := make(map[string]string)
	parseHeaderLine(start, headers)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			break
		}
		parseHeaderLine(line, headers)
	}
	return headers, true
}

func parseHeaderLine(line string, headers map[string]string) {
	k, v, ok := strings.Cut(line, ":")
	if !ok {
		return
	}
	k = strings.ToLower(strings.TrimSpace(k))
	if k == "" || strings.ContainsAny(k, " \t") {
		return
	}
	if _, dup := headers[k]; dup {
		return
	}
	headers[k] = strings.TrimSpace(v)
}

func recordFromSSDP(ip string, headers map[string]string, now time.Time) device.Record {
	r := device.NewRecord(ip, "", now)
	r.DeviceType = classify.Best(classify.FromSSDP(headers["st"], headers["usn"], headers["server"]))
	r.OS = classify.ExtractOS(headers["server"])
	r.Source = DriverSSDP
	return r
}

func applyDescriptor(r *device.Record, desc Descriptor) {
	if r.Hostname == "" {
		if name, ok := naming.Clean(naming.SourceSSDP, desc.FriendlyName); ok {
			r.Hostname = name
		}
	}
	if r.OS == "" {
		r.OS = desc.ModelDescription
	}
	if r.OS == "" {
		r.OS = desc.Manufacturer
	}
	if device.IsUnknown(r.Vendor) && desc.Manufacturer != "" {
		r.Vendor = desc.Manufacturer
	}
	if device.IsUnknown(r.DeviceType) {
		r.DeviceType = classify.Best(classify.FromSSDP(desc.DeviceType, desc.ModelName, ""))
	}
}
