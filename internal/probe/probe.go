// Package probe is the only place that knows how each platform exposes its
// neighbor table, local interface, ping and name-service utilities. A System is
// chosen once at startup; drivers talk to it and never branch on the OS.
package probe

import (
	"context"
	"errors"
	"runtime"
	"time"
)

// ErrUnsupported reports that the platform has no source for a capability, or
// that the backing tool is not installed.
var ErrUnsupported = errors.New("probe: capability not supported on this platform")

// LocalHost describes the machine the service runs on.
type LocalHost struct {
	IP       string
	MAC      string
	Hostname string
	OS       string
}

// WiFiListing is raw scanner output and the format it is in.
type WiFiListing struct {
	Format string // "nmcli" | "iwlist"
	Text   string
}

const (
	WiFiFormatNmcli  = "nmcli"
	WiFiFormatIwlist = "iwlist"
)

// System is the per-platform capability set consumed by the discovery drivers.
type System interface {
	Name() string
	// NeighborTable returns the address-resolution table as line-oriented text.
	NeighborTable(ctx context.Context) (string, error)
	// LocalHost describes this machine's primary interface.
	LocalHost(ctx context.Context) (LocalHost, error)
	// Ping sends one echo request and reports whether a reply arrived in time.
	Ping(ctx context.Context, ip string, timeout time.Duration) error
	// NetBIOSStatus returns the node-status listing for ip.
	NetBIOSStatus(ctx context.Context, ip string) (string, error)
	// WiFiScan lists nearby access points.
	WiFiScan(ctx context.Context) (WiFiListing, error)
}

// Detect returns the System for the running platform.
func Detect(r Runner) System {
	return ForOS(runtime.GOOS, r)
}

// ForOS returns the System variant for goos.
func ForOS(goos string, r Runner) System {
	if r == nil {
		r = NewExecRunner(0)
	}
	switch goos {
	case "linux":
		return &linuxSystem{run: r, arpPath: "/proc/net/arp"}
	case "darwin", "freebsd", "openbsd", "netbsd":
		return &bsdSystem{name: goos, run: r}
	case "windows":
		return &windowsSystem{run: r}
	default:
		return unsupportedSystem{name: goos}
	}
}

func pingWaitSeconds(timeout time.Duration) int {
	secs := int((timeout + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

type unsupportedSystem struct {
	name string
}

func (s unsupportedSystem) Name() string { return s.name }

func (unsupportedSystem) NeighborTable(context.Context) (string, error) {
	return "", ErrUnsupported
}

func (unsupportedSystem) LocalHost(context.Context) (LocalHost, error) {
	return LocalHost{}, ErrUnsupported
}

func (unsupportedSystem) Ping(context.Context, string, time.Duration) error {
	return ErrUnsupported
}

func (unsupportedSystem) NetBIOSStatus(context.Context, string) (string, error) {
	return "", ErrUnsupported
}

func (unsupportedSystem) WiFiScan(context.Context) (WiFiListing, error) {
	return WiFiListing{}, ErrUnsupported
}
