// Package discovery holds the probe drivers. Each driver turns one source of
// ambient host or network state into partial device records. Drivers never
// merge across sources; that is the merge package's job.
package discovery

import (
	"context"
	"errors"
	"syscall"
	"time"

	"lanscope/core-go/internal/device"
)

const (
	DriverARP  = "arp"
	DriverDHCP = "dhcp"
	DriverSSDP = "ssdp"
	DriverMDNS = "mdns"
	DriverNmap = "nmap"
)

// AllDrivers lists every driver name in the order a pass reports them.
var AllDrivers = []string{DriverARP, DriverDHCP, DriverSSDP, DriverMDNS, DriverNmap}

// Driver produces zero or more partial observations. A non-nil error means
// the driver contributes nothing to the pass unless it wraps ErrFatal.
type Driver interface {
	Name() string
	Discover(ctx context.Context) ([]device.Record, error)
}

// ErrFatal marks conditions that abort the whole discovery pass, such as
// running out of file descriptors while allocating a socket.
var ErrFatal = errors.New("discovery: fatal")

type fatalError struct {
	err error
}

func (e *fatalError) Error() string   { return "fatal: " + e.err.Error() }
func (e *fatalError) Unwrap() []error { return []error{ErrFatal, e.err} }

// Fatal wraps err so that errors.Is(err, ErrFatal) holds.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// socketError classifies a failure to open a socket: descriptor exhaustion is
// fatal, anything else (permissions, no route) only disables the driver.
func socketError(err error) error {
	if errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) || errors.Is(err, syscall.ENOBUFS) {
		return Fatal(err)
	}
	return err
}

// DriverFunc adapts a function to Driver.
type DriverFunc struct {
	DriverName string
	Fn         func(ctx context.Context) ([]device.Record, error)
}

func (d DriverFunc) Name() string { return d.DriverName }

func (d DriverFunc) Discover(ctx context.Context) ([]device.Record, error) {
	return d.Fn(ctx)
}

func nowOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

// listenDeadline returns the end of a listen window, shortened to ctx's
// deadline when that comes first.
func listenDeadline(ctx context.Context, window time.Duration) time.Time {
	end := time.Now().Add(window)
	if dl, ok := ctx.Deadline(); ok && dl.Before(end) {
		return dl
	}
	return end
}
