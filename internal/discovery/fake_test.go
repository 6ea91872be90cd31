package discovery

import (
	"context"
	"time"

	"lanscope/core-go/internal/probe"
)

type fakeSystem struct {
	neighborFn func(ctx context.Context) (string, error)
	localFn    func(ctx context.Context) (probe.LocalHost, error)
	wifiFn     func(ctx context.Context) (probe.WiFiListing, error)
}

func (f *fakeSystem) Name() string { return "fake" }

func (f *fakeSystem) NeighborTable(ctx context.Context) (string, error) {
	if f.neighborFn == nil {
		return "", probe.ErrUnsupported
	}
	return f.neighborFn(ctx)
}

func (f *fakeSystem) LocalHost(ctx context.Context) (probe.LocalHost, error) {
	if f.localFn == nil {
		return probe.LocalHost{}, probe.ErrUnsupported
	}
	return f.localFn(ctx)
}

func (f *fakeSystem) Ping(context.Context, string, time.Duration) error {
	return probe.ErrUnsupported
}

func (f *fakeSystem) NetBIOSStatus(context.Context, string) (string, error) {
	return "", probe.ErrUnsupported
}

func (f *fakeSystem) WiFiScan(ctx context.Context) (probe.WiFiListing, error) {
	if f.wifiFn == nil {
		return probe.WiFiListing{}, probe.ErrUnsupported
	}
	return f.wifiFn(ctx)
}

var testNow = time.Unix(1_700_000_000, 0)

func fixedNow() time.Time { return testNow }
