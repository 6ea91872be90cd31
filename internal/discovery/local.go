package discovery

import (
	"context"
	"time"

	"lanscope/core-go/internal/device"
	"lanscope/core-go/internal/probe"
)

// Local stands in for a DHCP lease reader. No lease store is reachable from
// an ordinary client, so it reports the local host's own interface as one
// record tagged "local".
type Local struct {
	sys probe.System
	now func() time.Time
}

func NewLocal(sys probe.System, now func() time.Time) *Local {
	return &Local{sys: sys, now: nowOrDefault(now)}
}

func (d *Local) Name() string { return DriverDHCP }

func (d *Local) Discover(ctx context.Context) ([]device.Record, error) {
	h, err := d.sys.LocalHost(ctx)
	if err != nil {
		return nil, err
	}
	if !device.IsValidIPv4(h.IP) {
		return nil, nil
	}

	r := device.NewRecord(h.IP, device.NormalizeMAC(h.MAC), d.now())
	r.Hostname = h.Hostname
	r.OS = h.OS
	r.DeviceType = device.TypeComputer
	r.Tags = []string{device.TagLocal}
	r.Source = DriverDHCP
	return []device.Record{r}, nil
}
