package discoveryworker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lanscope/core-go/internal/device"
	"lanscope/core-go/internal/discovery"
	"lanscope/core-go/internal/inventory"
)

type fakePasser struct {
	mu     sync.Mutex
	calls  []inventory.PassOptions
	passFn func(ctx context.Context, opts inventory.PassOptions) ([]device.Record, error)
}

func (f *fakePasser) RunPass(ctx context.Context, opts inventory.PassOptions) ([]device.Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.mu.Unlock()
	if f.passFn == nil {
		return nil, nil
	}
	return f.passFn(ctx, opts)
}

func (f *fakePasser) Calls() []inventory.PassOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]inventory.PassOptions(nil), f.calls...)
}

var allDrivers = []string{discovery.DriverARP, discovery.DriverDHCP, discovery.DriverSSDP, discovery.DriverMDNS, discovery.DriverNmap}
var defaultDrivers = []string{discovery.DriverARP, discovery.DriverDHCP, discovery.DriverSSDP, discovery.DriverMDNS}

func TestBackoffDuration(t *testing.T) {
	base := time.Second
	if got := backoffDuration(base, 0); got != base {
		t.Fatalf("expected base, got %s", got)
	}
	if got := backoffDuration(base, 2); got != 4*time.Second {
		t.Fatalf("expected 4s, got %s", got)
	}
	if got := backoffDuration(time.Minute, 20); got != 10*time.Minute {
		t.Fatalf("expected cap, got %s", got)
	}
	if got := backoffDuration(0, 0); got != 400*time.Millisecond {
		t.Fatalf("expected fallback base, got %s", got)
	}
}

func TestWorker_PassOptionsPerPreset(t *testing.T) {
	w := New(zerolog.Nop(), &fakePasser{}, Options{MaxRuntime: 30 * time.Second, Drivers: allDrivers, DefaultDrivers: defaultDrivers})

	normal := w.passOptions(Request{})
	if normal.Preset != ScanPresetNormal || normal.Drivers != nil || normal.SkipPrime || normal.SkipEnrich {
		t.Fatalf("unexpected normal options %+v", normal)
	}
	if normal.MaxRuntime != 30*time.Second {
		t.Fatalf("expected configured runtime, got %s", normal.MaxRuntime)
	}

	fast := w.passOptions(Request{Preset: " FAST "})
	if len(fast.Drivers) != 2 || fast.Drivers[0] != discovery.DriverARP || !fast.SkipPrime || !fast.SkipEnrich {
		t.Fatalf("unexpected fast options %+v", fast)
	}
	if fast.MaxRuntime != 15*time.Second {
		t.Fatalf("expected fast runtime cap, got %s", fast.MaxRuntime)
	}

	deep := w.passOptions(Request{Preset: "deep"})
	if len(deep.Drivers) != len(allDrivers) || deep.MaxRuntime != 2*time.Minute {
		t.Fatalf("unexpected deep options %+v", deep)
	}

	if got := w.passOptions(Request{Preset: "banana"}); got.Preset != ScanPresetNormal {
		t.Fatalf("expected unknown preset to fall back to normal, got %q", got.Preset)
	}
}

func TestWorker_EnqueueRunsPass(t *testing.T) {
	done := make(chan inventory.PassOptions, 1)
	p := &fakePasser{passFn: func(ctx context.Context, opts inventory.PassOptions) ([]device.Record, error) {
		done <- opts
		return []device.Record{{IP: "10.0.0.1"}}, nil
	}}
	w := New(zerolog.Nop(), p, Options{Drivers: allDrivers, DefaultDrivers: defaultDrivers})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	req, err := w.Enqueue(Request{Preset: "fast", Tags: []string{"Names"}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if req.Preset != ScanPresetFast || len(req.Tags) != 1 || req.Tags[0] != ScanTagNames {
		t.Fatalf("expected canonical request, got %+v", req)
	}

	select {
	case opts := <-done:
		if opts.Preset != ScanPresetFast || opts.SkipEnrich {
			t.Fatalf("expected names tag to re-enable enrichment, got %+v", opts)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("queued pass never ran")
	}
}

func TestWorker_EnqueueReportsFullQueue(t *testing.T) {
	w := New(zerolog.Nop(), &fakePasser{}, Options{QueueSize: 1})
	if _, err := w.Enqueue(Request{}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if _, err := w.Enqueue(Request{}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestWorker_ScheduledPassesContinueAfterFailure(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	p := &fakePasser{passFn: func(ctx context.Context, opts inventory.PassOptions) ([]device.Record, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, discovery.Fatal(errors.New("no sockets"))
		}
		return nil, nil
	}}
	w := New(zerolog.Nop(), p, Options{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(finished)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected a second scheduled pass after a failure, got %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop on cancellation")
	}
}

func TestWorker_NilServiceReturnsImmediately(t *testing.T) {
	var w *Worker
	w.Run(context.Background())
	New(zerolog.Nop(), nil, Options{}).Run(context.Background())
}
