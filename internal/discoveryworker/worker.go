// Package discoveryworker runs discovery passes in the background: on a fixed
// interval and whenever a run is queued through Enqueue. Consecutive failures
// stretch the interval with a capped backoff.
package discoveryworker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"lanscope/core-go/internal/device"
	"lanscope/core-go/internal/inventory"
)

// ErrQueueFull is returned by Enqueue when a run is already waiting.
var ErrQueueFull = errors.New("discovery run queue is full")

// Passer runs one discovery pass. *inventory.Service satisfies this.
type Passer interface {
	RunPass(ctx context.Context, opts inventory.PassOptions) ([]device.Record, error)
}

// Request asks for one pass with a preset and optional scan tags.
type Request struct {
	Preset string   `json:"preset"`
	Tags   []string `json:"tags"`
}

type Worker struct {
	log        zerolog.Logger
	svc        Passer
	interval   time.Duration
	maxRuntime time.Duration
	preset     string
	tags       []string
	drivers    []string
	defaults   []string
	queue      chan Request
}

type Options struct {
	// Interval between scheduled passes; zero runs queued passes only.
	Interval   time.Duration
	MaxRuntime time.Duration
	Preset     string
	Tags       []string
	// Drivers lists every driver the service can run and DefaultDrivers the
	// subset a normal pass uses; empty defaults mean all of Drivers.
	Drivers        []string
	DefaultDrivers []string
	QueueSize      int
}

func New(log zerolog.Logger, svc Passer, opts Options) *Worker {
	interval := opts.Interval
	if interval < 0 {
		interval = 0
	}
	mr := opts.MaxRuntime
	if mr <= 0 {
		mr = 30 * time.Second
	}
	qs := opts.QueueSize
	if qs <= 0 {
		qs = 1
	}
	defaults := opts.DefaultDrivers
	if len(defaults) == 0 {
		defaults = opts.Drivers
	}
	defaults = intersect(defaults, opts.Drivers)
	return &Worker{
		log:        log,
		svc:        svc,
		interval:   interval,
		maxRuntime: mr,
		preset:     canonicalizeScanPreset(opts.Preset),
		tags:       canonicalizeScanTags(opts.Tags),
		drivers:    append([]string(nil), opts.Drivers...),
		defaults:   defaults,
		queue:      make(chan Request, qs),
	}
}

// Enqueue queues an on-demand pass without blocking.
func (w *Worker) Enqueue(req Request) (Request, error) {
	req.Preset = canonicalizeScanPreset(req.Preset)
	req.Tags = canonicalizeScanTags(req.Tags)
	select {
	case w.queue <- req:
		return req, nil
	default:
		return req, ErrQueueFull
	}
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.svc == nil {
		return
	}

	var timer *time.Timer
	var tick <-chan time.Time
	if w.interval > 0 {
		timer = time.NewTimer(w.interval)
		defer timer.Stop()
		tick = timer.C
	}

	var consecutiveFailures int
	for {
		var req Request
		select {
		case <-ctx.Done():
			return
		case <-tick:
			req = Request{Preset: w.preset, Tags: w.tags}
		case req = <-w.queue:
		}

		if err := w.runOnce(ctx, req); err != nil {
			consecutiveFailures++
		} else {
			consecutiveFailures = 0
		}

		if timer != nil {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(backoffDuration(w.interval, consecutiveFailures))
		}
	}
}

func backoffDuration(base time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = 400 * time.Millisecond
	}
	if failures <= 0 {
		return base
	}

	// Exponential-ish backoff: base * 2^failures, capped.
	if failures > 6 {
		failures = 6
	}
	d := base * time.Duration(1<<failures)
	if d > 10*time.Minute {
		return 10 * time.Minute
	}
	return d
}

func (w *Worker) runOnce(ctx context.Context, req Request) error {
	opts := w.passOptions(req)

	w.log.Info().Str("preset", opts.Preset).Strs("tags", req.Tags).Msg("discovery run started")
	recs, err := w.svc.RunPass(ctx, opts)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Str("preset", opts.Preset).Msg("discovery run failed")
		}
		return err
	}
	w.log.Info().Str("preset", opts.Preset).Int("devices", len(recs)).Msg("discovery run completed")
	return nil
}

func (w *Worker) passOptions(req Request) inventory.PassOptions {
	preset := canonicalizeScanPreset(req.Preset)
	opts := inventory.PassOptions{Preset: preset, MaxRuntime: w.maxRuntime}
	applyScanPreset(&opts, preset, w.drivers)
	applyScanTags(&opts, canonicalizeScanTags(req.Tags), w.drivers, w.defaults)
	return opts
}
