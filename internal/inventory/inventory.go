// Package inventory owns the device set. A discovery pass runs priming, every
// enabled driver, the merge engine and enrichment; the result is folded into a
// cache that the read views (inventory, summary, filtered listing, topology)
// serve from.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"lanscope/core-go/internal/device"
	"lanscope/core-go/internal/discovery"
	"lanscope/core-go/internal/enrichment"
	"lanscope/core-go/internal/merge"
	"lanscope/core-go/internal/metrics"
	"lanscope/core-go/internal/prime"
)

var ErrNotFound = errors.New("inventory: device not found")

// Primer sweeps address ranges before the neighbor table is read.
type Primer interface {
	Prime(ctx context.Context, ranges []prime.Range) (prime.Result, error)
}

type Enricher interface {
	Enrich(ctx context.Context, recs []device.Record) enrichment.Stats
}

type APScanner interface {
	Scan(ctx context.Context) ([]device.AccessPoint, error)
}

type Options struct {
	// Drivers is every driver the service may run. DefaultDrivers names the
	// subset a plain Discover uses; empty means all of them.
	Drivers        []discovery.Driver
	DefaultDrivers []string

	Primer   Primer
	Ranges   []prime.Range
	Enricher Enricher
	APs      APScanner

	CacheMaxAge        time.Duration
	PassTimeout        time.Duration
	OfflineAfterPasses int
	MaxPageSize        int
	SessionEntries     int

	Metrics *metrics.Metrics
	Now     func() time.Time
}

// PassOptions narrows one discovery pass. The zero value runs the default
// drivers with priming and enrichment.
type PassOptions struct {
	Preset     string
	Drivers    []string
	SkipPrime  bool
	SkipEnrich bool
	MaxRuntime time.Duration
}

// PassInfo describes the most recent completed or failed pass.
type PassInfo struct {
	ID         string           `json:"id"`
	Preset     string           `json:"preset,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	DurationMS int64            `json:"duration_ms"`
	Outcome    string           `json:"outcome"`
	Error      string           `json:"error,omitempty"`
	Drivers    map[string]int   `json:"drivers"`
	Primed     prime.Result     `json:"primed"`
	Enriched   enrichment.Stats `json:"enriched"`
	Devices    int              `json:"devices"`
	Overrun    bool             `json:"overrun,omitempty"`
}

type Status struct {
	Passes   int       `json:"passes"`
	LastScan int64     `json:"last_scan"`
	LastPass *PassInfo `json:"last_pass,omitempty"`
	Session  []Entry   `json:"session"`
}

type Service struct {
	log     zerolog.Logger
	drivers map[string]discovery.Driver
	order   []string
	deflt   []string

	primer   Primer
	ranges   []prime.Range
	enricher Enricher
	aps      APScanner

	maxAge      time.Duration
	passTimeout time.Duration
	offlineN    int
	maxPageSize int
	metrics     *metrics.Metrics
	now         func() time.Time
	session     *Session

	// refresh shares one cache refresh among readers; passMu serializes
	// passes; mu guards the cache.
	refresh  singleflight.Group
	passMu   sync.Mutex
	mu       sync.Mutex
	cache    []device.Record
	missed   []int
	lastScan time.Time
	passes   int
	lastPass *PassInfo
}

func New(log zerolog.Logger, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	maxAge := opts.CacheMaxAge
	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}
	passTimeout := opts.PassTimeout
	if passTimeout <= 0 {
		passTimeout = 30 * time.Second
	}
	offlineN := opts.OfflineAfterPasses
	if offlineN <= 0 {
		offlineN = 3
	}
	maxPage := opts.MaxPageSize
	if maxPage <= 0 {
		maxPage = DefaultMaxPage
	}

	s := &Service{
		log:         log,
		drivers:     make(map[string]discovery.Driver, len(opts.Drivers)),
		primer:      opts.Primer,
		ranges:      opts.Ranges,
		enricher:    opts.Enricher,
		aps:         opts.APs,
		maxAge:      maxAge,
		passTimeout: passTimeout,
		offlineN:    offlineN,
		maxPageSize: maxPage,
		metrics:     opts.Metrics,
		now:         now,
		session:     NewSession(opts.SessionEntries, now),
	}
	for _, d := range opts.Drivers {
		if d == nil {
			continue
		}
		if _, dup := s.drivers[d.Name()]; dup {
			continue
		}
		s.drivers[d.Name()] = d
		s.order = append(s.order, d.Name())
	}
	for _, name := range opts.DefaultDrivers {
		if _, ok := s.drivers[name]; ok {
			s.deflt = append(s.deflt, name)
		}
	}
	if len(s.deflt) == 0 {
		s.deflt = append([]string(nil), s.order...)
	}
	return s
}

// DriverNames returns every registered driver in registration order.
func (s *Service) DriverNames() []string {
	return append([]string(nil), s.order...)
}

func (s *Service) Session() *Session { return s.session }

// Discover runs a fresh pass with the default drivers and the service's pass
// budget, and returns the devices it observed.
func (s *Service) Discover(ctx context.Context) ([]device.Record, error) {
	return s.RunPass(ctx, PassOptions{MaxRuntime: s.passTimeout})
}

// RunPass runs one discovery pass. Driver failures only empty that driver's
// contribution; a fatal driver error aborts the pass, leaves the cache
// untouched and is returned. When MaxRuntime runs out the records gathered so
// far are kept; only cancellation of ctx itself fails the pass.
func (s *Service) RunPass(ctx context.Context, opts PassOptions) ([]device.Record, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()
	return s.runPass(ctx, opts)
}

func (s *Service) runPass(parent context.Context, opts PassOptions) ([]device.Record, error) {
	ctx := parent
	if opts.MaxRuntime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, opts.MaxRuntime)
		defer cancel()
	}

	start := s.now()
	info := &PassInfo{
		ID:        uuid.NewString(),
		Preset:    opts.Preset,
		StartedAt: start,
		Drivers:   make(map[string]int),
	}
	log := s.log.With().Str("pass_id", info.ID).Logger()
	s.session.Append(fmt.Sprintf("pass %s started", info.ID))

	recs, err := s.collect(ctx, log, opts, info)
	if err == nil {
		err = parent.Err()
	}
	if err != nil {
		info.Outcome = "failed"
		info.Error = err.Error()
		info.DurationMS = s.now().Sub(start).Milliseconds()
		s.metrics.ObserveDiscoveryRun(info.Outcome, s.now().Sub(start))
		s.session.Append(fmt.Sprintf("pass %s failed: %v", info.ID, err))
		log.Warn().Err(err).Msg("discovery pass aborted")

		s.mu.Lock()
		s.lastPass = info
		s.mu.Unlock()
		return nil, err
	}

	if ctx.Err() != nil {
		info.Overrun = true
		log.Warn().Dur("max_runtime", opts.MaxRuntime).Msg("pass budget exceeded, keeping gathered records")
	}

	seen := s.fold(recs)

	info.Outcome = "succeeded"
	info.Devices = len(seen)
	info.DurationMS = s.now().Sub(start).Milliseconds()
	s.metrics.ObserveDiscoveryRun(info.Outcome, s.now().Sub(start))
	s.session.Append(fmt.Sprintf("pass %s completed: %d devices", info.ID, len(seen)))

	s.mu.Lock()
	s.lastPass = info
	s.metrics.SetInventory(countByStatus(s.cache))
	s.mu.Unlock()

	log.Info().
		Interface("drivers", info.Drivers).
		Int("devices", info.Devices).
		Int64("duration_ms", info.DurationMS).
		Msg("discovery pass completed")
	return seen, nil
}

func (s *Service) collect(ctx context.Context, log zerolog.Logger, opts PassOptions, info *PassInfo) ([]device.Record, error) {
	if s.primer != nil && !opts.SkipPrime && len(s.ranges) > 0 {
		pctx, cancel := primeContext(ctx)
		res, err := s.primer.Prime(pctx, s.ranges)
		cancel()
		info.Primed = res
		if err != nil && errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		log.Debug().Err(err).Int("attempted", res.Attempted).Int("replied", res.Replied).Msg("priming finished")
	}

	drivers := s.selectDrivers(opts.Drivers)
	results := make([][]device.Record, len(drivers))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range drivers {
		i, d := i, d
		g.Go(func() error {
			recs, err := d.Discover(gctx)
			if err != nil {
				if discovery.IsFatal(err) {
					return fmt.Errorf("driver %s: %w", d.Name(), err)
				}
				s.metrics.IncDriverError(d.Name())
				log.Debug().Err(err).Str("driver", d.Name()).Msg("driver contributed nothing")
				return nil
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []device.Record
	for i, d := range drivers {
		info.Drivers[d.Name()] = len(results[i])
		s.metrics.AddDriverRecords(d.Name(), len(results[i]))
		all = append(all, results[i]...)
	}

	merged := merge.Merge(nil, all)
	if s.enricher != nil && !opts.SkipEnrich {
		info.Enriched = s.enricher.Enrich(ctx, merged)
	}
	return merged, nil
}

// primeContext bounds priming to half of the time left in the pass so the
// drivers always run.
func primeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Until(deadline)/2)
}

func (s *Service) selectDrivers(names []string) []discovery.Driver {
	if len(names) == 0 {
		names = s.deflt
	}
	out := make([]discovery.Driver, 0, len(names))
	picked := make(map[string]bool, len(names))
	for _, name := range names {
		d, ok := s.drivers[name]
		if !ok || picked[name] {
			continue
		}
		picked[name] = true
		out = append(out, d)
	}
	return out
}

// fold refreshes the cache with one pass's records and ages everything the
// pass did not see. It returns copies of the cache entries that were seen.
func (s *Service) fold(recs []device.Record) []device.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	seenIdx := make(map[int]bool, len(recs))
	for _, r := range recs {
		idx := merge.Find(s.cache, r)
		s.cache = merge.Refresh(s.cache, []device.Record{r})
		if idx < 0 {
			idx = len(s.cache) - 1
			s.missed = append(s.missed, 0)
		}
		seenIdx[idx] = true
	}

	for i := range s.cache {
		if seenIdx[i] {
			s.missed[i] = 0
			if s.cache[i].Status != device.StatusOnline {
				s.cache[i].Status = device.StatusOnline
			}
			continue
		}
		s.missed[i]++
		if s.missed[i] >= s.offlineN {
			s.cache[i].Status = device.StatusOffline
		}
	}

	s.passes++
	s.lastScan = s.now()

	out := make([]device.Record, 0, len(seenIdx))
	for i := range s.cache {
		if seenIdx[i] {
			out = append(out, s.cache[i].Clone())
		}
	}
	sortByIP(out)
	return out
}

// ensureFresh runs a pass when the cache is empty or older than the max age.
// Concurrent callers share one refresh, and each stops waiting when its own ctx
// ends. A failed refresh of a populated cache is logged and the stale cache
// served.
func (s *Service) ensureFresh(ctx context.Context) error {
	if fresh, _ := s.freshness(); fresh {
		return nil
	}
	ch := s.refresh.DoChan("refresh", func() (any, error) {
		s.passMu.Lock()
		defer s.passMu.Unlock()
		// A pass may have finished while this one waited for the lock.
		if fresh, _ := s.freshness(); fresh {
			return nil, nil
		}
		return s.runPass(context.WithoutCancel(ctx), PassOptions{MaxRuntime: s.passTimeout})
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err == nil {
			return nil
		}
		if _, populated := s.freshness(); populated {
			s.log.Warn().Err(res.Err).Msg("refresh failed, serving cached inventory")
			return nil
		}
		return res.Err
	}
}

func (s *Service) freshness() (fresh, populated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	populated = s.passes > 0
	return populated && s.now().Sub(s.lastScan) < s.maxAge, populated
}

func (s *Service) snapshot() ([]device.Record, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := device.CloneAll(s.cache)
	sortByIP(out)
	return out, s.lastScan
}

func (s *Service) Inventory(ctx context.Context) (InventoryView, error) {
	if err := s.ensureFresh(ctx); err != nil {
		return InventoryView{}, err
	}
	recs, last := s.snapshot()
	online := 0
	for _, r := range recs {
		if r.Status == device.StatusOnline {
			online++
		}
	}
	return InventoryView{
		Devices:     recs,
		TotalCount:  len(recs),
		OnlineCount: online,
		LastScan:    last.Unix(),
	}, nil
}

func (s *Service) Summary(ctx context.Context) (SummaryView, error) {
	if err := s.ensureFresh(ctx); err != nil {
		return SummaryView{}, err
	}
	recs, _ := s.snapshot()
	return Summarize(recs), nil
}

func (s *Service) Filtered(ctx context.Context, c Criteria) (FilteredView, error) {
	if err := s.ensureFresh(ctx); err != nil {
		return FilteredView{}, err
	}
	recs, _ := s.snapshot()
	return Filter(recs, c, s.maxPageSize), nil
}

func (s *Service) Topology(ctx context.Context) (Topology, error) {
	if err := s.ensureFresh(ctx); err != nil {
		return Topology{}, err
	}
	recs, _ := s.snapshot()
	return BuildTopology(recs), nil
}

// AccessPoints scans for nearby wireless networks. A platform without a
// scanner yields an empty list.
func (s *Service) AccessPoints(ctx context.Context) ([]device.AccessPoint, error) {
	if s.aps == nil {
		return []device.AccessPoint{}, nil
	}
	aps, err := s.aps.Scan(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("access point scan failed")
		return []device.AccessPoint{}, nil
	}
	if aps == nil {
		aps = []device.AccessPoint{}
	}
	return aps, nil
}

// Annotation replaces operator fields. Nil fields are left unchanged.
type Annotation struct {
	Tags  *[]string `json:"tags,omitempty"`
	Notes *string   `json:"notes,omitempty"`
}

// Annotate applies a to the cached device whose MAC or IP equals key.
func (s *Service) Annotate(key string, a Annotation) (device.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.lookup(key)
	if idx < 0 {
		return device.Record{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	r := &s.cache[idx]
	if a.Tags != nil {
		r.Tags = device.NormalizeTags(*a.Tags)
	}
	if a.Notes != nil {
		r.Notes = *a.Notes
	}
	s.session.Append(fmt.Sprintf("annotated %s", r.Key()))
	return r.Clone(), nil
}

func (s *Service) lookup(key string) int {
	if mac := device.NormalizeMAC(key); mac != "" {
		for i := range s.cache {
			if s.cache[i].MAC == mac {
				return i
			}
		}
		return -1
	}
	for i := range s.cache {
		if s.cache[i].IP == key {
			return i
		}
	}
	return -1
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Passes:  s.passes,
		Session: s.session.Entries(),
	}
	if !s.lastScan.IsZero() {
		st.LastScan = s.lastScan.Unix()
	}
	if s.lastPass != nil {
		p := *s.lastPass
		st.LastPass = &p
	}
	return st
}

func countByStatus(recs []device.Record) map[string]int {
	out := map[string]int{
		device.StatusOnline:  0,
		device.StatusOffline: 0,
		device.StatusUnknown: 0,
	}
	for _, r := range recs {
		out[r.Status]++
	}
	return out
}

func sortByIP(recs []device.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return device.CompareIPs(recs[i].IP, recs[j].IP) < 0
	})
}
