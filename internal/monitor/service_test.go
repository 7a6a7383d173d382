package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/birdnest/internal/feed"
	"github.com/yegors/birdnest/internal/geometry"
	"github.com/yegors/birdnest/internal/operators"
	"github.com/yegors/birdnest/internal/publish"
	"github.com/yegors/birdnest/internal/report"
	"github.com/yegors/birdnest/internal/tracker"
	"github.com/yegors/birdnest/pkg/logger"
)

var t0 = time.Date(2023, 1, 10, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeTicker struct {
	ch      chan time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopped = true }

type fetchResult struct {
	snapshot *feed.Snapshot
	err      error
}

// scriptedFetcher returns queued results once each, in order. With the queue
// empty it repeats the last result handed out.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	last    *fetchResult
	calls   int
}

func (f *scriptedFetcher) push(snapshot *feed.Snapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, fetchResult{snapshot, err})
}

func (f *scriptedFetcher) Fetch(context.Context) (*feed.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		if f.last == nil {
			return nil, &feed.FetchError{Op: "request", Err: errors.New("no script")}
		}
		return f.last.snapshot, f.last.err
	}
	r := f.results[0]
	f.results = f.results[1:]
	f.last = &r
	return r.snapshot, r.err
}

type recordingPublisher struct {
	mu      sync.Mutex
	reports []*report.Report
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, rep *report.Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, rep)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reports)
}

type mapResolver struct {
	mu      sync.Mutex
	known   map[string]*operators.Details
	lookups []string
}

func (r *mapResolver) Resolve(_ context.Context, serial string) (*operators.Details, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, serial)
	if d, ok := r.known[serial]; ok {
		return d, nil
	}
	return nil, &operators.LookupError{Serial: serial, Err: operators.ErrNotFound}
}

func snap(ts time.Time, sightings ...feed.Sighting) *feed.Snapshot {
	return &feed.Snapshot{Timestamp: ts, Sightings: sightings}
}

func at(serial string, distance float64) feed.Sighting {
	return feed.Sighting{Serial: serial, Position: geometry.Point{X: distance}}
}

type harness struct {
	service   *Service
	fetcher   *scriptedFetcher
	publisher *recordingPublisher
	resolver  *mapResolver
	clock     *fakeClock
	ticker    *fakeTicker
}

func newHarness(window time.Duration) *harness {
	h := &harness{
		fetcher:   &scriptedFetcher{},
		publisher: &recordingPublisher{},
		resolver:  &mapResolver{known: map[string]*operators.Details{}},
		clock:     &fakeClock{now: t0},
		ticker:    &fakeTicker{ch: make(chan time.Time)},
	}
	h.service = NewService(
		Config{
			Zone:           tracker.Zone{Centre: geometry.Point{}, Radius: 100},
			PollInterval:   2 * time.Second,
			ClearoutWindow: window,
		},
		h.fetcher,
		h.resolver,
		report.NewBuilder(report.Config{Precision: 1, Divisor: 1, TimeLayout: "15:04:05 MST"}, logger.NewNop()),
		h.publisher,
		logger.NewNop(),
		WithClock(h.clock),
		WithTicker(func(time.Duration) Ticker { return h.ticker }),
	)
	return h
}

func (h *harness) cycle(t *testing.T, now time.Time, snapshot *feed.Snapshot) *CycleResult {
	t.Helper()
	h.clock.Set(now)
	h.fetcher.push(snapshot, nil)
	result, err := h.service.RunCycle(context.Background())
	require.NoError(t, err)
	return result
}

func TestRunCycle_ClosestApproachScenario(t *testing.T) {
	h := newHarness(10 * time.Minute)

	first := h.cycle(t, t0, snap(t0, at("A1", 50)))
	assert.Equal(t, t0, first.SnapshotTime)
	assert.Equal(t, 1, first.Fold.NewViolators)

	second := h.cycle(t, t0.Add(time.Second), snap(t0.Add(time.Second), at("A1", 30)))
	assert.Equal(t, t0.Add(time.Second), second.SnapshotTime)
	assert.Equal(t, 1, second.Fold.Violations)

	result := h.cycle(t, t0.Add(2*time.Second), snap(t0.Add(2*time.Second), at("A1", 150)))
	assert.Equal(t, t0.Add(2*time.Second), result.SnapshotTime)
	assert.Equal(t, 0, result.Fold.Violations)

	record, ok := h.service.tracker.Get("A1")
	require.True(t, ok)
	assert.Equal(t, 30.0, record.ClosestDistance)
	assert.Equal(t, t0.Add(2*time.Second), record.LastSeen)

	require.Len(t, result.Report.Entries, 1)
	assert.Equal(t, "30.0", result.Report.Entries[0].Dist)
	assert.Equal(t, "10:00:02 UTC", result.Report.Entries[0].Seen)
	assert.Equal(t, 3, h.publisher.count())
	assert.Equal(t, []string{"A1"}, h.resolver.lookups, "directory called once")
}

func TestRunCycle_ExpiryScenario(t *testing.T) {
	h := newHarness(600 * time.Second)

	h.cycle(t, t0, snap(t0, at("B2", 10)))

	result := h.cycle(t, t0.Add(599*time.Second), snap(t0.Add(599*time.Second)))
	assert.Equal(t, 0, result.Fold.Sightings, "B2 is not in the feed any more")
	assert.Empty(t, result.Expired)
	require.Len(t, result.Report.Entries, 1)
	assert.Equal(t, "B2", result.Report.Entries[0].ID)

	record, ok := h.service.tracker.Get("B2")
	require.True(t, ok)
	assert.Equal(t, t0, record.LastSeen)

	result = h.cycle(t, t0.Add(601*time.Second), snap(t0.Add(601*time.Second)))
	assert.Equal(t, 0, result.Fold.Sightings)
	assert.Equal(t, []string{"B2"}, result.Expired)
	assert.Empty(t, result.Report.Entries)
	assert.Equal(t, 0, result.Violators)
}

func TestRunCycle_UnknownOperator(t *testing.T) {
	h := newHarness(10 * time.Minute)
	h.resolver.known["D4"] = &operators.Details{}

	result := h.cycle(t, t0, snap(t0, at("C3", 10), at("D4", 20)))
	require.Len(t, result.Report.Entries, 2)

	byID := map[string]report.Entry{}
	for _, e := range result.Report.Entries {
		byID[e.ID] = e
	}
	assert.False(t, byID["C3"].Named)
	assert.Empty(t, byID["C3"].Name)
	assert.Empty(t, byID["C3"].Phone)
	assert.Empty(t, byID["C3"].Email)

	assert.True(t, byID["D4"].Named)
	assert.Equal(t, "N/A N/A", byID["D4"].Name)

	// absence is cached too
	h.cycle(t, t0.Add(time.Second), snap(t0.Add(time.Second), at("C3", 10)))
	assert.Equal(t, []string{"C3", "D4"}, h.resolver.lookups)
}

func TestRunCycle_FetchFailureLeavesStateAlone(t *testing.T) {
	h := newHarness(10 * time.Minute)
	h.cycle(t, t0, snap(t0, at("A1", 10)))

	h.clock.Set(t0.Add(time.Hour))
	h.fetcher.push(nil, &feed.FetchError{Op: "status", Err: feed.ErrUnexpectedStatus})
	_, err := h.service.RunCycle(context.Background())

	var fetchErr *feed.FetchError
	require.True(t, errors.As(err, &fetchErr))

	// no expiry ran and nothing was republished
	assert.Equal(t, 1, h.service.tracker.Len())
	assert.Equal(t, 1, h.publisher.count())

	status := h.service.Status()
	assert.Equal(t, 2, status.Cycles)
	assert.Equal(t, 1, status.FailedCycles)
	assert.NotEmpty(t, status.LastError)
	assert.Equal(t, t0, status.LastSuccessAt)
}

func TestScriptedFetcher_OneResultPerCall(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(snap(t0), nil)
	f.push(snap(t0.Add(time.Second)), nil)

	first, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, t0, first.Timestamp)

	second, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Second), second.Timestamp)

	// queue drained: last result repeats
	third, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Second), third.Timestamp)
}

func TestRunCycle_NilSnapshot(t *testing.T) {
	h := newHarness(10 * time.Minute)
	h.fetcher.push(nil, nil)

	_, err := h.service.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.Equal(t, 0, h.publisher.count())
}

func TestRunCycle_PublishFailureKeepsState(t *testing.T) {
	h := newHarness(10 * time.Minute)
	h.publisher.err = &publish.PublishError{Sink: "birdnest.json", Err: errors.New("disk full")}

	h.clock.Set(t0)
	h.fetcher.push(snap(t0, at("A1", 10)), nil)
	result, err := h.service.RunCycle(context.Background())

	var pubErr *publish.PublishError
	require.True(t, errors.As(err, &pubErr))
	require.NotNil(t, result.Report)
	assert.Equal(t, 1, h.service.tracker.Len())

	h.publisher.err = nil
	result = h.cycle(t, t0.Add(time.Second), snap(t0.Add(time.Second)))
	assert.Len(t, result.Report.Entries, 1)
	assert.Empty(t, h.service.Status().LastError)
}

func TestRun_CyclePerTick(t *testing.T) {
	h := newHarness(10 * time.Minute)
	h.fetcher.push(snap(t0, at("A1", 10)), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.service.Run(ctx) }()

	// unbuffered: each send completes only once the previous cycle has finished
	h.ticker.ch <- t0.Add(2 * time.Second)
	h.ticker.ch <- t0.Add(4 * time.Second)

	require.Eventually(t, func() bool { return h.service.Status().Cycles == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, h.publisher.count())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	assert.True(t, h.ticker.stopped)
	assert.Equal(t, StateIdle, h.service.State())
}

func TestRun_SurvivesFailures(t *testing.T) {
	h := newHarness(10 * time.Minute)
	h.fetcher.push(nil, &feed.FetchError{Op: "decode", Err: feed.ErrMalformed})
	h.fetcher.push(snap(t0, at("A1", 10)), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.service.Run(ctx) }()

	h.ticker.ch <- t0
	require.Eventually(t, func() bool { return h.service.Status().Cycles == 2 }, time.Second, 5*time.Millisecond)

	status := h.service.Status()
	assert.Equal(t, 1, status.FailedCycles)
	assert.Equal(t, 1, status.Violators)
	assert.Equal(t, 1, h.publisher.count())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "processing", StateProcessing.String())
}
