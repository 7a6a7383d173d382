package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yegors/birdnest/internal/feed"
	"github.com/yegors/birdnest/internal/operators"
	"github.com/yegors/birdnest/internal/publish"
	"github.com/yegors/birdnest/internal/report"
	"github.com/yegors/birdnest/internal/tracker"
	"github.com/yegors/birdnest/pkg/logger"
)

// ErrNoSnapshot is returned when the fetcher succeeds without a snapshot
var ErrNoSnapshot = errors.New("fetcher returned no snapshot")

// State is the orchestrator state
type State int32

const (
	StateIdle State = iota
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// Fetcher retrieves one snapshot from the sensor feed
type Fetcher interface {
	Fetch(ctx context.Context) (*feed.Snapshot, error)
}

// Config holds the monitoring parameters
type Config struct {
	Zone           tracker.Zone
	PollInterval   time.Duration
	ClearoutWindow time.Duration
}

// CycleResult describes a completed cycle
type CycleResult struct {
	ID           string
	SnapshotTime time.Time
	Fold         tracker.FoldResult
	Expired      []string
	Violators    int
	CacheSize    int
	Report       *report.Report
	Duration     time.Duration
}

// Status is a point-in-time view of the service for health checks
type Status struct {
	State          string    `json:"state"`
	Cycles         int       `json:"cycles"`
	FailedCycles   int       `json:"failed_cycles"`
	LastCycleAt    time.Time `json:"last_cycle_at,omitempty"`
	LastSuccessAt  time.Time `json:"last_success_at,omitempty"`
	LastSnapshotAt time.Time `json:"last_snapshot_at,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	Violators      int       `json:"violators"`
	CacheSize      int       `json:"cache_size"`
	DirectoryCalls int       `json:"directory_calls"`
}

// Service runs the fetch, fold, expire, build, publish cycle. It owns the
// tracker and operator cache; cycles never overlap.
type Service struct {
	config    Config
	fetcher   Fetcher
	resolver  operators.Resolver
	builder   *report.Builder
	publisher publish.Publisher

	tracker *tracker.Tracker
	cache   *operators.Cache

	clock     Clock
	newTicker TickerFactory

	state  atomic.Int32
	mu     sync.RWMutex
	status Status

	logger *logger.Logger
}

// Option customises a Service
type Option func(*Service)

// WithClock replaces the wall clock
func WithClock(clock Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithTicker replaces the ticker factory
func WithTicker(factory TickerFactory) Option {
	return func(s *Service) { s.newTicker = factory }
}

// NewService creates a new monitoring service with empty state
func NewService(
	config Config,
	fetcher Fetcher,
	resolver operators.Resolver,
	builder *report.Builder,
	publisher publish.Publisher,
	logger *logger.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		config:    config,
		fetcher:   fetcher,
		resolver:  resolver,
		builder:   builder,
		publisher: publisher,
		tracker:   tracker.New(logger),
		cache:     operators.NewCache(logger),
		clock:     SystemClock,
		newTicker: NewSystemTicker,
		logger:    logger.Named("monitor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes a cycle immediately and then once per tick until ctx is done.
// Cycle errors are logged; the next tick is the retry.
func (s *Service) Run(ctx context.Context) error {
	ticker := s.newTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.logger.Info("Monitor started",
		logger.Float64("centre_x", s.config.Zone.Centre.X),
		logger.Float64("centre_y", s.config.Zone.Centre.Y),
		logger.Float64("radius", s.config.Zone.Radius),
		logger.Duration("poll_interval", s.config.PollInterval),
		logger.Duration("clearout_window", s.config.ClearoutWindow),
	)

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Monitor stopped")
			return ctx.Err()
		case <-ticker.C():
			s.runOnce(ctx)
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	result, err := s.RunCycle(ctx)

	var fetchErr *feed.FetchError
	switch {
	case err == nil:
	case ctx.Err() != nil:
		// shutting down
	case errors.As(err, &fetchErr), errors.Is(err, ErrNoSnapshot):
		s.logger.Warn("Skipping cycle, no usable snapshot", logger.Error(err))
	default:
		for _, e := range publish.Errors(err) {
			s.logger.Error("Failed to publish report", logger.String("cycle_id", result.ID), logger.Error(e))
		}
	}
}

// RunCycle performs one full cycle. On fetch failure nothing is changed or
// published. On publish failure the state is kept and the result is still returned.
func (s *Service) RunCycle(ctx context.Context) (*CycleResult, error) {
	s.state.Store(int32(StateProcessing))
	defer s.state.Store(int32(StateIdle))

	start := s.clock.Now()
	result := &CycleResult{ID: uuid.NewString()}
	log := s.logger.WithCycle(result.ID)

	snapshot, err := s.fetcher.Fetch(ctx)
	if err == nil && snapshot == nil {
		err = ErrNoSnapshot
	}
	if err != nil {
		s.recordCycle(start, nil, err)
		return result, err
	}

	result.SnapshotTime = snapshot.Timestamp
	result.Fold = s.tracker.Fold(snapshot, s.config.Zone)

	now := s.clock.Now()
	result.Expired = s.tracker.Expire(now, s.config.ClearoutWindow)

	rep := s.builder.Build(ctx, s.tracker.Records(), s.cache, s.resolver, now)
	result.Report = rep
	result.Violators = s.tracker.Len()
	result.CacheSize = s.cache.Len()

	err = s.publisher.Publish(ctx, rep)
	result.Duration = s.clock.Now().Sub(start)
	s.recordCycle(start, snapshot, err)

	log.Info("Cycle complete",
		logger.String("device_id", snapshot.DeviceID),
		logger.Time("snapshot_time", snapshot.Timestamp),
		logger.Int("drones", result.Fold.Sightings),
		logger.Int("violations", result.Fold.Violations),
		logger.Int("new_violators", result.Fold.NewViolators),
		logger.Int("expired", len(result.Expired)),
		logger.Int("violators", result.Violators),
		logger.Int("named", rep.Named()),
		logger.Int("cache_size", result.CacheSize),
		logger.Duration("duration", result.Duration),
	)

	return result, err
}

func (s *Service) recordCycle(start time.Time, snapshot *feed.Snapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Cycles++
	s.status.LastCycleAt = start
	s.status.Violators = s.tracker.Len()
	s.status.CacheSize = s.cache.Len()
	s.status.DirectoryCalls = s.cache.Calls()
	if snapshot != nil {
		s.status.LastSnapshotAt = snapshot.Timestamp
	}
	if err != nil {
		s.status.FailedCycles++
		s.status.LastError = err.Error()
		return
	}
	s.status.LastError = ""
	s.status.LastSuccessAt = start
}

// State returns the current orchestrator state
func (s *Service) State() State {
	return State(s.state.Load())
}

// Status returns a copy of the service status. Safe to call from any goroutine.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := s.status
	status.State = s.State().String()
	return status
}
