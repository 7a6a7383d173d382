package report

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/yegors/birdnest/internal/operators"
	"github.com/yegors/birdnest/internal/tracker"
	"github.com/yegors/birdnest/pkg/logger"
)

// Config controls how distances and times are rendered
type Config struct {
	Precision  int            // digits after the decimal point
	Divisor    float64        // source units per display unit
	TimeLayout string         // layout for Entry.Seen
	Location   *time.Location // zone for Entry.Seen
}

// DefaultConfig renders metres to 10 cm and times as "15:04:05 UTC"
func DefaultConfig() Config {
	return Config{
		Precision:  1,
		Divisor:    1000,
		TimeLayout: "15:04:05 MST",
		Location:   time.UTC,
	}
}

// Builder projects tracker and cache state into a Report
type Builder struct {
	config Config
	logger *logger.Logger
}

// NewBuilder creates a new report builder
func NewBuilder(config Config, logger *logger.Logger) *Builder {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Divisor == 0 {
		config.Divisor = 1
	}
	return &Builder{
		config: config,
		logger: logger.Named("report"),
	}
}

// Build resolves operators for records in ascending serial order, so cache
// population is deterministic, and returns the entries ordered by LastSeen
// descending.
func (b *Builder) Build(ctx context.Context, records []tracker.Record, cache *operators.Cache, resolver operators.Resolver, now time.Time) *Report {
	ordered := make([]tracker.Record, len(records))
	copy(ordered, records)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Serial < ordered[j].Serial })

	entries := make([]Entry, 0, len(ordered))
	for _, record := range ordered {
		operator := cache.Lookup(ctx, record.Serial, resolver)
		entries = append(entries, b.entry(record, operator))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})

	b.logger.Debug("Built report", logger.Int("entries", len(entries)))

	return &Report{GeneratedAt: now, Entries: entries}
}

func (b *Builder) entry(record tracker.Record, operator operators.Entry) Entry {
	e := Entry{
		ID:              record.Serial,
		Dist:            b.FormatDistance(record.ClosestDistance),
		Seen:            record.LastSeen.In(b.config.Location).Format(b.config.TimeLayout),
		ClosestDistance: record.ClosestDistance,
		LastSeen:        record.LastSeen,
	}

	if !operator.Present || operator.Details == nil {
		return e
	}

	d := operator.Details
	e.Named = true
	e.Name = valueOr(d.FirstName, NamePlaceholder) + " " + valueOr(d.LastName, NamePlaceholder)
	e.Phone = valueOr(d.Phone, ContactPlaceholder)
	e.Email = valueOr(d.Email, ContactPlaceholder)
	return e
}

// FormatDistance converts a source-unit distance to display units at the configured precision
func (b *Builder) FormatDistance(distance float64) string {
	return strconv.FormatFloat(distance/b.config.Divisor, 'f', b.config.Precision, 64)
}

func valueOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
