package tracker

import (
	"sort"
	"time"

	"github.com/yegors/birdnest/internal/feed"
	"github.com/yegors/birdnest/internal/geometry"
	"github.com/yegors/birdnest/pkg/logger"
)

// Record is the tracked state of one violating drone
type Record struct {
	Serial          string    `json:"serial"`
	ClosestDistance float64   `json:"closest_distance"` // millimetres
	FirstSeen       time.Time `json:"first_seen"`       // first violating sighting
	LastSeen        time.Time `json:"last_seen"`        // latest sighting, violating or not
}

// Zone is the circular no-fly zone
type Zone struct {
	Centre geometry.Point
	Radius float64
}

// FoldResult summarises what a snapshot did to the tracker
type FoldResult struct {
	Sightings    int
	Violations   int
	NewViolators int
}

// Tracker keeps one record per drone seen violating the zone and not yet expired.
// Not safe for concurrent use; the monitor is its only mutator.
type Tracker struct {
	records map[string]*Record
	logger  *logger.Logger
}

// New creates an empty tracker
func New(logger *logger.Logger) *Tracker {
	return &Tracker{
		records: make(map[string]*Record),
		logger:  logger.Named("tracker"),
	}
}

// Fold applies a snapshot to the tracker. A tracked drone has LastSeen refreshed
// on every sighting, whether or not it is violating. Only violating sightings
// create records or lower ClosestDistance.
func (t *Tracker) Fold(snapshot *feed.Snapshot, zone Zone) FoldResult {
	result := FoldResult{Sightings: len(snapshot.Sightings)}

	for _, s := range snapshot.Sightings {
		distance := geometry.Distance(s.Position, zone.Centre)
		record, tracked := t.records[s.Serial]

		if tracked {
			record.LastSeen = snapshot.Timestamp
		}

		if !geometry.WithinRadius(distance, zone.Radius) {
			continue
		}
		result.Violations++

		if !tracked {
			t.records[s.Serial] = &Record{
				Serial:          s.Serial,
				ClosestDistance: distance,
				FirstSeen:       snapshot.Timestamp,
				LastSeen:        snapshot.Timestamp,
			}
			result.NewViolators++
			t.logger.WithDrone(s.Serial).Info("New violator",
				logger.String("model", s.Model),
				logger.Float64("distance_m", geometry.MillimetresToMetres(distance)),
			)
			continue
		}

		if distance < record.ClosestDistance {
			record.ClosestDistance = distance
		}
	}

	return result
}

// Expire removes every record not seen within window of now and returns the
// removed serials in ascending order. This is the only way records are removed.
func (t *Tracker) Expire(now time.Time, window time.Duration) []string {
	var removed []string
	for serial, record := range t.records {
		if now.Sub(record.LastSeen) >= window {
			delete(t.records, serial)
			removed = append(removed, serial)
		}
	}
	sort.Strings(removed)

	if len(removed) > 0 {
		t.logger.Debug("Expired violators", logger.Strings("serials", removed))
	}
	return removed
}

// Serials returns the tracked serials in ascending lexical order
func (t *Tracker) Serials() []string {
	serials := make([]string, 0, len(t.records))
	for serial := range t.records {
		serials = append(serials, serial)
	}
	sort.Strings(serials)
	return serials
}

// Get returns a copy of the record for serial
func (t *Tracker) Get(serial string) (Record, bool) {
	record, ok := t.records[serial]
	if !ok {
		return Record{}, false
	}
	return *record, true
}

// Records returns copies of all records in ascending serial order
func (t *Tracker) Records() []Record {
	serials := t.Serials()
	records := make([]Record, 0, len(serials))
	for _, serial := range serials {
		records = append(records, *t.records[serial])
	}
	return records
}

// Len returns the number of tracked violators
func (t *Tracker) Len() int {
	return len(t.records)
}
