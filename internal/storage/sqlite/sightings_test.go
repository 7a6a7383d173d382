package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/birdnest/internal/report"
	"github.com/yegors/birdnest/pkg/logger"
)

var t0 = time.Date(2023, 1, 10, 10, 0, 0, 0, time.UTC)

func newStorage(t *testing.T, retention time.Duration) *SightingStorage {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	storage, err := NewSightingStorage(db, retention, logger.NewNop())
	require.NoError(t, err)
	return storage
}

func entry(id string, distance float64, lastSeen time.Time) report.Entry {
	return report.Entry{ID: id, Dist: "x", ClosestDistance: distance, LastSeen: lastSeen}
}

func TestSightingStorage_PublishAndHistory(t *testing.T) {
	storage := newStorage(t, 0)
	ctx := context.Background()

	named := entry("A1", 30000, t0)
	named.Named = true
	named.Name = "Ada Lovelace"
	named.Email = "ada@example.com"

	require.NoError(t, storage.Publish(ctx, &report.Report{GeneratedAt: t0, Entries: []report.Entry{named, entry("B2", 5000, t0)}}))
	// same LastSeen again: ignored
	require.NoError(t, storage.Publish(ctx, &report.Report{GeneratedAt: t0.Add(2 * time.Second), Entries: []report.Entry{named}}))
	// newer sighting of A1
	require.NoError(t, storage.Publish(ctx, &report.Report{GeneratedAt: t0.Add(4 * time.Second), Entries: []report.Entry{entry("A1", 25000, t0.Add(4*time.Second))}}))

	count, err := storage.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	history, err := storage.History(ctx, "A1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 25000.0, history[0].ClosestDistance)
	assert.True(t, history[0].LastSeen.Equal(t0.Add(4*time.Second)))
	assert.False(t, history[0].Named)

	assert.True(t, history[1].Named)
	assert.Equal(t, "Ada Lovelace", history[1].OperatorName)
	assert.Equal(t, "ada@example.com", history[1].Email)
	assert.Empty(t, history[1].Phone)
	assert.True(t, history[1].RecordedAt.Equal(t0))

	limited, err := storage.History(ctx, "A1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := storage.History(ctx, "ZZ", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSightingStorage_Retention(t *testing.T) {
	storage := newStorage(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, storage.Publish(ctx, &report.Report{GeneratedAt: t0, Entries: []report.Entry{entry("OLD", 1, t0)}}))
	require.NoError(t, storage.Publish(ctx, &report.Report{GeneratedAt: t0.Add(2 * time.Hour), Entries: []report.Entry{entry("NEW", 1, t0.Add(2*time.Hour))}}))

	count, err := storage.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	old, err := storage.History(ctx, "OLD", 10)
	require.NoError(t, err)
	assert.Empty(t, old)
}
