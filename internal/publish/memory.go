package publish

import (
	"context"
	"sync"
	"time"

	"github.com/yegors/birdnest/internal/report"
)

// Memory keeps the latest published report for readers on other goroutines
type Memory struct {
	mu          sync.RWMutex
	report      *report.Report
	publishedAt time.Time
	now         func() time.Time
}

// NewMemory creates an empty in-memory sink
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// Publish implements Publisher
func (m *Memory) Publish(_ context.Context, rep *report.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.report = rep
	m.publishedAt = m.now()
	return nil
}

// Latest returns the last published report, or nil before the first publish.
// Reports are never mutated after publishing, so sharing the pointer is safe.
func (m *Memory) Latest() (*report.Report, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.report, m.publishedAt
}
