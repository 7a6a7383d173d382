package operators

import (
	"context"
	"errors"

	"github.com/yegors/birdnest/pkg/logger"
)

// Cache memoizes operator lookups for the lifetime of the process.
// Failed lookups are cached as Absent and never retried.
// Not safe for concurrent use; the monitor is its only caller.
type Cache struct {
	entries map[string]Entry
	calls   int
	logger  *logger.Logger
}

// NewCache creates an empty cache
func NewCache(logger *logger.Logger) *Cache {
	return &Cache{
		entries: make(map[string]Entry),
		logger:  logger.Named("op-cache"),
	}
}

// Lookup returns the cached entry for serial, calling resolver only on the
// first lookup of that serial
func (c *Cache) Lookup(ctx context.Context, serial string, resolver Resolver) Entry {
	if entry, ok := c.entries[serial]; ok {
		return entry
	}

	c.calls++
	details, err := resolver.Resolve(ctx, serial)

	entry := Entry{Present: true, Details: details}
	switch {
	case errors.Is(err, ErrNotFound):
		c.logger.WithDrone(serial).Debug("Operator not found")
		entry = Absent
	case err != nil:
		c.logger.WithDrone(serial).Warn("Operator lookup failed", logger.Error(err))
		entry = Absent
	case details == nil:
		entry = Absent
	}

	c.entries[serial] = entry
	return entry
}

// Get returns the cached entry without resolving
func (c *Cache) Get(serial string) (Entry, bool) {
	entry, ok := c.entries[serial]
	return entry, ok
}

// Len returns the number of cached serials, present or absent
func (c *Cache) Len() int {
	return len(c.entries)
}

// Calls returns how many times a resolver has been invoked
func (c *Cache) Calls() int {
	return c.calls
}
