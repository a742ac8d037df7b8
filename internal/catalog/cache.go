// Package catalog keeps in-memory snapshots of the accounting system's item
// catalog and customer directory for name resolution.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"estimatesync/internal/logging"
	"estimatesync/internal/metrics"
)

const DefaultStaleAfter = time.Hour

// Source fetches the full record set from upstream.
type Source interface {
	FetchAll(ctx context.Context) ([]Record, error)
}

// Creator creates a record upstream and returns it with its assigned id.
type Creator interface {
	Create(ctx context.Context, rec Record) (Record, error)
}

var errNoCreator = errors.New("cache has no creator")

type snapshot struct {
	index       *Index
	refreshedAt time.Time
}

// Cache publishes immutable index snapshots with an atomic pointer swap.
// Readers never lock; refreshes and inserts are serialized.
type Cache struct {
	name       string
	source     Source
	creator    Creator
	staleAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger
	metrics    *metrics.Recorder

	current atomic.Pointer[snapshot]
	writeMu sync.Mutex
}

type Option func(*Cache)

func WithStaleAfter(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.staleAfter = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Cache) { c.metrics = r }
}

func WithCreator(cr Creator) Option {
	return func(c *Cache) { c.creator = cr }
}

func NewCache(name string, source Source, opts ...Option) *Cache {
	c := &Cache{
		name:       name,
		source:     source,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDefault(c.logger).With("cache", name)
	c.current.Store(&snapshot{index: BuildIndex(nil)})
	return c
}

func (c *Cache) Name() string { return c.name }

// Refresh replaces the snapshot with the upstream record set.
func (c *Cache) Refresh(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Cache) refreshLocked(ctx context.Context) error {
	records, err := c.source.FetchAll(ctx)
	if err != nil {
		c.metrics.CacheRefreshed(c.name, 0, err)
		return fmt.Errorf("refresh %s cache: %w", c.name, err)
	}
	idx := BuildIndex(records)
	c.current.Store(&snapshot{index: idx, refreshedAt: c.now()})
	c.metrics.CacheRefreshed(c.name, idx.Len(), nil)
	c.logger.Info("cache refreshed", "records", len(records), "names", idx.Len())
	return nil
}

// refreshIfStale refreshes at most once for any number of concurrent
// callers that observed the same stale snapshot.
func (c *Cache) refreshIfStale(ctx context.Context) error {
	if c.Usable() {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.Usable() {
		return nil
	}
	return c.refreshLocked(ctx)
}

// Usable reports whether the last refresh is younger than the staleness
// threshold.
func (c *Cache) Usable() bool {
	snap := c.current.Load()
	if snap.refreshedAt.IsZero() {
		return false
	}
	return c.now().Sub(snap.refreshedAt) < c.staleAfter
}

func (c *Cache) LastRefreshed() time.Time {
	return c.current.Load().refreshedAt
}

func (c *Cache) Len() int {
	return c.current.Load().index.Len()
}

// ResolveByName never refreshes: a stale or empty cache resolves nothing.
func (c *Cache) ResolveByName(name string) (Record, bool) {
	if !c.Usable() {
		return Record{}, false
	}
	return c.current.Load().index.Lookup(name)
}

func (c *Cache) ByID(id string) (Record, bool) {
	return c.current.Load().index.ByID(id)
}

// CreateAndCache creates rec upstream and inserts the result into the
// current snapshot without touching its refresh time.
func (c *Cache) CreateAndCache(ctx context.Context, rec Record) (string, error) {
	if c.creator == nil {
		return "", errNoCreator
	}
	created, err := c.creator.Create(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("create %s %q: %w", c.name, rec.Name, err)
	}
	if created.Name == "" {
		created.Name = rec.Name
	}

	c.writeMu.Lock()
	snap := c.current.Load()
	c.current.Store(&snapshot{index: snap.index.With(created), refreshedAt: snap.refreshedAt})
	c.writeMu.Unlock()

	c.logger.Info("cache record created", "id", created.ID, "name", created.Name)
	return created.ID, nil
}
