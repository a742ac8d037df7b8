package catalog

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Refresher is a cache that can be populated from upstream.
type Refresher interface {
	Name() string
	Refresh(ctx context.Context) error
}

// Metadata stores refresh stamps; storage.DB satisfies it.
type Metadata interface {
	SetMetadata(key, value string) error
}

// Warm refreshes caches concurrently and stamps each successful refresh in
// meta, which may be nil.
func Warm(ctx context.Context, meta Metadata, caches ...Refresher) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range caches {
		g.Go(func() error {
			if err := c.Refresh(ctx); err != nil {
				return err
			}
			if meta == nil {
				return nil
			}
			return meta.SetMetadata("cache."+c.Name()+".last_refresh", time.Now().UTC().Format(time.RFC3339))
		})
	}
	return g.Wait()
}
