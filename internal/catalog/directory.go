package catalog

import (
	"context"
	"fmt"

	"estimatesync/internal"
)

const (
	ItemsCache     = "items"
	CustomersCache = "customers"
)

// ItemCatalog resolves line-item names. It never refreshes on lookup.
type ItemCatalog struct {
	*Cache
}

func NewItemCatalog(source Source, opts ...Option) *ItemCatalog {
	return &ItemCatalog{Cache: NewCache(ItemsCache, source, opts...)}
}

// CustomerDirectory resolves customer names, refreshing once when stale.
type CustomerDirectory struct {
	cache     *Cache
	defaultID string
}

func NewCustomerDirectory(source Source, defaultID string, opts ...Option) *CustomerDirectory {
	return &CustomerDirectory{cache: NewCache(CustomersCache, source, opts...), defaultID: defaultID}
}

func (d *CustomerDirectory) Name() string                      { return d.cache.Name() }
func (d *CustomerDirectory) Refresh(ctx context.Context) error { return d.cache.Refresh(ctx) }
func (d *CustomerDirectory) Len() int                          { return d.cache.Len() }
func (d *CustomerDirectory) Usable() bool                      { return d.cache.Usable() }

func (d *CustomerDirectory) CreateAndCache(ctx context.Context, rec Record) (string, error) {
	return d.cache.CreateAndCache(ctx, rec)
}

// ResolveByName refreshes a stale directory before resolving.
func (d *CustomerDirectory) ResolveByName(ctx context.Context, name string) (Record, bool, error) {
	if err := d.cache.refreshIfStale(ctx); err != nil {
		return Record{}, false, err
	}
	rec, ok := d.cache.ResolveByName(name)
	return rec, ok, nil
}

// ResolveCustomerID returns the matching customer's id, or the configured
// default customer id. With neither it fails with ErrUnresolvableCustomer.
func (d *CustomerDirectory) ResolveCustomerID(ctx context.Context, name string) (string, error) {
	rec, ok, err := d.ResolveByName(ctx, name)
	if ok {
		return rec.ID, nil
	}
	if d.defaultID != "" {
		if err != nil {
			d.cache.logger.Warn("directory refresh failed, using default customer", "error", err)
		}
		return d.defaultID, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", internal.ErrUnresolvableCustomer, name, err)
	}
	return "", fmt.Errorf("%w: %q", internal.ErrUnresolvableCustomer, name)
}
