package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"estimatesync/internal"
	"estimatesync/internal/catalog"
	"estimatesync/internal/logging"
)

// ItemResolver is the item catalog as the enricher sees it.
type ItemResolver interface {
	ResolveByName(name string) (catalog.Record, bool)
	CreateAndCache(ctx context.Context, rec catalog.Record) (string, error)
}

// CustomerResolver is the customer directory as the enricher sees it.
type CustomerResolver interface {
	ResolveByName(ctx context.Context, name string) (catalog.Record, bool, error)
	ResolveCustomerID(ctx context.Context, name string) (string, error)
	CreateAndCache(ctx context.Context, rec catalog.Record) (string, error)
}

type Enricher struct {
	items           ItemResolver
	customers       CustomerResolver
	createItems     bool
	createCustomers bool
	validate        *validator.Validate
	logger          *slog.Logger
}

type EnricherOption func(*Enricher)

// WithCreateMissingItems creates catalog items for names that do not resolve.
func WithCreateMissingItems() EnricherOption {
	return func(e *Enricher) { e.createItems = true }
}

// WithCreateMissingCustomers creates a contact for an extracted customer
// name that is not in the directory.
func WithCreateMissingCustomers() EnricherOption {
	return func(e *Enricher) { e.createCustomers = true }
}

func WithEnricherLogger(l *slog.Logger) EnricherOption {
	return func(e *Enricher) { e.logger = l }
}

func NewEnricher(items ItemResolver, customers CustomerResolver, opts ...EnricherOption) *Enricher {
	e := &Enricher{items: items, customers: customers, validate: validator.New()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrDefault(e.logger)
	return e
}

// ResolveAndEnrich validates the record, resolves the customer id and maps
// line items onto catalog items. Unresolved items are reported, not fatal;
// an unresolvable customer is.
func (e *Enricher) ResolveAndEnrich(ctx context.Context, rec internal.EstimateRecord) (internal.EnrichedRecord, error) {
	if err := e.validate.Struct(rec); err != nil {
		return internal.EnrichedRecord{}, fmt.Errorf("invalid estimate record: %w", err)
	}

	customerID, err := e.resolveCustomer(ctx, rec.CustomerName)
	if err != nil {
		return internal.EnrichedRecord{}, err
	}

	out := internal.EnrichedRecord{Record: rec, CustomerID: customerID}
	out.Record.LineItems = make([]internal.LineItem, len(rec.LineItems))
	for i, li := range rec.LineItems {
		resolved, ok := e.resolveItem(ctx, li)
		if !ok {
			out.UnresolvedItems = append(out.UnresolvedItems, li.Name)
		}
		out.Record.LineItems[i] = resolved
	}

	e.logger.Debug("estimate enriched",
		"customer", rec.CustomerName,
		"customer_id", customerID,
		"line_items", len(rec.LineItems),
		"unresolved", len(out.UnresolvedItems),
	)
	return out, nil
}

func (e *Enricher) resolveCustomer(ctx context.Context, name string) (string, error) {
	if e.createCustomers && !IsDefaultCustomer(name) {
		rec, ok, err := e.customers.ResolveByName(ctx, name)
		if err != nil {
			return "", err
		}
		if ok {
			return rec.ID, nil
		}
		id, err := e.customers.CreateAndCache(ctx, catalog.Record{Name: name})
		if err != nil {
			return "", err
		}
		e.logger.Info("customer created", "customer", name, "customer_id", id)
		return id, nil
	}

	return e.customers.ResolveCustomerID(ctx, name)
}

// resolveItem fills the catalog id and, for a zero extracted rate, the
// catalog rate.
func (e *Enricher) resolveItem(ctx context.Context, li internal.LineItem) (internal.LineItem, bool) {
	if rec, ok := e.items.ResolveByName(li.Name); ok {
		li.ResolvedCatalogID = rec.ID
		if li.Rate.IsZero() && rec.Rate != nil {
			li.Rate = *rec.Rate
		}
		return li, true
	}
	if !e.createItems {
		return li, false
	}

	rate := li.Rate
	id, err := e.items.CreateAndCache(ctx, catalog.Record{Name: li.Name, Rate: &rate})
	if err != nil {
		e.logger.Warn("create catalog item failed", "item", li.Name, "error", err)
		return li, false
	}
	li.ResolvedCatalogID = id
	return li, true
}
