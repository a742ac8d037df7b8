package accounting

import (
	"context"
	"encoding/json"

	"estimatesync/internal/catalog"
)

// ItemSource serves the item catalog cache from /items.
type ItemSource struct {
	Client *Client
}

func (s ItemSource) FetchAll(ctx context.Context) ([]catalog.Record, error) {
	items, err := s.Client.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Record, 0, len(items))
	for _, it := range items {
		if it.Status != "" && it.Status != "active" {
			continue
		}
		out = append(out, catalog.Record{ID: it.ID, Name: it.Name, Rate: rateOf(it.Rate)})
	}
	return out, nil
}

func (s ItemSource) Create(ctx context.Context, rec catalog.Record) (catalog.Record, error) {
	item := Item{Name: rec.Name}
	if rec.Rate != nil {
		item.Rate = json.Number(rec.Rate.StringFixed(2))
	}
	created, err := s.Client.CreateItem(ctx, item)
	if err != nil {
		return catalog.Record{}, err
	}
	return catalog.Record{ID: created.ID, Name: created.Name, Rate: rateOf(created.Rate)}, nil
}

// ContactSource serves the customer directory cache from /contacts.
type ContactSource struct {
	Client *Client
}

func (s ContactSource) FetchAll(ctx context.Context) ([]catalog.Record, error) {
	contacts, err := s.Client.ListContacts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Record, 0, len(contacts))
	for _, ct := range contacts {
		if ct.ContactType != "" && ct.ContactType != "customer" {
			continue
		}
		out = append(out, catalog.Record{ID: ct.ID, Name: ct.Name})
	}
	return out, nil
}

func (s ContactSource) Create(ctx context.Context, rec catalog.Record) (catalog.Record, error) {
	created, err := s.Client.CreateContact(ctx, Contact{Name: rec.Name})
	if err != nil {
		return catalog.Record{}, err
	}
	return catalog.Record{ID: created.ID, Name: created.Name}, nil
}
