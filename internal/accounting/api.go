package accounting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"estimatesync/internal"
)

const perPage = 200

type Item struct {
	ID          string      `json:"item_id,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Rate        json.Number `json:"rate,omitempty"`
	Status      string      `json:"status,omitempty"`
}

type Contact struct {
	ID          string `json:"contact_id,omitempty"`
	Name        string `json:"contact_name"`
	ContactType string `json:"contact_type,omitempty"`
	Status      string `json:"status,omitempty"`
}

type estimateLine struct {
	ItemID      string      `json:"item_id,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Rate        json.Number `json:"rate"`
	Quantity    int         `json:"quantity"`
}

type estimatePayload struct {
	CustomerID      string         `json:"customer_id"`
	Date            string         `json:"date"`
	ReferenceNumber string         `json:"reference_number,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	Terms           string         `json:"terms,omitempty"`
	LineItems       []estimateLine `json:"line_items"`
}

// Estimate is the subset of a Zoho estimate the sync reads back.
type Estimate struct {
	ID              string      `json:"estimate_id"`
	Number          string      `json:"estimate_number"`
	CustomerID      string      `json:"customer_id"`
	CustomerName    string      `json:"customer_name"`
	Date            string      `json:"date"`
	ReferenceNumber string      `json:"reference_number"`
	Status          string      `json:"status"`
	Total           json.Number `json:"total"`
}

func (c *Client) ListItems(ctx context.Context) ([]Item, error) {
	var all []Item
	err := c.paginate(ctx, "list_items", "items", func(page []byte) (bool, error) {
		var resp struct {
			Items       []Item      `json:"items"`
			PageContext pageContext `json:"page_context"`
		}
		if err := json.Unmarshal(page, &resp); err != nil {
			return false, err
		}
		all = append(all, resp.Items...)
		return resp.PageContext.HasMorePage, nil
	})
	return all, err
}

func (c *Client) ListContacts(ctx context.Context) ([]Contact, error) {
	var all []Contact
	err := c.paginate(ctx, "list_contacts", "contacts", func(page []byte) (bool, error) {
		var resp struct {
			Contacts    []Contact   `json:"contacts"`
			PageContext pageContext `json:"page_context"`
		}
		if err := json.Unmarshal(page, &resp); err != nil {
			return false, err
		}
		all = append(all, resp.Contacts...)
		return resp.PageContext.HasMorePage, nil
	})
	return all, err
}

// paginate walks page=1.. until the page context reports no more pages.
func (c *Client) paginate(ctx context.Context, op, path string, handle func(page []byte) (bool, error)) error {
	for page := 1; ; page++ {
		var raw json.RawMessage
		req := request{
			op:     op,
			method: http.MethodGet,
			path:   path,
			query:  url.Values{"page": {strconv.Itoa(page)}, "per_page": {strconv.Itoa(perPage)}},
		}
		if err := c.do(ctx, req, &raw); err != nil {
			return err
		}
		more, err := handle(raw)
		if err != nil {
			return &internal.ExternalServiceError{Service: service, Op: op, Err: fmt.Errorf("decode page %d: %w", page, err)}
		}
		if !more {
			return nil
		}
	}
}

func (c *Client) CreateItem(ctx context.Context, item Item) (Item, error) {
	req, err := jsonRequest("create_item", http.MethodPost, "items", item)
	if err != nil {
		return Item{}, err
	}
	var resp struct {
		Item Item `json:"item"`
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return Item{}, err
	}
	return resp.Item, nil
}

func (c *Client) CreateContact(ctx context.Context, contact Contact) (Contact, error) {
	if contact.ContactType == "" {
		contact.ContactType = "customer"
	}
	req, err := jsonRequest("create_contact", http.MethodPost, "contacts", contact)
	if err != nil {
		return Contact{}, err
	}
	var resp struct {
		Contact Contact `json:"contact"`
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return Contact{}, err
	}
	return resp.Contact, nil
}

// CreateEstimate submits an enriched record. Line items that resolved to a
// catalog item are sent with their item_id.
func (c *Client) CreateEstimate(ctx context.Context, rec internal.EnrichedRecord) (internal.EstimateRef, error) {
	payload := estimatePayload{
		CustomerID:      rec.CustomerID,
		Date:            rec.Record.Date,
		ReferenceNumber: rec.Record.ReferenceNumber,
		Notes:           rec.Record.Notes,
		Terms:           rec.Record.Terms,
		LineItems:       make([]estimateLine, 0, len(rec.Record.LineItems)),
	}
	for _, li := range rec.Record.LineItems {
		payload.LineItems = append(payload.LineItems, estimateLine{
			ItemID:      li.ResolvedCatalogID,
			Name:        li.Name,
			Description: li.Description,
			Rate:        json.Number(li.Rate.StringFixed(2)),
			Quantity:    li.Quantity,
		})
	}

	req, err := jsonRequest("create_estimate", http.MethodPost, "estimates", payload)
	if err != nil {
		return internal.EstimateRef{}, err
	}
	var resp struct {
		Estimate Estimate `json:"estimate"`
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return internal.EstimateRef{}, err
	}
	c.logger.Info("estimate created", "estimate_id", resp.Estimate.ID, "estimate_number", resp.Estimate.Number, "line_items", len(payload.LineItems))
	return internal.EstimateRef{ID: resp.Estimate.ID, Number: resp.Estimate.Number}, nil
}

// AttachFile uploads the source document to an existing estimate.
func (c *Client) AttachFile(ctx context.Context, estimateID string, content []byte, filename string) error {
	req, err := multipartRequest("attach_file", "estimates/"+url.PathEscape(estimateID)+"/attachment", "attachment", filename, content)
	if err != nil {
		return err
	}
	return c.do(ctx, req, nil)
}

func (c *Client) GetEstimate(ctx context.Context, estimateID string) (Estimate, error) {
	var resp struct {
		Estimate Estimate `json:"estimate"`
	}
	req := request{op: "get_estimate", method: http.MethodGet, path: "estimates/" + url.PathEscape(estimateID)}
	if err := c.do(ctx, req, &resp); err != nil {
		return Estimate{}, err
	}
	return resp.Estimate, nil
}

func rateOf(n json.Number) *decimal.Decimal {
	if n == "" {
		return nil
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return nil
	}
	return &d
}
