package internal

import (
	"time"

	"github.com/shopspring/decimal"
)

type DocumentKind string

const (
	KindPDF     DocumentKind = "pdf"
	KindXLSX    DocumentKind = "xlsx"
	KindHTML    DocumentKind = "html"
	KindImage   DocumentKind = "image"
	KindText    DocumentKind = "text"
	KindUnknown DocumentKind = "unknown"
)

// Raw candidate field keys shared by the layout, OCR and text extractors.
const (
	FieldCustomerName    = "customer_name"
	FieldDate            = "date"
	FieldReferenceNumber = "reference_number"
	FieldNotes           = "notes"
	FieldTerms           = "terms"
	FieldPhone           = "phone"
	FieldEmail           = "email"
	FieldTotal           = "total"
)

// RawLineItem is a line item as a strategy saw it, before coercion.
type RawLineItem struct {
	Name        string
	Description string
	Rate        string
	Quantity    string
}

// RawCandidate is the untyped output of a single extraction strategy.
type RawCandidate struct {
	Fields    map[string]string
	LineItems []RawLineItem
}

func (c RawCandidate) Field(key string) string {
	if c.Fields == nil {
		return ""
	}
	return c.Fields[key]
}

func (c RawCandidate) Empty() bool {
	for _, v := range c.Fields {
		if v != "" {
			return false
		}
	}
	return len(c.LineItems) == 0
}

type LineItem struct {
	Name              string          `json:"name" validate:"required"`
	Description       string          `json:"description" validate:"required"`
	Rate              decimal.Decimal `json:"rate"`
	Quantity          int             `json:"quantity" validate:"min=1"`
	ResolvedCatalogID string          `json:"resolvedCatalogId,omitempty"`
}

type EstimateRecord struct {
	CustomerName    string     `json:"customerName" validate:"required"`
	Date            string     `json:"date" validate:"required,datetime=2006-01-02"`
	ReferenceNumber string     `json:"referenceNumber" validate:"required"`
	Notes           string     `json:"notes" validate:"required"`
	Terms           string     `json:"terms" validate:"required"`
	LineItems       []LineItem `json:"lineItems" validate:"required,min=1,dive"`
	Source          string     `json:"source"`
}

func (r EstimateRecord) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range r.LineItems {
		total = total.Add(li.Rate.Mul(decimal.NewFromInt(int64(li.Quantity))))
	}
	return total
}

type EnrichedRecord struct {
	Record          EstimateRecord `json:"record"`
	CustomerID      string         `json:"customerId"`
	UnresolvedItems []string       `json:"unresolvedItems,omitempty"`
}

type EstimateRef struct {
	ID     string `json:"estimateId"`
	Number string `json:"estimateNumber"`
}

type DocumentStatus string

const (
	StatusSubmitted DocumentStatus = "submitted"
	StatusProcessed DocumentStatus = "processed"
	StatusSkipped   DocumentStatus = "skipped"
	StatusFailed    DocumentStatus = "failed"
)

type BatchEntry struct {
	FileID         string         `json:"fileId"`
	FileName       string         `json:"fileName"`
	Kind           DocumentKind   `json:"kind"`
	Status         DocumentStatus `json:"status"`
	Source         string         `json:"source,omitempty"`
	CustomerName   string         `json:"customerName,omitempty"`
	EstimateID     string         `json:"estimateId,omitempty"`
	EstimateNumber string         `json:"estimateNumber,omitempty"`
	LineItems      int            `json:"lineItems"`
	Unresolved     int            `json:"unresolved"`
	Error          string         `json:"error,omitempty"`
}

type BatchResult struct {
	RunID      string       `json:"runId"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Processed  int          `json:"processed"`
	Skipped    int          `json:"skipped"`
	Failed     int          `json:"failed"`
	Entries    []BatchEntry `json:"entries"`
}

func (b *BatchResult) Add(entry BatchEntry) {
	switch entry.Status {
	case StatusProcessed, StatusSubmitted:
		b.Processed++
	case StatusSkipped:
		b.Skipped++
	default:
		b.Failed++
	}
	b.Entries = append(b.Entries, entry)
}
