package internal

import (
	"errors"
	"fmt"
)

var (
	ErrUnresolvableCustomer = errors.New("customer could not be resolved")
	ErrLowConfidenceText    = errors.New("not enough text to extract from")
	ErrExtractionFailed     = errors.New("all extraction strategies failed")
	ErrUnsupportedDocument  = errors.New("unsupported document type")
	ErrNotFound             = errors.New("not found")
)

// ParseFault is a strategy-local failure; the pipeline recovers from it by
// trying the next strategy.
type ParseFault struct {
	Strategy string
	Err      error
}

func (f *ParseFault) Error() string {
	return fmt.Sprintf("%s strategy: %v", f.Strategy, f.Err)
}

func (f *ParseFault) Unwrap() error {
	return f.Err
}

// ExternalServiceError reports a failed call to the accounting system or the
// file store.
type ExternalServiceError struct {
	Service string
	Op      string
	Status  int
	Err     error
}

func (e *ExternalServiceError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s %s: status=%d: %v", e.Service, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
