// Package storage defines the document-store contract resource services
// persist through, plus the low-level driver-error shape the normalization
// policy dispatches on.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Driver error codes. The numeric values are the document driver's own codes
// and are stable across adapters: the Postgres adapter maps its native
// failures onto the same codes.
const (
	CodeDuplicateKey      = 11000
	CodeUnrecognizedStage = 40324
)

// ErrNotFound is returned when no document matches the requested id.
var ErrNotFound = errors.New("entity not found")

// DriverError is a low-level storage failure. Code and Message mirror what
// the driver reported; Driver marks failures raised by the driver during an
// update-by-query.
type DriverError struct {
	Code    int
	Message string
	Driver  bool
}

// Error implements the error interface
func (e *DriverError) Error() string {
	return fmt.Sprintf("storage driver error %d: %s", e.Code, e.Message)
}

// ListResult is the page envelope returned by List.
type ListResult struct {
	Rows       []map[string]any `json:"rows"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

// ListParams controls pagination for List.
type ListParams struct {
	Query    map[string]any
	Page     int
	PageSize int
}

// Store is the per-collection persistence contract. Query maps are equality
// filters; nested fields use dotted paths ("author._id") and $or takes a
// list of alternative filters.
type Store interface {
	Find(ctx context.Context, query map[string]any) ([]map[string]any, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Count(ctx context.Context, query map[string]any) (int, error)
	Get(ctx context.Context, id string) (map[string]any, error)
	Create(ctx context.Context, doc map[string]any) (map[string]any, error)
	Update(ctx context.Context, id string, fields map[string]any) (map[string]any, error)
	UpdateWithQuery(ctx context.Context, query, update map[string]any) (int, error)
	Remove(ctx context.Context, id string) (map[string]any, error)
	Aggregate(ctx context.Context, stages []map[string]any) ([]map[string]any, error)
}
