// Package repositories defines the persistence contracts for data the
// pipeline core itself owns: the credit-event ledger.
package repositories

import (
	"context"

	"github.com/nexbase/crudgate/models"
)

// CreditEventRepository persists ledger events emitted after creditable
// actions complete.
type CreditEventRepository interface {
	// Insert appends a credit event; events are write-once.
	Insert(ctx context.Context, event *models.CreditEvent) error

	// ListByOwner retrieves the most recent events for an owner.
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.CreditEvent, error)
}
