package repositories

import (
	"context"
	"sync"

	"github.com/nexbase/crudgate/models"
)

// MemoryCreditEventRepository is the in-memory CreditEventRepository used in
// development mode and tests.
type MemoryCreditEventRepository struct {
	mu     sync.RWMutex
	events []*models.CreditEvent
}

// NewMemoryCreditEventRepository creates an empty in-memory repository
func NewMemoryCreditEventRepository() *MemoryCreditEventRepository {
	return &MemoryCreditEventRepository{}
}

// Insert appends a credit event
func (r *MemoryCreditEventRepository) Insert(ctx context.Context, event *models.CreditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// ListByOwner retrieves the most recent events for an owner, newest first.
func (r *MemoryCreditEventRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.CreditEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.CreditEvent, 0, limit)
	for i := len(r.events) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if r.events[i].OwnerID == ownerID {
			out = append(out, r.events[i])
		}
	}
	return out, nil
}
