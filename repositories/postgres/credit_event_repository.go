package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nexbase/crudgate/models"
	"github.com/nexbase/crudgate/repositories"
)

// CreditEventRepository implements repositories.CreditEventRepository
type CreditEventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCreditEventRepository creates a new credit-event repository
func NewCreditEventRepository(db *DB, logger *zap.Logger) repositories.CreditEventRepository {
	return &CreditEventRepository{
		db:     db,
		logger: logger,
	}
}

// Insert appends a credit event
func (r *CreditEventRepository) Insert(ctx context.Context, event *models.CreditEvent) error {
	query := `
		INSERT INTO credit_events (id, action_name, owner_id, owner_type, credit, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.ActionName,
		event.OwnerID,
		event.OwnerType,
		event.Credit,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert credit event: %w", err)
	}

	r.logger.Debug("credit event inserted",
		zap.String("id", event.ID.String()),
		zap.String("owner_id", event.OwnerID))
	return nil
}

// ListByOwner retrieves the most recent events for an owner, newest first.
func (r *CreditEventRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.CreditEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, action_name, owner_id, owner_type, credit, timestamp
		FROM credit_events
		WHERE owner_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.CreditEvent, 0)
	for rows.Next() {
		event := &models.CreditEvent{}
		if err := rows.Scan(
			&event.ID,
			&event.ActionName,
			&event.OwnerID,
			&event.OwnerType,
			&event.Credit,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan credit event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credit events: %w", err)
	}

	return events, nil
}
