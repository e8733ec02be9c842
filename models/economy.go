package models

import (
	"time"

	"github.com/google/uuid"
)

// EconomyEntry maps an action name to a signed credit delta. Read-only from
// the pipeline's perspective; owned by the action-economy service.
type EconomyEntry struct {
	ID     string `json:"_id" db:"id"` // action name
	Credit int64  `json:"credit" db:"credit"`
}

// CreditAction is the in-flight billing annotation carried in request
// metadata while a creditable action executes.
type CreditAction struct {
	ActionName string `json:"actionName"`
	Reference  string `json:"reference,omitempty"`
}

// CreditEvent is the persisted form of a log.credit.action emission,
// consumed asynchronously by the ledger reconciler.
type CreditEvent struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ActionName string    `json:"actionName" db:"action_name"`
	OwnerID    string    `json:"ownerId" db:"owner_id"`
	OwnerType  string    `json:"ownerType" db:"owner_type"`
	Credit     int64     `json:"credit" db:"credit"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the CreditEvent model
func (CreditEvent) TableName() string {
	return "credit_events"
}

// NewCreditEvent creates a new CreditEvent instance
func NewCreditEvent(actionName, ownerID, ownerType string, credit int64) *CreditEvent {
	return &CreditEvent{
		ID:         uuid.New(),
		ActionName: actionName,
		OwnerID:    ownerID,
		OwnerType:  ownerType,
		Credit:     credit,
		Timestamp:  time.Now(),
	}
}
