package models

import (
	"time"

	"github.com/google/uuid"
)

// ArchiveRecord is an immutable snapshot of an entity taken before a
// destructive mutation. Write-once, append-only; the pipeline never updates
// or deletes archive records.
type ArchiveRecord struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	ItemID    string         `json:"itemId" db:"item_id"`
	ItemType  string         `json:"itemType" db:"item_type"`
	Item      map[string]any `json:"item" db:"item"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}

// TableName returns the table name for the ArchiveRecord model
func (ArchiveRecord) TableName() string {
	return "archives"
}

// NewArchiveRecord creates a new ArchiveRecord instance
func NewArchiveRecord(itemID, itemType string, item map[string]any) *ArchiveRecord {
	return &ArchiveRecord{
		ID:        uuid.New(),
		ItemID:    itemID,
		ItemType:  itemType,
		Item:      item,
		CreatedAt: time.Now(),
	}
}

// Params renders the record as the create payload for the archive sink.
func (r *ArchiveRecord) Params() map[string]any {
	return map[string]any{
		"itemId":    r.ItemID,
		"itemType":  r.ItemType,
		"item":      r.Item,
		"createdAt": r.CreatedAt.Format(time.RFC3339Nano),
	}
}

// DeletedCopy is the payload written to the deleted service before a remove
// completes. ReverseAction documents how the copy could be replayed.
type DeletedCopy struct {
	Copy          map[string]any `json:"copy"`
	Service       string         `json:"service"`
	Module        string         `json:"module"`
	ReverseAction string         `json:"reverseAction"`
}

// Params renders the copy as the create payload for the deleted service.
func (d DeletedCopy) Params() map[string]any {
	return map[string]any{
		"copy":          d.Copy,
		"service":       d.Service,
		"module":        d.Module,
		"reverseAction": d.ReverseAction,
	}
}
