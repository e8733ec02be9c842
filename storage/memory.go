package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is the in-memory Store adapter, used for development and
// tests. Unique indexes are enforced per field and violations surface with
// the same driver-error shape the document driver produces.
type MemoryStore struct {
	collection string
	unique     []string

	mu   sync.RWMutex
	docs map[string]map[string]any
}

// NewMemoryStore creates a memory-backed store for one collection. Each
// field in unique gets a unique index named "idx_<field>".
func NewMemoryStore(collection string, unique ...string) *MemoryStore {
	return &MemoryStore{
		collection: collection,
		unique:     unique,
		docs:       make(map[string]map[string]any),
	}
}

// Find returns all documents matching the query.
func (s *MemoryStore) Find(ctx context.Context, query map[string]any) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.match(query), nil
}

// List returns a page of matching documents.
func (s *MemoryStore) List(ctx context.Context, params ListParams) (*ListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.match(params.Query)
	return Paginate(rows, params), nil
}

// Count returns the number of documents matching the query.
func (s *MemoryStore) Count(ctx context.Context, query map[string]any) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.match(query)), nil
}

// Get returns the document with the given id.
func (s *MemoryStore) Get(ctx context.Context, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return CloneDoc(doc), nil
}

// Create inserts a document, assigning an id when absent and enforcing
// unique indexes.
func (s *MemoryStore) Create(ctx context.Context, doc map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := CloneDoc(doc)
	id, _ := stored["_id"].(string)
	if id == "" {
		id = uuid.NewString()
		stored["_id"] = id
	}
	if _, exists := s.docs[id]; exists {
		return nil, duplicateKeyError(s.collection, "_id")
	}

	for _, field := range s.unique {
		value := ValueAt(stored, field)
		if value == nil {
			continue
		}
		for _, existing := range s.docs {
			if looseEqual(ValueAt(existing, field), value) {
				return nil, duplicateKeyError(s.collection, field)
			}
		}
	}

	s.docs[id] = stored
	return CloneDoc(stored), nil
}

// Update merges fields into the document with the given id.
func (s *MemoryStore) Update(ctx context.Context, id string, fields map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}

	for _, field := range s.unique {
		value, present := fields[field]
		if !present || value == nil {
			continue
		}
		for otherID, existing := range s.docs {
			if otherID != id && looseEqual(ValueAt(existing, field), value) {
				return nil, duplicateKeyError(s.collection, field)
			}
		}
	}

	for k, v := range fields {
		if k == "_id" {
			continue
		}
		doc[k] = cloneValue(v)
	}
	return CloneDoc(doc), nil
}

// UpdateWithQuery applies an update document to every match. Only the $set
// modifier is supported; anything else is a driver failure.
func (s *MemoryStore) UpdateWithQuery(ctx context.Context, query, update map[string]any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := SetModifier(update)
	if err != nil {
		return 0, err
	}

	modified := 0
	for _, doc := range s.docs {
		if !MatchQuery(doc, query) {
			continue
		}
		for k, v := range set {
			if k == "_id" {
				continue
			}
			SetValueAt(doc, k, cloneValue(v))
		}
		modified++
	}
	return modified, nil
}

// Remove deletes the document with the given id, returning the removed copy.
func (s *MemoryStore) Remove(ctx context.Context, id string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.docs, id)
	return doc, nil
}

// Aggregate runs a stage pipeline over the collection.
func (s *MemoryStore) Aggregate(ctx context.Context, stages []map[string]any) ([]map[string]any, error) {
	s.mu.RLock()
	rows := s.match(nil)
	s.mu.RUnlock()

	return RunPipeline(rows, stages)
}

// match returns clones of all documents matching the query, ordered by id
// for deterministic output. Caller must hold the lock.
func (s *MemoryStore) match(query map[string]any) []map[string]any {
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		if MatchQuery(s.docs[id], query) {
			rows = append(rows, CloneDoc(s.docs[id]))
		}
	}
	return rows
}

// duplicateKeyError builds the driver-error shape a unique-index violation
// surfaces as, naming the violated index.
func duplicateKeyError(collection, field string) *DriverError {
	return &DriverError{
		Code: CodeDuplicateKey,
		Message: fmt.Sprintf("E11000 duplicate key error collection: %s index: idx_%s",
			collection, field),
	}
}

