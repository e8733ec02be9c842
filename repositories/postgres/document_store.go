package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nexbase/crudgate/policies"
	"github.com/nexbase/crudgate/storage"
)

// DocumentStore implements storage.Store over a JSONB documents table, one
// logical collection per store. Native Postgres failures are mapped onto
// the storage driver-error shape so the normalization policy sees the same
// codes regardless of adapter.
type DocumentStore struct {
	db         *DB
	collection string
	unique     []string
	logger     *zap.Logger
}

// NewDocumentStore creates a Postgres-backed store for one collection. Each
// field in unique gets a unique index named "idx_<field>", enforced on
// create and update.
func NewDocumentStore(db *DB, collection string, logger *zap.Logger, unique ...string) *DocumentStore {
	return &DocumentStore{
		db:         db,
		collection: collection,
		unique:     unique,
		logger:     logger.With(zap.String("collection", collection)),
	}
}

// Find returns all documents matching the query.
func (s *DocumentStore) Find(ctx context.Context, query map[string]any) ([]map[string]any, error) {
	return s.load(ctx, query)
}

// List returns a page of matching documents.
func (s *DocumentStore) List(ctx context.Context, params storage.ListParams) (*storage.ListResult, error) {
	rows, err := s.load(ctx, params.Query)
	if err != nil {
		return nil, err
	}
	return storage.Paginate(rows, params), nil
}

// Count returns the number of documents matching the query.
func (s *DocumentStore) Count(ctx context.Context, query map[string]any) (int, error) {
	rows, err := s.load(ctx, query)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Get returns the document with the given id.
func (s *DocumentStore) Get(ctx context.Context, id string) (map[string]any, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`,
		s.collection, id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return decodeDoc(raw)
}

// Create inserts a document, assigning an id when absent and enforcing
// unique indexes.
func (s *DocumentStore) Create(ctx context.Context, doc map[string]any) (map[string]any, error) {
	stored := storage.CloneDoc(doc)
	id, _ := stored["_id"].(string)
	if id == "" {
		id = uuid.NewString()
		stored["_id"] = id
	}

	for _, field := range s.unique {
		value := storage.ValueAt(stored, field)
		if value == nil {
			continue
		}
		taken, err := s.fieldTaken(ctx, field, value, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, s.duplicateKey(field)
		}
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)`,
		s.collection, id, raw,
	)
	if err != nil {
		return nil, s.mapDriverError(err, "_id")
	}
	return stored, nil
}

// Update merges fields into the document with the given id.
func (s *DocumentStore) Update(ctx context.Context, id string, fields map[string]any) (map[string]any, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, field := range s.unique {
		value, present := fields[field]
		if !present || value == nil {
			continue
		}
		taken, err := s.fieldTaken(ctx, field, value, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, s.duplicateKey(field)
		}
	}

	for k, v := range fields {
		if k == "_id" {
			continue
		}
		doc[k] = v
	}

	if err := s.write(ctx, id, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateWithQuery applies a $set update document to every match.
func (s *DocumentStore) UpdateWithQuery(ctx context.Context, query, update map[string]any) (int, error) {
	set, err := storage.SetModifier(update)
	if err != nil {
		return 0, err
	}

	rows, err := s.load(ctx, query)
	if err != nil {
		return 0, err
	}

	for _, doc := range rows {
		for k, v := range set {
			if k == "_id" {
				continue
			}
			storage.SetValueAt(doc, k, v)
		}
		id, _ := doc["_id"].(string)
		if err := s.write(ctx, id, doc); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

// Remove deletes the document with the given id, returning the removed copy.
func (s *DocumentStore) Remove(ctx context.Context, id string) (map[string]any, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		s.collection, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, storage.ErrNotFound
	}
	return doc, nil
}

// Aggregate runs a stage pipeline over the collection.
func (s *DocumentStore) Aggregate(ctx context.Context, stages []map[string]any) ([]map[string]any, error) {
	rows, err := s.load(ctx, nil)
	if err != nil {
		return nil, err
	}
	return storage.RunPipeline(rows, stages)
}

// load fetches collection documents, pushing the flat tenant filter down to
// SQL and applying the rest of the query in memory.
func (s *DocumentStore) load(ctx context.Context, query map[string]any) ([]map[string]any, error) {
	sqlQuery := `SELECT doc FROM documents WHERE collection = $1`
	args := []any{s.collection}

	if tenantID, ok := query[policies.TenantField].(string); ok {
		sqlQuery += ` AND doc->>'tenantId' = $2`
		args = append(args, tenantID)
	}
	sqlQuery += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]map[string]any, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc, err := decodeDoc(raw)
		if err != nil {
			return nil, err
		}
		if storage.MatchQuery(doc, query) {
			docs = append(docs, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

func (s *DocumentStore) write(ctx context.Context, id string, doc map[string]any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE documents SET doc = $3 WHERE collection = $1 AND id = $2`,
		s.collection, id, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

func (s *DocumentStore) fieldTaken(ctx context.Context, field string, value any, excludeID string) (bool, error) {
	path := strings.Split(field, ".")
	var taken bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM documents
			WHERE collection = $1 AND id <> $2 AND doc #>> $3 = $4
		)`,
		s.collection, excludeID, pq.Array(path), fmt.Sprint(value),
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check unique index idx_%s: %w", field, err)
	}
	return taken, nil
}

func (s *DocumentStore) duplicateKey(field string) *storage.DriverError {
	return &storage.DriverError{
		Code: storage.CodeDuplicateKey,
		Message: fmt.Sprintf("E11000 duplicate key error collection: %s index: idx_%s",
			s.collection, field),
	}
}

// mapDriverError rewrites native Postgres failures onto the shared driver
// error codes so the normalization policy dispatches identically across
// adapters.
func (s *DocumentStore) mapDriverError(err error, field string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return s.duplicateKey(field)
	}
	return fmt.Errorf("failed to insert document: %w", err)
}

func decodeDoc(raw []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}
