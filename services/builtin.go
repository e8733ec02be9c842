package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nexbase/crudgate/broker"
	"github.com/nexbase/crudgate/core"
	"github.com/nexbase/crudgate/pipeline"
	"github.com/nexbase/crudgate/policies"
	"github.com/nexbase/crudgate/storage"
)

// NewUsers assembles the user-account service. Users own themselves, so
// mutations admit the account holder or an admin.
func NewUsers(b *broker.Broker, store storage.Store, logger *zap.Logger, defaultTenantID string) (*Resource, error) {
	return NewResource(b, store, logger, core.Config{
		Service:         "users",
		Module:          "accounts",
		GetAction:       "v1.users.get",
		DefaultTenantID: defaultTenantID,
		Ownership:       core.OwnershipOwnerOrAdmin,
	}, nil)
}

// NewDeleted assembles the archive sink the remove pipeline writes entity
// snapshots to before a delete proceeds.
func NewDeleted(b *broker.Broker, store storage.Store, logger *zap.Logger, defaultTenantID string) (*Resource, error) {
	return NewResource(b, store, logger, core.Config{
		Service:         "deleted",
		Module:          "system",
		GetAction:       "v1.deleted.get",
		DefaultTenantID: defaultTenantID,
	}, nil)
}

// NewArchives assembles the generic archive sink used by the archive-object
// helper.
func NewArchives(b *broker.Broker, store storage.Store, logger *zap.Logger, defaultTenantID string) (*Resource, error) {
	return NewResource(b, store, logger, core.Config{
		Service:         "archives",
		Module:          "system",
		GetAction:       "v1.archives.get",
		DefaultTenantID: defaultTenantID,
	}, nil)
}

// NewActionEconomy assembles the billing-rate service and seeds it with the
// given action → credit-delta entries under the default tenant.
func NewActionEconomy(b *broker.Broker, store storage.Store, logger *zap.Logger, defaultTenantID string, entries map[string]int64) (*Resource, error) {
	r, err := NewResource(b, store, logger, core.Config{
		Service:         "action-economy",
		Module:          "economy",
		GetAction:       "v1.action-economy.get",
		DefaultTenantID: defaultTenantID,
	}, nil)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	for name, credit := range entries {
		_, err := store.Create(ctx, map[string]any{
			"_id":                name,
			"credit":             credit,
			policies.TenantField: defaultTenantID,
		})
		if err != nil {
			return nil, fmt.Errorf("seeding action-economy entry %q: %w", name, err)
		}
	}
	return r, nil
}

// NewDocuments assembles a sample content service exercising the full
// policy stack: owner-only mutation, credit admission on create, slug and
// state stamping, archive-then-delete.
func NewDocuments(b *broker.Broker, store storage.Store, logger *zap.Logger, defaultTenantID string) (*Resource, error) {
	extra := pipeline.NewHooks()
	extra.Before(pipeline.ActionCreate, policies.AddSlug(), policies.AddState("new"))

	return NewResource(b, store, logger, core.Config{
		Service:         "documents",
		Module:          "content",
		GetAction:       "v1.documents.get",
		DefaultTenantID: defaultTenantID,
		Ownership:       core.OwnershipOwner,
		Creditable:      true,
	}, extra)
}

// NewMessages assembles a sample messaging service whose reads are narrowed
// to the caller's own correspondence.
func NewMessages(b *broker.Broker, store storage.Store, logger *zap.Logger, defaultTenantID string) (*Resource, error) {
	extra := pipeline.NewHooks()
	extra.Before(pipeline.ActionFind, policies.AddRecipientOrSenderToQuery())
	extra.Before(pipeline.ActionList, policies.AddRecipientOrSenderToQuery())

	return NewResource(b, store, logger, core.Config{
		Service:         "messages",
		Module:          "messaging",
		GetAction:       "v1.messages.get",
		DefaultTenantID: defaultTenantID,
		Ownership:       core.OwnershipOwner,
	}, extra)
}
