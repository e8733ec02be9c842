// Package core assembles the standard policy pipeline for a resource
// service: tenant scoping, ownership checks, credit admission,
// archive-then-delete, and storage-error normalization wired into the
// before/after/error slots of the canonical actions.
package core

import (
	"fmt"

	"github.com/nexbase/crudgate/pipeline"
	"github.com/nexbase/crudgate/policies"
	"github.com/nexbase/crudgate/utils"
)

// OwnershipMode selects which ownership variant guards mutations.
type OwnershipMode string

const (
	OwnershipNone         OwnershipMode = ""
	OwnershipOwner        OwnershipMode = "owner"
	OwnershipOwnerOrAdmin OwnershipMode = "ownerOrAdmin"
)

// Standard collaborator actions resolved by the assembly unless overridden.
const (
	DefaultUsersGetAction     = "v1.users.get"
	DefaultEconomyGetAction   = "v1.action-economy.get"
	DefaultDeletedCreateAction = "v1.deleted.create"
)

// Config is the per-service parameterization of the pipeline assembly,
// resolved once at service-definition time.
type Config struct {
	Service string `validate:"required"`
	Module  string `validate:"required"`
	Version int    `validate:"gte=1"`

	// GetAction is the fully-qualified get action the ownership, tenancy
	// and archive policies fetch the current entity through.
	GetAction string `validate:"required"`

	// DefaultTenantID scopes requests that carry no tenant descriptor.
	DefaultTenantID string

	// Ownership guards update/remove; none skips the check.
	Ownership OwnershipMode `validate:"omitempty,oneof=owner ownerOrAdmin"`

	// Creditable enables the credit admission policy on create.
	Creditable bool

	// Collaborator overrides; empty values take the defaults above.
	UsersGetAction      string
	EconomyGetAction    string
	DeletedCreateAction string
}

func (cfg Config) usersGet() string {
	if cfg.UsersGetAction != "" {
		return cfg.UsersGetAction
	}
	return DefaultUsersGetAction
}

func (cfg Config) economyGet() string {
	if cfg.EconomyGetAction != "" {
		return cfg.EconomyGetAction
	}
	return DefaultEconomyGetAction
}

func (cfg Config) deletedCreate() string {
	if cfg.DeletedCreateAction != "" {
		return cfg.DeletedCreateAction
	}
	return DefaultDeletedCreateAction
}

// Hooks builds the standard hook set for one resource service. Composition
// is pure configuration: the returned set is immutable once the service
// starts serving.
func Hooks(cfg Config) (*pipeline.Hooks, error) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if err := utils.ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid assembly config for %s: %w", cfg.Service, err)
	}

	getRef, err := pipeline.ParseRef(cfg.GetAction)
	if err != nil {
		return nil, err
	}
	usersGet, err := pipeline.ParseRef(cfg.usersGet())
	if err != nil {
		return nil, err
	}
	economyGet, err := pipeline.ParseRef(cfg.economyGet())
	if err != nil {
		return nil, err
	}
	deletedCreate, err := pipeline.ParseRef(cfg.deletedCreate())
	if err != nil {
		return nil, err
	}

	h := pipeline.NewHooks()

	// Reads: scope every query to the caller's effective tenant.
	h.Before(pipeline.ActionFind, policies.AddTenantToQuery(cfg.DefaultTenantID))
	h.Before(pipeline.ActionList, policies.AddTenantToQuery(cfg.DefaultTenantID))
	h.Before(pipeline.ActionCount, policies.AddTenantToQuery(cfg.DefaultTenantID))
	h.Before(pipeline.ActionAggregate, policies.AddTenantStageToAggregate(cfg.DefaultTenantID))
	h.After(pipeline.ActionGet, policies.CheckTenantAssociation(cfg.DefaultTenantID))

	// Create: credit admission gates first, then tenant and authorship
	// stamping.
	if cfg.Creditable {
		h.Before(pipeline.ActionCreate, policies.BeforeCreditableAction(usersGet, economyGet))
	}
	h.Before(pipeline.ActionCreate,
		policies.AddTenantToParams(cfg.DefaultTenantID),
		policies.AddCreatedAt(),
		policies.AddAuthor(),
	)
	if cfg.Creditable {
		h.After(pipeline.ActionCreate, policies.AfterCreditableAction())
	}

	// Update: ownership, tenant compare, then edit stamping. The per-entity
	// guards fetch by id, so bulk updates are scoped through their query
	// instead.
	switch cfg.Ownership {
	case OwnershipOwner:
		h.Before(pipeline.ActionUpdate, policies.UnlessUpdateByQuery(policies.EditableOnlyByOwner(getRef, cfg.Service)))
		h.Before(pipeline.ActionRemove, policies.EditableOnlyByOwner(getRef, cfg.Service))
	case OwnershipOwnerOrAdmin:
		h.Before(pipeline.ActionUpdate, policies.UnlessUpdateByQuery(policies.EditableOnlyByOwnerOrAdmin(getRef, cfg.Service)))
		h.Before(pipeline.ActionRemove, policies.EditableOnlyByOwnerOrAdmin(getRef, cfg.Service))
	}
	h.Before(pipeline.ActionUpdate,
		policies.UnlessUpdateByQuery(policies.CompareTenantIDs(getRef, cfg.DefaultTenantID)),
		policies.WhenUpdateByQuery(policies.AddTenantToQuery(cfg.DefaultTenantID)),
		policies.AddUpdatedAt(),
		policies.AddUpdatedBy(),
		policies.StampUpdateDocument(),
	)

	// Remove: archive-then-delete, strictly after ownership and tenancy
	// checks pass.
	h.Before(pipeline.ActionRemove,
		policies.CompareTenantIDs(getRef, cfg.DefaultTenantID),
		policies.ArchiveOnRemove(getRef, cfg.Service, cfg.Module, deletedCreate),
	)

	// Bulk insert bypasses per-entity hooks; it stays off.
	h.Before(pipeline.ActionInsert, policies.Disable())

	// Storage-error normalization at the outermost error stage.
	h.OnError(pipeline.ActionCreate, policies.NormalizeDuplicateKey())
	h.OnError(pipeline.ActionUpdate,
		policies.NormalizeDuplicateKey(),
		policies.NormalizeUpdateWithQueryError(),
	)
	h.OnError(pipeline.ActionAggregate, policies.NormalizeAggregateError())

	return h, nil
}
