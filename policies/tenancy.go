// Package policies holds the cross-cutting hook builders the core assembly
// composes into resource service pipelines: tenant scoping, ownership and
// role checks, credit admission, archive-on-delete, storage-error
// normalization, and the parameter stamping helpers.
package policies

import (
	"fmt"

	"github.com/nexbase/crudgate/pipeline"
)

// TenantField is the document field every tenant-scoped entity is stamped
// with.
const TenantField = "tenantId"

// AddTenantToQuery scopes find/list/count to the caller's effective tenant,
// overwriting any client-supplied tenant filter. A global tenant scopes
// against its pipeline tenant id.
func AddTenantToQuery(defaultTenantID string) pipeline.Hook {
	return func(c *pipeline.Context) error {
		c.Query()[TenantField] = c.Meta.EffectiveTenantID(defaultTenantID)
		return nil
	}
}

// AddTenantToParams stamps the effective tenant id onto create params so the
// persisted entity carries it.
func AddTenantToParams(defaultTenantID string) pipeline.Hook {
	return func(c *pipeline.Context) error {
		c.Params[TenantField] = c.Meta.EffectiveTenantID(defaultTenantID)
		return nil
	}
}

// AddTenantStageToAggregate prepends a $match on the effective tenant id as
// the very first pipeline stage. The stage is stripped back out of error
// details by the aggregate error normalizer.
func AddTenantStageToAggregate(defaultTenantID string) pipeline.Hook {
	return func(c *pipeline.Context) error {
		stages := aggregateStages(c.Params)
		if stages == nil {
			return nil
		}
		match := map[string]any{"$match": map[string]any{
			TenantField: c.Meta.EffectiveTenantID(defaultTenantID),
		}}
		c.Params["pipeline"] = append([]any{any(match)}, stages...)
		return nil
	}
}

// CompareTenantIDs fetches the target entity through the call gate and
// rejects the mutation with crud-entity-not-found when its tenant id does
// not match the caller's effective tenant. Guards update and remove.
func CompareTenantIDs(getAction pipeline.Ref, defaultTenantID string) pipeline.Hook {
	return func(c *pipeline.Context) error {
		entity, err := c.Call(getAction, map[string]any{"id": paramID(c)})
		if err != nil {
			return err
		}
		if fmt.Sprint(entity[TenantField]) != c.Meta.EffectiveTenantID(defaultTenantID) {
			return pipeline.ErrEntityNotFound()
		}
		return nil
	}
}

// CheckTenantAssociation verifies, after a get, that the returned entity
// belongs to the caller's effective tenant; a mismatch reads as not-found.
func CheckTenantAssociation(defaultTenantID string) pipeline.Hook {
	return func(c *pipeline.Context) error {
		entity, ok := c.Result.(map[string]any)
		if !ok {
			return nil
		}
		if fmt.Sprint(entity[TenantField]) != c.Meta.EffectiveTenantID(defaultTenantID) {
			return pipeline.ErrEntityNotFound()
		}
		return nil
	}
}

// paramID returns the string-normalized target id from params.
func paramID(c *pipeline.Context) string {
	if id, ok := c.Params["id"]; ok && id != nil {
		return fmt.Sprint(id)
	}
	return ""
}

// aggregateStages reads the stage list from params regardless of whether it
// arrived as []any (decoded JSON) or []map[string]any.
func aggregateStages(params map[string]any) []any {
	switch stages := params["pipeline"].(type) {
	case []any:
		return stages
	case []map[string]any:
		out := make([]any, len(stages))
		for i, stage := range stages {
			out[i] = stage
		}
		return out
	default:
		return nil
	}
}
