// Package services builds resource services: CRUD endpoints over a document
// store, wrapped by the core policy pipeline and registered on the broker.
package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nexbase/crudgate/broker"
	"github.com/nexbase/crudgate/core"
	"github.com/nexbase/crudgate/pipeline"
	"github.com/nexbase/crudgate/storage"
)

// Resource is one assembled resource service: a named collection of actions
// whose handlers run behind the core policy pipeline.
type Resource struct {
	name    string
	module  string
	version int
	store   storage.Store
	hooks   *pipeline.Hooks
	broker  *broker.Broker
	logger  *zap.Logger
}

// NewResource assembles a resource service and registers its actions on the
// broker. Extra hooks, when given, are layered after the core assembly.
func NewResource(b *broker.Broker, store storage.Store, logger *zap.Logger, cfg core.Config, extra *pipeline.Hooks) (*Resource, error) {
	hooks, err := core.Hooks(cfg)
	if err != nil {
		return nil, err
	}
	hooks.Merge(extra)

	version := cfg.Version
	if version == 0 {
		version = 1
	}

	r := &Resource{
		name:    cfg.Service,
		module:  cfg.Module,
		version: version,
		store:   store,
		hooks:   hooks,
		broker:  b,
		logger:  logger.With(zap.String("service", cfg.Service)),
	}
	r.register()
	return r, nil
}

// Name returns the service name
func (r *Resource) Name() string { return r.name }

// Ref returns the fully-qualified reference for one of this service's
// actions.
func (r *Resource) Ref(action pipeline.Action) pipeline.Ref {
	return pipeline.Ref{Service: r.name, Version: r.version, Action: action}
}

func (r *Resource) register() {
	endpoints := map[pipeline.Action]pipeline.Handler{
		pipeline.ActionFind:      r.handleFind,
		pipeline.ActionList:      r.handleList,
		pipeline.ActionCount:     r.handleCount,
		pipeline.ActionGet:       r.handleGet,
		pipeline.ActionCreate:    r.handleCreate,
		pipeline.ActionInsert:    r.handleInsert,
		pipeline.ActionUpdate:    r.handleUpdate,
		pipeline.ActionRemove:    r.handleRemove,
		pipeline.ActionAggregate: r.handleAggregate,
	}
	for action, handler := range endpoints {
		r.broker.Register(r.Ref(action), r.invoke(action, handler))
	}
}

// invoke adapts one action handler into a broker endpoint: it builds the
// per-invocation context and runs it through the hook pipeline.
func (r *Resource) invoke(action pipeline.Action, handler pipeline.Handler) broker.ActionFunc {
	ref := r.Ref(action)
	return func(ctx context.Context, params map[string]any, meta *pipeline.Meta) (any, error) {
		c := pipeline.NewContext(ctx, ref, params, meta, r.broker)
		result, err := r.hooks.Run(c, handler)
		if err != nil {
			r.logger.Debug("action failed",
				zap.String("action", string(action)),
				zap.Error(err))
			return nil, err
		}
		return result, nil
	}
}

func (r *Resource) handleFind(c *pipeline.Context) (any, error) {
	rows, err := r.store.Find(c.Ctx, c.Query())
	if err != nil {
		return nil, err
	}
	return map[string]any{"rows": rows}, nil
}

func (r *Resource) handleList(c *pipeline.Context) (any, error) {
	result, err := r.store.List(c.Ctx, storage.ListParams{
		Query:    c.Query(),
		Page:     intParam(c.Params, "page"),
		PageSize: intParam(c.Params, "pageSize"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"rows":       result.Rows,
		"total":      result.Total,
		"page":       result.Page,
		"pageSize":   result.PageSize,
		"totalPages": result.TotalPages,
	}, nil
}

func (r *Resource) handleCount(c *pipeline.Context) (any, error) {
	count, err := r.store.Count(c.Ctx, c.Query())
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": count}, nil
}

func (r *Resource) handleGet(c *pipeline.Context) (any, error) {
	id, err := requiredID(c)
	if err != nil {
		return nil, err
	}
	entity, err := r.store.Get(c.Ctx, id)
	if err != nil {
		return nil, notFoundAs(err, id)
	}
	return entity, nil
}

func (r *Resource) handleCreate(c *pipeline.Context) (any, error) {
	return r.store.Create(c.Ctx, c.Params)
}

// handleInsert exists only as a registration target; the assembly disables
// bulk insert before the handler can run.
func (r *Resource) handleInsert(c *pipeline.Context) (any, error) {
	return nil, pipeline.ErrActionNotFound()
}

// handleUpdate updates by id, or by query when the params carry a query and
// an update document.
func (r *Resource) handleUpdate(c *pipeline.Context) (any, error) {
	query, hasQuery := c.Params["query"].(map[string]any)
	update, hasUpdate := c.Params["update"].(map[string]any)
	if hasQuery && hasUpdate {
		modified, err := r.store.UpdateWithQuery(c.Ctx, query, update)
		if err != nil {
			return nil, err
		}
		return map[string]any{"modified": modified}, nil
	}

	id, err := requiredID(c)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]any, len(c.Params))
	for k, v := range c.Params {
		if k == "id" {
			continue
		}
		fields[k] = v
	}
	entity, err := r.store.Update(c.Ctx, id, fields)
	if err != nil {
		return nil, notFoundAs(err, id)
	}
	return entity, nil
}

func (r *Resource) handleRemove(c *pipeline.Context) (any, error) {
	id, err := requiredID(c)
	if err != nil {
		return nil, err
	}
	removed, err := r.store.Remove(c.Ctx, id)
	if err != nil {
		return nil, notFoundAs(err, id)
	}
	return removed, nil
}

func (r *Resource) handleAggregate(c *pipeline.Context) (any, error) {
	stages, err := decodeStages(c.Params["pipeline"])
	if err != nil {
		return nil, err
	}
	rows, err := r.store.Aggregate(c.Ctx, stages)
	if err != nil {
		return nil, err
	}
	return map[string]any{"rows": rows}, nil
}

func requiredID(c *pipeline.Context) (string, error) {
	id, ok := c.Params["id"]
	if !ok || id == nil || id == "" {
		return "", pipeline.ErrEntityNotFound().WithDetail("missing", "id")
	}
	return fmt.Sprint(id), nil
}

func notFoundAs(err error, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return pipeline.ErrEntityNotFound().WithDetail("id", id)
	}
	return err
}

func intParam(params map[string]any, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func decodeStages(v any) ([]map[string]any, error) {
	switch stages := v.(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		return stages, nil
	case []any:
		out := make([]map[string]any, 0, len(stages))
		for _, stage := range stages {
			m, ok := stage.(map[string]any)
			if !ok {
				return nil, &storage.DriverError{
					Code:    storage.CodeUnrecognizedStage,
					Message: fmt.Sprintf("Each element of the pipeline array must be an object, got %T", stage),
				}
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, &storage.DriverError{
			Code:    storage.CodeUnrecognizedStage,
			Message: fmt.Sprintf("The pipeline parameter must be an array, got %T", v),
		}
	}
}
