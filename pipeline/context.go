package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nexbase/crudgate/models"
)

// Action is one of the canonical operations on a resource service.
type Action string

const (
	ActionFind      Action = "find"
	ActionList      Action = "list"
	ActionCount     Action = "count"
	ActionGet       Action = "get"
	ActionCreate    Action = "create"
	ActionInsert    Action = "insert"
	ActionUpdate    Action = "update"
	ActionRemove    Action = "remove"
	ActionAggregate Action = "aggregate"
)

// Stage identifies a hook slot within the pipeline.
type Stage string

const (
	StageBefore Stage = "before"
	StageAfter  Stage = "after"
	StageError  Stage = "error"
)

// Ref identifies one action on a versioned service, e.g. "v1.users.get".
type Ref struct {
	Service string
	Version int
	Action  Action
}

// String returns the fully-qualified action name
func (r Ref) String() string {
	return fmt.Sprintf("v%d.%s.%s", r.Version, r.Service, r.Action)
}

// ParseRef parses a fully-qualified action name like "v1.users.get".
// The version segment is optional; "users.get" parses with version 1.
func ParseRef(s string) (Ref, error) {
	parts := strings.Split(s, ".")
	ref := Ref{Version: 1}

	if len(parts) == 3 {
		if !strings.HasPrefix(parts[0], "v") {
			return Ref{}, fmt.Errorf("invalid action reference %q: bad version segment", s)
		}
		v, err := strconv.Atoi(strings.TrimPrefix(parts[0], "v"))
		if err != nil {
			return Ref{}, fmt.Errorf("invalid action reference %q: %w", s, err)
		}
		ref.Version = v
		parts = parts[1:]
	}

	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Ref{}, fmt.Errorf("invalid action reference %q", s)
	}

	ref.Service = parts[0]
	ref.Action = Action(parts[1])
	return ref, nil
}

// Meta carries request metadata across an invocation and through every
// call-gate hop it makes. Built once per external request; resource services
// never synthesize their own.
type Meta struct {
	Caller *models.User
	Tenant *models.Tenant

	// CreditAction holds the in-flight billing annotation while a creditable
	// action executes. Set by the credit admission policy, read back by its
	// after-hook when emitting the ledger event.
	CreditAction *models.CreditAction

	RequestID string
}

// EffectiveTenantID resolves the tenant id used for scoping. A global tenant
// redirects to its pipeline tenant; a missing tenant falls back to the
// assembly's default.
func (m *Meta) EffectiveTenantID(defaultID string) string {
	if m == nil || m.Tenant == nil {
		return defaultID
	}
	return m.Tenant.EffectiveID()
}

// TenantID returns the caller tenant's own id (no global redirection),
// falling back to the given default.
func (m *Meta) TenantID(defaultID string) string {
	if m == nil || m.Tenant == nil {
		return defaultID
	}
	return m.Tenant.ID
}

// Gate is the capability to invoke another action, local or remote, carrying
// propagated request metadata. It is the only path policies use to reach
// other resource services, and the seam faked out in tests.
type Gate interface {
	// Call invokes the referenced action and awaits its result.
	Call(ctx context.Context, ref Ref, params map[string]any, meta *Meta) (map[string]any, error)

	// Emit publishes a fire-and-forget event. No acknowledgement, no ordering
	// guarantee relative to other events.
	Emit(event string, payload map[string]any)
}

// Context is the unit of state flowing through one action invocation. It is
// owned exclusively by that invocation and never shared across concurrent
// invocations.
type Context struct {
	Ctx    context.Context
	Ref    Ref
	Params map[string]any
	Meta   *Meta
	Gate   Gate

	// Result holds the handler output while after-hooks run.
	Result any
}

// NewContext creates the context for one invocation.
func NewContext(ctx context.Context, ref Ref, params map[string]any, meta *Meta, gate Gate) *Context {
	if params == nil {
		params = make(map[string]any)
	}
	if meta == nil {
		meta = &Meta{}
	}
	return &Context{
		Ctx:    ctx,
		Ref:    ref,
		Params: params,
		Meta:   meta,
		Gate:   gate,
	}
}

// Call invokes another action through the gate, propagating this
// invocation's metadata.
func (c *Context) Call(ref Ref, params map[string]any) (map[string]any, error) {
	return c.Gate.Call(c.Ctx, ref, params, c.Meta)
}

// CallAction is Call with a fully-qualified action name.
func (c *Context) CallAction(action string, params map[string]any) (map[string]any, error) {
	ref, err := ParseRef(action)
	if err != nil {
		return nil, err
	}
	return c.Call(ref, params)
}

// Query returns the query filter from params, creating it when absent.
func (c *Context) Query() map[string]any {
	q, ok := c.Params["query"].(map[string]any)
	if !ok {
		q = make(map[string]any)
		c.Params["query"] = q
	}
	return q
}
