// Package pipeline implements the hook-composition engine: ordered,
// per-action, per-stage interception of resource service operations.
package pipeline

// Hook is a before/after transformation over the action context. Before
// hooks mutate params and metadata; after hooks observe or rewrite the
// handler result on the context.
type Hook func(*Context) error

// ErrorHook gets a chance to translate a failure into a taxonomy descriptor.
// It returns either the translated error or the error it was given; it never
// returns a successful value.
type ErrorHook func(*Context, error) error

// Handler is the underlying storage/business operation wrapped by the hooks.
type Handler func(*Context) (any, error)

// Hooks holds the ordered hook lists for every action of one service.
// Composed once at service-definition time; immutable during execution.
type Hooks struct {
	before  map[Action][]Hook
	after   map[Action][]Hook
	onError map[Action][]ErrorHook
}

// NewHooks creates an empty hook set
func NewHooks() *Hooks {
	return &Hooks{
		before:  make(map[Action][]Hook),
		after:   make(map[Action][]Hook),
		onError: make(map[Action][]ErrorHook),
	}
}

// Before appends hooks to the before slot of an action, preserving
// registration order.
func (h *Hooks) Before(action Action, hooks ...Hook) *Hooks {
	h.before[action] = append(h.before[action], hooks...)
	return h
}

// After appends hooks to the after slot of an action.
func (h *Hooks) After(action Action, hooks ...Hook) *Hooks {
	h.after[action] = append(h.after[action], hooks...)
	return h
}

// OnError appends hooks to the error slot of an action.
func (h *Hooks) OnError(action Action, hooks ...ErrorHook) *Hooks {
	h.onError[action] = append(h.onError[action], hooks...)
	return h
}

// Merge appends another hook set after this one, slot by slot. Used to layer
// service-specific hooks on top of the core assembly.
func (h *Hooks) Merge(other *Hooks) *Hooks {
	if other == nil {
		return h
	}
	for action, hooks := range other.before {
		h.before[action] = append(h.before[action], hooks...)
	}
	for action, hooks := range other.after {
		h.after[action] = append(h.after[action], hooks...)
	}
	for action, hooks := range other.onError {
		h.onError[action] = append(h.onError[action], hooks...)
	}
	return h
}

// Run executes one invocation: before hooks in registration order, the
// handler, then after hooks over the result. Any failure short-circuits to
// the error stage; a before-hook failure means the handler never executes.
func (h *Hooks) Run(c *Context, handler Handler) (any, error) {
	for _, hook := range h.before[c.Ref.Action] {
		if err := hook(c); err != nil {
			return nil, h.fail(c, err)
		}
	}

	result, err := handler(c)
	if err != nil {
		return nil, h.fail(c, err)
	}
	c.Result = result

	for _, hook := range h.after[c.Ref.Action] {
		if err := hook(c); err != nil {
			return nil, h.fail(c, err)
		}
	}

	return c.Result, nil
}

// fail runs the error hooks for the action in order, each given the chance
// to translate the failure. A hook that returns nil is treated as not
// consuming the error; the original propagates unchanged.
func (h *Hooks) fail(c *Context, err error) error {
	for _, hook := range h.onError[c.Ref.Action] {
		if translated := hook(c, err); translated != nil {
			err = translated
		}
	}
	return err
}
