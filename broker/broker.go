// Package broker provides the in-process action registry backing the call
// gate, plus the asynchronous event bus used for fire-and-forget emissions.
package broker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/nexbase/crudgate/pipeline"
)

// ActionFunc is a registered action endpoint. It receives decoded params and
// the propagated request metadata.
type ActionFunc func(ctx context.Context, params map[string]any, meta *pipeline.Meta) (any, error)

// Broker routes call-gate invocations to registered actions and fans out
// emitted events. It implements pipeline.Gate.
type Broker struct {
	logger *zap.Logger
	bus    *Bus

	mu      sync.RWMutex
	actions map[string]ActionFunc
}

// New creates a broker with an event bus sized by cfg.
func New(logger *zap.Logger, busConfig BusConfig) *Broker {
	return &Broker{
		logger:  logger,
		bus:     NewBus(logger, busConfig),
		actions: make(map[string]ActionFunc),
	}
}

// Register binds an action reference to its endpoint. Last registration
// wins; services register during assembly, before any traffic flows.
func (b *Broker) Register(ref pipeline.Ref, fn ActionFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.actions[ref.String()] = fn
}

// Call invokes the referenced action and awaits its result. An unregistered
// reference fails with crud-action-not-found.
func (b *Broker) Call(ctx context.Context, ref pipeline.Ref, params map[string]any, meta *pipeline.Meta) (map[string]any, error) {
	b.mu.RLock()
	fn, ok := b.actions[ref.String()]
	b.mu.RUnlock()

	if !ok {
		return nil, pipeline.ErrActionNotFound().WithDetail("action", ref.String())
	}

	result, err := fn(ctx, params, meta)
	if err != nil {
		return nil, err
	}

	switch value := result.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return value, nil
	default:
		return map[string]any{"result": value}, nil
	}
}

// Emit publishes a fire-and-forget event to all subscribers.
func (b *Broker) Emit(event string, payload map[string]any) {
	b.bus.Publish(event, payload)
}

// Subscribe registers a handler for an event topic.
func (b *Broker) Subscribe(event string, fn SubscriberFunc) {
	b.bus.Subscribe(event, fn)
}

// Start launches the event bus workers.
func (b *Broker) Start() error {
	return b.bus.Start()
}

// Stop drains and stops the event bus.
func (b *Broker) Stop() error {
	return b.bus.Stop()
}
