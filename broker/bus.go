package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SubscriberFunc handles one delivered event.
type SubscriberFunc func(ctx context.Context, payload map[string]any)

// event is one published emission in flight.
type event struct {
	topic   string
	payload map[string]any
}

// Bus is a buffered, worker-pooled event bus. Delivery is fire-and-forget:
// no acknowledgement and no ordering guarantee relative to other events.
type Bus struct {
	logger      *zap.Logger
	eventChan   chan event
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	mu          sync.Mutex

	subMu       sync.RWMutex
	subscribers map[string][]SubscriberFunc
}

// BusConfig holds configuration for the event bus
type BusConfig struct {
	BufferSize  int
	WorkerCount int
}

// DefaultBusConfig returns the default configuration
func DefaultBusConfig() BusConfig {
	return BusConfig{
		BufferSize:  1024,
		WorkerCount: 2,
	}
}

// NewBus creates a new Bus instance
func NewBus(logger *zap.Logger, config BusConfig) *Bus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultBusConfig().WorkerCount
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		logger:      logger,
		eventChan:   make(chan event, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[string][]SubscriberFunc),
	}
}

// Subscribe registers a handler for a topic. Registration happens during
// assembly, before traffic flows.
func (b *Bus) Subscribe(topic string, fn SubscriberFunc) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], fn)
}

// Publish queues an event for delivery without blocking. When the buffer is
// full the event is dropped with a warning; emission carries no delivery
// guarantee.
func (b *Bus) Publish(topic string, payload map[string]any) {
	select {
	case b.eventChan <- event{topic: topic, payload: payload}:
	default:
		b.logger.Warn("event buffer full, dropping event",
			zap.String("topic", topic))
	}
}

// Start launches the worker goroutines.
func (b *Bus) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return fmt.Errorf("event bus already started")
	}

	for i := 0; i < b.workerCount; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}

	b.started = true
	b.logger.Info("started event bus",
		zap.Int("worker_count", b.workerCount),
		zap.Int("buffer_size", b.bufferSize))
	return nil
}

// Stop closes the bus and waits for pending events to drain.
func (b *Bus) Stop() error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return fmt.Errorf("event bus not started")
	}
	b.mu.Unlock()

	close(b.eventChan)

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.cancel()
		return nil
	case <-time.After(10 * time.Second):
		b.cancel()
		return fmt.Errorf("event bus stop timeout")
	}
}

// worker delivers queued events to all topic subscribers.
func (b *Bus) worker(id int) {
	defer b.wg.Done()

	for ev := range b.eventChan {
		b.subMu.RLock()
		handlers := b.subscribers[ev.topic]
		b.subMu.RUnlock()

		for _, handler := range handlers {
			b.deliver(ev, handler)
		}
	}
}

func (b *Bus) deliver(ev event, handler SubscriberFunc) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked",
				zap.String("topic", ev.topic),
				zap.Any("panic", r))
		}
	}()
	handler(b.ctx, ev.payload)
}
