// Package messaging delivers tree domain events to in-process subscribers.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"gentree/application/ports"
	"gentree/domain/events"
)

// AllEvents subscribes a handler to every event type.
const AllEvents = "*"

// InProcessBus implements ports.EventBus by calling handlers synchronously
// in subscription order. Handlers must not call back into the tree service
// mutations from Handle.
type InProcessBus struct {
	mu       sync.RWMutex
	handlers map[string][]ports.EventHandler
	logger   *zap.Logger
}

// NewInProcessBus creates an empty bus
func NewInProcessBus(logger *zap.Logger) *InProcessBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InProcessBus{
		handlers: make(map[string][]ports.EventHandler),
		logger:   logger,
	}
}

// Subscribe registers handler for eventType
func (b *InProcessBus) Subscribe(eventType string, handler ports.EventHandler) error {
	if eventType == "" {
		return fmt.Errorf("event type is required")
	}
	if handler == nil {
		return fmt.Errorf("handler is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// Publish delivers event to every matching handler. All handlers run even
// when one fails; the failures are joined.
func (b *InProcessBus) Publish(ctx context.Context, event events.DomainEvent) error {
	eventType := event.GetEventType()

	b.mu.RLock()
	targets := make([]ports.EventHandler, 0, len(b.handlers[eventType])+len(b.handlers[AllEvents]))
	targets = append(targets, b.handlers[eventType]...)
	targets = append(targets, b.handlers[AllEvents]...)
	b.mu.RUnlock()

	var errs []error
	for _, h := range targets {
		if !h.CanHandle(eventType) {
			continue
		}
		if err := h.Handle(ctx, event); err != nil {
			b.logger.Warn("Event handler failed",
				zap.String("event_type", eventType),
				zap.String("aggregate_id", event.GetAggregateID()),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishBatch publishes events in order
func (b *InProcessBus) PublishBatch(ctx context.Context, evs []events.DomainEvent) error {
	var errs []error
	for _, ev := range evs {
		if err := b.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
