// Package instrumented decorates a key-value store with metrics and spans.
package instrumented

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"gentree/application/ports"
	pkgerrors "gentree/pkg/errors"
	"gentree/pkg/observability"
)

// Observer receives one record per store call.
type Observer interface {
	RecordStoreOperation(backend, operation string, duration time.Duration, err error)
}

// Store times every call and wraps it in a span.
type Store struct {
	inner    ports.KeyValueStore
	backend  string
	observer Observer
	tracer   *observability.Tracer
}

// NewStore wraps inner. observer and tracer may be nil.
func NewStore(inner ports.KeyValueStore, backend string, observer Observer, tracer *observability.Tracer) *Store {
	if tracer == nil {
		tracer = observability.NewTracer("store", nil)
	}
	return &Store{inner: inner, backend: backend, observer: observer, tracer: tracer}
}

// Get reads from the inner store
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "get",
		attribute.String("store.backend", s.backend),
		attribute.String("store.key", key))
	defer span.End()

	start := time.Now()
	data, err := s.inner.Get(ctx, key)
	s.record("get", start, err)

	if err != nil && !pkgerrors.IsNotFound(err) {
		observability.RecordError(span, err)
	}
	span.SetAttributes(attribute.Int("store.bytes", len(data)))
	return data, err
}

// Set writes to the inner store
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	ctx, span := s.tracer.Start(ctx, "set",
		attribute.String("store.backend", s.backend),
		attribute.String("store.key", key),
		attribute.Int("store.bytes", len(value)))
	defer span.End()

	start := time.Now()
	err := s.inner.Set(ctx, key, value)
	s.record("set", start, err)
	observability.RecordError(span, err)
	return err
}

// Close closes the inner store if it can be closed.
func (s *Store) Close() error {
	if c, ok := s.inner.(ports.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Store) record(op string, start time.Time, err error) {
	if s.observer != nil {
		s.observer.RecordStoreOperation(s.backend, op, time.Since(start), err)
	}
}
