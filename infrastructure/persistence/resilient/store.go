// Package resilient wraps a key-value store with a circuit breaker.
package resilient

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"gentree/application/ports"
	pkgerrors "gentree/pkg/errors"
)

// Config holds circuit breaker settings
type Config struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultConfig returns the default breaker configuration
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Store guards every call to the inner store with one breaker. Missing keys
// and cancelled contexts do not count as failures.
type Store struct {
	inner   ports.KeyValueStore
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewStore wraps inner.
func NewStore(inner ports.KeyValueStore, cfg Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{inner: inner, logger: logger}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: isSuccessful,
	})
	return s
}

func isSuccessful(err error) bool {
	return err == nil ||
		pkgerrors.IsNotFound(err) ||
		errors.Is(err, context.Canceled)
}

// Get reads through the breaker
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.inner.Get(ctx, key)
	})
	if err != nil {
		return nil, s.translate(err)
	}
	data, _ := out.([]byte)
	return data, nil
}

// Set writes through the breaker
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.inner.Set(ctx, key, value)
	})
	return s.translate(err)
}

// State reports the breaker state.
func (s *Store) State() gobreaker.State {
	return s.breaker.State()
}

// Close closes the inner store if it can be closed.
func (s *Store) Close() error {
	if c, ok := s.inner.(ports.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Store) translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.NewUnavailableError(s.breaker.Name()).WithCause(err)
	}
	return err
}
