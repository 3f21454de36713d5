package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gentree/domain/events"
)

// LoggingHandler writes every event to the log.
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a LoggingHandler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

func (h *LoggingHandler) CanHandle(string) bool { return true }

func (h *LoggingHandler) Handle(_ context.Context, event events.DomainEvent) error {
	h.logger.Debug("Tree event",
		zap.String("event_type", event.GetEventType()),
		zap.String("aggregate_id", event.GetAggregateID()),
		zap.Time("timestamp", event.GetTimestamp()))
	return nil
}

// Envelope is the JSON message published for each event.
type Envelope struct {
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregateId"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Payload     json.RawMessage `json:"payload"`
}

// NewEnvelope wraps an event for publication.
func NewEnvelope(event events.DomainEvent) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", event.GetEventType(), err)
	}
	return Envelope{
		Type:        event.GetEventType(),
		AggregateID: event.GetAggregateID(),
		OccurredAt:  event.GetTimestamp().UTC(),
		Payload:     payload,
	}, nil
}

// Publisher is the subset of the Redis client the forwarder needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// RedisForwarder republishes events on a Redis pub/sub channel so other
// processes can follow tree changes.
type RedisForwarder struct {
	rdb     Publisher
	channel string
	timeout time.Duration
}

// NewRedisForwarder creates a forwarder for channel
func NewRedisForwarder(rdb Publisher, channel string) *RedisForwarder {
	if channel == "" {
		channel = "gentree:events"
	}
	return &RedisForwarder{rdb: rdb, channel: channel, timeout: 2 * time.Second}
}

func (f *RedisForwarder) CanHandle(string) bool { return true }

func (f *RedisForwarder) Handle(ctx context.Context, event events.DomainEvent) error {
	env, err := NewEnvelope(event)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.rdb.Publish(ctx, f.channel, raw).Err()
}
