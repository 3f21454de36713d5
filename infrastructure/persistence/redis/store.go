// Package redis stores tree documents as Redis string values.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	pkgerrors "gentree/pkg/errors"
)

// Config describes the Redis connection.
type Config struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

// Store implements ports.KeyValueStore on Redis.
type Store struct {
	rdb    goredis.Cmdable
	closer func() error
	prefix string
	logger *zap.Logger
}

// Open connects and pings the server.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	rdb, err := Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := New(rdb, cfg.KeyPrefix, logger)
	s.closer = rdb.Close
	return s, nil
}

// Dial creates a client and checks that the server answers.
func Dial(ctx context.Context, cfg Config) (*goredis.Client, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, pkgerrors.NewValidationError("redis address is required")
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dial,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, pkgerrors.NewUnavailableError("redis").WithCause(fmt.Errorf("redis ping: %w", err))
	}
	return rdb, nil
}

// New wraps an existing client.
func New(rdb goredis.Cmdable, prefix string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{rdb: rdb, prefix: prefix, logger: logger.With(zap.String("service", "RedisStore"))}
}

// Get returns the value stored under key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.fullKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, pkgerrors.NewNotFoundError("key " + key)
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get "+key, err)
	}
	return data, nil
}

// Set stores value under key without expiry
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, s.fullKey(key), value, 0).Err(); err != nil {
		return pkgerrors.NewDatabaseError("set "+key, err)
	}
	return nil
}

// Close closes the client when the store owns it.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func (s *Store) fullKey(key string) string {
	return s.prefix + key
}
