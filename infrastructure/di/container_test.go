package di

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gentree/application/commands"
	"gentree/infrastructure/config"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.StorageBackend = backend
	cfg.DataDir = t.TempDir()
	cfg.PhotoDir = t.TempDir()
	cfg.LogLevel = "error"
	require.NoError(t, cfg.Validate())
	return cfg
}

func initialize(t *testing.T, cfg *config.Config) (*Container, func()) {
	t.Helper()
	container, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, container.Tree.WaitReady(ctx))
	return container, cleanup
}

func TestInitializeContainer_PersistsAcrossRestarts(t *testing.T) {
	backends := []string{config.StorageFile, config.StorageBadger, config.StorageSQLite}

	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)

			first, cleanup := initialize(t, cfg)
			cmd := commands.CreatePersonCommand{
				PersonID:     "p1",
				PersonFields: commands.PersonFields{FirstName: "Ada"},
				Place:        true,
			}
			require.NoError(t, first.CommandBus.Send(context.Background(), cmd))
			require.NoError(t, first.CommandBus.Send(context.Background(), commands.UpdateViewStateCommand{Scale: 1.5}))
			cleanup()

			second, cleanup := initialize(t, cfg)
			defer cleanup()

			p, ok := second.Tree.Person("p1")
			require.True(t, ok, "person survives a restart")
			assert.Equal(t, "Ada", p.FirstName)
			_, placed := second.Tree.State().Position("p1")
			assert.True(t, placed)
			assert.Equal(t, 1.5, second.Views.Current().Scale)
		})
	}
}

func TestInitializeContainer_Defaults(t *testing.T) {
	cfg := testConfig(t, config.StorageMemory)
	container, cleanup := initialize(t, cfg)
	defer cleanup()

	assert.Nil(t, container.Validator, "auth is off by default")
	assert.NotNil(t, container.Collector)
	assert.NotNil(t, container.Photos)
	assert.Same(t, cfg, container.Config)
}

func TestInitializeContainer_AuthEnabled(t *testing.T) {
	cfg := testConfig(t, config.StorageMemory)
	cfg.EnableAuth = true
	cfg.JWTSecret = "a-secret-that-is-long-enough-for-tests"
	require.NoError(t, cfg.Validate())

	container, cleanup := initialize(t, cfg)
	defer cleanup()
	assert.NotNil(t, container.Validator)
}

func TestInitializeContainer_UnknownBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.StorageBackend = "floppy"
	cfg.LogLevel = "error"

	_, _, err := InitializeContainer(context.Background(), cfg)
	assert.Error(t, err)
}

func TestProvideLogLevel(t *testing.T) {
	cfg := config.Defaults()
	cfg.LogLevel = "warn"
	level, err := ProvideLogLevel(cfg)
	require.NoError(t, err)
	assert.Equal(t, "warn", level.String())

	cfg.LogLevel = "loud"
	_, err = ProvideLogLevel(cfg)
	assert.Error(t, err)
}

func TestProvideTracer(t *testing.T) {
	tests := []struct {
		name      string
		enabled   bool
		endpoint  string
		wantValid bool
	}{
		{"disabled", false, "", false},
		{"stdout", true, "", true},
		{"otlp", true, "127.0.0.1:4317", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.EnableTracing = tt.enabled
			cfg.OTLPEndpoint = tt.endpoint
			cfg.OTLPInsecure = true

			tracer, cleanup, err := ProvideTracer(context.Background(), cfg, zap.NewNop())
			require.NoError(t, err)
			defer cleanup()

			_, span := tracer.Start(context.Background(), "load")
			defer span.End()
			assert.Equal(t, tt.wantValid, span.SpanContext().IsValid())
		})
	}
}
