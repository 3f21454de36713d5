package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	pkgerrors "gentree/pkg/errors"
)

func TestStore_InMemory(t *testing.T) {
	ctx := context.Background()
	s, err := Open(InMemoryConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Get(ctx, "gentree:tree")
	assert.True(t, pkgerrors.IsNotFound(err))

	value := []byte(`{"persons":[]}`)
	require.NoError(t, s.Set(ctx, "gentree:tree", value))
	value[0] = 'X'

	got, err := s.Get(ctx, "gentree:tree")
	require.NoError(t, err)
	assert.Equal(t, `{"persons":[]}`, string(got))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Path = t.TempDir()
	cfg.SyncWrites = false

	s, err := Open(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "gentree:viewstate", []byte(`{"scale":2}`)))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	s, err = Open(cfg, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "gentree:viewstate")
	require.NoError(t, err)
	assert.JSONEq(t, `{"scale":2}`, string(got))
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(DefaultConfig(), nil)
	assert.True(t, pkgerrors.IsValidation(err))
}
