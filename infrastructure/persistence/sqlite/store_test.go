package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	pkgerrors "gentree/pkg/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "gentree.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Get(ctx, "gentree:tree")
	assert.True(t, pkgerrors.IsNotFound(err))

	require.NoError(t, s.Set(ctx, "gentree:tree", []byte(`{"persons":[]}`)))
	require.NoError(t, s.Set(ctx, "gentree:tree", []byte(`{"persons":[{"id":"a"}]}`)))
	require.NoError(t, s.Set(ctx, "gentree:viewstate", []byte(`{"scale":1}`)))

	got, err := s.Get(ctx, "gentree:tree")
	require.NoError(t, err)
	assert.Equal(t, `{"persons":[{"id":"a"}]}`, string(got))

	var count int64
	require.NoError(t, s.db.Model(&Entry{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open("", nil)
	assert.True(t, pkgerrors.IsValidation(err))
}
