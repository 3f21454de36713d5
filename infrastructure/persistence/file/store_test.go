package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "gentree/pkg/errors"
)

func TestStore_GetSet(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s, err := NewStore(dir)
	require.NoError(t, err)

	_, err = s.Get(ctx, "gentree:tree")
	assert.True(t, pkgerrors.IsNotFound(err))

	require.NoError(t, s.Set(ctx, "gentree:tree", []byte(`{"persons":[]}`)))
	require.NoError(t, s.Set(ctx, "gentree:tree", []byte(`{"persons":[{"id":"a"}]}`)))

	got, err := s.Get(ctx, "gentree:tree")
	require.NoError(t, err)
	assert.Equal(t, `{"persons":[{"id":"a"}]}`, string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files cleaned up")
	assert.Equal(t, "gentree_tree.json", entries[0].Name())
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"gentree:tree":      "gentree_tree.json",
		"gentree:viewstate": "gentree_viewstate.json",
		"../../etc/passwd":  "_.._etc_passwd.json",
		"":                  "_.json",
		"...":               "_.json",
	}
	for key, want := range tests {
		assert.Equal(t, want, FileName(key), key)
	}
}

func TestNewStore_RequiresDir(t *testing.T) {
	_, err := NewStore("")
	assert.True(t, pkgerrors.IsValidation(err))
}
