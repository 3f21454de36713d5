package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "gentree/pkg/errors"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.Get(ctx, "missing")
	assert.True(t, pkgerrors.IsNotFound(err))

	value := []byte(`{"persons":[]}`)
	require.NoError(t, s.Set(ctx, "k", value))
	value[0] = 'X'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"persons":[]}`, string(got), "store keeps its own copy")

	got[0] = 'Y'
	again, _ := s.Get(ctx, "k")
	assert.Equal(t, byte('{'), again[0])
	assert.Equal(t, []string{"k"}, s.Keys())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.Set(cancelled, "k", nil), context.Canceled)
}
