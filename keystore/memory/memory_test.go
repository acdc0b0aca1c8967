package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New("sk-1", "sk-2")

	ok, err := s.Contains(ctx, "sk-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Contains(ctx, "sk-3")
	require.NoError(t, err)
	assert.False(t, ok)

	s.Add("sk-3")
	ok, _ = s.Contains(ctx, "sk-3")
	assert.True(t, ok)

	s.Remove("sk-1")
	ok, _ = s.Contains(ctx, "sk-1")
	assert.False(t, ok)
}

func TestZeroValueStore(t *testing.T) {
	var s Store
	ok, err := s.Contains(context.Background(), "anything")
	require.NoError(t, err)
	assert.False(t, ok)

	s.Add("k")
	ok, _ = s.Contains(context.Background(), "k")
	assert.True(t, ok)
}
