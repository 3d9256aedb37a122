package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKV_GetMissing(t *testing.T) {
	s := openTestStore(t)

	v, ok, err := s.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestKV_SetOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "daily:goal_nudge", "v1"))
	require.NoError(t, s.Set(ctx, "daily:goal_nudge", "v2"))

	v, ok, err := s.Get(ctx, "daily:goal_nudge")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	n, err := s.count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestKV_DeleteIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "reminder:act-1", "{}"))
	require.NoError(t, s.Delete(ctx, "reminder:act-1"))
	require.NoError(t, s.Delete(ctx, "reminder:act-1"))

	_, ok, err := s.Get(ctx, "reminder:act-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKV_KeysPrefixOrdered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "reminder:b", "{}"))
	require.NoError(t, s.Set(ctx, "reminder:a", "{}"))
	require.NoError(t, s.Set(ctx, "daily:daily_focus", "{}"))

	keys, err := s.Keys(ctx, "reminder:")
	require.NoError(t, err)
	assert.Equal(t, []string{"reminder:a", "reminder:b"}, keys)

	keys, err = s.Keys(ctx, "aggregate")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
