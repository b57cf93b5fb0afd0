package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "studyhelper_requests", `[]`))
	value, err := store.Get(ctx, "studyhelper_requests")
	require.NoError(t, err)
	assert.Equal(t, `[]`, value)

	require.NoError(t, store.Delete(ctx, "studyhelper_requests"))
	_, err = store.Get(ctx, "studyhelper_requests")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestFileRoundTrip(t *testing.T) {
	store, err := NewFile(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Get(ctx, "studyhelper_auth")
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "studyhelper_auth", `{"role":"requester"}`))
	value, err := store.Get(ctx, "studyhelper_auth")
	require.NoError(t, err)
	assert.Equal(t, `{"role":"requester"}`, value)

	// Overwrites replace the previous value.
	require.NoError(t, store.Set(ctx, "studyhelper_auth", `{"role":"fulfiller"}`))
	value, err = store.Get(ctx, "studyhelper_auth")
	require.NoError(t, err)
	assert.Equal(t, `{"role":"fulfiller"}`, value)

	require.NoError(t, store.Delete(ctx, "studyhelper_auth"))
	_, err = store.Get(ctx, "studyhelper_auth")
	require.ErrorIs(t, err, ErrKeyNotFound)

	// Deleting an absent key is not an error.
	require.NoError(t, store.Delete(ctx, "studyhelper_auth"))
}

func TestFileSanitizesKeys(t *testing.T) {
	store, err := NewFile(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "../escape/attempt", "x"))
	value, err := store.Get(ctx, "../escape/attempt")
	require.NoError(t, err)
	assert.Equal(t, "x", value)
}
