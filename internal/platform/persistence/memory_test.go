package persistence

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenStore_UpsertInsertsNewRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()

	require.NoError(t, store.UpsertToken(ctx, "tok-1", "user-a", 100))

	rec, ok := store.Record("tok-1")
	require.True(t, ok)
	assert.Equal(t, "user-a", rec.OwnerUserID)
	assert.Equal(t, int64(100), rec.LastUpdated)
}

func TestMemoryTokenStore_UpsertReassignsOwner(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()

	require.NoError(t, store.UpsertToken(ctx, "tok-1", "user-a", 100))
	require.NoError(t, store.UpsertToken(ctx, "tok-1", "user-b", 200))

	// Exactly one record, reflecting the second owner and timestamp.
	assert.Empty(t, store.ListTokensForUser(ctx, "user-a"))
	assert.Equal(t, []string{"tok-1"}, store.ListTokensForUser(ctx, "user-b"))

	rec, ok := store.Record("tok-1")
	require.True(t, ok)
	assert.Equal(t, "user-b", rec.OwnerUserID)
	assert.Equal(t, int64(200), rec.LastUpdated)
}

func TestMemoryTokenStore_UpsertRefreshesTimestamp(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()

	require.NoError(t, store.UpsertToken(ctx, "tok-1", "user-a", 100))
	require.NoError(t, store.UpsertToken(ctx, "tok-1", "user-a", 300))

	rec, ok := store.Record("tok-1")
	require.True(t, ok)
	assert.Equal(t, "user-a", rec.OwnerUserID)
	assert.Equal(t, int64(300), rec.LastUpdated)
}

func TestMemoryTokenStore_DeleteTokens(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()

	require.NoError(t, store.UpsertToken(ctx, "tok-1", "user-a", 100))
	require.NoError(t, store.UpsertToken(ctx, "tok-2", "user-a", 100))

	// Empty input and absent tokens are no-ops.
	require.NoError(t, store.DeleteTokens(ctx, nil))
	require.NoError(t, store.DeleteTokens(ctx, []string{"never-registered"}))

	require.NoError(t, store.DeleteTokens(ctx, []string{"tok-1", "never-registered"}))
	assert.Equal(t, []string{"tok-2"}, store.ListTokensForUser(ctx, "user-a"))
}

func TestNoopTokenStore_DegradesQuietly(t *testing.T) {
	ctx := context.Background()
	store := NewNoopTokenStore(zerolog.Nop())

	assert.NoError(t, store.UpsertToken(ctx, "tok-1", "user-a", 100))
	assert.Empty(t, store.ListTokensForUser(ctx, "user-a"))
	assert.NoError(t, store.DeleteTokens(ctx, []string{"tok-1"}))
}
