package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub/store"
)

func TestSnapshotCacheMirrorsColleges(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Set(ctx, "colleges/C1", map[string]any{"collegeName": "State College"}))

	cache, err := NewSnapshotCache(ctx, st)
	require.NoError(t, err)
	defer cache.Close()

	waitLoaded(t, cache)
	db := cache.Tree()
	require.Contains(t, db.Colleges, "C1")
	assert.Equal(t, "State College", db.Colleges["C1"].CollegeName)

	// A later write shows up without another subscription.
	require.NoError(t, st.Set(ctx, "colleges/C2", map[string]any{"collegeName": "Another"}))
	assert.Eventually(t, func() bool {
		_, ok := cache.Tree().Colleges["C2"]
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestSnapshotCacheFollowUserWaitsForFirstSnapshot(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Set(ctx, "users/u1/profile", map[string]any{"college": "C1"}))

	cache, err := NewSnapshotCache(ctx, st)
	require.NoError(t, err)
	defer cache.Close()

	// The user subtree must be readable as soon as FollowUser returns.
	require.NoError(t, cache.FollowUser(ctx, "u1"))
	db := cache.Tree()
	require.Contains(t, db.Users, "u1")
	assert.Equal(t, "C1", db.Users["u1"].Profile.College)

	// Re-following is a cheap no-op.
	require.NoError(t, cache.FollowUser(ctx, "u1"))
}

func TestSnapshotCacheUnfollowDropsSubtree(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Set(ctx, "users/u1/profile", map[string]any{"college": "C1"}))

	cache, err := NewSnapshotCache(ctx, st)
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.FollowUser(ctx, "u1"))
	cache.UnfollowUser("u1")

	assert.NotContains(t, cache.Tree().Users, "u1")
}

func waitLoaded(t *testing.T, cache *SnapshotCache) {
	t.Helper()
	require.Eventually(t, func() bool { return !cache.Loading() }, time.Second, 5*time.Millisecond)
}
