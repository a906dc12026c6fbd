package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	err := st.Set(ctx, "colleges/C1/courses/CS", map[string]any{"courseName": "CS"})
	require.NoError(t, err)

	snap, err := st.Get(ctx, "colleges/C1/courses/CS/courseName")
	require.NoError(t, err)
	assert.True(t, snap.Exists())
	assert.Equal(t, "CS", snap.Value)

	snap, err = st.Get(ctx, "colleges/C1/courses/EE")
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}

func TestMemoryStoreUpdateWritesAndDeletes(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	require.NoError(t, st.Set(ctx, "users/u1/bookmarks/e1", map[string]any{"docName": "x"}))

	err := st.Update(ctx, map[string]any{
		"users/u1/bookmarks/e1":              nil,
		"colleges/C1/courses/CS/sem/S1/docs": map[string]any{"pyq": map[string]any{}},
		"users/u1/profile":                   map[string]any{"college": "C1"},
	})
	require.NoError(t, err)

	snap, _ := st.Get(ctx, "users/u1/bookmarks/e1")
	assert.False(t, snap.Exists())

	snap, _ = st.Get(ctx, "users/u1/profile/college")
	assert.Equal(t, "C1", snap.Value)
}

func TestMemoryStoreServerTimestamp(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	st.SetNowFunc(func() int64 { return 4200 })

	require.NoError(t, st.Set(ctx, "colleges/C1/courses/CS/sem/S1/docs/pyq/e1", map[string]any{
		"docName":    "Mid Term",
		"uploadedAt": ServerTimestamp,
	}))

	snap, err := st.Get(ctx, "colleges/C1/courses/CS/sem/S1/docs/pyq/e1/uploadedAt")
	require.NoError(t, err)
	assert.Equal(t, int64(4200), snap.Value)
}

func TestMemoryStoreSubscribe(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	require.NoError(t, st.Set(ctx, "colleges/C1", map[string]any{"collegeName": "X"}))

	sub, err := st.Subscribe(ctx, "colleges")
	require.NoError(t, err)
	defer sub.Close()

	first := recvSnapshot(t, sub)
	root, ok := first.Value.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, root, "C1")

	// A write below the subscribed path triggers a fresh full snapshot.
	require.NoError(t, st.Set(ctx, "colleges/C2", map[string]any{"collegeName": "Y"}))
	second := recvSnapshot(t, sub)
	root = second.Value.(map[string]any)
	assert.Contains(t, root, "C1")
	assert.Contains(t, root, "C2")

	// Writes to unrelated subtrees stay silent.
	require.NoError(t, st.Set(ctx, "users/u1/profile", map[string]any{"college": "C1"}))
	select {
	case snap := <-sub.Snapshots():
		t.Fatalf("unexpected snapshot for unrelated write: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStoreSubscribeClose(t *testing.T) {
	st := NewMemoryStore()

	sub, err := st.Subscribe(context.Background(), "colleges")
	require.NoError(t, err)

	recvSnapshot(t, sub)
	sub.Close()

	_, open := <-sub.Snapshots()
	assert.False(t, open)

	// Closing twice must not panic.
	sub.Close()
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	require.NoError(t, st.Set(ctx, "colleges/C1", map[string]any{"collegeName": "X"}))

	snap, err := st.Get(ctx, "colleges")
	require.NoError(t, err)
	snap.Value.(map[string]any)["C1"].(map[string]any)["collegeName"] = "mutated"

	again, err := st.Get(ctx, "colleges/C1/collegeName")
	require.NoError(t, err)
	assert.Equal(t, "X", again.Value)
}

func TestSplitPathRejectsBadSegments(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "empty", path: ""},
		{name: "slashes only", path: "///"},
		{name: "dot in segment", path: "colleges/a.b"},
		{name: "dollar in segment", path: "colleges/$where"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := splitPath(tt.path)
			assert.Error(t, err)
		})
	}
}

func recvSnapshot(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap := <-sub.Snapshots():
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}
