package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub/models"
	"studyhub/store"
)

const entryPath = "colleges/C1/courses/CS/sem/S1/docs/pyq/e1"

func seededStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	require.NoError(t, st.Set(context.Background(), entryPath, map[string]any{
		"docName":     "Midterm 2023",
		"fileName":    "midterm.pdf",
		"downloadURL": "https://cdn/e1",
		"uploadedAt":  int64(100),
	}))
	return st
}

func midtermItem() models.Item {
	return models.Item{
		ID:           "e1",
		Kind:         models.ItemKindFile,
		DisplayName:  "Midterm 2023",
		FileName:     "midterm.pdf",
		DownloadURL:  "https://cdn/e1",
		UploadedAt:   100,
		OriginalPath: entryPath,
	}
}

func TestToggleRequiresAuthentication(t *testing.T) {
	svc := NewBookmarkService(store.NewMemoryStore())

	_, err := svc.Toggle(context.Background(), models.User{}, midtermItem(), false)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestToggleRejectsItemsWithoutPath(t *testing.T) {
	svc := NewBookmarkService(store.NewMemoryStore())
	user := models.User{ID: "u1", Email: "u1@example.com"}

	item := midtermItem()
	item.OriginalPath = ""
	_, err := svc.Toggle(context.Background(), user, item, false)
	assert.ErrorIs(t, err, ErrMissingPath)

	item.OriginalPath = "colleges/C1/bogus"
	_, err = svc.Toggle(context.Background(), user, item, false)
	assert.ErrorIs(t, err, ErrMissingPath)
}

func TestToggleRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := seededStore(t)
	svc := NewBookmarkService(st)
	user := models.User{ID: "u1", Email: "u1@example.com"}

	// Add.
	res, err := svc.Toggle(ctx, user, midtermItem(), false)
	require.NoError(t, err)
	assert.True(t, res.Bookmarked)

	flag, err := st.Get(ctx, entryPath+"/bookmarkedBy/u1")
	require.NoError(t, err)
	assert.Equal(t, true, flag.Value)

	record, err := st.Get(ctx, models.UserBookmarkPath("u1", "e1"))
	require.NoError(t, err)
	require.True(t, record.Exists())
	var bm models.Bookmark
	require.NoError(t, record.Decode(&bm))
	assert.Equal(t, "Midterm 2023", bm.DocName)
	assert.Equal(t, entryPath, bm.OriginalPath)

	raw, ok := record.Value.(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, raw, "bookmarkedBy", "copy record must not carry the flag set")

	// Remove: the item now carries the flag, so the toggle flips off.
	item := midtermItem()
	item.BookmarkedBy = map[string]bool{"u1": true}
	res, err = svc.Toggle(ctx, user, item, false)
	require.NoError(t, err)
	assert.False(t, res.Bookmarked)

	flag, err = st.Get(ctx, entryPath+"/bookmarkedBy/u1")
	require.NoError(t, err)
	assert.False(t, flag.Exists())

	record, err = st.Get(ctx, models.UserBookmarkPath("u1", "e1"))
	require.NoError(t, err)
	assert.False(t, record.Exists())
}

func TestToggleInBookmarksViewAlwaysRemoves(t *testing.T) {
	ctx := context.Background()
	st := seededStore(t)
	svc := NewBookmarkService(st)
	user := models.User{ID: "u1", Email: "u1@example.com"}

	_, err := svc.Toggle(ctx, user, midtermItem(), false)
	require.NoError(t, err)

	// Items rendered from bookmark records have no BookmarkedBy set, but the
	// view itself proves the bookmark exists.
	res, err := svc.Toggle(ctx, user, midtermItem(), true)
	require.NoError(t, err)
	assert.False(t, res.Bookmarked)

	record, err := st.Get(ctx, models.UserBookmarkPath("u1", "e1"))
	require.NoError(t, err)
	assert.False(t, record.Exists())
}

func TestToggleRemovesDanglingBookmark(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewBookmarkService(st)
	user := models.User{ID: "u1", Email: "u1@example.com"}

	// Only the record exists; the source entry was deleted.
	require.NoError(t, st.Set(ctx, models.UserBookmarkPath("u1", "e1"), map[string]any{
		"docName":      "Midterm 2023",
		"originalPath": entryPath,
	}))

	res, err := svc.Toggle(ctx, user, midtermItem(), true)
	require.NoError(t, err)
	assert.False(t, res.Bookmarked)

	record, err := st.Get(ctx, models.UserBookmarkPath("u1", "e1"))
	require.NoError(t, err)
	assert.False(t, record.Exists())
}

func TestToggleFolderKeepsType(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewBookmarkService(st)
	user := models.User{ID: "u2", Email: "u2@example.com"}

	folderPath := "colleges/C1/courses/CS/sem/S1/docs/books/f1"
	item := models.Item{
		ID:           "f1",
		Kind:         models.ItemKindFolder,
		DisplayName:  "Algebra (2 files)",
		UploadedAt:   500,
		OriginalPath: folderPath,
	}

	_, err := svc.Toggle(ctx, user, item, false)
	require.NoError(t, err)

	record, err := st.Get(ctx, models.UserBookmarkPath("u2", "f1"))
	require.NoError(t, err)
	var bm models.Bookmark
	require.NoError(t, record.Decode(&bm))
	assert.Equal(t, models.EntryTypeFolder, bm.Type)
}
