package services

import (
	"context"
	"errors"
	"fmt"

	"studyhub/models"
	"studyhub/store"
)

var (
	ErrUnauthenticated = errors.New("user is not authenticated")
	ErrMissingPath     = errors.New("item has no source path")
)

// BookmarkService keeps a user's bookmark list and the flags on source
// entries in step. Both halves of a toggle go through one atomic multi-path
// update, so a partial write cannot happen.
type BookmarkService struct {
	store store.TreeStore
}

func NewBookmarkService(st store.TreeStore) *BookmarkService {
	return &BookmarkService{store: st}
}

// ToggleResult reports which way a toggle went.
type ToggleResult struct {
	Bookmarked bool `json:"bookmarked"`
}

// Toggle flips the bookmark state of item for user. inBookmarksView marks a
// toggle issued from the dedicated bookmarks list, where every item is by
// definition bookmarked.
func (s *BookmarkService) Toggle(ctx context.Context, user models.User, item models.Item, inBookmarksView bool) (ToggleResult, error) {
	if !user.Authenticated() {
		return ToggleResult{}, ErrUnauthenticated
	}
	if item.OriginalPath == "" {
		return ToggleResult{}, ErrMissingPath
	}
	loc, err := models.ParseEntryPath(item.OriginalPath)
	if err != nil {
		return ToggleResult{}, fmt.Errorf("%w: %v", ErrMissingPath, err)
	}

	bookmarked := inBookmarksView || item.BookmarkedBy[user.ID]

	recordPath := models.UserBookmarkPath(user.ID, item.ID)
	flagPath := loc.BookmarkFlagPath(user.ID)

	var updates map[string]any
	if bookmarked {
		// Removing a dangling bookmark still works: deleting a missing
		// flag path is a no-op.
		updates = map[string]any{
			recordPath: nil,
			flagPath:   nil,
		}
	} else {
		updates = map[string]any{
			recordPath: bookmarkRecord(item),
			flagPath:   true,
		}
	}

	if err := s.store.Update(ctx, updates); err != nil {
		return ToggleResult{}, fmt.Errorf("failed to sync bookmark: %w", err)
	}
	return ToggleResult{Bookmarked: !bookmarked}, nil
}

// bookmarkRecord copies the item's displayable fields, dropping the flag set
// the way the source view does before storing a bookmark.
func bookmarkRecord(item models.Item) map[string]any {
	record := map[string]any{
		"docName":      item.DisplayName,
		"uploadedAt":   item.UploadedAt,
		"originalPath": item.OriginalPath,
	}
	if item.FileName != "" {
		record["fileName"] = item.FileName
	}
	if item.DownloadURL != "" {
		record["downloadURL"] = item.DownloadURL
	}
	if item.Kind == models.ItemKindFolder {
		record["type"] = models.EntryTypeFolder
	}
	return record
}
