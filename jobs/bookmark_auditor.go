package jobs

import (
	"context"
	"log"
	"time"

	"studyhub/models"
	"studyhub/store"
)

// BookmarkAuditor periodically walks every user's bookmarks and reports the
// ones whose source entry no longer exists in the catalog. Dangling
// bookmarks are legal (the copy record keeps rendering) but a growing count
// usually means uploads were removed in bulk, so it is worth surfacing.
type BookmarkAuditor struct {
	store    store.TreeStore
	interval time.Duration
	logger   *log.Logger
}

func NewBookmarkAuditor(st store.TreeStore, interval time.Duration) *BookmarkAuditor {
	return &BookmarkAuditor{
		store:    st,
		interval: interval,
		logger:   log.New(log.Writer(), "[BOOKMARK_AUDIT] ", log.LstdFlags),
	}
}

// Start runs the audit job until ctx is canceled.
func (ba *BookmarkAuditor) Start(ctx context.Context) {
	ba.logger.Println("Starting bookmark audit job...")

	// Run immediately on start
	ba.runAudit(ctx)

	ticker := time.NewTicker(ba.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ba.runAudit(ctx)
		case <-ctx.Done():
			ba.logger.Println("Bookmark audit job stopped")
			return
		}
	}
}

func (ba *BookmarkAuditor) runAudit(ctx context.Context) {
	ba.logger.Println("Running bookmark audit...")

	auditCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	colleges, users, err := ba.loadTrees(auditCtx)
	if err != nil {
		ba.logger.Printf("Error loading trees: %v", err)
		return
	}

	var total, dangling, missingFlag int
	for userID, node := range users {
		for entryID, bm := range node.Bookmarks {
			total++
			entry, found := resolveEntry(colleges, bm.OriginalPath)
			if !found {
				dangling++
				ba.logger.Printf("Dangling bookmark: user=%s entry=%s path=%s", userID, entryID, bm.OriginalPath)
				continue
			}
			if !entry.BookmarkedBy[userID] {
				missingFlag++
				ba.logger.Printf("Bookmark flag missing on source: user=%s entry=%s path=%s", userID, entryID, bm.OriginalPath)
			}
		}
	}

	ba.logger.Printf("Bookmark audit completed. Total: %d, Dangling: %d, Missing flags: %d", total, dangling, missingFlag)
}

func (ba *BookmarkAuditor) loadTrees(ctx context.Context) (map[string]models.College, map[string]models.UserNode, error) {
	collegesSnap, err := ba.store.Get(ctx, "colleges")
	if err != nil {
		return nil, nil, err
	}
	colleges := make(map[string]models.College)
	if collegesSnap.Exists() {
		if err := collegesSnap.Decode(&colleges); err != nil {
			return nil, nil, err
		}
	}

	usersSnap, err := ba.store.Get(ctx, "users")
	if err != nil {
		return nil, nil, err
	}
	users := make(map[string]models.UserNode)
	if usersSnap.Exists() {
		if err := usersSnap.Decode(&users); err != nil {
			return nil, nil, err
		}
	}

	return colleges, users, nil
}

// resolveEntry follows an entry path through the colleges tree, descending
// into a folder's files map when the path addresses a nested file.
func resolveEntry(colleges map[string]models.College, path string) (models.Entry, bool) {
	loc, err := models.ParseEntryPath(path)
	if err != nil {
		return models.Entry{}, false
	}

	college, ok := colleges[loc.CollegeID]
	if !ok {
		return models.Entry{}, false
	}
	course, ok := college.Courses[loc.CourseID]
	if !ok {
		return models.Entry{}, false
	}
	semester, ok := course.Sem[loc.SemesterID]
	if !ok {
		return models.Entry{}, false
	}
	bucket, ok := semester.Docs[loc.DocType]
	if !ok {
		return models.Entry{}, false
	}
	entry, ok := bucket[loc.EntryID]
	if !ok {
		return models.Entry{}, false
	}
	if loc.FileID == "" {
		return entry, true
	}
	nested, ok := entry.Files[loc.FileID]
	return nested, ok
}
