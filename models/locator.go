package models

import (
	"fmt"
	"strings"
)

// EntryLocator is the one place catalog paths are built and parsed. Every
// component that needs a tree path goes through it instead of assembling
// string templates by hand.
type EntryLocator struct {
	CollegeID  string
	CourseID   string
	SemesterID string
	DocType    string
	EntryID    string
	FileID     string // set only for a file nested inside a folder entry
}

// BucketPath returns the path of the document-type bucket holding the entry.
func (l EntryLocator) BucketPath() string {
	return fmt.Sprintf("colleges/%s/courses/%s/sem/%s/docs/%s",
		l.CollegeID, l.CourseID, l.SemesterID, l.DocType)
}

// Path returns the full path of the entry, descending into the folder's
// files map when FileID is set.
func (l EntryLocator) Path() string {
	p := l.BucketPath() + "/" + l.EntryID
	if l.FileID != "" {
		p += "/files/" + l.FileID
	}
	return p
}

// BookmarkFlagPath returns where a user's bookmark flag lives on the entry.
func (l EntryLocator) BookmarkFlagPath(userID string) string {
	return l.Path() + "/bookmarkedBy/" + userID
}

// ParseEntryPath parses a stored originalPath back into a locator. It
// accepts both plain entries and folder-nested files.
func ParseEntryPath(path string) (EntryLocator, error) {
	segs := strings.Split(strings.Trim(path, "/"), "/")

	// colleges/{c}/courses/{co}/sem/{s}/docs/{dt}/{e}[/files/{f}]
	if len(segs) != 9 && len(segs) != 11 {
		return EntryLocator{}, fmt.Errorf("malformed entry path: %q", path)
	}
	if segs[0] != "colleges" || segs[2] != "courses" || segs[4] != "sem" || segs[6] != "docs" {
		return EntryLocator{}, fmt.Errorf("malformed entry path: %q", path)
	}

	loc := EntryLocator{
		CollegeID:  segs[1],
		CourseID:   segs[3],
		SemesterID: segs[5],
		DocType:    segs[7],
		EntryID:    segs[8],
	}
	if len(segs) == 11 {
		if segs[9] != "files" {
			return EntryLocator{}, fmt.Errorf("malformed entry path: %q", path)
		}
		loc.FileID = segs[10]
	}
	return loc, nil
}

// UserBookmarkPath returns the path of a user's bookmark record for an entry.
func UserBookmarkPath(userID, entryID string) string {
	return fmt.Sprintf("users/%s/bookmarks/%s", userID, entryID)
}

// UserProfilePath returns the path of a user's saved filter profile.
func UserProfilePath(userID string) string {
	return fmt.Sprintf("users/%s/profile", userID)
}

// UserAccountPath returns the path of a user's account record.
func UserAccountPath(userID string) string {
	return fmt.Sprintf("users/%s/account", userID)
}
