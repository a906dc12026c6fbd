package services

import (
	"sort"

	"studyhub/models"
)

// CatalogService derives option lists and item listings from a decoded
// database snapshot. Everything here is a pure computation; absence of data
// yields empty results, never errors.
type CatalogService struct{}

func NewCatalogService() *CatalogService {
	return &CatalogService{}
}

// Option is one selectable value at a cascade level.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Filter field names accepted by ApplyFilterChange.
const (
	FieldCollege  = "college"
	FieldCourse   = "course"
	FieldSemester = "semester"
	FieldDocType  = "docType"
)

func (s *CatalogService) CollegeOptions(db models.Database) []Option {
	opts := make([]Option, 0, len(db.Colleges))
	for id, college := range db.Colleges {
		opts = append(opts, Option{ID: id, Name: college.CollegeName})
	}
	sortOptions(opts)
	return opts
}

// CourseOptions is empty unless the selection names an existing college.
func (s *CatalogService) CourseOptions(db models.Database, sel models.Selection) []Option {
	college, ok := db.Colleges[sel.College]
	if sel.College == models.UnsetField || !ok {
		return []Option{}
	}
	opts := make([]Option, 0, len(college.Courses))
	for id, course := range college.Courses {
		opts = append(opts, Option{ID: id, Name: course.CourseName})
	}
	sortOptions(opts)
	return opts
}

// SemesterOptions is empty unless both college and course resolve.
func (s *CatalogService) SemesterOptions(db models.Database, sel models.Selection) []Option {
	college, ok := db.Colleges[sel.College]
	if sel.College == models.UnsetField || !ok {
		return []Option{}
	}
	course, ok := college.Courses[sel.Course]
	if sel.Course == models.UnsetField || !ok {
		return []Option{}
	}
	opts := make([]Option, 0, len(course.Sem))
	for id, sem := range course.Sem {
		opts = append(opts, Option{ID: id, Name: sem.SemName})
	}
	sortOptions(opts)
	return opts
}

// ApplyFilterChange sets one field and resets every dependent field, so a
// selection is always a valid prefix of the cascade.
func (s *CatalogService) ApplyFilterChange(sel models.Selection, field, value string) models.Selection {
	switch field {
	case FieldCollege:
		sel.College = value
		sel.Course = models.UnsetField
		sel.Semester = models.UnsetField
		sel.DocType = models.UnsetField
	case FieldCourse:
		sel.Course = value
		sel.Semester = models.UnsetField
		sel.DocType = models.UnsetField
	case FieldSemester:
		sel.Semester = value
		sel.DocType = models.UnsetField
	case FieldDocType:
		sel.DocType = value
	}
	return sel
}

// Query returns the normalized, ordered item list for a fully resolved
// selection, or an empty list when any level is unset or the bucket is
// missing.
func (s *CatalogService) Query(db models.Database, sel models.Selection) []models.Item {
	if !sel.Resolved() {
		return []models.Item{}
	}

	college, ok := db.Colleges[sel.College]
	if !ok {
		return []models.Item{}
	}
	course, ok := college.Courses[sel.Course]
	if !ok {
		return []models.Item{}
	}
	sem, ok := course.Sem[sel.Semester]
	if !ok {
		return []models.Item{}
	}
	bucket, ok := sem.Docs[sel.DocType]
	if !ok {
		return []models.Item{}
	}

	loc := models.EntryLocator{
		CollegeID:  sel.College,
		CourseID:   sel.Course,
		SemesterID: sel.Semester,
		DocType:    sel.DocType,
	}

	items := make([]models.Item, 0, len(bucket))
	for _, id := range sortedKeys(bucket) {
		// Seed buckets carry a docName placeholder key; it is not an entry.
		if id == "docName" {
			continue
		}
		loc.EntryID = id
		items = append(items, entryToItem(id, bucket[id], loc.Path()))
	}
	sortByUploadTime(items)
	return items
}

// FolderItems locates a folder entry anywhere in the catalog and returns it
// with its files. Files inherit the folder's upload timestamp.
func (s *CatalogService) FolderItems(db models.Database, folderID string) (models.Item, []models.Item, bool) {
	for collegeID, college := range db.Colleges {
		for courseID, course := range college.Courses {
			for semID, sem := range course.Sem {
				for docType, bucket := range sem.Docs {
					entry, ok := bucket[folderID]
					if !ok || !entry.IsFolder() {
						continue
					}
					loc := models.EntryLocator{
						CollegeID:  collegeID,
						CourseID:   courseID,
						SemesterID: semID,
						DocType:    docType,
						EntryID:    folderID,
					}
					folder := entryToItem(folderID, entry, loc.Path())

					files := make([]models.Item, 0, len(entry.Files))
					for _, fileID := range sortedKeys(entry.Files) {
						file := entry.Files[fileID]
						loc.FileID = fileID
						item := entryToItem(fileID, file, loc.Path())
						item.Kind = models.ItemKindFile
						if item.UploadedAt == 0 {
							item.UploadedAt = entry.UploadedAt
						}
						files = append(files, item)
					}
					sortByUploadTime(files)
					return folder, files, true
				}
			}
		}
	}
	return models.Item{}, nil, false
}

// BookmarkItems lists a user's bookmark records as items for the dedicated
// bookmarks view. Dangling records (source entry deleted) still render from
// their copied fields.
func (s *CatalogService) BookmarkItems(db models.Database, userID string) []models.Item {
	user, ok := db.Users[userID]
	if !ok {
		return []models.Item{}
	}

	items := make([]models.Item, 0, len(user.Bookmarks))
	for _, id := range sortedBookmarkKeys(user.Bookmarks) {
		bm := user.Bookmarks[id]
		kind := models.ItemKindFile
		if bm.Type == models.EntryTypeFolder {
			kind = models.ItemKindFolder
		}
		items = append(items, models.Item{
			ID:           id,
			Kind:         kind,
			DisplayName:  bm.DocName,
			FileName:     bm.FileName,
			DownloadURL:  bm.DownloadURL,
			UploadedAt:   bm.UploadedAt,
			OriginalPath: bm.OriginalPath,
		})
	}
	sortByUploadTime(items)
	return items
}

// ProfileSelection seeds a cascade selection from the user's saved profile.
// It only applies when all three profile levels are present.
func (s *CatalogService) ProfileSelection(db models.Database, userID string) (models.Selection, bool) {
	user, ok := db.Users[userID]
	if !ok {
		return models.NewSelection(), false
	}
	p := user.Profile
	if p.College == "" || p.College == models.UnsetField ||
		p.Course == "" || p.Course == models.UnsetField ||
		p.Semester == "" || p.Semester == models.UnsetField {
		return models.NewSelection(), false
	}
	sel := models.NewSelection()
	sel.College = p.College
	sel.Course = p.Course
	sel.Semester = p.Semester
	return sel, true
}

func entryToItem(id string, entry models.Entry, originalPath string) models.Item {
	kind := models.ItemKindFile
	if entry.IsFolder() {
		kind = models.ItemKindFolder
	}
	display := entry.DocName
	if display == "" {
		display = entry.FileName
	}
	return models.Item{
		ID:           id,
		Kind:         kind,
		DisplayName:  display,
		FileName:     entry.FileName,
		DownloadURL:  entry.DownloadURL,
		UploadedAt:   entry.UploadedAt,
		BookmarkedBy: entry.BookmarkedBy,
		OriginalPath: originalPath,
	}
}

// sortByUploadTime orders newest first; entries without a timestamp sort
// last. The sort is stable so equal timestamps keep their key order.
func sortByUploadTime(items []models.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].UploadedAt, items[j].UploadedAt
		if a == 0 {
			return false
		}
		if b == 0 {
			return true
		}
		return a > b
	})
}

func sortOptions(opts []Option) {
	sort.Slice(opts, func(i, j int) bool {
		if opts[i].Name != opts[j].Name {
			return opts[i].Name < opts[j].Name
		}
		return opts[i].ID < opts[j].ID
	})
}

func sortedKeys(m map[string]models.Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedBookmarkKeys(m map[string]models.Bookmark) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
