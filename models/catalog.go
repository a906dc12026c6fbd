package models

// Document type buckets available under every semester.
const (
	DocTypePYQ   = "pyq"
	DocTypeNotes = "notes"
	DocTypeBooks = "books"
	DocTypeLabs  = "labs"
)

var DocTypes = []string{DocTypePYQ, DocTypeNotes, DocTypeBooks, DocTypeLabs}

func IsValidDocType(docType string) bool {
	for _, dt := range DocTypes {
		if dt == docType {
			return true
		}
	}
	return false
}

// UnsetField is the sentinel a filter field holds before the user picks a
// value. Kept as the literal the original data set used so stored profiles
// remain readable.
const UnsetField = "select"

// College is one root node of the catalog tree. Field names mirror the
// persisted tree layout.
type College struct {
	CollegeName string            `json:"collegeName" mapstructure:"collegeName"`
	Courses     map[string]Course `json:"courses" mapstructure:"courses"`
}

type Course struct {
	CourseName string              `json:"courseName" mapstructure:"courseName"`
	Sem        map[string]Semester `json:"sem" mapstructure:"sem"`
}

type Semester struct {
	SemName string                      `json:"semName" mapstructure:"semName"`
	Docs    map[string]map[string]Entry `json:"docs" mapstructure:"docs"`
}

// Entry is a node inside a document-type bucket: either a single uploaded
// file or a folder grouping several files. Folder entries carry a Files map;
// file entries carry a download URL.
type Entry struct {
	DocName       string           `json:"docName" mapstructure:"docName"`
	FileName      string           `json:"fileName,omitempty" mapstructure:"fileName"`
	DownloadURL   string           `json:"downloadURL,omitempty" mapstructure:"downloadURL"`
	Type          string           `json:"type,omitempty" mapstructure:"type"` // "" for files, "folder" for folders
	UploadedAt    int64            `json:"uploadedAt" mapstructure:"uploadedAt"`
	UploaderID    string           `json:"uploaderId,omitempty" mapstructure:"uploaderId"`
	UploaderEmail string           `json:"uploaderEmail,omitempty" mapstructure:"uploaderEmail"`
	BookmarkedBy  map[string]bool  `json:"bookmarkedBy,omitempty" mapstructure:"bookmarkedBy"`
	Files         map[string]Entry `json:"files,omitempty" mapstructure:"files"`
}

const EntryTypeFolder = "folder"

func (e Entry) IsFolder() bool {
	return e.Type == EntryTypeFolder
}

// Item is the normalized shape the catalog query hands to callers,
// regardless of whether the underlying entry is a file or a folder.
type Item struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"` // "file" or "folder"
	DisplayName  string          `json:"displayName"`
	FileName     string          `json:"fileName,omitempty"`
	DownloadURL  string          `json:"downloadURL,omitempty"`
	UploadedAt   int64           `json:"uploadedAt"`
	BookmarkedBy map[string]bool `json:"bookmarkedBy,omitempty"`
	// OriginalPath addresses the source entry in the tree; bookmark
	// operations write flag updates against it.
	OriginalPath string `json:"originalPath"`
}

const (
	ItemKindFile   = "file"
	ItemKindFolder = "folder"
)

// Selection is the cascade filter state. A deeper field is only meaningful
// when every field above it is set; ApplyFilterChange keeps that invariant.
type Selection struct {
	College  string `json:"college"`
	Course   string `json:"course"`
	Semester string `json:"semester"`
	DocType  string `json:"docType"`
}

func NewSelection() Selection {
	return Selection{
		College:  UnsetField,
		Course:   UnsetField,
		Semester: UnsetField,
		DocType:  UnsetField,
	}
}

// Resolved reports whether all four cascade levels have been chosen.
func (s Selection) Resolved() bool {
	return s.College != UnsetField && s.College != "" &&
		s.Course != UnsetField && s.Course != "" &&
		s.Semester != UnsetField && s.Semester != "" &&
		s.DocType != UnsetField && s.DocType != ""
}

// Database is the decoded snapshot of everything the service subscribes to:
// the public catalog plus per-user private subtrees.
type Database struct {
	Colleges map[string]College  `json:"colleges" mapstructure:"colleges"`
	Users    map[string]UserNode `json:"users" mapstructure:"users"`
}
