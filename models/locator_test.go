package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryLocatorPaths(t *testing.T) {
	loc := EntryLocator{
		CollegeID:  "C1",
		CourseID:   "CS",
		SemesterID: "S1",
		DocType:    DocTypePYQ,
		EntryID:    "e1",
	}

	assert.Equal(t, "colleges/C1/courses/CS/sem/S1/docs/pyq", loc.BucketPath())
	assert.Equal(t, "colleges/C1/courses/CS/sem/S1/docs/pyq/e1", loc.Path())
	assert.Equal(t, "colleges/C1/courses/CS/sem/S1/docs/pyq/e1/bookmarkedBy/u1", loc.BookmarkFlagPath("u1"))

	loc.FileID = "f1"
	assert.Equal(t, "colleges/C1/courses/CS/sem/S1/docs/pyq/e1/files/f1", loc.Path())
}

func TestParseEntryPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    EntryLocator
		wantErr bool
	}{
		{
			name: "plain entry",
			path: "colleges/C1/courses/CS/sem/S1/docs/notes/e9",
			want: EntryLocator{CollegeID: "C1", CourseID: "CS", SemesterID: "S1", DocType: "notes", EntryID: "e9"},
		},
		{
			name: "folder nested file",
			path: "colleges/C1/courses/CS/sem/S1/docs/labs/e2/files/f7",
			want: EntryLocator{CollegeID: "C1", CourseID: "CS", SemesterID: "S1", DocType: "labs", EntryID: "e2", FileID: "f7"},
		},
		{name: "too short", path: "colleges/C1/courses/CS", wantErr: true},
		{name: "wrong keyword", path: "colleges/C1/classes/CS/sem/S1/docs/pyq/e1", wantErr: true},
		{name: "bad nested keyword", path: "colleges/C1/courses/CS/sem/S1/docs/pyq/e1/items/f1", wantErr: true},
		{name: "empty", path: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEntryPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEntryPathRoundTrip(t *testing.T) {
	loc := EntryLocator{CollegeID: "C1", CourseID: "CS", SemesterID: "S1", DocType: DocTypeBooks, EntryID: "e3", FileID: "f2"}
	parsed, err := ParseEntryPath(loc.Path())
	require.NoError(t, err)
	assert.Equal(t, loc, parsed)
}
