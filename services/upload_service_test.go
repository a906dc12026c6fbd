package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub/models"
	"studyhub/store"
)

// fakeAssetHost records uploads and hands back deterministic URLs.
type fakeAssetHost struct {
	mu      sync.Mutex
	objects []string
	fail    error
}

func (f *fakeAssetHost) Upload(_ context.Context, objectName string, r io.Reader, _ int64, onProgress func(float64)) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	if onProgress != nil {
		onProgress(100)
	}
	f.mu.Lock()
	f.objects = append(f.objects, objectName)
	f.mu.Unlock()
	return "https://cdn/" + objectName, nil
}

func (f *fakeAssetHost) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func uploadDestination() models.Selection {
	return models.Selection{College: "C1", Course: "CS", Semester: "S1", DocType: "notes"}
}

func stagedFile(name string, size int64) UploadFile {
	return UploadFile{
		DisplayName: name,
		Filename:    strings.ToLower(name) + ".pdf",
		Size:        size,
		Content:     strings.NewReader("content"),
	}
}

func newUploadFixture() (*store.MemoryStore, *fakeAssetHost, *UploadService) {
	st := store.NewMemoryStore()
	st.SetNowFunc(func() int64 { return 4200 })
	assets := &fakeAssetHost{}
	svc := NewUploadService(st, assets, 10*1024*1024)
	return st, assets, svc
}

func bucketEntries(t *testing.T, st *store.MemoryStore, docType string) map[string]models.Entry {
	t.Helper()
	snap, err := st.Get(context.Background(), "colleges/C1/courses/CS/sem/S1/docs/"+docType)
	require.NoError(t, err)
	if !snap.Exists() {
		return map[string]models.Entry{}
	}
	entries := make(map[string]models.Entry)
	require.NoError(t, snap.Decode(&entries))
	return entries
}

func TestUploadRequiresAuthentication(t *testing.T) {
	_, _, svc := newUploadFixture()

	_, err := svc.Upload(context.Background(), models.User{}, UploadRequest{
		Destination: uploadDestination(),
		Decision:    DecisionSingleFile,
		Files:       []UploadFile{stagedFile("Notes", 10)},
	})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestUploadValidation(t *testing.T) {
	user := models.User{ID: "u1", Email: "u1@example.com"}

	tests := []struct {
		name    string
		mutate  func(*UploadRequest)
		wantErr error
	}{
		{"no files", func(r *UploadRequest) { r.Files = nil }, ErrNoFiles},
		{"unset filter", func(r *UploadRequest) { r.Destination.DocType = models.UnsetField }, ErrUnresolvedDestination},
		{"bad doc type", func(r *UploadRequest) { r.Destination.DocType = "essays" }, ErrUnresolvedDestination},
		{"blank display name", func(r *UploadRequest) { r.Files[0].DisplayName = "  " }, ErrMissingDisplayName},
		{"oversized file", func(r *UploadRequest) { r.Files[0].Size = 11 * 1024 * 1024 }, ErrFileTooLarge},
		{"new folder without name", func(r *UploadRequest) {
			r.Decision = DecisionNewFolder
			r.FolderName = " "
		}, ErrMissingFolderName},
		{"append without folder id", func(r *UploadRequest) { r.Decision = DecisionAppendToFolder }, ErrFolderNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, assets, svc := newUploadFixture()

			req := UploadRequest{
				Destination: uploadDestination(),
				Decision:    DecisionSingleFile,
				Files:       []UploadFile{stagedFile("Notes", 10)},
			}
			tt.mutate(&req)

			_, err := svc.Upload(context.Background(), user, req)
			require.ErrorIs(t, err, tt.wantErr)

			// Validation failures must precede any network or store write.
			assert.Zero(t, assets.count())
			assert.Empty(t, bucketEntries(t, st, "notes"))
		})
	}
}

func TestUploadSingleFile(t *testing.T) {
	st, assets, svc := newUploadFixture()
	user := models.User{ID: "u1", Email: "u1@example.com"}

	var lastPct float64
	res, err := svc.Upload(context.Background(), user, UploadRequest{
		Destination: uploadDestination(),
		Decision:    DecisionSingleFile,
		Files:       []UploadFile{stagedFile("Algo Notes", 10)},
		OnProgress:  func(pct float64) { lastPct = pct },
	})
	require.NoError(t, err)
	require.Len(t, res.EntryIDs, 1)
	assert.Equal(t, float64(100), lastPct)
	assert.Equal(t, 1, assets.count())
	assert.True(t, strings.HasPrefix(assets.objects[0], "uploads/u1/"))

	entries := bucketEntries(t, st, "notes")
	entry, ok := entries[res.EntryIDs[0]]
	require.True(t, ok)
	assert.Equal(t, "Algo Notes", entry.DocName)
	assert.Equal(t, "algo notes.pdf", entry.FileName)
	assert.Equal(t, "u1", entry.UploaderID)
	assert.Equal(t, "u1@example.com", entry.UploaderEmail)
	assert.Equal(t, int64(4200), entry.UploadedAt, "server timestamp must be stamped")
	assert.True(t, strings.HasPrefix(entry.DownloadURL, "https://cdn/uploads/u1/"))
}

func TestUploadMultipleIndividual(t *testing.T) {
	st, assets, svc := newUploadFixture()
	user := models.User{ID: "u1", Email: "u1@example.com"}

	res, err := svc.Upload(context.Background(), user, UploadRequest{
		Destination: uploadDestination(),
		Decision:    DecisionMultipleIndividual,
		Files: []UploadFile{
			stagedFile("One", 10),
			stagedFile("Two", 10),
			stagedFile("Three", 10),
		},
	})
	require.NoError(t, err)
	require.Len(t, res.EntryIDs, 3)
	assert.Empty(t, res.FolderID)
	assert.Equal(t, 3, assets.count())

	entries := bucketEntries(t, st, "notes")
	require.Len(t, entries, 3)
	for _, id := range res.EntryIDs {
		entry := entries[id]
		assert.False(t, entry.IsFolder())
		assert.Equal(t, int64(4200), entry.UploadedAt)
	}
}

func TestUploadNewFolder(t *testing.T) {
	st, _, svc := newUploadFixture()
	user := models.User{ID: "u1", Email: "u1@example.com"}

	res, err := svc.Upload(context.Background(), user, UploadRequest{
		Destination: uploadDestination(),
		Decision:    DecisionNewFolder,
		FolderName:  "Algebra",
		Files: []UploadFile{
			stagedFile("Part A", 10),
			stagedFile("Part B", 10),
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.FolderID)
	require.Len(t, res.EntryIDs, 2)

	entries := bucketEntries(t, st, "notes")
	folder, ok := entries[res.FolderID]
	require.True(t, ok)
	assert.True(t, folder.IsFolder())
	assert.Equal(t, "Algebra (2 files)", folder.DocName)
	assert.Equal(t, int64(4200), folder.UploadedAt)
	require.Len(t, folder.Files, 2)
	for _, f := range folder.Files {
		assert.Zero(t, f.UploadedAt, "nested files inherit the folder timestamp")
		assert.NotEmpty(t, f.DownloadURL)
	}
}

func TestUploadAppendToFolder(t *testing.T) {
	st, _, svc := newUploadFixture()
	user := models.User{ID: "u1", Email: "u1@example.com"}

	res, err := svc.Upload(context.Background(), user, UploadRequest{
		Destination: uploadDestination(),
		Decision:    DecisionNewFolder,
		FolderName:  "Algebra",
		Files:       []UploadFile{stagedFile("Part A", 10)},
	})
	require.NoError(t, err)

	appendRes, err := svc.Upload(context.Background(), user, UploadRequest{
		Destination: uploadDestination(),
		Decision:    DecisionAppendToFolder,
		FolderID:    res.FolderID,
		Files: []UploadFile{
			stagedFile("Part B", 10),
			stagedFile("Part C", 10),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, res.FolderID, appendRes.FolderID)

	entries := bucketEntries(t, st, "notes")
	folder := entries[res.FolderID]
	assert.Equal(t, "Algebra (3 files)", folder.DocName, "count suffix rewritten with the new total")
	assert.Len(t, folder.Files, 3)
}

// Two concurrent appends both read the folder before either writes. File
// writes land on distinct paths so none are lost, but the docName count is a
// read-modify-write and reflects whichever append wrote last.
func TestUploadConcurrentAppendsKeepAllFiles(t *testing.T) {
	st, _, svc := newUploadFixture()
	user := models.User{ID: "u1", Email: "u1@example.com"}

	res, err := svc.Upload(context.Background(), user, UploadRequest{
		Destination: uploadDestination(),
		Decision:    DecisionNewFolder,
		FolderName:  "Algebra",
		Files:       []UploadFile{stagedFile("Part A", 10)},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Upload(context.Background(), user, UploadRequest{
				Destination: uploadDestination(),
				Decision:    DecisionAppendToFolder,
				FolderID:    res.FolderID,
				Files:       []UploadFile{stagedFile(fmt.Sprintf("Extra %d", i), 10)},
			})
		}()
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	folder := bucketEntries(t, st, "notes")[res.FolderID]
	assert.Len(t, folder.Files, 3)
	assert.Contains(t, []string{"Algebra (2 files)", "Algebra (3 files)"}, folder.DocName)
}

func TestUploadAppendToMissingFolder(t *testing.T) {
	_, _, svc := newUploadFixture()
	user := models.User{ID: "u1", Email: "u1@example.com"}

	_, err := svc.Upload(context.Background(), user, UploadRequest{
		Destination: uploadDestination(),
		Decision:    DecisionAppendToFolder,
		FolderID:    "missing",
		Files:       []UploadFile{stagedFile("Part B", 10)},
	})
	assert.ErrorIs(t, err, ErrFolderNotFound)
}

func TestUploadAppendToFileEntryFails(t *testing.T) {
	st, _, svc := newUploadFixture()
	user := models.User{ID: "u1", Email: "u1@example.com"}

	require.NoError(t, st.Set(context.Background(),
		"colleges/C1/courses/CS/sem/S1/docs/notes/e1",
		map[string]any{"docName": "Plain file"}))

	_, err := svc.Upload(context.Background(), user, UploadRequest{
		Destination: uploadDestination(),
		Decision:    DecisionAppendToFolder,
		FolderID:    "e1",
		Files:       []UploadFile{stagedFile("Part B", 10)},
	})
	assert.ErrorIs(t, err, ErrFolderNotFound)
}

func TestUploadAssetFailureWritesNothing(t *testing.T) {
	st, assets, svc := newUploadFixture()
	assets.fail = errors.New("bucket unavailable")
	user := models.User{ID: "u1", Email: "u1@example.com"}

	_, err := svc.Upload(context.Background(), user, UploadRequest{
		Destination: uploadDestination(),
		Decision:    DecisionMultipleIndividual,
		Files: []UploadFile{
			stagedFile("One", 10),
			stagedFile("Two", 10),
		},
	})
	require.Error(t, err)
	assert.Empty(t, bucketEntries(t, st, "notes"), "failed uploads must not touch the catalog")
}

func TestFolderDisplayName(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  string
	}{
		{"Algebra", 2, "Algebra (2 files)"},
		{"Algebra (2 files)", 3, "Algebra (3 files)"},
		{"Algebra (2 files) (3 files)", 4, "Algebra (4 files)"},
		{"  Algebra  ", 1, "Algebra (1 files)"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%d", tt.name, tt.count), func(t *testing.T) {
			assert.Equal(t, tt.want, folderDisplayName(tt.name, tt.count))
		})
	}
}
