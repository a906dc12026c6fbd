package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"studyhub/models"
	"studyhub/store"
)

var (
	ErrNoFiles               = errors.New("no files to upload")
	ErrFileTooLarge          = errors.New("file exceeds the maximum allowed size")
	ErrMissingDisplayName    = errors.New("every file needs a display name")
	ErrMissingFolderName     = errors.New("folder uploads need a folder name")
	ErrUnresolvedDestination = errors.New("destination filters are not fully selected")
	ErrFolderNotFound        = errors.New("target folder no longer exists")
)

// UploadDecision selects the catalog write shape for a batch.
type UploadDecision string

const (
	DecisionSingleFile         UploadDecision = "single"
	DecisionMultipleIndividual UploadDecision = "individual"
	DecisionNewFolder          UploadDecision = "new_folder"
	DecisionAppendToFolder     UploadDecision = "append_folder"
)

// UploadFile is one local file staged for upload.
type UploadFile struct {
	DisplayName string
	Filename    string
	Size        int64
	Content     io.Reader
}

// UploadRequest describes a full upload operation: where the entries go,
// how they are grouped, and the files themselves.
type UploadRequest struct {
	Destination models.Selection
	Decision    UploadDecision
	FolderName  string // new-folder decision
	FolderID    string // append decision
	Files       []UploadFile
	// OnProgress receives fractional progress (0-100) for single-file
	// uploads. Multi-file batches only signal overall completion.
	OnProgress func(pct float64)
}

// UploadResult reports what was written.
type UploadResult struct {
	EntryIDs []string `json:"entry_ids"`
	FolderID string   `json:"folder_id,omitempty"`
}

// UploadService composes asset-host uploads with catalog writes. Every file
// in a batch is uploaded concurrently; any failure aborts the whole batch
// before a single catalog write happens.
type UploadService struct {
	store       store.TreeStore
	assets      AssetHost
	maxFileSize int64
}

func NewUploadService(st store.TreeStore, assets AssetHost, maxFileSize int64) *UploadService {
	return &UploadService{
		store:       st,
		assets:      assets,
		maxFileSize: maxFileSize,
	}
}

// Upload validates, pushes file bytes to the asset host, then writes the
// catalog entries in one batch. Appended files land on distinct files/{id}
// paths so concurrent appends cannot drop files; only the folder's count
// suffix is a read-modify-write and may lag a concurrent append.
func (s *UploadService) Upload(ctx context.Context, user models.User, req UploadRequest) (UploadResult, error) {
	if !user.Authenticated() {
		return UploadResult{}, ErrUnauthenticated
	}
	if err := s.validate(req); err != nil {
		return UploadResult{}, err
	}

	urls, err := s.uploadAssets(ctx, user, req)
	if err != nil {
		return UploadResult{}, err
	}

	switch req.Decision {
	case DecisionSingleFile, DecisionMultipleIndividual:
		return s.writeIndividualEntries(ctx, user, req, urls)
	case DecisionNewFolder:
		return s.writeNewFolder(ctx, user, req, urls)
	case DecisionAppendToFolder:
		return s.appendToFolder(ctx, user, req, urls)
	default:
		return UploadResult{}, fmt.Errorf("unknown upload decision %q", req.Decision)
	}
}

// validate runs every check that must pass before any network call. The
// size loop aborts on the first offending file.
func (s *UploadService) validate(req UploadRequest) error {
	if len(req.Files) == 0 {
		return ErrNoFiles
	}
	if !req.Destination.Resolved() {
		return ErrUnresolvedDestination
	}
	if !models.IsValidDocType(req.Destination.DocType) {
		return fmt.Errorf("%w: unknown document type %q", ErrUnresolvedDestination, req.Destination.DocType)
	}
	switch req.Decision {
	case DecisionSingleFile:
		if len(req.Files) != 1 {
			return fmt.Errorf("single-file upload got %d files", len(req.Files))
		}
	case DecisionNewFolder:
		if strings.TrimSpace(req.FolderName) == "" {
			return ErrMissingFolderName
		}
	case DecisionAppendToFolder:
		if req.FolderID == "" {
			return fmt.Errorf("%w: no folder id", ErrFolderNotFound)
		}
	}
	for _, f := range req.Files {
		if strings.TrimSpace(f.DisplayName) == "" {
			return fmt.Errorf("%w: %s", ErrMissingDisplayName, f.Filename)
		}
		if f.Size > s.maxFileSize {
			return fmt.Errorf("%w: %s is %d bytes, cap is %d", ErrFileTooLarge, f.Filename, f.Size, s.maxFileSize)
		}
	}
	return nil
}

// uploadAssets pushes every file to the asset host concurrently and returns
// the download URLs in file order. A single failure fails the batch.
func (s *UploadService) uploadAssets(ctx context.Context, user models.User, req UploadRequest) ([]string, error) {
	urls := make([]string, len(req.Files))

	var onProgress func(float64)
	if len(req.Files) == 1 {
		onProgress = req.OnProgress
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range req.Files {
		i, f := i, f
		objectName := fmt.Sprintf("uploads/%s/%s/%s", user.ID, uuid.NewString(), f.Filename)
		g.Go(func() error {
			url, err := s.assets.Upload(gctx, objectName, f.Content, f.Size, onProgress)
			if err != nil {
				return fmt.Errorf("failed to upload %s: %w", f.Filename, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

func (s *UploadService) writeIndividualEntries(ctx context.Context, user models.User, req UploadRequest, urls []string) (UploadResult, error) {
	loc := destinationLocator(req.Destination)

	updates := make(map[string]any, len(req.Files))
	ids := make([]string, 0, len(req.Files))
	for i, f := range req.Files {
		id := uuid.NewString()
		ids = append(ids, id)
		loc.EntryID = id
		updates[loc.Path()] = filePayload(user, f, urls[i], true)
	}

	// One atomic batch: either every entry lands or none does.
	if err := s.store.Update(ctx, updates); err != nil {
		return UploadResult{}, fmt.Errorf("failed to write catalog entries: %w", err)
	}
	return UploadResult{EntryIDs: ids}, nil
}

func (s *UploadService) writeNewFolder(ctx context.Context, user models.User, req UploadRequest, urls []string) (UploadResult, error) {
	loc := destinationLocator(req.Destination)
	loc.EntryID = uuid.NewString()

	files := make(map[string]any, len(req.Files))
	ids := make([]string, 0, len(req.Files))
	for i, f := range req.Files {
		id := uuid.NewString()
		ids = append(ids, id)
		files[id] = filePayload(user, f, urls[i], false)
	}

	payload := map[string]any{
		"docName":       folderDisplayName(req.FolderName, len(req.Files)),
		"type":          models.EntryTypeFolder,
		"uploadedAt":    store.ServerTimestamp,
		"uploaderId":    user.ID,
		"uploaderEmail": user.Email,
		"files":         files,
	}
	if err := s.store.Set(ctx, loc.Path(), payload); err != nil {
		return UploadResult{}, fmt.Errorf("failed to write folder entry: %w", err)
	}
	return UploadResult{EntryIDs: ids, FolderID: loc.EntryID}, nil
}

func (s *UploadService) appendToFolder(ctx context.Context, user models.User, req UploadRequest, urls []string) (UploadResult, error) {
	loc := destinationLocator(req.Destination)
	loc.EntryID = req.FolderID
	folderPath := loc.Path()

	snap, err := s.store.Get(ctx, folderPath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to read target folder: %w", err)
	}
	if !snap.Exists() {
		return UploadResult{}, ErrFolderNotFound
	}

	var folder models.Entry
	if err := snap.Decode(&folder); err != nil {
		return UploadResult{}, fmt.Errorf("failed to decode target folder: %w", err)
	}
	if !folder.IsFolder() {
		return UploadResult{}, fmt.Errorf("%w: entry %s is not a folder", ErrFolderNotFound, req.FolderID)
	}

	updates := make(map[string]any, len(req.Files)+1)
	ids := make([]string, 0, len(req.Files))
	for i, f := range req.Files {
		id := uuid.NewString()
		ids = append(ids, id)
		updates[folderPath+"/files/"+id] = filePayload(user, f, urls[i], false)
	}
	total := len(folder.Files) + len(req.Files)
	updates[folderPath+"/docName"] = folderDisplayName(folder.DocName, total)

	if err := s.store.Update(ctx, updates); err != nil {
		return UploadResult{}, fmt.Errorf("failed to append to folder: %w", err)
	}
	return UploadResult{EntryIDs: ids, FolderID: req.FolderID}, nil
}

func destinationLocator(sel models.Selection) models.EntryLocator {
	return models.EntryLocator{
		CollegeID:  sel.College,
		CourseID:   sel.Course,
		SemesterID: sel.Semester,
		DocType:    sel.DocType,
	}
}

func filePayload(user models.User, f UploadFile, url string, topLevel bool) map[string]any {
	payload := map[string]any{
		"docName":       f.DisplayName,
		"fileName":      f.Filename,
		"downloadURL":   url,
		"uploaderId":    user.ID,
		"uploaderEmail": user.Email,
	}
	// Nested folder files inherit their folder's timestamp instead of
	// carrying their own.
	if topLevel {
		payload["uploadedAt"] = store.ServerTimestamp
	}
	return payload
}

// folderDisplayName keeps the base name in front of any existing count
// suffix and appends the current total, e.g. "Algebra (3 files)".
func folderDisplayName(name string, count int) string {
	base := name
	if idx := strings.Index(name, " ("); idx >= 0 {
		base = name[:idx]
	}
	return fmt.Sprintf("%s (%d files)", strings.TrimSpace(base), count)
}
