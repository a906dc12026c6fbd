package controllers

import (
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"studyhub/middleware"
	"studyhub/models"
	"studyhub/services"
	"studyhub/utils"
)

type UploadController struct {
	uploads     *services.UploadService
	progress    *services.ProgressTracker
	maxFileSize int64
}

func NewUploadController(uploads *services.UploadService, progress *services.ProgressTracker, maxFileSize int64) *UploadController {
	return &UploadController{
		uploads:     uploads,
		progress:    progress,
		maxFileSize: maxFileSize,
	}
}

// Upload stores one or more files under the selected document-type bucket.
// The decision field controls grouping: single, individual, new_folder or
// append_folder. Oversized files are rejected before anything is stored.
func (uc *UploadController) Upload(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		utils.BadRequestResponse(c, "Invalid multipart form", nil)
		return
	}

	headers := form.File["files[]"]
	if len(headers) == 0 {
		utils.BadRequestResponse(c, "No files provided", nil)
		return
	}

	displayNames := form.Value["displayNames[]"]
	if len(displayNames) > 0 && len(displayNames) != len(headers) {
		utils.BadRequestResponse(c, "Files and display names count mismatch", nil)
		return
	}

	for _, h := range headers {
		if err := utils.ValidateFileName(h.Filename); err != nil {
			utils.BadRequestResponse(c, "Invalid file name", err.Error())
			return
		}
		if err := utils.ValidateFileSize(h.Size, uc.maxFileSize); err != nil {
			utils.PayloadTooLargeResponse(c, fmt.Sprintf("File exceeds %d MB limit: %s", uc.maxFileSize/(1024*1024), h.Filename))
			return
		}
	}

	req := services.UploadRequest{
		Destination: models.Selection{
			College:  c.PostForm("college"),
			Course:   c.PostForm("course"),
			Semester: c.PostForm("semester"),
			DocType:  c.PostForm("docType"),
		},
		Decision:   services.UploadDecision(c.PostForm("decision")),
		FolderName: c.PostForm("folderName"),
		FolderID:   c.PostForm("folderId"),
	}
	if req.Decision == "" {
		if len(headers) == 1 {
			req.Decision = services.DecisionSingleFile
		} else {
			req.Decision = services.DecisionMultipleIndividual
		}
	}

	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for i, h := range headers {
		f, err := h.Open()
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to read uploaded file", err.Error())
			return
		}
		opened = append(opened, f)

		name := h.Filename
		if i < len(displayNames) && displayNames[i] != "" {
			name = displayNames[i]
		}
		if err := utils.ValidateDisplayName(name); err != nil {
			utils.BadRequestResponse(c, "Invalid display name", err.Error())
			return
		}
		req.Files = append(req.Files, services.UploadFile{
			DisplayName: name,
			Filename:    h.Filename,
			Size:        h.Size,
			Content:     f,
		})
	}

	uploadID := c.PostForm("uploadId")
	if uploadID == "" {
		uploadID = uuid.New().String()
	}
	req.OnProgress = uc.progress.Callback(uploadID)

	result, err := uc.uploads.Upload(c.Request.Context(), user, req)
	if err != nil {
		uc.progress.Abandon(uploadID)
		switch {
		case errors.Is(err, services.ErrNoFiles),
			errors.Is(err, services.ErrMissingDisplayName),
			errors.Is(err, services.ErrMissingFolderName),
			errors.Is(err, services.ErrUnresolvedDestination):
			utils.BadRequestResponse(c, err.Error(), nil)
		case errors.Is(err, services.ErrFileTooLarge):
			utils.PayloadTooLargeResponse(c, err.Error())
		case errors.Is(err, services.ErrFolderNotFound):
			utils.NotFoundResponse(c, "Folder not found")
		default:
			utils.BadGatewayResponse(c, "Upload failed")
		}
		return
	}
	uc.progress.Complete(uploadID)

	utils.CreatedResponse(c, "Upload complete", gin.H{
		"uploadId": uploadID,
		"result":   result,
	})
}

// GetProgress reports the percentage of an in-flight upload. Completed
// uploads report 100 briefly before the entry is cleared.
func (uc *UploadController) GetProgress(c *gin.Context) {
	uploadID := c.Param("uploadId")
	if uploadID == "" {
		utils.BadRequestResponse(c, "Upload ID required", nil)
		return
	}

	pct, ok := uc.progress.Get(uploadID)
	utils.SuccessResponse(c, "Progress retrieved", gin.H{
		"uploadId": uploadID,
		"percent":  pct,
		"active":   ok,
	})
}
