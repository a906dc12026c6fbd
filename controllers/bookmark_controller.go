package controllers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"studyhub/middleware"
	"studyhub/models"
	"studyhub/services"
	"studyhub/utils"
)

type BookmarkController struct {
	cache     *services.SnapshotCache
	catalog   *services.CatalogService
	bookmarks *services.BookmarkService
}

func NewBookmarkController(cache *services.SnapshotCache, catalog *services.CatalogService, bookmarks *services.BookmarkService) *BookmarkController {
	return &BookmarkController{
		cache:     cache,
		catalog:   catalog,
		bookmarks: bookmarks,
	}
}

// ListBookmarks returns the user's bookmarked entries, newest first. Copy
// records survive deletion of the source, so dangling bookmarks still render.
func (bc *BookmarkController) ListBookmarks(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	if err := bc.cache.FollowUser(c.Request.Context(), user.ID); err != nil {
		utils.InternalServerErrorResponse(c, "Failed to load bookmarks", err.Error())
		return
	}

	items := bc.catalog.BookmarkItems(bc.cache.Tree(), user.ID)
	message := ""
	if len(items) == 0 {
		message = "No bookmarks yet"
	}

	utils.SuccessResponse(c, "Bookmarks retrieved", gin.H{
		"items":   items,
		"message": message,
	})
}

// ToggleBookmark adds or removes a bookmark for the given item. The flag on
// the source entry and the user's copy record are written together.
func (bc *BookmarkController) ToggleBookmark(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req struct {
		Item            models.Item `json:"item" binding:"required"`
		InBookmarksView bool        `json:"inBookmarksView"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request format", err.Error())
		return
	}

	result, err := bc.bookmarks.Toggle(c.Request.Context(), user, req.Item, req.InBookmarksView)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnauthenticated):
			utils.UnauthorizedResponse(c, "User not authenticated")
		case errors.Is(err, services.ErrMissingPath):
			utils.BadRequestResponse(c, "Item has no catalog path", nil)
		default:
			utils.InternalServerErrorResponse(c, "Failed to toggle bookmark", err.Error())
		}
		return
	}

	message := "Bookmark removed"
	if result.Bookmarked {
		message = "Bookmark added"
	}
	utils.SuccessResponse(c, message, result)
}
