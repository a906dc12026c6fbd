package routes

import (
	"github.com/gin-gonic/gin"

	"studyhub/controllers"
	"studyhub/middleware"
)

func RegisterBookmarkRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	bookmarkController := controllers.NewBookmarkController(container.Cache, container.CatalogService, container.BookmarkService)

	bookmarks := rg.Group("/bookmarks")
	bookmarks.Use(middleware.AuthMiddleware(container.JWTSecret)) // All bookmark routes require authentication
	{
		bookmarks.GET("", bookmarkController.ListBookmarks)
		bookmarks.POST("/toggle", bookmarkController.ToggleBookmark)
	}
}
