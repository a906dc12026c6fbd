package routes

import (
	"github.com/gin-gonic/gin"

	"studyhub/controllers"
	"studyhub/middleware"
)

func RegisterUploadRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	uploadController := controllers.NewUploadController(container.UploadService, container.Progress, container.MaxFileSize)

	uploads := rg.Group("/uploads")
	uploads.Use(middleware.AuthMiddleware(container.JWTSecret)) // Only signed-in users may upload
	{
		uploads.POST("", uploadController.Upload)
		uploads.GET("/progress/:uploadId", uploadController.GetProgress)
	}
}
