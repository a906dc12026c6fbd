package routes

import (
	"github.com/gin-gonic/gin"

	"studyhub/controllers"
	"studyhub/middleware"
)

func RegisterCatalogRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	catalogController := controllers.NewCatalogController(container.Cache, container.CatalogService, container.Store)

	catalog := rg.Group("/catalog")
	{
		// Browsing is public; the catalog tree has no private data
		catalog.GET("/filters", catalogController.GetFilterOptions)
		catalog.POST("/filters", catalogController.ChangeFilter)
		catalog.GET("/items", catalogController.GetItems)
		catalog.GET("/folders/:folderId", catalogController.GetFolder)
	}

	profile := rg.Group("/profile")
	profile.Use(middleware.AuthMiddleware(container.JWTSecret))
	{
		profile.GET("", catalogController.GetProfile)
		profile.PUT("", catalogController.UpdateProfile)
	}
}
