package routes

import (
	"github.com/gin-gonic/gin"

	"studyhub/controllers"
	"studyhub/middleware"
)

func RegisterAuthRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	authController := controllers.NewAuthController(container.AuthService,
		container.FrontendURL, container.JWTSecret, container.JWTExpiration)

	auth := rg.Group("/auth")
	{
		// Public OAuth2 routes
		auth.GET("/google", authController.GoogleAuth)
		auth.GET("/google/callback", authController.GoogleCallback)

		// Protected routes requiring authentication
		protected := auth.Group("")
		protected.Use(middleware.AuthMiddleware(container.JWTSecret))
		{
			protected.GET("/me", authController.Me)
			protected.POST("/refresh", authController.RefreshToken)
		}
	}
}
