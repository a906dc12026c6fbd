package routes

import (
	"github.com/gin-gonic/gin"

	"studyhub/controllers"
)

func RegisterStreamRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	streamController := controllers.NewStreamController(container.Store, container.JWTSecret, container.AllowedOrigins)

	// Auth happens inside the handler; browsers cannot attach headers to a
	// websocket upgrade, so private paths pass the token as a query param.
	rg.GET("/stream", streamController.Stream)
}
