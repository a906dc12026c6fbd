// routes/routes.go
package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"studyhub/services"
	"studyhub/store"
)

// B2Config holds the B2 asset host configuration
type B2Config struct {
	KeyID          string
	ApplicationKey string
	BucketName     string
}

// GoogleConfig holds the Google OAuth2 configuration
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// ServiceContainer holds all services and dependencies
type ServiceContainer struct {
	Store           store.TreeStore
	Cache           *services.SnapshotCache
	CatalogService  *services.CatalogService
	BookmarkService *services.BookmarkService
	UploadService   *services.UploadService
	AuthService     *services.AuthService
	Progress        *services.ProgressTracker

	JWTSecret      string
	JWTExpiration  time.Duration
	FrontendURL    string
	MaxFileSize    int64
	AllowedOrigins []string
}

// NewServiceContainer creates a new service container with all dependencies initialized
func NewServiceContainer(ctx context.Context, st store.TreeStore, jwtSecret string, jwtExpiration time.Duration,
	b2Config B2Config, googleConfig GoogleConfig, frontendURL string, maxFileSize int64, allowedOrigins []string) (*ServiceContainer, error) {

	// The asset host is initialized first (required by the upload service)
	assetService, err := services.NewAssetService(b2Config.KeyID, b2Config.ApplicationKey, b2Config.BucketName)
	if err != nil {
		return nil, err
	}

	cache, err := services.NewSnapshotCache(ctx, st)
	if err != nil {
		return nil, err
	}

	return &ServiceContainer{
		Store:           st,
		Cache:           cache,
		CatalogService:  services.NewCatalogService(),
		BookmarkService: services.NewBookmarkService(st),
		UploadService:   services.NewUploadService(st, assetService, maxFileSize),
		AuthService: services.NewAuthService(st, jwtSecret, jwtExpiration,
			googleConfig.ClientID, googleConfig.ClientSecret, googleConfig.RedirectURL),
		Progress:       services.NewProgressTracker(),
		JWTSecret:      jwtSecret,
		JWTExpiration:  jwtExpiration,
		FrontendURL:    frontendURL,
		MaxFileSize:    maxFileSize,
		AllowedOrigins: allowedOrigins,
	}, nil
}

// SetupRoutes configures all API routes for the application
// This function is called from main.go after middleware is already set up
func SetupRoutes(api *gin.RouterGroup, container *ServiceContainer) {
	RegisterAuthRoutes(api, container)
	RegisterCatalogRoutes(api, container)
	RegisterBookmarkRoutes(api, container)
	RegisterUploadRoutes(api, container)
	RegisterStreamRoutes(api, container)
}
