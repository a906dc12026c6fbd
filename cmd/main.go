package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"studyhub/config"
	"studyhub/jobs"
	"studyhub/routes"
	"studyhub/store"
	"studyhub/utils"
)

func main() {
	// Load .env file before config reads the environment
	loadEnvFile()

	// Initialize configuration
	config.LoadConfig()
	cfg := config.AppConfig

	utils.InitLogger()

	// Initialize MongoDB client
	ctx, cancel := config.CreateContext(10 * time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		utils.LogFatal("Failed to connect to MongoDB", err)
	}

	// Create separate context for disconnection
	defer func() {
		disconnectCtx, disconnectCancel := config.CreateContext(5 * time.Second)
		defer disconnectCancel()
		if err = mongoClient.Disconnect(disconnectCtx); err != nil {
			log.Printf("Failed to disconnect MongoDB: %v", err)
		}
	}()

	// Verify MongoDB connection
	if err = mongoClient.Ping(ctx, nil); err != nil {
		utils.LogFatal("Failed to ping MongoDB", err)
	}

	utils.LogInfo("Connected to MongoDB successfully")

	treeStore := store.NewMongoStore(mongoClient, mongoClient.Database(cfg.DatabaseName))

	b2Config := routes.B2Config{
		KeyID:          cfg.B2ApplicationKeyID,
		ApplicationKey: cfg.B2ApplicationKey,
		BucketName:     cfg.B2BucketName,
	}

	googleConfig := routes.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	}

	// Initialize services container. The background context keeps the
	// snapshot subscriptions alive for the life of the process.
	serviceContainer, err := routes.NewServiceContainer(
		context.Background(),
		treeStore,
		cfg.JWTSecret,
		cfg.JWTExpiration,
		b2Config,
		googleConfig,
		cfg.FrontendRedirectURL,
		cfg.MaxFileSize,
		cfg.AllowedOrigins,
	)
	if err != nil {
		utils.LogFatal("Failed to initialize services", err)
	}
	defer serviceContainer.Cache.Close()

	// Set up Gin router
	router := gin.Default()
	router.MaxMultipartMemory = cfg.MaxFileSize

	router.Use(corsMiddleware(cfg.AllowedOrigins))

	// Set up API routes
	api := router.Group("/api")
	routes.SetupRoutes(api, serviceContainer)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})

	// Start the bookmark audit job
	if cfg.BookmarkAuditInterval > 0 {
		auditor := jobs.NewBookmarkAuditor(treeStore, cfg.BookmarkAuditInterval)
		go auditor.Start(context.Background())
		log.Printf("Started bookmark audit job running every %v", cfg.BookmarkAuditInterval)
	}

	// Start the server
	log.Printf("Starting StudyHub server on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		utils.LogFatal("Failed to start server", err)
	}
}

// loadEnvFile handles loading .env file from multiple possible locations
func loadEnvFile() {
	pwd, err := os.Getwd()
	if err != nil {
		log.Printf("Could not get working directory: %v", err)
		return
	}

	envPaths := []string{
		".env",
		"../.env",
		filepath.Join(pwd, ".env"),
		filepath.Join(filepath.Dir(pwd), ".env"),
	}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err == nil {
				absPath, _ := filepath.Abs(envPath)
				log.Printf("Loaded environment variables from: %s", absPath)
				return
			}
		}
	}

	log.Println("No .env file found, using system environment variables")
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestOrigin := c.Request.Header.Get("Origin")

		var allowOrigin string
		if len(allowedOrigins) == 0 {
			allowOrigin = "*"
		} else {
			for _, allowedOrigin := range allowedOrigins {
				if allowedOrigin == "*" {
					allowOrigin = "*"
					break
				}
				if allowedOrigin == requestOrigin {
					allowOrigin = requestOrigin
					break
				}
			}
			if allowOrigin == "" {
				// No origin header (curl, server-to-server), use first allowed
				allowOrigin = allowedOrigins[0]
			}
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
