package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studyhub/models"
	"studyhub/utils"
)

const userContextKey = "currentUser"

// AuthMiddleware verifies the bearer token and stores the identity in the
// request context. Handlers pull it with CurrentUser and pass it into
// services explicitly.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Authorization token required", nil)
			c.Abort()
			return
		}

		claims, err := utils.VerifyJWTToken(token, jwtSecret)
		if err != nil {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid or expired token", nil)
			c.Abort()
			return
		}

		c.Set(userContextKey, models.User{
			ID:    claims.UserID,
			Email: claims.Email,
			Name:  claims.Name,
		})
		c.Next()
	}
}

// CurrentUser returns the authenticated identity set by AuthMiddleware.
func CurrentUser(c *gin.Context) (models.User, bool) {
	value, exists := c.Get(userContextKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := value.(models.User)
	return user, ok && user.Authenticated()
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(bearerPrefix):])
}
