package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studyhub/middleware"
	"studyhub/services"
	"studyhub/utils"
)

type AuthController struct {
	authService   *services.AuthService
	frontendURL   string
	jwtSecret     string
	jwtExpiration time.Duration
}

func NewAuthController(authService *services.AuthService, frontendURL, jwtSecret string, jwtExpiration time.Duration) *AuthController {
	return &AuthController{
		authService:   authService,
		frontendURL:   frontendURL,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

const (
	stateCookieName = "oauth_state"
	cookieMaxAge    = 10 * 60 // 10 minutes
	cookiePath      = "/"
	cookieDomain    = ""
)

// GoogleAuth returns the Google OAuth URL for the frontend to redirect to.
func (ac *AuthController) GoogleAuth(c *gin.Context) {
	state, err := ac.authService.GenerateState()
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to generate authentication state", nil)
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(stateCookieName, state, cookieMaxAge, cookiePath, cookieDomain, false, true)

	utils.SuccessResponse(c, "Google OAuth URL generated", gin.H{
		"auth_url": ac.authService.GoogleAuthURL(state),
		"state":    state,
	})
}

func (ac *AuthController) GoogleCallback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")

	if !ac.authService.ValidateState(state) {
		utils.BadRequestResponse(c, "Invalid or expired authentication state", nil)
		return
	}

	_, token, err := ac.authService.HandleGoogleCallback(c.Request.Context(), code)
	if err != nil {
		utils.InternalServerErrorResponse(c, "Authentication failed", err.Error())
		return
	}

	if ac.frontendURL == "" {
		utils.SuccessResponse(c, "Signed in", gin.H{"token": token})
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, fmt.Sprintf("%s/auth/callback?token=%s", ac.frontendURL, token))
}

// Me returns the identity carried by the current session token.
func (ac *AuthController) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}
	utils.SuccessResponse(c, "Current user", user)
}

type refreshRequest struct {
	Token string `json:"token" binding:"required"`
}

func (ac *AuthController) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request format", err.Error())
		return
	}

	token, err := utils.RefreshJWTToken(req.Token, ac.jwtSecret, ac.jwtExpiration)
	if err != nil {
		utils.UnauthorizedResponse(c, "Token refresh failed")
		return
	}
	utils.SuccessResponse(c, "Token refreshed", gin.H{"token": token})
}
