package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"studyhub/models"
	"studyhub/store"
	"studyhub/utils"
)

var (
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrEmailNotVerified = errors.New("email not verified")
)

// AuthService runs the Google OAuth code flow and maintains each user's
// account record under users/{uid}/account in the catalog store.
type AuthService struct {
	store              AccountStore
	jwtSecret          string
	jwtExpiration      time.Duration
	googleClientID     string
	googleClientSecret string
	redirectURL        string
	stateManager       *StateManager
	httpClient         *http.Client
}

// AccountStore is the slice of the tree store auth needs.
type AccountStore interface {
	Get(ctx context.Context, path string) (store.Snapshot, error)
	Update(ctx context.Context, values map[string]any) error
}

func NewAuthService(store AccountStore, jwtSecret string, jwtExpiration time.Duration, googleClientID, googleClientSecret, redirectURL string) *AuthService {
	return &AuthService{
		store:              store,
		jwtSecret:          jwtSecret,
		jwtExpiration:      jwtExpiration,
		googleClientID:     googleClientID,
		googleClientSecret: googleClientSecret,
		redirectURL:        redirectURL,
		stateManager:       NewStateManager(),
		httpClient:         &http.Client{Timeout: 30 * time.Second},
	}
}

// StateManager tracks one-time OAuth state tokens.
type StateManager struct {
	states map[string]stateInfo
	mu     sync.Mutex
}

type stateInfo struct {
	expiresAt time.Time
}

const oauthStateExpiration = 10 * time.Minute

func NewStateManager() *StateManager {
	sm := &StateManager{states: make(map[string]stateInfo)}
	go sm.startCleanupRoutine()
	return sm
}

func (sm *StateManager) Store(state string, duration time.Duration) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.states[state] = stateInfo{expiresAt: time.Now().Add(duration)}
}

// Validate consumes the state; it is one-time use.
func (sm *StateManager) Validate(state string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	info, exists := sm.states[state]
	if !exists {
		return false
	}
	delete(sm.states, state)
	return time.Now().Before(info.expiresAt)
}

func (sm *StateManager) startCleanupRoutine() {
	ticker := time.NewTicker(2 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		sm.mu.Lock()
		now := time.Now()
		for state, info := range sm.states {
			if now.After(info.expiresAt) {
				delete(sm.states, state)
			}
		}
		sm.mu.Unlock()
	}
}

type GoogleTokenInfo struct {
	ID            string       `json:"sub"`
	Email         string       `json:"email"`
	EmailVerified FlexibleBool `json:"email_verified"`
	Name          string       `json:"name"`
	Picture       string       `json:"picture"`
}

type GoogleTokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error,omitempty"`
}

// FlexibleBool accepts both boolean and string forms of email_verified.
type FlexibleBool bool

func (fb *FlexibleBool) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)
	*fb = str == "true"
	return nil
}

func (s *AuthService) GenerateState() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random state: %w", err)
	}

	state := base64.RawURLEncoding.EncodeToString(bytes)
	s.stateManager.Store(state, oauthStateExpiration)
	return state, nil
}

func (s *AuthService) ValidateState(state string) bool {
	return s.stateManager.Validate(state)
}

func (s *AuthService) GoogleAuthURL(state string) string {
	params := url.Values{
		"client_id":     {s.googleClientID},
		"redirect_uri":  {s.redirectURL},
		"scope":         {"openid email profile"},
		"response_type": {"code"},
		"state":         {state},
	}
	return "https://accounts.google.com/o/oauth2/auth?" + params.Encode()
}

func (s *AuthService) ExchangeCodeForTokens(code string) (*GoogleTokenResponse, error) {
	data := url.Values{
		"client_id":     {s.googleClientID},
		"client_secret": {s.googleClientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {s.redirectURL},
	}

	resp, err := s.httpClient.PostForm("https://oauth2.googleapis.com/token", data)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for tokens: %w", err)
	}
	defer resp.Body.Close()

	var tokenResponse GoogleTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResponse.Error != "" {
		return nil, fmt.Errorf("OAuth token exchange error: %s", tokenResponse.Error)
	}
	if tokenResponse.IDToken == "" {
		return nil, errors.New("no ID token received")
	}
	return &tokenResponse, nil
}

func (s *AuthService) ValidateGoogleIDToken(idToken string) (*GoogleTokenInfo, error) {
	if idToken == "" {
		return nil, errors.New("ID token is required")
	}

	resp, err := s.httpClient.Get("https://oauth2.googleapis.com/tokeninfo?id_token=" + url.QueryEscape(idToken))
	if err != nil {
		return nil, fmt.Errorf("failed to validate ID token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invalid ID token: HTTP %d", resp.StatusCode)
	}

	var tokenInfo GoogleTokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&tokenInfo); err != nil {
		return nil, fmt.Errorf("failed to decode token info: %w", err)
	}
	if tokenInfo.Email == "" {
		return nil, errors.New("email missing in token")
	}
	if !bool(tokenInfo.EmailVerified) {
		return nil, ErrEmailNotVerified
	}
	return &tokenInfo, nil
}

// HandleGoogleCallback finishes the code flow: exchange, validate, upsert
// the account record, and mint a JWT for the session.
func (s *AuthService) HandleGoogleCallback(ctx context.Context, code string) (models.User, string, error) {
	tokenResponse, err := s.ExchangeCodeForTokens(code)
	if err != nil {
		return models.User{}, "", err
	}

	googleInfo, err := s.ValidateGoogleIDToken(tokenResponse.IDToken)
	if err != nil {
		return models.User{}, "", err
	}

	user, err := s.upsertAccount(ctx, googleInfo)
	if err != nil {
		return models.User{}, "", err
	}

	token, err := utils.GenerateJWTToken(user, s.jwtSecret, s.jwtExpiration)
	if err != nil {
		return models.User{}, "", fmt.Errorf("failed to generate JWT: %w", err)
	}

	log.Printf("[AuthService] signed in %s", user.Email)
	return user, token, nil
}

// upsertAccount writes the account record at users/{uid}/account. The
// Google subject is the user id, so repeat sign-ins land on the same node.
func (s *AuthService) upsertAccount(ctx context.Context, info *GoogleTokenInfo) (models.User, error) {
	user := models.User{
		ID:        info.ID,
		GoogleID:  info.ID,
		Name:      info.Name,
		Email:     info.Email,
		PhotoURL:  info.Picture,
		CreatedAt: time.Now().UnixMilli(),
	}

	accountPath := models.UserAccountPath(user.ID)
	updates := map[string]any{
		accountPath + "/name":     user.Name,
		accountPath + "/email":    user.Email,
		accountPath + "/photoURL": user.PhotoURL,
	}

	// createdAt stays at the first sign-in time; only write it when the
	// account leaf does not exist yet.
	snap, err := s.store.Get(ctx, accountPath+"/createdAt")
	if err != nil {
		return models.User{}, fmt.Errorf("failed to read account: %w", err)
	}
	if snap.Exists() {
		if created, ok := snap.Value.(int64); ok {
			user.CreatedAt = created
		}
	} else {
		updates[accountPath+"/createdAt"] = user.CreatedAt
	}

	if err := s.store.Update(ctx, updates); err != nil {
		return models.User{}, fmt.Errorf("failed to upsert account: %w", err)
	}
	return user, nil
}

// VerifyToken parses a session JWT back into an identity.
func (s *AuthService) VerifyToken(token string) (models.User, error) {
	claims, err := utils.VerifyJWTToken(token, s.jwtSecret)
	if err != nil {
		return models.User{}, ErrInvalidToken
	}
	return models.User{
		ID:    claims.UserID,
		Name:  claims.Name,
		Email: claims.Email,
	}, nil
}
