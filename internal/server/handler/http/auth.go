// Package http provides HTTP handlers for user authentication and for
// proxying chat traffic to the orchestration backend.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ayakovlev/consultgate/internal/middleware"
	"github.com/ayakovlev/consultgate/internal/models"
	"github.com/ayakovlev/consultgate/internal/ratelimit"
	"github.com/ayakovlev/consultgate/internal/service"
)

// minPasswordLength is the signup floor for password length.
const minPasswordLength = 6

// AuthService defines the interface for authentication operations
// required by the HTTP handlers.
type AuthService interface {
	// Register creates a new user, returning service.ErrDuplicateUsername
	// when the username is taken.
	Register(ctx context.Context, username, password, email string) (*models.User, error)
	// Authenticate verifies credentials, returning
	// service.ErrInvalidCredentials on any mismatch.
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	// GetUser returns the active user for profile lookups.
	GetUser(ctx context.Context, username string) (*models.User, error)
}

// TokenIssuer mints session tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID, username string) (string, error)
	TTL() time.Duration
}

// AuthHandler handles HTTP requests for signup, login, profile and logout.
type AuthHandler struct {
	// Auth performs the underlying authentication operations.
	Auth AuthService
	// Tokens issues session tokens.
	Tokens TokenIssuer
	// LoginLimiter throttles login attempts. Optional.
	LoginLimiter *ratelimit.Limiter
	// SecureCookies marks session cookies Secure.
	SecureCookies bool
}

// credentialsRequest represents the JSON payload for signup and login.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// userResponse is the public projection of a user record.
type userResponse struct {
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// Signup handles POST /api/auth/signup. It validates the payload,
// creates the user and establishes a session by setting the auth-token
// cookie, so a fresh signup is immediately logged in.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters long")
		return
	}

	user, err := h.Auth.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateUsername) {
			writeError(w, http.StatusConflict, "Username already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.establishSession(w, r, user)
}

// Login handles POST /api/auth/login. Bad credentials always yield the
// same generic 401 regardless of whether the username exists.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	if h.LoginLimiter != nil && !h.LoginLimiter.Allow(req.Username+"|"+remoteIP(r)) {
		writeError(w, http.StatusTooManyRequests, "Too many login attempts")
		return
	}

	user, err := h.Auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.establishSession(w, r, user)
}

// Me handles GET /api/auth/me. The route guard has already verified the
// token; the store is re-read so a deactivated user is not served from
// stale claims.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.Auth.GetUser(r.Context(), identity.Username)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	createdAt := user.CreatedAt
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": userResponse{
			Username:  user.Username,
			Email:     user.Email,
			CreatedAt: &createdAt,
		},
	})
}

// Logout handles POST /api/auth/logout. Sessions are self-contained
// tokens with no server-side record, so logout only expires the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearSessionCookie(w, h.SecureCookies)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// establishSession issues a token, sets the session cookie and writes
// the success response.
func (h *AuthHandler) establishSession(w http.ResponseWriter, r *http.Request, user *models.User) {
	tokenString, err := h.Tokens.Issue(user.ID, user.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Cookie lifetime tracks the token expiry.
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    tokenString,
		Path:     "/",
		MaxAge:   int(h.Tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    userResponse{Username: user.Username, Email: user.Email},
	})
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the structured JSON error shape used by all
// endpoints. Internal details never reach the client.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// remoteIP extracts the caller's address for rate-limit keying.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
