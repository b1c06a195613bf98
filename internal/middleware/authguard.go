// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ayakovlev/consultgate/internal/models"
	"github.com/ayakovlev/consultgate/internal/token"
)

type ctxKey string

const identityKey ctxKey = "identity"

// CookieName is the session cookie carrying the token.
const CookieName = "auth-token"

// RouteClass controls how unauthenticated access is rejected: API routes
// get a structured JSON 401, page routes a redirect to the login page.
type RouteClass int

const (
	// ClassAPI marks JSON API routes.
	ClassAPI RouteClass = iota
	// ClassPage marks browser page routes.
	ClassPage
)

// Rule maps a path pattern to its visibility and route class. A pattern
// either matches exactly or, with a trailing "/*", matches the prefix.
type Rule struct {
	// Pattern is the request path, exact or prefix ("/api/*").
	Pattern string
	// Public routes bypass token verification entirely.
	Public bool
	// Class selects the rejection behavior for protected routes.
	Class RouteClass
}

// Verifier validates a session token and returns its claims.
type Verifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// Guard gates every request against a rule table before it reaches a
// handler. Rules are evaluated top to bottom; the first match wins.
// Paths with no matching rule are treated as protected API routes.
type Guard struct {
	verifier  Verifier
	rules     []Rule
	loginPath string
}

// NewGuard constructs a Guard from an explicit rule table. loginPath is
// where unauthenticated page requests are redirected.
func NewGuard(verifier Verifier, rules []Rule, loginPath string) *Guard {
	return &Guard{verifier: verifier, rules: rules, loginPath: loginPath}
}

// Handler wraps next with the guard. Public paths pass through
// untouched. Protected paths require a valid token, presented either as
// the auth-token cookie or an Authorization bearer header; on success the
// decoded identity is attached to the request context. Verification
// failures and missing tokens are rejected per route class, and the
// session cookie is expired so clients do not replay a bad token.
func (g *Guard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rule := g.match(r.URL.Path)
		if rule.Public {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, ok := requestToken(r)
		if !ok {
			g.reject(w, r, rule.Class)
			return
		}

		claims, err := g.verifier.Verify(tokenString)
		if err != nil {
			g.reject(w, r, rule.Class)
			return
		}

		identity := &models.Identity{UserID: claims.UserID, Username: claims.Username}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

// match returns the first rule matching path, or a protected API rule.
func (g *Guard) match(path string) Rule {
	for _, rule := range g.rules {
		if prefix, ok := strings.CutSuffix(rule.Pattern, "/*"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return rule
			}
			continue
		}
		if path == rule.Pattern {
			return rule
		}
	}
	return Rule{Class: ClassAPI}
}

func (g *Guard) reject(w http.ResponseWriter, r *http.Request, class RouteClass) {
	ClearSessionCookie(w, r.TLS != nil)

	if class == ClassPage {
		http.Redirect(w, r, g.loginPath, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Authentication required"})
}

// requestToken extracts the session token from the cookie or, failing
// that, from an Authorization bearer header.
func requestToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, true
	}

	const bearer = "Bearer "
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, bearer) && auth != bearer {
		return auth[len(bearer):], true
	}
	return "", false
}

// ClearSessionCookie expires the session cookie on the client.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ContextWithIdentity attaches a verified identity to ctx. Exposed for
// handler tests; production code only goes through the guard.
func ContextWithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext extracts the verified identity attached by the
// guard. Returns nil if the request did not pass verification.
func IdentityFromContext(ctx context.Context) *models.Identity {
	if id, ok := ctx.Value(identityKey).(*models.Identity); ok {
		return id
	}
	return nil
}
