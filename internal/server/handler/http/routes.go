package http

import (
	"net/http"

	"github.com/ayakovlev/consultgate/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// GuardRules returns the route classification table handed to the guard.
// Auth issuance endpoints and the health probe are public; everything
// else under /api requires a verified session and fails with JSON 401,
// while page paths redirect to /login. First match wins.
func GuardRules() []middleware.Rule {
	return []middleware.Rule{
		{Pattern: "/health", Public: true, Class: middleware.ClassAPI},
		{Pattern: "/api/auth/signup", Public: true, Class: middleware.ClassAPI},
		{Pattern: "/api/auth/login", Public: true, Class: middleware.ClassAPI},
		{Pattern: "/login", Public: true, Class: middleware.ClassPage},
		{Pattern: "/signup", Public: true, Class: middleware.ClassPage},
		{Pattern: "/", Class: middleware.ClassPage},
		{Pattern: "/chat", Class: middleware.ClassPage},
		{Pattern: "/api/*", Class: middleware.ClassAPI},
	}
}

// NewRouter constructs the HTTP handler serving the gateway API.
//
// Routes:
//
//	GET  /health                                → liveness probe (public)
//	POST /api/auth/signup                       → authHandler.Signup (public)
//	POST /api/auth/login                        → authHandler.Login (public)
//	GET  /api/auth/me                           → authHandler.Me
//	POST /api/auth/logout                       → authHandler.Logout
//	*    /api/{chat,chats,...}                  → proxy to the chat backend
//
// Middleware chain (applied in order):
//  1. AllowContentType("application/json") — rejects non-JSON bodies
//  2. WithRequestLogging(logger)           — logs each request
//  3. guard.Handler                        — enforces session authentication
func NewRouter(
	authHandler *AuthHandler,
	proxyHandler *ProxyHandler,
	guard *middleware.Guard,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Only allow requests with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))
	// Enforce session authentication per the rule table
	r.Use(guard.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)

			// Protected by the guard
			r.Get("/me", authHandler.Me)
			r.Post("/logout", authHandler.Logout)
		})

		// Protected chat traffic, forwarded to the backend verbatim
		r.Post("/chat", proxyHandler.ServeHTTP)
		r.Get("/chats", proxyHandler.ServeHTTP)
		r.Post("/chats", proxyHandler.ServeHTTP)
		r.Get("/chats/{chatID}/messages", proxyHandler.ServeHTTP)
		r.Post("/chats/{chatID}/messages", proxyHandler.ServeHTTP)
		r.Post("/chats/{chatID}/delete", proxyHandler.ServeHTTP)
		r.Get("/chats/{chatID}/load_recent_context", proxyHandler.ServeHTTP)
		r.Post("/create_session", proxyHandler.ServeHTTP)
		r.Post("/extract_topic", proxyHandler.ServeHTTP)
		r.Post("/mcq", proxyHandler.ServeHTTP)
		r.Post("/diagram", proxyHandler.ServeHTTP)
		r.Post("/video", proxyHandler.ServeHTTP)
	})

	return r
}
