package http

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ayakovlev/consultgate/internal/middleware"
)

// identityHeader carries the verified username to the backend, which
// uses it as the tenant/owner key for chats.
const identityHeader = "X-User-Name"

// passThroughHeaders are client headers forwarded to the backend
// unchanged (per-user model settings).
var passThroughHeaders = []string{
	"X-OpenRouter-API-Key",
	"X-OpenRouter-Model",
	"X-System-Prompt",
}

// ProxyHandler forwards authenticated chat API requests to the
// orchestration backend. The JSON body and the backend's status and body
// pass through unchanged; the only additions are the identity header and
// content type. Requests reach this handler only after the route guard
// has verified the session, so an unauthenticated request is never
// forwarded.
type ProxyHandler struct {
	backendURL *url.URL
	client     *http.Client
	logger     *zap.Logger
}

// NewProxyHandler constructs a ProxyHandler targeting backendURL.
func NewProxyHandler(backendURL string, logger *zap.Logger) (*ProxyHandler, error) {
	u, err := url.Parse(backendURL)
	if err != nil {
		return nil, err
	}
	return &ProxyHandler{
		backendURL: u,
		// Bounded timeout so a wedged backend cannot pin request goroutines.
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}, nil
}

// ServeHTTP forwards the request to the backend, stripping the /api
// prefix from the path.
func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	target := *h.backendURL
	target.Path = strings.TrimSuffix(target.Path, "/") + strings.TrimPrefix(r.URL.Path, "/api")
	target.RawQuery = r.URL.RawQuery

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(identityHeader, identity.Username)
	for _, name := range passThroughHeaders {
		if v := r.Header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("backend request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "Failed to process request")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("copy backend response",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}
