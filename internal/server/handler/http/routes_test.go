package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayakovlev/consultgate/internal/middleware"
	"github.com/ayakovlev/consultgate/internal/models"
	"github.com/ayakovlev/consultgate/internal/repository"
	"github.com/ayakovlev/consultgate/internal/service"
	"github.com/ayakovlev/consultgate/internal/token"
)

// memoryUserRepo is an in-memory UserRepository enforcing the same
// unique-username constraint as the database.
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*models.User)}
}

func (r *memoryUserRepo) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.Username]; exists {
		return repository.ErrDuplicateUsername
	}
	copied := *user
	r.users[user.Username] = &copied
	return nil
}

func (r *memoryUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok || !user.IsActive {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

type gateway struct {
	server  *httptest.Server
	repo    *memoryUserRepo
	backend *httptest.Server
	hits    *int
}

func newGateway(t *testing.T, ttl time.Duration) *gateway {
	t.Helper()

	hits := 0
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"path": r.URL.Path,
			"user": r.Header.Get("X-User-Name"),
		})
	}))
	t.Cleanup(backend.Close)

	tokens, err := token.NewManager([]byte("e2e-secret"), ttl)
	require.NoError(t, err)

	repo := newMemoryUserRepo()
	authService := service.NewAuth(repo, bcrypt.MinCost)
	authHandler := &AuthHandler{Auth: authService, Tokens: tokens}

	proxyHandler, err := NewProxyHandler(backend.URL, zap.NewNop())
	require.NoError(t, err)

	guard := middleware.NewGuard(tokens, GuardRules(), "/login")
	router := NewRouter(authHandler, proxyHandler, guard, zap.NewNop())

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &gateway{server: server, repo: repo, backend: backend, hits: &hits}
}

func (g *gateway) post(t *testing.T, path, body string, cookie *http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest("POST", g.server.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	res, err := g.server.Client().Do(req)
	require.NoError(t, err)
	return res
}

func (g *gateway) get(t *testing.T, path string, cookie *http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest("GET", g.server.URL+path, nil)
	require.NoError(t, err)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	res, err := g.server.Client().Do(req)
	require.NoError(t, err)
	return res
}

func findSessionCookie(res *http.Response) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == middleware.CookieName {
			return c
		}
	}
	return nil
}

func TestEndToEnd_SignupThenMe(t *testing.T) {
	g := newGateway(t, time.Hour)

	res := g.post(t, "/api/auth/signup", `{"username":"alice","password":"secret1","email":"a@example.com"}`, nil)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	cookie := findSessionCookie(res)
	require.NotNil(t, cookie, "signup must set the session cookie")
	assert.True(t, cookie.HttpOnly)

	me := g.get(t, "/api/auth/me", cookie)
	defer me.Body.Close()
	require.Equal(t, http.StatusOK, me.StatusCode)

	var body struct {
		Success bool `json:"success"`
		User    struct {
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.NewDecoder(me.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "alice", body.User.Username)
	assert.Equal(t, "a@example.com", body.User.Email)
}

func TestEndToEnd_ExpiredSession(t *testing.T) {
	g := newGateway(t, time.Nanosecond)

	res := g.post(t, "/api/auth/signup", `{"username":"alice","password":"secret1"}`, nil)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	cookie := findSessionCookie(res)
	require.NotNil(t, cookie)

	time.Sleep(10 * time.Millisecond)

	me := g.get(t, "/api/auth/me", cookie)
	defer me.Body.Close()
	require.Equal(t, http.StatusUnauthorized, me.StatusCode)

	cleared := findSessionCookie(me)
	require.NotNil(t, cleared, "401 must expire the client's cookie")
	assert.Empty(t, cleared.Value)
}

func TestEndToEnd_DuplicateSignup(t *testing.T) {
	g := newGateway(t, time.Hour)

	first := g.post(t, "/api/auth/signup", `{"username":"bob","password":"secret1"}`, nil)
	defer first.Body.Close()
	require.Equal(t, http.StatusOK, first.StatusCode)

	storedHash := g.repo.users["bob"].PasswordHash

	second := g.post(t, "/api/auth/signup", `{"username":"bob","password":"other12"}`, nil)
	defer second.Body.Close()
	require.Equal(t, http.StatusConflict, second.StatusCode)
	assert.Nil(t, findSessionCookie(second))

	// Exactly one bob, still carrying the first password's hash.
	require.Len(t, g.repo.users, 1)
	assert.Equal(t, storedHash, g.repo.users["bob"].PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword(storedHash, []byte("secret1")))
}

func TestEndToEnd_LoginFlow(t *testing.T) {
	g := newGateway(t, time.Hour)

	signup := g.post(t, "/api/auth/signup", `{"username":"alice","password":"secret1"}`, nil)
	defer signup.Body.Close()
	require.Equal(t, http.StatusOK, signup.StatusCode)

	badLogin := g.post(t, "/api/auth/login", `{"username":"alice","password":"wrong-password"}`, nil)
	defer badLogin.Body.Close()
	require.Equal(t, http.StatusUnauthorized, badLogin.StatusCode)

	unknownLogin := g.post(t, "/api/auth/login", `{"username":"ghost","password":"secret1"}`, nil)
	defer unknownLogin.Body.Close()
	require.Equal(t, http.StatusUnauthorized, unknownLogin.StatusCode)

	// Unknown-user and wrong-password responses are indistinguishable.
	var badBody, unknownBody map[string]string
	require.NoError(t, json.NewDecoder(badLogin.Body).Decode(&badBody))
	require.NoError(t, json.NewDecoder(unknownLogin.Body).Decode(&unknownBody))
	assert.Equal(t, badBody, unknownBody)

	login := g.post(t, "/api/auth/login", `{"username":"alice","password":"secret1"}`, nil)
	defer login.Body.Close()
	require.Equal(t, http.StatusOK, login.StatusCode)
	require.NotNil(t, findSessionCookie(login))
}

func TestEndToEnd_ProxyRequiresSession(t *testing.T) {
	g := newGateway(t, time.Hour)

	anon := g.get(t, "/api/chats", nil)
	defer anon.Body.Close()
	require.Equal(t, http.StatusUnauthorized, anon.StatusCode)
	assert.Zero(t, *g.hits, "unauthenticated request must not reach the backend")

	signup := g.post(t, "/api/auth/signup", `{"username":"alice","password":"secret1"}`, nil)
	defer signup.Body.Close()
	cookie := findSessionCookie(signup)
	require.NotNil(t, cookie)

	chats := g.get(t, "/api/chats", cookie)
	defer chats.Body.Close()
	require.Equal(t, http.StatusOK, chats.StatusCode)
	require.Equal(t, 1, *g.hits)

	var body map[string]string
	require.NoError(t, json.NewDecoder(chats.Body).Decode(&body))
	assert.Equal(t, "/chats", body["path"])
	assert.Equal(t, "alice", body["user"])
}

func TestEndToEnd_TamperedCookie(t *testing.T) {
	g := newGateway(t, time.Hour)

	signup := g.post(t, "/api/auth/signup", `{"username":"alice","password":"secret1"}`, nil)
	defer signup.Body.Close()
	cookie := findSessionCookie(signup)
	require.NotNil(t, cookie)

	tampered := &http.Cookie{Name: cookie.Name, Value: cookie.Value + "x"}
	me := g.get(t, "/api/auth/me", tampered)
	defer me.Body.Close()
	require.Equal(t, http.StatusUnauthorized, me.StatusCode)
}

func TestEndToEnd_HealthIsPublic(t *testing.T) {
	g := newGateway(t, time.Hour)

	res := g.get(t, "/health", nil)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}
