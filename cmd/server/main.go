// Package main initializes and starts the ConsultGate server, setting up
// configuration, logging, the database connection, repositories, services,
// session token signing and HTTP handlers.
package main

import (
	"cmp"
	"fmt"

	nethttp "net/http"

	"github.com/ayakovlev/consultgate/internal/config"
	"github.com/ayakovlev/consultgate/internal/db"
	"github.com/ayakovlev/consultgate/internal/logger"
	"github.com/ayakovlev/consultgate/internal/middleware"
	"github.com/ayakovlev/consultgate/internal/ratelimit"
	"github.com/ayakovlev/consultgate/internal/repository"
	"github.com/ayakovlev/consultgate/internal/server/handler/http"
	"github.com/ayakovlev/consultgate/internal/service"
	"github.com/ayakovlev/consultgate/internal/token"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init("Info"); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	// A missing signing secret is a fatal configuration error; it must
	// never surface as a per-request failure.
	tokens, err := token.NewManager([]byte(options.JWTSecret), options.TokenTTL)
	if err != nil {
		zapLogger.Fatal("cannot init token manager", zap.Error(err))
	}

	// Initialize PostgreSQL connection and schema.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}

	// Initialize the user repository and authentication service.
	userRepo := repository.NewPostgresUserRepository(postgresDB)
	authService := service.NewAuth(userRepo, options.BcryptCost)

	// Create HTTP handlers for auth and the backend proxy.
	authHandler := &http.AuthHandler{
		Auth:          authService,
		Tokens:        tokens,
		LoginLimiter:  ratelimit.New(options.LoginRateWindow, options.LoginRateLimit),
		SecureCookies: options.SecureCookies,
	}
	proxyHandler, err := http.NewProxyHandler(options.BackendURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot init backend proxy", zap.Error(err))
	}

	// Build the router with middleware, the route guard and routes.
	guard := middleware.NewGuard(tokens, http.GuardRules(), "/login")
	router := http.NewRouter(authHandler, proxyHandler, guard, zapLogger)

	// Create and start the HTTP server. TLS terminates at the platform edge.
	server := &nethttp.Server{
		Addr:    options.Addr,
		Handler: router,
	}

	zapLogger.Info("starting HTTP server",
		zap.String("addr", options.Addr),
		zap.String("backend", options.BackendURL),
	)
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
