// Package config provides functionality for managing configuration options
// for the application using command-line flags, environment variables and
// an optional JSON config file.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string

	// DatabaseDSN holds the PostgreSQL connection string.
	DatabaseDSN string

	// JWTSecret signs and verifies session tokens. Required.
	JWTSecret string

	// BackendURL is the base URL of the chat orchestration backend.
	BackendURL string

	// TokenTTL is the session token lifetime.
	TokenTTL time.Duration

	// BcryptCost is the adaptive hash cost factor for new passwords.
	BcryptCost int

	// SecureCookies marks session cookies Secure (set in production).
	SecureCookies bool

	// LoginRateLimit is the number of login attempts allowed per window.
	LoginRateLimit int

	// LoginRateWindow is the sliding window for login rate limiting.
	LoginRateWindow time.Duration

	// Config is the path to the config file.
	Config string
}

// options holds the current configuration values.
var options = &Options{
	TokenTTL:        7 * 24 * time.Hour,
	BcryptCost:      12,
	LoginRateLimit:  10,
	LoginRateWindow: time.Minute,
}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Addr, "a", "localhost:8080", "run on ip:port server")
	flag.StringVar(&options.DatabaseDSN, "d", "", "db address")
	flag.StringVar(&options.BackendURL, "b", "http://localhost:8000", "chat backend base URL")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It returns a pointer to the Options struct containing
// the parsed configuration values.
func Parse() *Options {
	flag.Parse()

	// Load .env if present so local runs match deployed environments.
	_ = godotenv.Load()

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				log.Fatalf("error while reading config file: %v", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				log.Fatalf("error while parsing config file: %v", err)
			}
		}
	}

	if serverAddress := os.Getenv("SERVER_ADDRESS"); serverAddress != "" {
		options.Addr = serverAddress
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		options.DatabaseDSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		options.JWTSecret = secret
	}
	if backend := os.Getenv("BACKEND_URL"); backend != "" {
		options.BackendURL = backend
	}
	if cost := os.Getenv("BCRYPT_COST"); cost != "" {
		if v, err := strconv.Atoi(cost); err == nil {
			options.BcryptCost = v
		}
	}
	if limit := os.Getenv("LOGIN_RATE_LIMIT"); limit != "" {
		if v, err := strconv.Atoi(limit); err == nil {
			options.LoginRateLimit = v
		}
	}
	if window := os.Getenv("LOGIN_RATE_WINDOW"); window != "" {
		if v, err := time.ParseDuration(window); err == nil {
			options.LoginRateWindow = v
		}
	}
	if os.Getenv("ENV") == "production" {
		options.SecureCookies = true
	}

	// The cost factor is an operator decision, never request input.
	if options.BcryptCost < bcrypt.MinCost || options.BcryptCost > bcrypt.MaxCost {
		options.BcryptCost = bcrypt.DefaultCost
	}

	return options
}
