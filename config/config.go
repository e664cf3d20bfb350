// Package config loads server configuration from environment variables,
// an optional .env file and command-line flags. Flags win over the
// environment, the environment wins over the defaults.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

type Config struct {
	// HTTP Server
	Port        int
	CORSOrigins []string

	// Storage
	Store  string
	DBPath string

	// Logging
	LogLevel string
}

// Load reads .env (if present), the environment and then args.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		Store:       getEnv("STORE", StoreSQLite),
		DBPath:      getEnv("DB_PATH", "payout.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseFlags overrides cfg with command-line flags.
//
//	-port int           HTTP server port
//	-store string       memory or sqlite
//	-db string          SQLite database path (":memory:" for a throwaway db)
//	-log-level string   debug, info, warn, error
//	-cors-origins list  comma separated allowed origins
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "storage backend: memory or sqlite")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	origins := fs.String("cors-origins", strings.Join(cfg.CORSOrigins, ","), "comma separated CORS origins")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	cfg.CORSOrigins = splitList(*origins)
	return nil
}

// Validate returns every problem with the configuration at once.
func (c *Config) Validate() error {
	var errors []string

	if c.Port < 1 || c.Port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Port))
	}

	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.DBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite store")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid store '%s': must be one of [%s %s]", c.Store, StoreMemory, StoreSQLite))
	}

	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
