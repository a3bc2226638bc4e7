package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultBackendURL is used when neither API_URL nor BACKEND_URL is set.
const DefaultBackendURL = "http://localhost:8001"

// Config holds all configuration for the client
type Config struct {
	// Backend Configuration
	BackendURL     string
	RequestTimeout time.Duration

	// Logging Configuration
	LogLevel  string
	LogFormat string

	// Client State Configuration
	StatePath string

	// UI Configuration
	PlainOutput bool
}

// Load loads configuration from environment variables with defaults.
// API_URL takes precedence over BACKEND_URL.
func Load() *Config {
	backendURL := getEnv("API_URL", "")
	if backendURL == "" {
		backendURL = getEnv("BACKEND_URL", DefaultBackendURL)
	}

	return &Config{
		BackendURL:     backendURL,
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 120*time.Second),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		StatePath: getEnv("QAHUB_STATE_PATH", ""),

		PlainOutput: getEnvAsBool("QAHUB_PLAIN", false),
	}
}

// Validate checks the configuration and returns a list of problems
func (c *Config) Validate() []string {
	var errors []string

	if c.BackendURL == "" {
		errors = append(errors, "backend URL must not be empty")
	} else if u, err := url.Parse(c.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("backend URL %q is not a valid absolute URL", c.BackendURL))
	}

	if c.RequestTimeout <= 0 {
		errors = append(errors, "request timeout must be positive")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("unknown log level %q", c.LogLevel))
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		errors = append(errors, fmt.Sprintf("unknown log format %q", c.LogFormat))
	}

	return errors
}

// APIBaseURL returns the backend URL with the /api prefix appended
func (c *Config) APIBaseURL() string {
	return strings.TrimRight(c.BackendURL, "/") + "/api"
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean with a fallback default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as a duration with a fallback
// default value. Plain integers are interpreted as seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}
