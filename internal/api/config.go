package api

import (
	"time"

	"github.com/FocuswithJustin/JuniperAlign/internal/config"
)

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string        // CORS and WebSocket origins (empty = allow all)
	Auth            AuthConfig      // Authentication configuration
	RateLimit       RateLimitConfig // Per-client request limits
}

// FromServerConfig adapts the loaded application configuration.
func FromServerConfig(c config.ServerConfig) Config {
	return Config{
		Host:            c.Host,
		Port:            c.Port,
		ReadTimeout:     c.ReadTimeout,
		WriteTimeout:    c.WriteTimeout,
		ShutdownTimeout: c.ShutdownTimeout,
		AllowedOrigins:  c.AllowedOrigins,
		Auth:            AuthConfig{Enabled: c.APIKey != "", APIKey: c.APIKey},
		RateLimit:       RateLimitConfig{RequestsPerSecond: c.RateLimit, Burst: c.RateLimitBurst},
	}
}
