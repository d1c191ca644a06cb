// Package logging configures zerolog for the client and the gateway and
// carries request-scoped loggers through contexts.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output receives log lines (default: os.Stderr).
	Output io.Writer

	// Service, when set, is attached to every entry as "service".
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup installs the global zerolog logger and level, and returns the logger.
// A nil Output writes to stderr.
func Setup(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	fields := zerolog.New(out).With().Timestamp()
	if cfg.Service != "" {
		fields = fields.Str("service", cfg.Service)
	}
	log.Logger = fields.Logger()

	return log.Logger
}

func parseLevel(level LogLevel) zerolog.Level {
	switch ParseLevel(string(level)) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel converts a level name, falling back to LevelInfo.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// NewLogger creates a logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRequestID returns a copy of ctx carrying a logger tagged with id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return log.With().Str("request_id", id).Logger().WithContext(ctx)
}

// FromContext returns a component logger. It inherits the fields of the
// logger stored by WithRequestID when ctx carries one.
func FromContext(ctx context.Context, component string) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l.With().Str("component", component).Logger()
	}
	return NewLogger(component)
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Coalescing (joined in-flight call, served from window, sweeps)
//   - Shared cache hits
//   - Request flow (method, endpoint)
//
// Info: Normal operation events
//   - Requests that succeeded after a retry
//   - Rate limit recovery
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - 429 responses and retry backoff
//   - Non-2xx upstream responses
//   - Shared cache errors (fallback to direct request)
//   - Fallback placeholder data served
//
// Error: Error conditions requiring attention
//   - Transport failures
//   - Configuration errors
//
// Context Fields:
//   - component: emitting component (travel-client, travel-gateway, batch)
//   - endpoint: upstream API path
//   - status: HTTP status code
//   - error_class: config, client, server, rate_limit, network, decode
//   - attempt: 1-based attempt number
//   - backoff: retry delay
//   - key: coalescing key
//   - request_id: gateway request ID
