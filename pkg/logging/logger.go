// Package logging configures the zerolog global logger used by every package
// of the BigCommerce client.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

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

// Environment variables read by FromEnv.
const (
	EnvLevel  = "LOG_LEVEL"
	EnvFormat = "LOG_FORMAT"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// FromEnv returns DefaultConfig overridden by LOG_LEVEL and LOG_FORMAT
// ("pretty" or "json"). Unknown values are reported as errors.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()

	if v := getenv(EnvLevel); v != "" {
		level, err := ParseLevel(v)
		if err != nil {
			return cfg, err
		}
		cfg.Level = level
	}

	switch strings.ToLower(getenv(EnvFormat)) {
	case "", "json":
	case "pretty", "console":
		cfg.Pretty = true
	default:
		return cfg, fmt.Errorf("unknown log format %q", getenv(EnvFormat))
	}

	return cfg, nil
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel validates a level name as accepted on the command line.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

// parseLevel converts LogLevel to zerolog.Level, falling back to info.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// ForStore returns logger tagged with the store hash.
func ForStore(logger zerolog.Logger, storeHash string) zerolog.Logger {
	return logger.With().Str("store_hash", storeHash).Logger()
}

// Log Level Guidelines:
//
// Debug: page and unit flow
//   - Page walk progress and completion
//   - Throttle delays between calls
//   - Healthy or unlimited call budgets
//
// Info: completed operations
//   - Orders or products fetched, updates applied
//   - CLI startup and metrics listener
//
// Warn: degraded but progressing
//   - Call budget low or exhausted
//   - Retry attempts
//   - Budget snapshot not stored
//
// Error: operation failed
//   - Retries exhausted
//   - Fan-out batch with failed units
//   - Configuration errors
//
// Context Fields:
//   - operation: top-level operation (get_orders, update_products, ...)
//   - marker: per-operation identifier shared by all its log lines
//   - collection: paginated collection being walked
//   - endpoint, method, status_code: single call details
//   - remaining_calls, delay: call budget and resulting wait
//   - error_class: client, server, rate_limit, network, decode
