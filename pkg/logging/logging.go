// Package logging holds the process-wide structured logger.
package logging

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	TimeFormat string
	ShowCaller bool
	Output     io.Writer
}

// DefaultConfig returns the settings used when Init is never called.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		TimeFormat: "15:04:05",
		Output:     os.Stderr,
	}
}

var (
	mu     sync.RWMutex
	logger = newLogger(DefaultConfig())
)

func newLogger(cfg Config) *log.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	l := log.NewWithOptions(cfg.Output, log.Options{
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		ReportCaller:    cfg.ShowCaller,
	})
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	l.SetLevel(level)
	return l
}

// Init replaces the global logger.
func Init(cfg Config) {
	l := newLogger(cfg)
	mu.Lock()
	logger = l
	mu.Unlock()
}

// L returns the global logger.
func L() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// With returns a child of the global logger carrying the given key/value pairs.
//
//	log := logging.With("component", "invoker")
func With(keyvals ...interface{}) *log.Logger {
	return L().With(keyvals...)
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// NewContext attaches l to ctx.
func NewContext(ctx context.Context, l *log.Logger) context.Context {
	return log.WithContext(ctx, l)
}

// FromContextOr returns the logger attached to ctx, then fallback, then the
// global logger.
func FromContextOr(ctx context.Context, fallback *log.Logger) *log.Logger {
	if l, ok := ctx.Value(log.ContextKey).(*log.Logger); ok && l != nil {
		return l
	}
	if fallback != nil {
		return fallback
	}
	return L()
}
