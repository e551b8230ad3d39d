// Package logger wraps a process-wide zap logger with context-aware helpers
// that attach the request id of the transcode being logged.
package logger

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls logger construction.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level"`
	// Development enables the human-friendly development preset.
	Development bool `json:"development" yaml:"development"`
	// Encoding is json or console.
	Encoding string `json:"encoding" yaml:"encoding"`
}

// DefaultConfig returns info-level JSON logging.
func DefaultConfig() Config {
	return Config{Level: "info", Encoding: "json"}
}

type ctxKey struct{}

var global atomic.Pointer[zap.Logger]

func init() {
	global.Store(zap.NewNop())
}

// New builds a zap logger from cfg.
//
// Arguments:
//   - cfg: The logger configuration.
//
// Returns:
//   - *zap.Logger: The logger.
//   - error: If the level or encoding is invalid.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.Encoding != "" {
		zc.Encoding = cfg.Encoding
	}

	l, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}
	return l, nil
}

// Initialize builds a logger from cfg and installs it as the global logger.
func Initialize(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Set installs l as the global logger. A nil logger installs a no-op logger.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	global.Store(l)
}

// L returns the global logger.
func L() *zap.Logger {
	return global.Load()
}

// Sync flushes buffered log entries.
func Sync() error {
	return L().Sync()
}

// WithRequestID returns a context carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func withContext(ctx context.Context, fields []zap.Field) []zap.Field {
	if id := RequestID(ctx); id != "" {
		return append(fields, zap.String("requestID", id))
	}
	return fields
}

// DebugCtx logs at debug level with the context's request id.
func DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	L().Debug(msg, withContext(ctx, fields)...)
}

// InfoCtx logs at info level with the context's request id.
func InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	L().Info(msg, withContext(ctx, fields)...)
}

// WarnCtx logs at warn level with the context's request id.
func WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	L().Warn(msg, withContext(ctx, fields)...)
}

// ErrorCtx logs at error level with the context's request id.
func ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	L().Error(msg, withContext(ctx, fields)...)
}
