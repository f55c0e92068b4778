// Package zaplog adapts go.uber.org/zap to log.Logger.
package zaplog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/IvanBrykalov/kvcache/log"
)

var _ log.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New builds a production JSON logger at the given level ("debug", "info",
// "warn", "error").
func New(level string) (Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return Logger{}, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return Logger{}, err
	}
	return Logger{L: l}, nil
}

func (z Logger) Debug(msg string, f log.Fields) { z.L.Debug(msg, zf(f)...) }
func (z Logger) Info(msg string, f log.Fields)  { z.L.Info(msg, zf(f)...) }
func (z Logger) Warn(msg string, f log.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z Logger) Error(msg string, f log.Fields) { z.L.Error(msg, zf(f)...) }

// Sync flushes buffered entries.
func (z Logger) Sync() error { return z.L.Sync() }

func zf(f log.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
