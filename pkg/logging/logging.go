// Package logging provides the service's structured logger and a set of
// standard field builders so call sites stay consistent without each one
// re-deriving field names.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process-wide logger. In production mode it emits JSON at
// info level; outside production it emits a human-readable console
// encoding at debug level, matching the verbosity swing the teacher's own
// services make between NODE_ENV-equivalent modes.
func New(production bool) (*zap.Logger, error) {
	if production {
		cfg := zap.NewProductionConfig()
		cfg.OutputPaths = []string{"stdout"}
		return cfg.Build()
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// NewNop returns a logger that discards everything, for tests that don't
// care about log output.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// Fields is a small builder for the handful of labels every component
// attaches to its log lines: which component logged, which operation was
// in flight, which session it concerned, and how long it took.
type Fields struct {
	fields []zap.Field
}

// NewFields starts an empty field set.
func NewFields() Fields {
	return Fields{}
}

// Component tags the logging component (e.g. "orchestrator", "llm").
func (f Fields) Component(name string) Fields {
	return f.with(zap.String("component", name))
}

// Operation tags the operation within the component (e.g. "deep_pipeline").
func (f Fields) Operation(name string) Fields {
	return f.with(zap.String("operation", name))
}

// Session tags the session ID a log line concerns.
func (f Fields) Session(id string) Fields {
	if id == "" {
		return f
	}
	return f.with(zap.String("session_id", id))
}

// Mode tags the research mode.
func (f Fields) Mode(mode string) Fields {
	return f.with(zap.String("mode", mode))
}

// Phase tags the deep-pipeline phase name.
func (f Fields) Phase(name string) Fields {
	return f.with(zap.String("phase", name))
}

// DurationMs tags an elapsed duration in milliseconds.
func (f Fields) DurationMs(ms int64) Fields {
	return f.with(zap.Int64("duration_ms", ms))
}

// Err tags an error, a no-op when err is nil.
func (f Fields) Err(err error) Fields {
	if err == nil {
		return f
	}
	return f.with(zap.Error(err))
}

func (f Fields) with(field zap.Field) Fields {
	next := make([]zap.Field, len(f.fields), len(f.fields)+1)
	copy(next, f.fields)
	next = append(next, field)
	return Fields{fields: next}
}

// Slice returns the accumulated fields for passing to a zap log call.
func (f Fields) Slice() []zap.Field {
	return f.fields
}

// Hostname returns the process hostname, or "unknown" if unavailable, for
// attaching to startup log lines.
func Hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
