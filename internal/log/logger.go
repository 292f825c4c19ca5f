// Package log provides structured logging for funcid using zap.
package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with funcid-specific helpers.
type Logger struct {
	*zap.Logger
	onTrace func(pc uint64, category, name, detail string) // trace callback for diagnostic events
}

var (
	// L is the global logger instance.
	L    *Logger
	once sync.Once
)

// Init initializes the global logger with the given configuration.
// Safe to call multiple times; only the first call takes effect.
func Init(debug bool) {
	once.Do(func() {
		L = New(debug)
	})
}

// New creates a new Logger instance.
func New(debug bool) *Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	// Shorter timestamps in development
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fallback to no-op if config fails
		logger = zap.NewNop()
	}

	return &Logger{Logger: logger}
}

// NewNop creates a no-op logger for testing.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// SetOnTrace sets the trace callback for identification events.
func (l *Logger) SetOnTrace(fn func(pc uint64, category, name, detail string)) {
	l.onTrace = fn
}

// Trace logs a diagnostic event and calls the trace callback if set. This
// is the primary method the driver uses to report what happened to a
// specific routine.
func (l *Logger) Trace(pc uint64, category, name, detail string) {
	// Always call trace callback (for trace event collection)
	if l.onTrace != nil {
		l.onTrace(pc, category, name, detail)
	}

	l.Debug("event",
		zap.String("cat", category),
		zap.String("fn", name),
		zap.String("detail", detail),
		zap.Uint64("pc", pc),
	)
}

// TraceSimple logs a diagnostic event without an address (uses 0).
func (l *Logger) TraceSimple(category, name, detail string) {
	l.Trace(0, category, name, detail)
}

// Reconstructed logs a successful frame reconstruction.
func (l *Logger) Reconstructed(addr uint64, name string, frameSize uint64, numVars int) {
	l.Debug("reconstructed",
		Addr(addr),
		Fn(name),
		Size(frameSize),
		zap.Int("vars", numVars),
	)
}

// ReconstructFailed logs a routine the frame reconstructor gave up on.
func (l *Logger) ReconstructFailed(addr uint64, name string, reason error) {
	l.Debug("reconstruct_failed",
		Addr(addr),
		Fn(name),
		zap.Error(reason),
	)
}

// ProbeFailed logs a candidate whose probe call did not execute
// deterministically to completion (the concrete-emulation analogue of the
// reference implementation's multistate condition).
func (l *Logger) ProbeFailed(addr uint64, routine, candidate string, reason error) {
	l.Debug("probe_failed",
		Addr(addr),
		Fn(routine),
		zap.String("candidate", candidate),
		zap.Error(reason),
	)
}

// MatchFound logs a routine the driver identified.
func (l *Logger) MatchFound(addr uint64, routine, candidate string) {
	l.Info("match",
		Addr(addr),
		Fn(routine),
		zap.String("candidate", candidate),
	)
}

// NoMatch logs a routine that was reconstructed and probed but matched no
// candidate in the catalogue.
func (l *Logger) NoMatch(addr uint64, routine string, tried int) {
	l.Debug("no_match",
		Addr(addr),
		Fn(routine),
		zap.Int("candidates_tried", tried),
	)
}

// WithCategory returns a logger with the category field preset.
func (l *Logger) WithCategory(category string) *Logger {
	return &Logger{
		Logger:  l.Logger.With(zap.String("cat", category)),
		onTrace: l.onTrace,
	}
}

// Hex formats a uint64 as hex string for logging.
func Hex(addr uint64) string {
	return "0x" + hexString(addr)
}

func hexString(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	buf := make([]byte, 16)
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}

// Field helpers for common patterns.

// Addr creates an address field.
func Addr(addr uint64) zap.Field {
	return zap.String("addr", Hex(addr))
}

// Size creates a size field.
func Size(size uint64) zap.Field {
	return zap.Uint64("size", size)
}

// Ptr creates a pointer field.
func Ptr(name string, ptr uint64) zap.Field {
	return zap.String(name, Hex(ptr))
}

// Fn creates a function name field.
func Fn(name string) zap.Field {
	return zap.String("fn", name)
}
