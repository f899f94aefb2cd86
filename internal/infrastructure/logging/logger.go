package logging

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "mqtthelper"

// Logger wraps zap.Logger with key/value style methods.
//
// It provides structured logging with default fields and level-based filtering.
// Arguments after the message are alternating keys and values, the same shape
// the rest of the code base uses:
//
//	logger.Info("connected", "broker", addr, "attempt", 3)
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	core *zap.Logger
}

// New creates a new Logger with the specified configuration.
//
// It configures:
//   - Output format (JSON for production, console for development)
//   - Log level filtering
//   - Default fields (service name, version)
//   - Output destination (stdout, stderr or a file path)
//
// An output that cannot be opened falls back to stderr so that logging is
// never silently lost.
func New(cfg config.LoggingConfig, version string) *Logger {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:    "msg",
		LevelKey:      "level",
		TimeKey:       "time",
		NameKey:       "logger",
		CallerKey:     "caller",
		StacktraceKey: "stacktrace",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.LowercaseLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
		EncodeDuration: func(d time.Duration, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(d.String())
		},
	}

	encoding := "json"
	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		encoding = "console"
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	output := cfg.Output
	switch strings.ToLower(output) {
	case "", "stdout":
		output = "stdout"
	case "stderr":
		output = "stderr"
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}

	core, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		zapCfg.OutputPaths = []string{"stderr"}
		core, err = zapCfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			panic(fmt.Sprintf("building zap logger: %v", err))
		}
	}

	core = core.With(
		zap.String("service", serviceName),
		zap.String("version", version),
	)

	return &Logger{core: core}
}

// parseLevel converts a string log level to a zap level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// FromZap wraps an existing zap.Logger. Tests use it with zaptest/observer.
func FromZap(core *zap.Logger) *Logger {
	return &Logger{core: core}
}

// Debug logs a message at debug level.
func (l *Logger) Debug(msg string, args ...any) {
	l.core.Debug(msg, toFields(args...)...)
}

// Info logs a message at info level.
func (l *Logger) Info(msg string, args ...any) {
	l.core.Info(msg, toFields(args...)...)
}

// Warn logs a message at warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.core.Warn(msg, toFields(args...)...)
}

// Error logs a message at error level.
func (l *Logger) Error(msg string, args ...any) {
	l.core.Error(msg, toFields(args...)...)
}

// With returns a new Logger with additional default fields.
//
// Example:
//
//	mqttLogger := logger.With("component", "mqtt")
//	mqttLogger.Info("connected") // Includes component=mqtt
func (l *Logger) With(args ...any) *Logger {
	return &Logger{core: l.core.With(toFields(args...)...)}
}

// Zap exposes the underlying zap.Logger for libraries that want one.
func (l *Logger) Zap() *zap.Logger {
	return l.core
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.core.Sync()
}

// Default creates a default logger for use before configuration is loaded.
//
// This logger outputs to stdout in JSON format at info level.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{core: zap.NewNop()}
}
