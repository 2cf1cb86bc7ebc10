package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/kyleseneker/rankwatch/internal/config"
)

// Logger defines the logging interface used by the application.
// This abstracts the underlying logging library (hclog).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// Named creates a sublogger with a name component.
	Named(name string) Logger
	// With adds key-value pairs to the logger's context.
	With(args ...interface{}) Logger
}

var _ Logger = (*hclogWrapper)(nil)

// hclogWrapper adapts hclog.Logger to the Logger interface. The level methods
// are promoted; only the sublogger constructors need to rewrap.
type hclogWrapper struct {
	hclog.Logger
}

func (w *hclogWrapper) Named(name string) Logger {
	return &hclogWrapper{w.Logger.Named(name)}
}

func (w *hclogWrapper) With(args ...interface{}) Logger {
	return &hclogWrapper{w.Logger.With(args...)}
}

// appLogger is the global logger instance for the application.
// Components receive a Logger through their constructors; the global is only
// consulted by the CLI layer.
var appLogger Logger

// New builds a Logger writing to out. level is one of DEBUG, INFO, WARN,
// ERROR; format is "text" or "json".
func New(level, format string, out io.Writer) Logger {
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	return &hclogWrapper{hclog.New(&hclog.LoggerOptions{
		Name:       "rankwatch",
		Level:      lvl,
		Output:     out,
		JSONFormat: strings.ToLower(format) == "json",
	})}
}

// NewNull returns a Logger that discards everything. Used in tests.
func NewNull() Logger {
	return &hclogWrapper{hclog.NewNullLogger()}
}

// InitializeLogger creates the application's logger instance based on configuration.
// It should be called early in the application startup.
func InitializeLogger(cfg *config.Config) {
	appLogger = New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	appLogger.Info("Logger initialized", "level", strings.ToUpper(cfg.LogLevel), "format", cfg.LogFormat)
}

// Get returns the initialized application logger interface.
// Returns a fallback logger if InitializeLogger has not been called.
func Get() Logger {
	if appLogger == nil {
		fallback := &hclogWrapper{hclog.New(&hclog.LoggerOptions{
			Name:  "rankwatch-fallback",
			Level: hclog.Warn,
		})}
		fallback.Error("Get() called before InitializeLogger!")
		return fallback
	}
	return appLogger
}
