// Package logging configures the structured loggers used by spaceclient.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Component names accepted by Config.Components.
const (
	ComponentClient    = "client"
	ComponentTransport = "transport"
	ComponentSpace     = "space"
	ComponentCLI       = "cli"
	ComponentMCP       = "mcp"
)

var (
	globalLogger *slog.Logger
	globalMu     sync.RWMutex

	// logWriter is the rotating file writer, closed by Close.
	logWriter   io.WriteCloser
	logWriterMu sync.Mutex

	// allowedComponents is nil when every component is logged.
	allowedComponents map[string]bool
	componentsMu      sync.RWMutex
)

// FileLogConfig holds configuration for file-based logging with rotation.
type FileLogConfig struct {
	// Path is the log file. Empty disables file logging.
	Path string

	// MaxSizeMB is the size in megabytes at which the file is rotated.
	// Default: 10MB
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep.
	// Default: 3
	MaxBackups int

	Compress bool
}

// DefaultFileLogConfig returns the default file log configuration.
func DefaultFileLogConfig() FileLogConfig {
	return FileLogConfig{
		MaxSizeMB:  10,
		MaxBackups: 3,
	}
}

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level written to stderr (debug, info, warn, error).
	Level string
	// FileLevel is the minimum level written to the log file. Defaults to Level.
	FileLevel string
	// FileLog enables a rotating log file in addition to stderr.
	FileLog *FileLogConfig
	// JSON switches both outputs to JSON records.
	JSON bool
	// Components limits output to the named components. Empty means all.
	Components []string

	// Output replaces stderr as the console writer. Used by tests and by
	// the mcp stdio mode, where stdout carries the protocol.
	Output io.Writer
}

// Initialize installs the global logger described by cfg.
func Initialize(cfg Config) error {
	consoleLevel := parseLevel(cfg.Level)
	fileLevel := consoleLevel
	if cfg.FileLevel != "" {
		fileLevel = parseLevel(cfg.FileLevel)
	}

	// Replace the component allow-list
	componentsMu.Lock()
	if len(cfg.Components) > 0 {
		allowedComponents = make(map[string]bool, len(cfg.Components))
		for _, c := range cfg.Components {
			allowedComponents[c] = true
		}
	} else {
		allowedComponents = nil // log everything
	}
	componentsMu.Unlock()

	logWriterMu.Lock()
	defer logWriterMu.Unlock()

	var fileWriter io.Writer
	if cfg.FileLog != nil && cfg.FileLog.Path != "" {
		// Apply defaults
		maxSize := cfg.FileLog.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		maxBackups := cfg.FileLog.MaxBackups
		if maxBackups < 0 {
			maxBackups = 3
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.FileLog.Path,
			MaxSize:    maxSize,    // megabytes
			MaxBackups: maxBackups, // number of backups
			Compress:   cfg.FileLog.Compress,
		}
		// A second Initialize reopens the file, so drop the old writer
		if logWriter != nil {
			_ = logWriter.Close()
		}
		logWriter = lj
		fileWriter = lj
	}

	console := cfg.Output
	if console == nil {
		console = os.Stderr
	}

	newHandler := func(w io.Writer, level slog.Level) slog.Handler {
		opts := &slog.HandlerOptions{Level: level}
		if cfg.JSON {
			return slog.NewJSONHandler(w, opts)
		}
		return slog.NewTextHandler(w, opts)
	}

	var handler slog.Handler
	switch {
	case fileWriter != nil && fileLevel != consoleLevel:
		// Different levels need one handler per output
		handler = &multiHandler{handlers: []slog.Handler{
			newHandler(console, consoleLevel),
			newHandler(fileWriter, fileLevel),
		}}
	case fileWriter != nil:
		// Same level: a single handler writing to both
		handler = newHandler(io.MultiWriter(console, fileWriter), consoleLevel)
	default:
		handler = newHandler(console, consoleLevel)
	}

	logger := slog.New(handler)

	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()

	// Libraries logging through slog directly end up here too
	slog.SetDefault(logger)
	return nil
}

// multiHandler fans records out to handlers with different levels.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	// Enabled when any output wants the level
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		// Each handler gets its own copy of the attrs
		if err := handler.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// Get returns the global logger, or slog.Default() before Initialize.
func Get() *slog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

// Close closes the log file, if one is open.
func Close() error {
	logWriterMu.Lock()
	defer logWriterMu.Unlock()

	if logWriter != nil {
		err := logWriter.Close()
		logWriter = nil
		return err
	}
	return nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isComponentAllowed(component string) bool {
	componentsMu.RLock()
	defer componentsMu.RUnlock()

	if allowedComponents == nil {
		return true
	}
	return allowedComponents[component]
}

// componentFilterHandler drops records of components outside the allow-list.
type componentFilterHandler struct {
	inner     slog.Handler
	component string
}

func (h *componentFilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return isComponentAllowed(h.component) && h.inner.Enabled(ctx, level)
}

func (h *componentFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	if !isComponentAllowed(h.component) {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

func (h *componentFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &componentFilterHandler{inner: h.inner.WithAttrs(attrs), component: h.component}
}

func (h *componentFilterHandler) WithGroup(name string) slog.Handler {
	return &componentFilterHandler{inner: h.inner.WithGroup(name), component: h.component}
}

// WithComponent returns a logger tagged with component. Records are
// discarded when component filtering excludes it.
func WithComponent(component string) *slog.Logger {
	base := Get()
	return slog.New(&componentFilterHandler{
		inner:     base.Handler().WithAttrs([]slog.Attr{slog.String("component", component)}),
		component: component,
	})
}

// Client returns the logger for connection setup and call bookkeeping.
func Client() *slog.Logger {
	return WithComponent(ComponentClient)
}

// Transport returns the logger for websocket and event-stream traffic.
func Transport() *slog.Logger {
	return WithComponent(ComponentTransport)
}

// Space returns the logger for hosted space status polling.
func Space() *slog.Logger {
	return WithComponent(ComponentSpace)
}

// CLI returns the logger for command-line handlers.
func CLI() *slog.Logger {
	return WithComponent(ComponentCLI)
}

// MCP returns the logger for the MCP server.
func MCP() *slog.Logger {
	return WithComponent(ComponentMCP)
}

// WithApp returns a child logger carrying the app endpoint and session hash.
func WithApp(base *slog.Logger, endpoint, sessionHash string) *slog.Logger {
	if base == nil {
		return nil
	}
	return base.With(
		"app", endpoint,
		"session_hash", sessionHash,
	)
}

// WithCall returns a child logger carrying the identity of one call.
func WithCall(base *slog.Logger, callID, endpoint string, fnIndex int) *slog.Logger {
	if base == nil {
		return nil
	}
	return base.With(
		"call_id", callID,
		"endpoint", endpoint,
		"fn_index", fnIndex,
	)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
