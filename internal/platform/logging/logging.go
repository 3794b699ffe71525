package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config captures logging configuration options.
type Config struct {
	Level      string
	Dir        string
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// Console overrides the console writer; nil means stdout.
	Console io.Writer
}

var (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m"
	colorDebug = "\x1b[36m"
	colorInfo  = "\x1b[32m"
	colorWarn  = "\x1b[33m"
	colorError = "\x1b[31m"
	colorTag   = "\x1b[96m"
)

// consoleHandler renders "[time] [LEVEL] message { k=v }" lines.
type consoleHandler struct {
	writer io.Writer
	level  slog.Level
	mu     *sync.Mutex
	attrs  []slog.Attr
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(colorTime)
	b.WriteString("[" + r.Time.Format("2006-01-02 15:04:05.000") + "]")
	b.WriteString(colorReset + " ")

	if strings.HasPrefix(r.Message, "[") {
		b.WriteString(colorTag + r.Message + colorReset)
	} else {
		color, label := levelStyle(r.Level)
		b.WriteString(color + "[" + label + "]" + colorReset + " " + r.Message)
	}

	if len(h.attrs) > 0 || r.NumAttrs() > 0 {
		b.WriteString(" {")
		for _, a := range h.attrs {
			fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		}
		r.Attrs(func(a slog.Attr) bool {
			fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
			return true
		})
		b.WriteString(" }")
	}
	b.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *consoleHandler) WithGroup(string) slog.Handler {
	return h
}

func levelStyle(level slog.Level) (string, string) {
	switch {
	case level >= slog.LevelError:
		return colorError, "ERROR"
	case level >= slog.LevelWarn:
		return colorWarn, "WARN"
	case level >= slog.LevelInfo:
		return colorInfo, "INFO"
	default:
		return colorDebug, "DEBUG"
	}
}

// ParseLevel converts a configured level name into a slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Logger writes every entry to the console as text and to a rotating file as JSON.
type Logger struct {
	level   slog.Level
	console *slog.Logger
	file    *slog.Logger
	closer  io.Closer
}

// New creates a Logger. An empty Dir disables the JSON file sink.
func New(cfg Config) (*Logger, error) {
	level := ParseLevel(cfg.Level)
	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}

	l := &Logger{
		level:   level,
		console: slog.New(&consoleHandler{writer: console, level: level, mu: &sync.Mutex{}}),
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		filename := cfg.Filename
		if filename == "" {
			filename = "server.log"
		}
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, filename),
			MaxSize:    orDefault(cfg.MaxSizeMB, 10),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 7),
			Compress:   cfg.Compress,
		}
		l.file = slog.New(slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: level}))
		l.closer = rotator
	}
	return l, nil
}

// NewNop returns a logger that discards everything. Handy in tests.
func NewNop() *Logger {
	return &Logger{
		level:   slog.LevelError + 1,
		console: slog.New(&consoleHandler{writer: io.Discard, level: slog.LevelError + 1, mu: &sync.Mutex{}}),
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Close flushes and closes the file sink.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Slog exposes the console logger for integrations that want a *slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.console
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	if l == nil || level < l.level {
		return
	}
	var attrs []slog.Attr
	if len(args) > 0 && strings.Contains(msg, "%") {
		msg = fmt.Sprintf(msg, args...)
	} else if len(args) > 0 {
		attrs = toAttrs(args)
	}

	ctx := context.Background()
	l.console.LogAttrs(ctx, level, msg, attrs...)
	if l.file != nil {
		l.file.LogAttrs(ctx, level, msg, attrs...)
	}
}

// toAttrs accepts either a single map of fields or slog-style key/value pairs.
func toAttrs(args []any) []slog.Attr {
	if fields, ok := args[0].(map[string]any); ok && len(args) == 1 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		attrs := make([]slog.Attr, 0, len(keys))
		for _, k := range keys {
			attrs = append(attrs, slog.Any(k, fields[k]))
		}
		return attrs
	}

	attrs := make([]slog.Attr, 0, len(args)/2+1)
	for i := 0; i < len(args); i++ {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			attrs = append(attrs, slog.Any("!BADKEY", args[i]))
			continue
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
		i++
	}
	return attrs
}

func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// FormatLog builds "[TAG] message". Messages that already start with "[" are kept as-is.
func FormatLog(tag, message string) string {
	tag = strings.TrimSpace(tag)
	message = strings.TrimSpace(message)
	if tag == "" || strings.HasPrefix(message, "[") {
		return message
	}
	return "[" + tag + "] " + message
}

func (l *Logger) DebugTag(tag, msg string, args ...any) { l.Debug(FormatLog(tag, msg), args...) }
func (l *Logger) InfoTag(tag, msg string, args ...any)  { l.Info(FormatLog(tag, msg), args...) }
func (l *Logger) WarnTag(tag, msg string, args ...any)  { l.Warn(FormatLog(tag, msg), args...) }
func (l *Logger) ErrorTag(tag, msg string, args ...any) { l.Error(FormatLog(tag, msg), args...) }
