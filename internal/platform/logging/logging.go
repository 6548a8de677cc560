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
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
}

// sensitiveKeys lists structured-field names whose values must never reach a
// log sink: they carry personal data or whole image payloads.
var sensitiveKeys = map[string]struct{}{
	"image":       {},
	"imageBase64": {},
	"contact":     {},
	"ip":          {},
	"ua":          {},
}

const redactedValue = "[redacted]"

var DefaultLogger *Logger

var (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m"
	colorDebug = "\x1b[36m"
	colorInfo  = "\x1b[32m"
	colorWarn  = "\x1b[33m"
	colorError = "\x1b[31m"
)

// tag colors for module-prefixed messages like "[MODEL] ..."
var tagColors = map[string]string{
	"[BOOT]":    "\x1b[96m",
	"[HTTP]":    "\x1b[95m",
	"[MODEL]":   "\x1b[34m",
	"[SIDECAR]": "\x1b[92m",
	"[IMAGE]":   "\x1b[94m",
	"[CONFIG]":  "\x1b[97m",
}

// consoleHandler renders colored, tag-aware text lines for stdout.
type consoleHandler struct {
	writer io.Writer
	level  slog.Level
	mu     sync.Mutex
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeStr := r.Time.Format("2006-01-02 15:04:05.000")

	var levelStr, levelColor string
	switch r.Level {
	case slog.LevelDebug:
		levelStr, levelColor = "DEBUG", colorDebug
	case slog.LevelWarn:
		levelStr, levelColor = "WARN", colorWarn
	case slog.LevelError:
		levelStr, levelColor = "ERROR", colorError
	default:
		levelStr, levelColor = "INFO", colorInfo
	}

	msg := r.Message
	var output string
	if tagColor, ok := matchTagColor(msg); ok {
		output = fmt.Sprintf("%s[%s]%s %s%s%s",
			colorTime, timeStr, colorReset,
			tagColor, msg, colorReset)
	} else {
		output = fmt.Sprintf("%s[%s]%s %s[%s]%s %s",
			colorTime, timeStr, colorReset,
			levelColor, levelStr, colorReset,
			msg)
	}

	if r.NumAttrs() > 0 {
		output += " {"
		r.Attrs(func(a slog.Attr) bool {
			output += fmt.Sprintf(" %s=%v", a.Key, a.Value)
			return true
		})
		output += " }"
	}
	output += "\n"

	_, err := h.writer.Write([]byte(output))
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *consoleHandler) WithGroup(name string) slog.Handler       { return h }

func matchTagColor(msg string) (string, bool) {
	for prefix, color := range tagColors {
		if strings.HasPrefix(msg, prefix) {
			return color, true
		}
	}
	return "", false
}

// Logger writes JSON entries to a file and colored text to the console.
type Logger struct {
	config     Config
	jsonLogger *slog.Logger
	textLogger *slog.Logger
	logFile    *os.File
	mu         sync.RWMutex
}

func configLogLevelToSlogLevel(configLevel string) slog.Level {
	switch strings.ToLower(configLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger writing to cfg.Dir/cfg.Filename and stdout.
func New(cfg Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	logPath := filepath.Join(cfg.Dir, cfg.Filename)
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	slogLevel := configLogLevelToSlogLevel(cfg.Level)

	jsonHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slogLevel})
	textHandler := &consoleHandler{writer: os.Stdout, level: slogLevel}

	logger := &Logger{
		config:     cfg,
		jsonLogger: slog.New(jsonHandler),
		textLogger: slog.New(textHandler),
		logFile:    file,
	}

	if DefaultLogger == nil {
		DefaultLogger = logger
	}

	return logger, nil
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

// Slog exposes the underlying text logger for structured integrations.
func (l *Logger) Slog() *slog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.textLogger
}

func (l *Logger) log(level slog.Level, msg string, fields ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var attrs []slog.Attr
	if len(fields) > 0 && fields[0] != nil {
		if fieldsMap, ok := fields[0].(map[string]interface{}); ok {
			keys := make([]string, 0, len(fieldsMap))
			for k := range fieldsMap {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, k := range keys {
				attrs = append(attrs, slog.Any(k, Redact(k, fieldsMap[k])))
			}
		} else {
			attrs = append(attrs, slog.Any("fields", fields[0]))
		}
	}

	ctx := context.Background()
	l.jsonLogger.LogAttrs(ctx, level, msg, attrs...)
	l.textLogger.LogAttrs(ctx, level, msg, attrs...)
}

// Redact replaces sensitive field values with a placeholder.
func Redact(key string, value interface{}) interface{} {
	if _, ok := sensitiveKeys[key]; ok {
		return redactedValue
	}
	return value
}

func containsFormatPlaceholders(s string) bool {
	return strings.Contains(s, "%")
}

func (l *Logger) emit(level slog.Level, msg string, args ...interface{}) {
	if len(args) > 0 && containsFormatPlaceholders(msg) {
		l.log(level, fmt.Sprintf(msg, args...))
	} else {
		l.log(level, msg, args...)
	}
}

// Debug records a debug-level entry.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.emit(slog.LevelDebug, msg, args...)
}

// Info records an info-level entry. Supports either fmt-style formatting or a
// single map[string]interface{} of structured (redacted) fields.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.emit(slog.LevelInfo, msg, args...)
}

// Warn records a warn-level entry.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.emit(slog.LevelWarn, msg, args...)
}

// Error records an error-level entry.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.emit(slog.LevelError, msg, args...)
}

// FormatLog builds a tagged message like "[BOOT] service started". Messages
// that already carry a tag are returned unchanged.
func FormatLog(tag, message string) string {
	tag = strings.TrimSpace(tag)
	message = strings.TrimSpace(message)
	if tag == "" {
		return message
	}
	if strings.HasPrefix(message, "[") {
		return message
	}
	return fmt.Sprintf("[%s] %s", tag, message)
}

func (l *Logger) logWithTag(level slog.Level, tag, msg string, args ...interface{}) {
	if l == nil {
		return
	}
	l.emit(level, FormatLog(tag, msg), args...)
}

// DebugTag records a tagged debug entry.
func (l *Logger) DebugTag(tag, msg string, args ...interface{}) {
	l.logWithTag(slog.LevelDebug, tag, msg, args...)
}

// InfoTag records a tagged info entry.
func (l *Logger) InfoTag(tag, msg string, args ...interface{}) {
	l.logWithTag(slog.LevelInfo, tag, msg, args...)
}

// WarnTag records a tagged warn entry.
func (l *Logger) WarnTag(tag, msg string, args ...interface{}) {
	l.logWithTag(slog.LevelWarn, tag, msg, args...)
}

// ErrorTag records a tagged error entry.
func (l *Logger) ErrorTag(tag, msg string, args ...interface{}) {
	l.logWithTag(slog.LevelError, tag, msg, args...)
}
