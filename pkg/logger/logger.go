package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level represents the severity of a log message
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var (
	colorTime   = color.New(color.FgHiBlack)
	colorPrefix = color.New(color.FgCyan)
	colorFields = color.New(color.FgHiBlack)

	levelColors = map[Level]*color.Color{
		DebugLevel: color.New(color.FgHiBlack),
		InfoLevel:  color.New(color.FgGreen),
		WarnLevel:  color.New(color.FgYellow),
		ErrorLevel: color.New(color.FgRed, color.Bold),
	}
)

// Logger is the main logger interface
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithPrefix(prefix string) Logger
}

// sink is shared by a logger and every child derived from it, so level and
// color changes made on the root apply to prefixed loggers too.
type sink struct {
	mu       sync.Mutex
	level    Level
	writer   io.Writer
	noColor  bool
	showTime bool
}

type logger struct {
	out    *sink
	fields map[string]interface{}
	prefix string
}

var defaultLogger = New()

// Config holds logger configuration
type Config struct {
	Level    Level
	Writer   io.Writer
	NoColor  bool
	ShowTime bool
}

// New creates a new logger with default configuration
func New() Logger {
	return NewWithConfig(Config{
		Level:    InfoLevel,
		Writer:   os.Stdout,
		ShowTime: true,
	})
}

// NewWithConfig creates a new logger with custom configuration
func NewWithConfig(cfg Config) Logger {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	return &logger{
		out: &sink{
			level:    cfg.Level,
			writer:   cfg.Writer,
			noColor:  cfg.NoColor,
			showTime: cfg.ShowTime,
		},
		fields: make(map[string]interface{}),
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() Logger {
	return NewWithConfig(Config{Level: ErrorLevel + 1, Writer: io.Discard, NoColor: true})
}

// Default returns the package level logger
func Default() Logger {
	return defaultLogger
}

// SetLevel sets the global log level
func SetLevel(level Level) {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		l.out.level = level
		l.out.mu.Unlock()
	}
}

// SetNoColor disables color output
func SetNoColor(noColor bool) {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		l.out.noColor = noColor
		l.out.mu.Unlock()
	}
	color.NoColor = color.NoColor || noColor
}

// Helper methods for the default logger
func Debug(args ...interface{})                       { defaultLogger.Debug(args...) }
func Debugf(format string, args ...interface{})       { defaultLogger.Debugf(format, args...) }
func Info(args ...interface{})                        { defaultLogger.Info(args...) }
func Infof(format string, args ...interface{})        { defaultLogger.Infof(format, args...) }
func Warn(args ...interface{})                        { defaultLogger.Warn(args...) }
func Warnf(format string, args ...interface{})        { defaultLogger.Warnf(format, args...) }
func Error(args ...interface{})                       { defaultLogger.Error(args...) }
func Errorf(format string, args ...interface{})       { defaultLogger.Errorf(format, args...) }
func WithField(key string, value interface{}) Logger  { return defaultLogger.WithField(key, value) }
func WithFields(fields map[string]interface{}) Logger { return defaultLogger.WithFields(fields) }
func WithPrefix(prefix string) Logger                 { return defaultLogger.WithPrefix(prefix) }

func (l *logger) paint(c *color.Color, s string) string {
	if l.out.noColor {
		return s
	}
	return c.Sprint(s)
}

func (l *logger) log(level Level, args ...interface{}) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if level < l.out.level {
		return
	}

	var parts []string

	if l.out.showTime {
		parts = append(parts, l.paint(colorTime, time.Now().Format("15:04:05.000")))
	}

	parts = append(parts, l.paint(levelColors[level], levelString(level)))

	if l.prefix != "" {
		parts = append(parts, l.paint(colorPrefix, "["+l.prefix+"]"))
	}

	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fieldParts := make([]string, 0, len(keys))
		for _, k := range keys {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%v", k, l.fields[k]))
		}
		parts = append(parts, l.paint(colorFields, strings.Join(fieldParts, " ")))
	}

	parts = append(parts, fmt.Sprint(args...))

	_, _ = fmt.Fprintln(l.out.writer, strings.Join(parts, " "))
}

func (l *logger) logf(level Level, format string, args ...interface{}) {
	l.log(level, fmt.Sprintf(format, args...))
}

func levelString(level Level) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO "
	case WarnLevel:
		return "WARN "
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l *logger) Debug(args ...interface{})                 { l.log(DebugLevel, args...) }
func (l *logger) Debugf(format string, args ...interface{}) { l.logf(DebugLevel, format, args...) }
func (l *logger) Info(args ...interface{})                  { l.log(InfoLevel, args...) }
func (l *logger) Infof(format string, args ...interface{})  { l.logf(InfoLevel, format, args...) }
func (l *logger) Warn(args ...interface{})                  { l.log(WarnLevel, args...) }
func (l *logger) Warnf(format string, args ...interface{})  { l.logf(WarnLevel, format, args...) }
func (l *logger) Error(args ...interface{})                 { l.log(ErrorLevel, args...) }
func (l *logger) Errorf(format string, args ...interface{}) { l.logf(ErrorLevel, format, args...) }

func (l *logger) child(prefix string, extra map[string]interface{}) *logger {
	n := &logger{
		out:    l.out,
		fields: make(map[string]interface{}, len(l.fields)+len(extra)),
		prefix: prefix,
	}
	for k, v := range l.fields {
		n.fields[k] = v
	}
	for k, v := range extra {
		n.fields[k] = v
	}
	return n
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return l.child(l.prefix, map[string]interface{}{key: value})
}

func (l *logger) WithFields(fields map[string]interface{}) Logger {
	return l.child(l.prefix, fields)
}

func (l *logger) WithPrefix(prefix string) Logger {
	return l.child(prefix, nil)
}

// ParseLevel parses a string log level
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}
