package logger

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Level represents logging level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

var zerologLevels = map[Level]zerolog.Level{
	DEBUG: zerolog.DebugLevel,
	INFO:  zerolog.InfoLevel,
	WARN:  zerolog.WarnLevel,
	ERROR: zerolog.ErrorLevel,
	FATAL: zerolog.FatalLevel,
}

const timeFormat = "2006-01-02 15:04:05.000"

// Logger provides structured logging capabilities
type Logger struct {
	zl        zerolog.Logger
	level     Level
	output    io.Writer
	component string
	format    string // "text" or "json"
}

// Fields represents structured logging fields
type Fields map[string]interface{}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Init initializes the default logger
func Init(level, format string, component string) {
	InitWithOutput(level, format, component, os.Stdout)
}

// InitWithOutput initializes the default logger writing to w
func InitWithOutput(level, format, component string, w io.Writer) {
	once.Do(func() {
		defaultLogger = NewWithOutput(level, format, component, w)
	})
}

// New creates a new logger instance writing to stdout
func New(levelStr, format, component string) *Logger {
	return NewWithOutput(levelStr, format, component, os.Stdout)
}

// NewWithOutput creates a new logger instance writing to w
func NewWithOutput(levelStr, format, component string, w io.Writer) *Logger {
	l := &Logger{
		level:     parseLevel(levelStr),
		output:    w,
		component: component,
		format:    strings.ToLower(format),
	}
	l.zl = l.build()
	return l
}

func (l *Logger) build() zerolog.Logger {
	var w io.Writer = l.output
	if l.format != "json" {
		w = zerolog.ConsoleWriter{
			Out:        l.output,
			TimeFormat: timeFormat,
			NoColor:    !isTerminal(l.output),
		}
	}
	ctx := zerolog.New(w).Level(zerologLevels[l.level]).With().Timestamp()
	if l.component != "" {
		ctx = ctx.Str("component", l.component)
	}
	return ctx.Logger()
}

// WithComponent creates a new logger with a specific component name
func (l *Logger) WithComponent(component string) *Logger {
	c := &Logger{
		level:     l.level,
		output:    l.output,
		component: component,
		format:    l.format,
	}
	c.zl = c.build()
	return c
}

// Zerolog exposes the underlying logger for libraries that accept one
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Fields) {
	l.log(l.zl.Debug(), msg, fields)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Fields) {
	l.log(l.zl.Info(), msg, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Fields) {
	l.log(l.zl.Warn(), msg, fields)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...Fields) {
	l.log(l.zl.Error().Caller(2), msg, fields)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, fields ...Fields) {
	l.log(l.zl.Fatal(), msg, fields)
}

func (l *Logger) log(event *zerolog.Event, msg string, fields []Fields) {
	if event == nil {
		return
	}
	if merged := mergeFields(fields...); len(merged) > 0 {
		event = event.Fields(map[string]interface{}(merged))
	}
	event.Msg(msg)
}

// parseLevel converts string to Level
func parseLevel(levelStr string) Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// mergeFields combines multiple Fields maps
func mergeFields(fields ...Fields) Fields {
	if len(fields) == 0 {
		return Fields{}
	}

	result := Fields{}
	for _, f := range fields {
		for k, v := range f {
			result[k] = v
		}
	}
	return result
}

// isTerminal checks if output is a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Default logger convenience functions
func Debug(msg string, fields ...Fields) {
	if defaultLogger != nil {
		defaultLogger.Debug(msg, fields...)
	} else {
		log.Printf("[DEBUG] %s", msg)
	}
}

func Info(msg string, fields ...Fields) {
	if defaultLogger != nil {
		defaultLogger.Info(msg, fields...)
	} else {
		log.Printf("[INFO] %s", msg)
	}
}

func Warn(msg string, fields ...Fields) {
	if defaultLogger != nil {
		defaultLogger.Warn(msg, fields...)
	} else {
		log.Printf("[WARN] %s", msg)
	}
}

func Error(msg string, fields ...Fields) {
	if defaultLogger != nil {
		defaultLogger.Error(msg, fields...)
	} else {
		log.Printf("[ERROR] %s", msg)
	}
}

func Fatal(msg string, fields ...Fields) {
	if defaultLogger != nil {
		defaultLogger.Fatal(msg, fields...)
	} else {
		log.Fatalf("[FATAL] %s", msg)
	}
}

// GetDefault returns the default logger
func GetDefault() *Logger {
	return defaultLogger
}

// ForComponent returns the default logger tagged with component, or a fresh
// info level text logger when Init was never called.
func ForComponent(component string) *Logger {
	if defaultLogger == nil {
		return New("info", "text", component)
	}
	return defaultLogger.WithComponent(component)
}
