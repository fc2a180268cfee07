package logger

import (
	"log"
	"sync"

	"github.com/fatih/color"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	NoticeLevel
	ErrorLevel
)

// Tag identifies the routing provider a log line relates to.
type Tag int

const (
	None Tag = iota
	LiFi
	Squid
	Rango
)

var providerTags = map[string]Tag{
	"lifi":  LiFi,
	"squid": Squid,
	"rango": Rango,
}

var tagPrefixes = map[Tag]string{
	None:  "",
	LiFi:  "[LIFI]  ",
	Squid: "[SQUID] ",
	Rango: "[RANGO] ",
}

var colors = map[Tag]color.Attribute{
	None:  color.FgWhite,
	LiFi:  color.FgHiBlue,
	Squid: color.FgYellow,
	Rango: color.FgMagenta,
}

// Logger is a simple interface for logging messages.
type Logger interface {
	// Info logs an informational message.
	Info(format string, args ...interface{})
	InfoWithProvider(provider string, format string, args ...interface{})

	// Error logs an error message.
	Error(format string, args ...interface{})
	ErrorWithProvider(provider string, format string, args ...interface{})

	// Debug logs a debug message.
	Debug(format string, args ...interface{})
	DebugWithProvider(provider string, format string, args ...interface{})

	// Notice logs a notice message.
	Notice(format string, args ...interface{})
	NoticeWithProvider(provider string, format string, args ...interface{})
}

// EmptyLogger is a simple implementation of the Logger interface that does nothing.
type EmptyLogger struct{}

var _ Logger = (*EmptyLogger)(nil)

func (l *EmptyLogger) Info(_ string, _ ...interface{})                  {}
func (l *EmptyLogger) InfoWithProvider(_, _ string, _ ...interface{})   {}
func (l *EmptyLogger) Error(_ string, _ ...interface{})                 {}
func (l *EmptyLogger) ErrorWithProvider(_, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Debug(_ string, _ ...interface{})                 {}
func (l *EmptyLogger) DebugWithProvider(_, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Notice(_ string, _ ...interface{})                {}
func (l *EmptyLogger) NoticeWithProvider(_, _ string, _ ...interface{}) {}

// StdLogger is a standard implementation of the Logger interface that logs messages to the console.
type StdLogger struct {
	enableColoring bool
	level          Level
	mu             sync.Mutex
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(enableColoring bool, level Level) *StdLogger {
	return &StdLogger{
		enableColoring: enableColoring,
		level:          level,
	}
}

// formatMessage formats the log message with the appropriate log level, provider prefix, and coloring if enabled.
func (l *StdLogger) formatMessage(level Level, tag Tag, format string) string {
	tagPrefix := tagPrefixes[tag]
	if l.enableColoring {
		tagPrefix = color.New(colors[tag]).Sprint(tagPrefix)
	}

	var levelStr string
	switch level {
	case DebugLevel:
		levelStr = "[DEBUG]  "
	case InfoLevel:
		levelStr = "[INFO]   "
	case NoticeLevel:
		levelStr = "[NOTICE] "
	case ErrorLevel:
		levelStr = "[ERROR]  "
	}

	return levelStr + tagPrefix + format
}

func (l *StdLogger) logf(level Level, tag Tag, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= level {
		log.Printf(l.formatMessage(level, tag, format), args...)
	}
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.logf(InfoLevel, None, format, args...)
}

func (l *StdLogger) InfoWithProvider(provider string, format string, args ...interface{}) {
	l.logf(InfoLevel, providerTags[provider], format, args...)
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.logf(ErrorLevel, None, format, args...)
}

func (l *StdLogger) ErrorWithProvider(provider string, format string, args ...interface{}) {
	l.logf(ErrorLevel, providerTags[provider], format, args...)
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	l.logf(DebugLevel, None, format, args...)
}

func (l *StdLogger) DebugWithProvider(provider string, format string, args ...interface{}) {
	l.logf(DebugLevel, providerTags[provider], format, args...)
}

func (l *StdLogger) Notice(format string, args ...interface{}) {
	l.logf(NoticeLevel, None, format, args...)
}

func (l *StdLogger) NoticeWithProvider(provider string, format string, args ...interface{}) {
	l.logf(NoticeLevel, providerTags[provider], format, args...)
}
