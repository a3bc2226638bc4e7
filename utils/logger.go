package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log entry
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	TraceID   string                 `json:"trace_id,omitempty"`
	Source    string                 `json:"source,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Error     string                 `json:"error,omitempty"`
	File      string                 `json:"file,omitempty"`
	Line      int                    `json:"line,omitempty"`
}

// Logger represents a structured logger
type Logger struct {
	level  LogLevel
	format string // "json" or "text"
	out    io.Writer
}

var (
	defaultLogger *Logger
	loggerOnce    sync.Once
	loggerMu      sync.Mutex
)

// NewLogger creates a new logger instance
func NewLogger(level, format string) *Logger {
	logLevel := parseLogLevel(level)
	if format != "json" && format != "text" {
		format = "text"
	}

	return &Logger{
		level:  logLevel,
		format: format,
		out:    os.Stderr,
	}
}

// GetLogger returns the process-wide logger, creating it with defaults on first use
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		loggerMu.Lock()
		defer loggerMu.Unlock()
		if defaultLogger == nil {
			defaultLogger = NewLogger("info", "text")
		}
	})
	return defaultLogger
}

// SetLogger replaces the process-wide logger. Intended for main during startup.
func SetLogger(l *Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = l
}

// SetOutput redirects log output. Intended for tests and for the TUI,
// which owns the terminal while it runs.
func (l *Logger) SetOutput(w io.Writer) {
	l.out = w
}

// parseLogLevel parses string log level to LogLevel enum
func parseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Debug logs a debug message
func (l *Logger) Debug(message string, context ...map[string]interface{}) {
	l.log(DEBUG, message, "", "", "", context...)
}

// Info logs an info message
func (l *Logger) Info(message string, context ...map[string]interface{}) {
	l.log(INFO, message, "", "", "", context...)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, context ...map[string]interface{}) {
	l.log(WARN, message, "", "", "", context...)
}

// Error logs an error message
func (l *Logger) Error(message string, err error, context ...map[string]interface{}) {
	errorMsg := ""
	if err != nil {
		errorMsg = err.Error()
	}
	l.log(ERROR, message, errorMsg, "", "", context...)
}

// LoggerWithContext is a logger bound to a source and/or trace ID
type LoggerWithContext struct {
	logger  *Logger
	traceID string
	source  string
}

// WithSource returns a logger bound to a source identifier
func (l *Logger) WithSource(source string) *LoggerWithContext {
	return &LoggerWithContext{logger: l, source: source}
}

// WithTraceID returns a logger bound to a trace ID
func (l *Logger) WithTraceID(traceID string) *LoggerWithContext {
	return &LoggerWithContext{logger: l, traceID: traceID}
}

// WithTraceID binds a trace ID, keeping the source
func (lwc *LoggerWithContext) WithTraceID(traceID string) *LoggerWithContext {
	return &LoggerWithContext{logger: lwc.logger, traceID: traceID, source: lwc.source}
}

// Debug logs a debug message with the bound source and trace ID
func (lwc *LoggerWithContext) Debug(message string, context ...map[string]interface{}) {
	lwc.logger.log(DEBUG, message, "", lwc.traceID, lwc.source, context...)
}

// Info logs an info message with the bound source and trace ID
func (lwc *LoggerWithContext) Info(message string, context ...map[string]interface{}) {
	lwc.logger.log(INFO, message, "", lwc.traceID, lwc.source, context...)
}

// Warn logs a warning message with the bound source and trace ID
func (lwc *LoggerWithContext) Warn(message string, context ...map[string]interface{}) {
	lwc.logger.log(WARN, message, "", lwc.traceID, lwc.source, context...)
}

// Error logs an error message with the bound source and trace ID
func (lwc *LoggerWithContext) Error(message string, err error, context ...map[string]interface{}) {
	errorMsg := ""
	if err != nil {
		errorMsg = err.Error()
	}
	lwc.logger.log(ERROR, message, errorMsg, lwc.traceID, lwc.source, context...)
}

// log performs the actual logging
func (l *Logger) log(level LogLevel, message, errorMsg, traceID, source string, context ...map[string]interface{}) {
	if level < l.level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		parts := strings.Split(file, "/")
		if len(parts) > 0 {
			file = parts[len(parts)-1]
		}
	}

	mergedContext := make(map[string]interface{})
	for _, ctx := range context {
		for k, v := range ctx {
			mergedContext[k] = v
		}
	}
	if len(mergedContext) == 0 {
		mergedContext = nil
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Message:   message,
		TraceID:   traceID,
		Source:    source,
		Context:   mergedContext,
		Error:     errorMsg,
		File:      file,
		Line:      line,
	}

	if l.format == "json" {
		l.outputJSON(entry)
	} else {
		l.outputText(entry)
	}
}

// outputJSON outputs log entry in JSON format
func (l *Logger) outputJSON(entry LogEntry) {
	jsonData, err := json.Marshal(entry)
	if err != nil {
		log.Printf("Error marshaling log entry: %v", err)
		return
	}
	fmt.Fprintln(l.out, string(jsonData))
}

// outputText outputs log entry in human-readable text format
func (l *Logger) outputText(entry LogEntry) {
	timestamp := entry.Timestamp.Format("2006-01-02 15:04:05")

	var output strings.Builder
	output.WriteString(fmt.Sprintf("[%s] %s: %s", timestamp, entry.Level, entry.Message))

	if entry.TraceID != "" {
		output.WriteString(fmt.Sprintf(" [trace_id=%s]", entry.TraceID))
	}

	if entry.Source != "" {
		output.WriteString(fmt.Sprintf(" [source=%s]", entry.Source))
	}

	if entry.File != "" && entry.Line > 0 {
		output.WriteString(fmt.Sprintf(" [%s:%d]", entry.File, entry.Line))
	}

	if entry.Error != "" {
		output.WriteString(fmt.Sprintf(" [error=%s]", entry.Error))
	}

	if len(entry.Context) > 0 {
		contextStr, _ := json.Marshal(entry.Context)
		output.WriteString(fmt.Sprintf(" [context=%s]", string(contextStr)))
	}

	fmt.Fprintln(l.out, output.String())
}
