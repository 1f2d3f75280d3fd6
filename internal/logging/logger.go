package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"
)

// Logger is the logging surface used across the counter, history store and
// sync channel. Fields are alternating key/value pairs.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// DefaultLogger writes structured JSON lines to stderr.
type DefaultLogger struct {
	out     *log.Logger
	verbose bool
}

// NewDefaultLogger creates a logger that suppresses debug output.
func NewDefaultLogger() Logger {
	return &DefaultLogger{out: log.New(os.Stderr, "", 0)}
}

// NewVerboseLogger creates a logger that includes debug output.
func NewVerboseLogger() Logger {
	return &DefaultLogger{out: log.New(os.Stderr, "", 0), verbose: true}
}

type logEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// fieldsToMap converts alternating key/value pairs to a map. Non-string keys
// and trailing odd values are kept under positional names rather than lost.
func fieldsToMap(fields []interface{}) map[string]interface{} {
	if len(fields) == 0 {
		return nil
	}
	result := make(map[string]interface{}, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			result[fmt.Sprintf("field_%d", i/2)] = fields[i]
			break
		}
		if key, ok := fields[i].(string); ok {
			result[key] = fields[i+1]
		} else {
			result[fmt.Sprintf("field_%d", i/2)] = fields[i]
			result[fmt.Sprintf("field_%d_value", i/2)] = fields[i+1]
		}
	}
	return result
}

func (l *DefaultLogger) logStructured(level, msg string, fields []interface{}) {
	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Message:   msg,
		Fields:    fieldsToMap(fields),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.out.Printf(`{"timestamp":%q,"level":%q,"message":%q,"marshal_error":%q}`,
			entry.Timestamp, level, msg, err.Error())
		return
	}
	l.out.Print(string(data))
}

func (l *DefaultLogger) Debug(msg string, fields ...interface{}) {
	if !l.verbose {
		return
	}
	l.logStructured("DEBUG", msg, fields)
}

func (l *DefaultLogger) Info(msg string, fields ...interface{}) {
	l.logStructured("INFO", msg, fields)
}

func (l *DefaultLogger) Warn(msg string, fields ...interface{}) {
	l.logStructured("WARN", msg, fields)
}

func (l *DefaultLogger) Error(msg string, fields ...interface{}) {
	l.logStructured("ERROR", msg, fields)
}

// NopLogger discards everything. Useful in tests.
type NopLogger struct{}

func NewNopLogger() Logger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...interface{}) {}
func (*NopLogger) Info(string, ...interface{})  {}
func (*NopLogger) Warn(string, ...interface{})  {}
func (*NopLogger) Error(string, ...interface{}) {}
