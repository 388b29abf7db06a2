package ports

import "time"

// Logger provides structured logging capabilities.
// Implementations can wrap zerolog or any other logging library.
type Logger interface {
	// Debug logs a debug-level message with fields.
	Debug(msg string, fields ...Field)

	// Info logs an info-level message with fields.
	Info(msg string, fields ...Field)

	// Warn logs a warning-level message with fields.
	Warn(msg string, fields ...Field)

	// Error logs an error-level message with fields.
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field.
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field with key "error".
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any creates a field with any value.
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// WithFields returns a Logger that appends fields to every message.
func WithFields(l Logger, fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	return fieldLogger{next: l, fields: fields}
}

type fieldLogger struct {
	next   Logger
	fields []Field
}

func (f fieldLogger) with(fields []Field) []Field {
	out := make([]Field, 0, len(f.fields)+len(fields))
	out = append(out, f.fields...)
	return append(out, fields...)
}

func (f fieldLogger) Debug(msg string, fields ...Field) { f.next.Debug(msg, f.with(fields)...) }
func (f fieldLogger) Info(msg string, fields ...Field)  { f.next.Info(msg, f.with(fields)...) }
func (f fieldLogger) Warn(msg string, fields ...Field)  { f.next.Warn(msg, f.with(fields)...) }
func (f fieldLogger) Error(msg string, fields ...Field) { f.next.Error(msg, f.with(fields)...) }
