// Package logger provides the logging contract used across go-onewire, allowing
// applications to plug in their preferred logging framework.
//
// Bank, scratchpad and bus operations log through the Logger interface with
// structured key-value pairs such as "bank", "addr", "page" and "txn", so a
// single commit can be followed from the scratchpad write through the copy
// confirmation.
//
// Log Levels:
//
//   - DebugLevel: every bus transaction step, typically disabled in production.
//   - InfoLevel: lock, redirect and password-enable events.
//   - WarnLevel: verification, integrity and commit failures.
//   - ErrorLevel: failures that leave a device in an unknown state.
//   - FatalLevel: critical errors that terminate the program (CLI only).
package logger

// Level indicates the logging severity level.
type Level = int8

const (
	// DebugLevel logs are voluminous and usually disabled in production.
	DebugLevel Level = iota - 1
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual
	// human review.
	WarnLevel
	// ErrorLevel logs are high-priority.
	ErrorLevel
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel
)

// Logger defines a common interface for logging.
type Logger interface {
	// Debug logs a message at DebugLevel with the given key-value pairs.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at InfoLevel with the given key-value pairs.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at WarnLevel with the given key-value pairs.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at ErrorLevel with the given key-value pairs.
	Error(msg string, keysAndValues ...any)
	// Fatal logs a message at FatalLevel, then calls os.Exit(1).
	Fatal(msg string, keysAndValues ...any)
	// With creates a child logger carrying the given key-value pairs.
	// Values added to the child don't affect the parent, and vice versa.
	With(keyValues ...any) Logger
	// Level returns the minimum enabled level for this logger.
	Level() Level
	// SetLevel sets the minimum enabled level for this logger.
	SetLevel(level Level)
}
