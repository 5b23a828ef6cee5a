package logger

import (
	"github.com/stretchr/testify/mock"
)

// MockLogger is a testify mock implementing Logger.
//
// Log calls are recorded as the method name with the message and the
// key-value pairs as a []any. Child loggers created by With share the
// parent's expectations, so the context pairs are not part of the call.
type MockLogger struct {
	mock.Mock
}

var _ Logger = (*MockLogger)(nil)

// NewMockLogger returns a mock that accepts any Debug call and any level
// query, leaving expectations on the other levels to the test.
func NewMockLogger() *MockLogger {
	m := &MockLogger{}
	m.On("Debug", mock.Anything, mock.Anything).Maybe()
	m.On("Level").Return(DebugLevel).Maybe()
	m.On("SetLevel", mock.Anything).Maybe()

	return m
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) { m.log("Debug", msg, keysAndValues) }

func (m *MockLogger) Info(msg string, keysAndValues ...any) { m.log("Info", msg, keysAndValues) }

func (m *MockLogger) Warn(msg string, keysAndValues ...any) { m.log("Warn", msg, keysAndValues) }

func (m *MockLogger) Error(msg string, keysAndValues ...any) { m.log("Error", msg, keysAndValues) }

func (m *MockLogger) Fatal(msg string, keysAndValues ...any) { m.log("Fatal", msg, keysAndValues) }

func (m *MockLogger) log(level, msg string, keysAndValues []any) {
	if keysAndValues == nil {
		keysAndValues = []any{}
	}
	m.MethodCalled(level, msg, keysAndValues)
}

func (m *MockLogger) With(...any) Logger { return m }

func (m *MockLogger) Level() Level {
	return m.Called().Get(0).(Level)
}

func (m *MockLogger) SetLevel(level Level) {
	m.Called(level)
}
