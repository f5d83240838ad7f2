package logger

import (
	"github.com/stretchr/testify/mock"
)

// MockLogger is a testify mock implementing Logger.
//
// Log methods are recorded as Called(msg, keysAndValues), so expectations
// match the message and the key/value slice:
//
//	l.On("Warn", "tsm: retransmission failed", mock.Anything).Twice()
type MockLogger struct {
	mock.Mock
}

var _ Logger = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// Allow accepts any number of calls to the given log methods with any
// arguments, e.g. l.Allow("Debug", "Info"). It returns m for chaining.
func (m *MockLogger) Allow(methods ...string) *MockLogger {
	for _, method := range methods {
		m.On(method, mock.Anything, mock.Anything).Maybe()
	}

	return m
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Fatal(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) SetLevel(level Level) {
	m.Called(level)
}

func (m *MockLogger) Level() Level {
	args := m.Called()
	return args.Get(0).(Level)
}

// With returns the Logger registered with On("With", ...).Return(l), or m
// itself when the expectation returns nothing.
func (m *MockLogger) With(keyValues ...any) Logger {
	args := m.Called(keyValues)
	if len(args) == 0 || args.Get(0) == nil {
		return m
	}

	return args.Get(0).(Logger)
}
