package logging

import (
	"github.com/stretchr/testify/mock"
)

// MockLogger is a testify mock of Logger
type MockLogger struct {
	mock.Mock
}

// SetupDefaultExpectations lets every logger method be called with any arguments.
func (m *MockLogger) SetupDefaultExpectations() {
	for _, method := range []string{"Debug", "Info", "Warn", "Error", "Fatal"} {
		m.On(method, mock.Anything, mock.Anything).Maybe().Return()
	}
	for _, method := range []string{"Debugf", "Infof", "Warnf", "Errorf", "Fatalf"} {
		m.On(method, mock.Anything, mock.Anything).Maybe().Return()
	}
	m.On("With", mock.Anything).Maybe().Return(nil)
	m.On("WithTraceID", mock.Anything).Maybe().Return(nil)
}

func (m *MockLogger) Debug(msg string, keysAndValues ...interface{}) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Fatal(msg string, keysAndValues ...interface{}) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Debugf(template string, args ...interface{}) {
	m.Called(template, args)
}

func (m *MockLogger) Infof(template string, args ...interface{}) {
	m.Called(template, args)
}

func (m *MockLogger) Warnf(template string, args ...interface{}) {
	m.Called(template, args)
}

func (m *MockLogger) Errorf(template string, args ...interface{}) {
	m.Called(template, args)
}

func (m *MockLogger) Fatalf(template string, args ...interface{}) {
	m.Called(template, args)
}

// With returns the configured logger, or the mock itself when none was set
func (m *MockLogger) With(tags ...any) Logger {
	args := m.Called(tags)
	if l, ok := args.Get(0).(Logger); ok && l != nil {
		return l
	}
	return m
}

func (m *MockLogger) WithTraceID(traceID string) Logger {
	args := m.Called(traceID)
	if l, ok := args.Get(0).(Logger); ok && l != nil {
		return l
	}
	return m
}

// NoOpLogger discards everything
type NoOpLogger struct{}

func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (n *NoOpLogger) Info(msg string, keysAndValues ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (n *NoOpLogger) Error(msg string, keysAndValues ...interface{}) {}
func (n *NoOpLogger) Fatal(msg string, keysAndValues ...interface{}) {}
func (n *NoOpLogger) Debugf(template string, args ...interface{})    {}
func (n *NoOpLogger) Infof(template string, args ...interface{})     {}
func (n *NoOpLogger) Warnf(template string, args ...interface{})     {}
func (n *NoOpLogger) Errorf(template string, args ...interface{})    {}
func (n *NoOpLogger) Fatalf(template string, args ...interface{})    {}
func (n *NoOpLogger) With(tags ...interface{}) Logger                { return n }
func (n *NoOpLogger) WithTraceID(traceID string) Logger              { return n }
