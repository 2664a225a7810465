package logging

import "sync"

type LoggerManager struct {
	serviceLogger Logger
	once          sync.Once
}

var loggerManager = &LoggerManager{}

// InitServiceLogger creates the process-wide logger once; later calls are no-ops
func InitServiceLogger(config LoggerConfig) error {
	var err error
	loggerManager.once.Do(func() {
		var zl *ZapLogger
		zl, err = NewZapLogger(config)
		if err == nil {
			loggerManager.serviceLogger = zl
		}
	})
	return err
}

func GetServiceLogger() Logger {
	if loggerManager.serviceLogger == nil {
		panic("logger not initialized")
	}
	return loggerManager.serviceLogger
}

// Shutdown flushes the service logger
func Shutdown() {
	if zl, ok := loggerManager.serviceLogger.(*ZapLogger); ok && zl != nil {
		_ = zl.Sync()
	}
}
