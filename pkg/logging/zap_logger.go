package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ZapLogger struct {
	sugarLogger *zap.SugaredLogger
	rotator     *SequentialRotator
}

var _ Logger = (*ZapLogger)(nil)

// NewZapLogger builds a logger writing to stdout and to a rotated file under
// <LogDir>/logs/<process>/<date>.log
func NewZapLogger(config LoggerConfig) (*ZapLogger, error) {
	if config.ProcessName == "" {
		return nil, fmt.Errorf("process name is required")
	}
	if config.LogDir == "" {
		config.LogDir = BaseDataDir
	}

	logDir := filepath.Join(config.LogDir, LogsDir, string(config.ProcessName))
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rotator := NewSequentialRotator(
		filepath.Join(logDir, time.Now().UTC().Format(LogFileFormat)),
		orDefault(config.MaxSizeMB, 50),
		orDefault(config.MaxAgeDays, 30),
		orDefault(config.MaxBackups, 10),
	)

	level := zapcore.InfoLevel
	if config.Environment == Development {
		level = zapcore.DebugLevel
	}

	fileEncoderConfig := zap.NewProductionEncoderConfig()
	fileEncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(TimeFormat)

	consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
	consoleEncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(TimeFormat)
	if config.UseColors {
		consoleEncoderConfig.EncodeLevel = coloredLevelEncoder
	} else {
		consoleEncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	var consoleEncoder zapcore.Encoder
	if config.Environment == Production {
		consoleEncoder = zapcore.NewJSONEncoder(fileEncoderConfig)
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(consoleEncoderConfig)
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderConfig), zapcore.AddSync(rotator), level),
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).
		With(zap.String("process", string(config.ProcessName)))

	return &ZapLogger{
		sugarLogger: logger.Sugar(),
		rotator:     rotator,
	}, nil
}

func coloredLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	color := colorReset
	switch level {
	case zapcore.DebugLevel:
		color = colorBlue
	case zapcore.InfoLevel:
		color = colorGreen
	case zapcore.WarnLevel:
		color = colorYellow
	case zapcore.ErrorLevel:
		color = colorRed
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		color = colorPurple
	}
	enc.AppendString(color + level.CapitalString() + colorReset)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (z *ZapLogger) Debug(msg string, tags ...any) {
	z.sugarLogger.Debugw(msg, tags...)
}

func (z *ZapLogger) Info(msg string, tags ...any) {
	z.sugarLogger.Infow(msg, tags...)
}

func (z *ZapLogger) Warn(msg string, tags ...any) {
	z.sugarLogger.Warnw(msg, tags...)
}

func (z *ZapLogger) Error(msg string, tags ...any) {
	z.sugarLogger.Errorw(msg, tags...)
}

func (z *ZapLogger) Fatal(msg string, tags ...any) {
	z.sugarLogger.Fatalw(msg, tags...)
}

func (z *ZapLogger) Debugf(template string, args ...interface{}) {
	z.sugarLogger.Debugf(template, args...)
}

func (z *ZapLogger) Infof(template string, args ...interface{}) {
	z.sugarLogger.Infof(template, args...)
}

func (z *ZapLogger) Warnf(template string, args ...interface{}) {
	z.sugarLogger.Warnf(template, args...)
}

func (z *ZapLogger) Errorf(template string, args ...interface{}) {
	z.sugarLogger.Errorf(template, args...)
}

func (z *ZapLogger) Fatalf(template string, args ...interface{}) {
	z.sugarLogger.Fatalf(template, args...)
}

func (z *ZapLogger) With(tags ...any) Logger {
	return &ZapLogger{
		sugarLogger: z.sugarLogger.With(tags...),
		rotator:     z.rotator,
	}
}

func (z *ZapLogger) WithTraceID(traceID string) Logger {
	return z.With("trace_id", traceID)
}

// Sync flushes buffered entries and closes the log file
func (z *ZapLogger) Sync() error {
	// stdout sync fails on some platforms, only the file matters here
	_ = z.sugarLogger.Sync()
	return z.rotator.Close()
}
