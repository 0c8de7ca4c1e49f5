package logger

import (
	"go.uber.org/zap"
)

var log *zap.Logger

func Init() {
	l, err := zap.NewProduction(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	log = l
}

func get() *zap.Logger {
	if log == nil {
		Init()
	}
	return log
}

func Debug(msg string, fields ...zap.Field) {
	get().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	get().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	get().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	get().Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	get().Fatal(msg, fields...)
}

func Infof(format string, args ...interface{}) {
	get().Sugar().Infof(format, args...)
}

func Errorf(format string, args ...interface{}) {
	get().Sugar().Errorf(format, args...)
}

func Sync() {
	_ = get().Sync()
}
