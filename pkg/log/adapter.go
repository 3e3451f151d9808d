// Package log provides logging utilities for the FootyCollect service.
// It includes a Zap logger wrapper with Kratos adapter and automatic field sanitization.
package log

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// KratosAdapter adapts Zap logger to Kratos log.Logger interface
type KratosAdapter struct {
	zapLogger *zap.Logger
}

// NewKratosAdapter creates a new Kratos adapter for Zap logger
func NewKratosAdapter(zapLogger *zap.Logger) log.Logger {
	return &KratosAdapter{
		zapLogger: zapLogger,
	}
}

// Log implements Kratos log.Logger interface. The "msg" pair becomes the
// entry message, the other pairs become fields. A key without a value is
// kept with a nil value.
func (a *KratosAdapter) Log(level log.Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}

	var msg string
	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		var value interface{}
		if i+1 < len(keyvals) {
			value = keyvals[i+1]
		}
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(value)
			continue
		}
		fields = append(fields, toField(key, value))
	}

	if ce := a.zapLogger.Check(zapLevel(level), msg); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

func toField(key string, value interface{}) zap.Field {
	switch v := value.(type) {
	case string:
		return zap.String(key, SanitizeField(key, v))
	case error:
		return zap.String(key, v.Error())
	default:
		return zap.Any(key, value)
	}
}

func zapLevel(level log.Level) zapcore.Level {
	switch level {
	case log.LevelDebug:
		return zapcore.DebugLevel
	case log.LevelWarn:
		return zapcore.WarnLevel
	case log.LevelError:
		return zapcore.ErrorLevel
	case log.LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
