package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger builds the shared zap logger: JSON to a rotated file plus a
// console sink, development encoding and debug level when debug is set.
func InitLogger(path string, debug bool) (*zap.Logger, error) {
	if path != "" {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, err
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.CallerKey = "caller"
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	encoder := zapcore.NewJSONEncoder(encoderConfig)
	if debug {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	logLevel := zap.InfoLevel
	if debug {
		logLevel = zap.DebugLevel
	}

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path + "mentorika-server.log",
		MaxSize:    10, // MB
		MaxBackups: 7,
		MaxAge:     28, // days
		Compress:   true,
	})
	consoleWriter := zapcore.AddSync(os.Stdout)

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, fileWriter, logLevel),
		zapcore.NewCore(encoder, consoleWriter, logLevel),
	)

	return zap.New(core, zap.AddCaller()), nil
}
