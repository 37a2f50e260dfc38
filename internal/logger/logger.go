// Package logger builds the process logger: zap cores exposed as a
// logr.Logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// Level is the initial console level, e.g. "info", "debug" or "3".
	Level string

	// File, when set, receives every log entry at debug verbosity as JSON.
	File string

	// Console defaults to stderr. Standard output is never used because it
	// may carry the protocol.
	Console io.Writer
}

type Logger struct {
	logr.Logger
	atomicLevel zap.AtomicLevel
	flush       func()
}

func New(name string, opts Options) (*Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Level != "" {
		l, err := StringToLevel(opts.Level, zapcore.InfoLevel)
		if err != nil {
			return nil, err
		}
		level.SetLevel(l)
	}

	var console zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	if opts.Console != nil {
		console = zapcore.AddSync(opts.Console)
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), console, level),
	}

	var closers []io.Closer
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log folder: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		closers = append(closers, f)
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(f),
			zap.NewAtomicLevelAt(zapcore.Level(-10)),
		))
	}

	zapLogger := zap.New(zapcore.NewTee(cores...))
	return &Logger{
		Logger:      zapr.NewLogger(zapLogger).WithName(name),
		atomicLevel: level,
		flush: func() {
			_ = zapLogger.Sync()
			for _, c := range closers {
				_ = c.Close()
			}
		},
	}, nil
}

func (l *Logger) SetLevel(level zapcore.Level) {
	l.atomicLevel.SetLevel(level)
}

func (l *Logger) Level() zapcore.Level {
	return l.atomicLevel.Level()
}

// Flush syncs buffered entries and closes the log file.
func (l *Logger) Flush() {
	l.flush()
}
