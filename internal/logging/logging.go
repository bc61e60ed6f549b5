// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger's level and sinks.
type Options struct {
	Level string
	// Path, when set, sends logs to a size-capped file instead of Stderr.
	Path string
	// Stderr forces console output to stderr, keeping stdout free for stdio transports.
	Stderr bool
}

// New builds a zap logger. Debug level uses the development console encoder,
// every other level uses JSON. The returned close func releases the log file.
func New(opts Options) (*zap.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var encoderCfg zapcore.EncoderConfig
	var encoder zapcore.Encoder
	if level == zapcore.DebugLevel {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoderCfg = zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	var sink io.Writer = os.Stdout
	if opts.Stderr {
		sink = os.Stderr
	}
	closeFn := func() error { return nil }
	if opts.Path != "" {
		writer, err := NewFileWriter(opts.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		sink = writer
		closeFn = writer.Close
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(sink), zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller()), closeFn, nil
}

// ParseLevel maps a config level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}
