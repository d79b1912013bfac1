package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const timeLayout = "01/02/06 15:04:05"

// Options selects where log lines go. File gets everything at Level and above, the
// screen only ScreenLevel and above unless Verbose is set.
type Options struct {
	File        string
	Level       string
	ScreenLevel string
	Verbose     bool
	Screen      io.Writer
}

// New builds a logger teeing a file core and a screen core. The returned close func
// flushes and releases the log file.
func New(opts Options) (*zap.Logger, func(), error) {
	fileLevel, err := ParseLevel(opts.Level, zapcore.DebugLevel)
	if err != nil {
		return nil, nil, err
	}
	screenLevel, err := ParseLevel(opts.ScreenLevel, zapcore.ErrorLevel)
	if err != nil {
		return nil, nil, err
	}
	if opts.Verbose {
		screenLevel = zapcore.DebugLevel
	}
	screen := opts.Screen
	if screen == nil {
		screen = os.Stderr
	}

	screenCfg := zap.NewDevelopmentEncoderConfig()
	screenCfg.TimeKey = ""
	screenCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(screenCfg), zapcore.Lock(zapcore.AddSync(screen)), screenLevel),
	}

	var file *os.File
	if path := strings.TrimSpace(opts.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		fileCfg := zap.NewDevelopmentEncoderConfig()
		fileCfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
		fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(fileCfg), zapcore.Lock(file), fileLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	closeFn := func() {
		_ = logger.Sync()
		if file != nil {
			_ = file.Close()
		}
	}
	return logger, closeFn, nil
}

// ParseLevel accepts zap level names plus "warning" and "critical".
func ParseLevel(raw string, fallback zapcore.Level) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return fallback, nil
	case "warning":
		return zapcore.WarnLevel, nil
	case "critical":
		return zapcore.ErrorLevel, nil
	}
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return fallback, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}
