package pricecheck

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig configures the logger returned by NewLogger.
type LogConfig struct {
	// Level is a logrus level name. Defaults to "info".
	Level string

	// Format is "text" or "json". Defaults to "text".
	Format string

	// File, when set, receives the log output with size-based rotation.
	// Otherwise logs go to stderr.
	File string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultLogConfig returns the logging defaults.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Format:     "text",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Compress:   true,
	}
}

// NewLogger builds a logrus logger from cfg.
func NewLogger(cfg LogConfig) (*logrus.Logger, error) {
	defaults := DefaultLogConfig()
	if cfg.Level == "" {
		cfg.Level = defaults.Level
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = defaults.MaxSizeMB
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, &ValidationError{Field: "LogLevel", Message: err.Error()}
	}

	logger := logrus.New()
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	default:
		return nil, &ValidationError{Field: "LogFormat", Message: fmt.Sprintf("unknown format %q (want text or json)", cfg.Format)}
	}

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	}
	logger.SetOutput(out)

	return logger, nil
}

// discardLogger is used wherever no logger was supplied.
func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
