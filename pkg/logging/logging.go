// Package logging builds the service logger: console or JSON on the given
// writer, optionally teed into a size-rotated log file.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/upul/ml-dev-assignment/pkg/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger for cfg writing to out. The returned closer releases
// the rotated log file, if any.
func New(cfg config.LoggingConfig, out io.Writer) (zerolog.Logger, io.Closer) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.DurationFieldUnit = time.Millisecond

	level := ParseLevel(cfg.Level)

	var console io.Writer = out
	if !cfg.JSON {
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	if cfg.FileName == "" {
		return zerolog.New(console).Level(level).With().Timestamp().Logger(), nopCloser{}
	}

	file := &lumberjack.Logger{
		Filename:   cfg.FileName,
		MaxSize:    cfg.MaxFileSizeMB,
		MaxBackups: cfg.BackupCount,
		MaxAge:     cfg.MaxAgeDays,
	}
	writer := zerolog.MultiLevelWriter(console, file)
	return zerolog.New(writer).Level(level).With().Timestamp().Logger(), file
}

// Bootstrap returns a console logger for use before the configuration has
// been loaded.
func Bootstrap(out io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info.
func ParseLevel(raw string) zerolog.Level {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
