// Package logging configures the global zerolog logger for the anipar binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/Nomadcxx/anipar/internal/config"
)

// Options override the config file for a single run
type Options struct {
	Verbose bool
	Quiet   bool
	// Console is an extra writer, usually a zerolog.ConsoleWriter on stderr
	Console io.Writer
}

// Init points the global logger at a rotating file and the optional console
func Init(cfg config.LoggingConfig, opts Options) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	switch {
	case opts.Verbose:
		level = zerolog.DebugLevel
	case opts.Quiet:
		level = zerolog.ErrorLevel
	}

	var writers []io.Writer
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		})
	}
	if opts.Console != nil {
		writers = append(writers, opts.Console)
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(io.MultiWriter(writers...)).
		With().Timestamp().Caller().Logger()

	return nil
}

// ParseLevel maps the config level names onto zerolog levels
func ParseLevel(level string) (zerolog.Level, error) {
	switch level {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level: %s", level)
}

// ConsoleWriter is the human readable stderr writer used by the CLI
func ConsoleWriter() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
}
