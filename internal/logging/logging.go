// Package logging builds the zerolog logger used by the CLI.
//
// Console output goes to stderr so that plan output on stdout stays
// machine-readable. When a log file is configured, the same events are also
// written there as JSON lines, rotated by lumberjack.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Environment variables read by ApplyEnv.
const (
	EnvLogLevel   = "INSLAUNCH_LOG_LEVEL"
	EnvLogNoColor = "INSLAUNCH_LOG_NOCOLOR"
)

// Defaults for the rotating file sink.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
)

// Config selects level and sinks.
type Config struct {
	// Level is a zerolog level name ("debug", "info", "warn", ...).
	// Empty means info.
	Level string

	// File enables a rotating JSON log file when non-empty.
	File string

	// MaxSizeMB and MaxBackups control rotation. Zero uses the defaults.
	MaxSizeMB  int
	MaxBackups int

	// NoColor disables ANSI colors on the console.
	NoColor bool
}

// ApplyEnv overrides cfg from the environment.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.Level = v
	}
	if v := strings.TrimSpace(getenv(EnvLogNoColor)); v != "" && v != "0" && !strings.EqualFold(v, "false") {
		cfg.NoColor = true
	}
}

// ParseLevel converts a level name, treating empty as info.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(s)
}

// New builds a logger writing to console (normally os.Stderr). The returned
// closer releases the log file and must be called on exit; it is a no-op
// when no file is configured.
func New(cfg Config, console io.Writer) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	var out io.Writer = zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.RFC3339,
		NoColor:    cfg.NoColor,
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: orDefault(cfg.MaxBackups, DefaultMaxBackups),
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(out, file)
		closer = file
	}

	logger := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("app", "inslaunch").
		Logger()
	return logger, closer, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
