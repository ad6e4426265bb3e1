package maincmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v6"
)

// Config is the fully-resolved configuration for one invocation: the flags
// decoded by mainer.Parser, overlaid with environment-variable overrides
// decoded by caarlos0/env, the same two-stage flags-then-env pattern this
// codebase's command wiring already uses for its own configuration (see
// DESIGN.md).
type Config struct {
	LogLevel string `env:"LOX_LOG_LEVEL" envDefault:"info"`
	Dasm     bool   `env:"LOX_DASM"`
}

// loadConfig seeds a Config from the parsed Cmd's flags and then lets any
// set environment variable override it; an unset variable with an
// envDefault only applies when the flag left the field at its zero value.
func loadConfig(c *Cmd) (Config, error) {
	cfg := Config{LogLevel: c.LogLevel, Dasm: c.Dasm}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("maincmd: parse environment: %w", err)
	}
	if _, set := os.LookupEnv("LOX_LOG_LEVEL"); !set && c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parseLevel maps the config's textual log level onto a slog.Level, the
// same four-level vocabulary (debug|info|warn|error) the CLI advertises.
func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("maincmd: unknown log level %q", s)
	}
}

// newLogger builds the structured logger the VM logs through,
// writing to stderr so it never interleaves with a script's own print
// output on stdout.
func newLogger(w io.Writer, levelStr string) *slog.Logger {
	level, _ := parseLevel(levelStr)
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
