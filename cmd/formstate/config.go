package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// DefaultConfigFile is read from the working directory when -config is not
// given.
const DefaultConfigFile = "formstate.toml"

// Config holds CLI settings. Sources apply in order: defaults, the TOML
// file, FORMSTATE_* environment variables, then flags.
type Config struct {
	LogLevel    string `toml:"log_level"`
	LogFormat   string `toml:"log_format"`
	Definition  string `toml:"definition"`
	Listen      string `toml:"listen"`
	MaxAttempts int    `toml:"max_attempts"`
	SessionIdle string `toml:"session_idle"`
	AllowHTTP   bool   `toml:"allow_http"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:    "info",
		LogFormat:   "text",
		Listen:      "127.0.0.1:8080",
		MaxAttempts: 3,
		SessionIdle: "30m",
	}
}

// loadConfigFile decodes path into cfg. A missing default file is not an
// error; a missing explicit file is.
func loadConfigFile(cfg *Config, path string, explicit bool) error {
	if path == "" {
		return nil
	}
	_, err := toml.DecodeFile(path, cfg)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading config file %s: %w", path, err)
	}
	return nil
}

func loadFromEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("FORMSTATE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("FORMSTATE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := getenv("FORMSTATE_DEFINITION"); v != "" {
		cfg.Definition = v
	}
	if v := getenv("FORMSTATE_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := getenv("FORMSTATE_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FORMSTATE_MAX_ATTEMPTS: %w", err)
		}
		cfg.MaxAttempts = n
	}
	return nil
}

// bindFlags registers the flags shared by every command. Flag defaults
// are the values loaded so far, so an unset flag keeps them.
func bindFlags(fset *flag.FlagSet, cfg *Config) {
	fset.StringVar(&cfg.Definition, "def", cfg.Definition, "form definition file (YAML or JSON)")
	fset.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fset.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text, json, logfmt")
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Definition) == "" {
		return errors.New("a form definition is required (-def or definition in the config file)")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}
	if _, err := c.idle(); err != nil {
		return err
	}
	return nil
}

func (c Config) idle() (time.Duration, error) {
	if strings.TrimSpace(c.SessionIdle) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.SessionIdle)
	if err != nil {
		return 0, fmt.Errorf("session_idle: %w", err)
	}
	return d, nil
}

func parseLogLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func parseLogFormatter(format string) log.Formatter {
	switch strings.ToLower(format) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// newLogger installs charmbracelet/log as the slog handler.
func newLogger(w io.Writer, cfg Config) *slog.Logger {
	handler := log.NewWithOptions(w, log.Options{
		Level:           parseLogLevel(cfg.LogLevel),
		Formatter:       parseLogFormatter(cfg.LogFormat),
		ReportTimestamp: true,
		Prefix:          "formstate",
	})
	return slog.New(handler)
}
