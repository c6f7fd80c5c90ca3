package library

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the client needs to start.
type Config struct {
	APIURL    string        `yaml:"api_url"`
	DBPath    string        `yaml:"db_path"`
	LogFile   string        `yaml:"log_file"`
	LogLevel  string        `yaml:"log_level"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		APIURL:   "http://localhost:8000/api",
		DBPath:   "lbms.db",
		LogFile:  "lbms.log",
		LogLevel: "info",
		Timeout:  30 * time.Second,
	}
}

// LoadConfig layers defaults, the YAML file at path (skipped when path is
// empty) and LBMS_* environment variables, in that order.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LBMS_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("LBMS_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("LBMS_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("LBMS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LBMS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LBMS_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("LBMS_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("LBMS_RATE_LIMIT: %w", err)
		}
		c.RateLimit = f
	}
	return nil
}

// Validate reports configuration the client cannot start with.
func (c Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("api url is required")
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("api url %q must start with http:// or https://", c.APIURL)
	}
	if c.DBPath == "" {
		return errors.New("db path is required")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps debug/info/warn/error to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger opens the configured log sink. "-" logs to stderr. Diagnostics go
// to a file by default so they never interleave with the interactive view.
func NewLogger(c Config) (*slog.Logger, io.Closer, error) {
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.LogFile == "" || c.LogFile == "-" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nopCloser{}, nil
	}

	f, err := os.OpenFile(c.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, opts)), f, nil
}
