// Package config reads harness settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const (
	EnginePlaywright = "playwright"
	EngineSelenium   = "selenium"

	TraceOff    = "off"
	TraceStdout = "stdout"
)

type Config struct {
	BaseURL       string
	AdminEmail    string
	AdminPassword string

	Engine       string
	Headless     bool
	SlowMo       time.Duration
	DriverPath   string
	ChromeBinary string
	DriverPort   int

	ArtifactDir string
	AvatarPath  string

	Parallel          int
	ReadOnly          bool
	StructuralRetries int
	PollMaxInterval   time.Duration

	LogLevel logrus.Level
	Trace    string
}

// Load - reads .env (optional) and then the process environment
func Load() (*Config, error) {
	// .env file is optional
	envLoaded := godotenv.Load() == nil

	cfg, err := FromLookup(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if !envLoaded {
		logrus.Debug(".env file not found, using environment variables")
	}
	return cfg, nil
}

// FromLookup builds a Config from lookup and validates it.
// All invalid values are reported together.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	r := reader{lookup: lookup}

	cfg := &Config{
		BaseURL:       strings.TrimRight(r.str("E2E_BASE_URL", "http://localhost:3000"), "/"),
		AdminEmail:    r.str("E2E_ADMIN_EMAIL", "e@x.com"),
		AdminPassword: r.str("E2E_ADMIN_PASSWORD", "111111"),

		Engine:       strings.ToLower(r.str("E2E_ENGINE", EnginePlaywright)),
		Headless:     r.boolean("E2E_HEADLESS", true),
		SlowMo:       time.Duration(r.integer("E2E_SLOWMO_MS", 0)) * time.Millisecond,
		DriverPath:   r.str("BROWSER_DRIVER_PATH", ""),
		ChromeBinary: r.str("CHROME_BINARY_PATH", ""),
		DriverPort:   r.integer("E2E_SELENIUM_PORT", 9515),

		ArtifactDir: r.str("E2E_ARTIFACT_DIR", "artifacts"),
		AvatarPath:  r.str("E2E_AVATAR_PATH", "public/placeholder-user.jpg"),

		Parallel:          r.integer("E2E_PARALLEL", 2),
		ReadOnly:          r.boolean("E2E_READ_ONLY", false),
		StructuralRetries: r.integer("E2E_STRUCTURAL_RETRIES", 1),
		PollMaxInterval:   time.Duration(r.integer("E2E_POLL_MAX_MS", 1000)) * time.Millisecond,

		Trace: strings.ToLower(r.str("E2E_TRACE", TraceOff)),
	}

	level, err := logrus.ParseLevel(r.str("E2E_LOG_LEVEL", "info"))
	if err != nil {
		r.err = multierr.Append(r.err, fmt.Errorf("E2E_LOG_LEVEL: %w", err))
		level = logrus.InfoLevel
	}
	cfg.LogLevel = level

	r.err = multierr.Append(r.err, cfg.Validate())
	if r.err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", r.err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var err error
	if c.BaseURL == "" {
		err = multierr.Append(err, fmt.Errorf("E2E_BASE_URL must not be empty"))
	}
	if c.Engine != EnginePlaywright && c.Engine != EngineSelenium {
		err = multierr.Append(err, fmt.Errorf("E2E_ENGINE must be %q or %q, got %q", EnginePlaywright, EngineSelenium, c.Engine))
	}
	if c.Parallel < 1 {
		err = multierr.Append(err, fmt.Errorf("E2E_PARALLEL must be at least 1, got %d", c.Parallel))
	}
	if c.StructuralRetries < 0 {
		err = multierr.Append(err, fmt.Errorf("E2E_STRUCTURAL_RETRIES must not be negative, got %d", c.StructuralRetries))
	}
	if c.PollMaxInterval < 100*time.Millisecond {
		err = multierr.Append(err, fmt.Errorf("E2E_POLL_MAX_MS must be at least 100, got %d", c.PollMaxInterval.Milliseconds()))
	}
	if c.SlowMo < 0 {
		err = multierr.Append(err, fmt.Errorf("E2E_SLOWMO_MS must not be negative"))
	}
	if c.Trace != TraceOff && c.Trace != TraceStdout {
		err = multierr.Append(err, fmt.Errorf("E2E_TRACE must be %q or %q, got %q", TraceOff, TraceStdout, c.Trace))
	}
	return err
}

// NewLogger - sets up the logger used by every component
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}

type reader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v, ok := r.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		r.err = multierr.Append(r.err, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (r *reader) boolean(key string, def bool) bool {
	v, ok := r.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		r.err = multierr.Append(r.err, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}
