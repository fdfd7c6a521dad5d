// Package config resolves harness settings from defaults, an optional .env
// file, and the process environment. Command-line flags are applied on top
// by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by Load.
const (
	EnvDir     = "CIRCUITCHECK_DIR"
	EnvJar     = "CIRCUITCHECK_JAR"
	EnvJava    = "CIRCUITCHECK_JAVA"
	EnvTimeout = "CIRCUITCHECK_TIMEOUT"
	EnvDB      = "CIRCUITCHECK_DB"
)

// DefaultEnvFile is loaded when present and no other file is requested.
const DefaultEnvFile = ".env"

// DefaultTimeout bounds how long the harness waits for the simulator to
// produce the whole reference length of output.
const DefaultTimeout = 60 * time.Second

// Config holds the locations and limits a test run needs.
type Config struct {
	// WorkDir is where circuit and reference paths of built-in suites resolve.
	WorkDir string

	// Java is the Java launcher executable.
	Java string

	// Jar is the path to the simulator jar.
	Jar string

	// Timeout bounds a single test case's wait for simulator output.
	// Zero disables the limit.
	Timeout time.Duration

	// Database is an optional SQLite path for run history. Empty disables it.
	Database string
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		WorkDir: ".",
		Java:    "java",
		Jar:     "logisim.jar",
		Timeout: DefaultTimeout,
	}
}

// Load builds a Config from defaults, the env file, and the environment.
//
// If envFile is empty, DefaultEnvFile is loaded when it exists. A named
// envFile that does not exist is an error. Variables already present in the
// process environment take precedence over the file.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		if _, err := os.Stat(DefaultEnvFile); err == nil {
			envFile = DefaultEnvFile
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if v := os.Getenv(EnvDir); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv(EnvJava); v != "" {
		cfg.Java = v
	}
	if v := os.Getenv(EnvJar); v != "" {
		cfg.Jar = v
	}
	if v := os.Getenv(EnvDB); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := ParseTimeout(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.Timeout = d
	}

	return cfg, cfg.Validate()
}

// ParseTimeout accepts a Go duration ("30s", "2m") or a bare number of
// seconds.
func ParseTimeout(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", s)
	}
	return d, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Jar == "" {
		return errors.New("simulator jar path is required")
	}
	if c.Java == "" {
		return errors.New("java executable is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %v", c.Timeout)
	}
	return nil
}
