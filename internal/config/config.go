// Package config holds the settings shared by every probe run.
//
// Values are resolved in three layers: built-in defaults, then the process
// environment, then command-line flags (applied by the cli package).
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables consulted by FromEnv.
const (
	EnvBaseURL   = "TUTORPROBE_BASE_URL"
	EnvSecret    = "JWT_SECRET"
	EnvTimeoutMS = "TUTORPROBE_TIMEOUT_MS"
)

const (
	// DefaultBaseURL is where the tuition server listens in local development.
	DefaultBaseURL = "http://localhost:5000"

	// DefaultTimeout bounds every single probe.
	DefaultTimeout = 5000 * time.Millisecond

	// DevSecret is the signing secret used when JWT_SECRET is unset.
	//
	// INSECURE: it is published in this repository and only matches a
	// development server started with the same fallback. Never use it
	// against a deployed environment.
	DevSecret = "your-secret-key"
)

// Config is the resolved harness configuration.
// It is passed explicitly to the token issuer and prober; nothing reads
// the environment after FromEnv returns.
type Config struct {
	BaseURL string
	Secret  string
	Timeout time.Duration

	// Strict makes the run command exit non-zero when any step fails.
	Strict bool
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Secret:  DevSecret,
		Timeout: DefaultTimeout,
	}
}

// FromEnv layers environment overrides on top of Default.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := lookup(EnvSecret); ok && v != "" {
		cfg.Secret = v
	}
	if v, ok := lookup(EnvTimeoutMS); ok && v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvTimeoutMS, err)
		}
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration can drive a run.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base URL %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base URL %q: host is required", c.BaseURL)
	}
	if c.Secret == "" {
		return fmt.Errorf("signing secret must not be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// UsingDevSecret reports whether the insecure development secret is in use.
func (c Config) UsingDevSecret() bool {
	return c.Secret == DevSecret
}

// URL joins path onto the base URL.
func (c Config) URL(path string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
