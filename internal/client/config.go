package client

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Default configuration values.
const (
	// DefaultAPIURL is the default API server URL.
	DefaultAPIURL = "http://localhost:8080"

	// DefaultTimeout is the default HTTP client timeout. Synchronous augment
	// calls can run for a full batch, so this is longer than a typical REST call.
	DefaultTimeout = 2 * time.Minute

	// EnvAPIURL is the environment variable name for the API URL.
	EnvAPIURL = "CONTENTAUGMENT_CLIENT_API_URL"

	// EnvTimeout is the environment variable name for the timeout duration.
	EnvTimeout = "CONTENTAUGMENT_CLIENT_TIMEOUT"
)

// Config holds the client configuration for connecting to the API server.
type Config struct {
	// APIURL is the base URL of the API server (e.g., "http://localhost:8080").
	// A trailing slash is stripped during Normalize.
	APIURL string

	// Timeout is the maximum duration for HTTP requests.
	Timeout time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		APIURL:  DefaultAPIURL,
		Timeout: DefaultTimeout,
	}
}

// LoadConfig loads configuration from CONTENTAUGMENT_CLIENT_API_URL and
// CONTENTAUGMENT_CLIENT_TIMEOUT, falling back to defaults. A timeout that is
// set must parse as a positive duration.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if apiURL := os.Getenv(EnvAPIURL); apiURL != "" {
		cfg.APIURL = apiURL
	}

	if raw, ok := os.LookupEnv(EnvTimeout); ok {
		timeout, err := parseTimeout(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		cfg.Timeout = timeout
	}

	cfg.Normalize()
	return &cfg, nil
}

func parseTimeout(raw string) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, errors.New("timeout cannot be empty")
	}
	timeout, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %v", timeout)
	}
	return timeout, nil
}

// Normalize strips trailing slashes from APIURL so paths can be appended.
func (c *Config) Normalize() {
	c.APIURL = strings.TrimRight(c.APIURL, "/")
}

// Validate returns an error if the URL is empty or not http(s), or the
// timeout is not positive.
func (c Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("invalid configuration: API URL cannot be empty")
	}

	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("invalid configuration: API URL must have http:// or https:// scheme, got %q", c.APIURL)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("invalid configuration: timeout must be positive, got %v", c.Timeout)
	}

	return nil
}
