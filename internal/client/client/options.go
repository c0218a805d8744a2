package client

import (
	"fmt"
	"time"

	"github.com/toukan/toukan/internal/logging"
)

// Option mutates the MemoryClient during New().
type Option func(*MemoryClient) error

// WithHTTPTimeout sets the per-request timeout for non-streaming calls.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *MemoryClient) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.timeout = d
		return nil
	}
}

// WithDebugLogging dumps every request and response through the logger at
// debug level when enabled.
func WithDebugLogging(enabled bool) Option {
	return func(c *MemoryClient) error {
		c.debug = enabled
		return nil
	}
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *MemoryClient) error {
		c.apiKey = key
		return nil
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *MemoryClient) error {
		c.log = logging.Component(l, "client")
		return nil
	}
}
