package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// deepseek.api_key is required.
	if c.DeepSeek.APIKey == "" {
		errs = append(errs, fmt.Errorf("deepseek.api_key is required (set DEEPSEEK_API_KEY)"))
	}

	// deepseek.timeout must be positive.
	if c.DeepSeek.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("deepseek.timeout must be > 0, got %s", c.DeepSeek.Timeout))
	}

	// server.transport must be a known value.
	switch c.Server.Transport {
	case "stdio", "streamable-http":
		// valid
	default:
		errs = append(errs, fmt.Errorf("server.transport must be \"stdio\" or \"streamable-http\", got %q", c.Server.Transport))
	}

	// server.http_port must be a valid port in streamable-http mode.
	if c.Server.Transport == "streamable-http" {
		if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
			errs = append(errs, fmt.Errorf("server.http_port must be in 1..65535, got %d", c.Server.HTTPPort))
		}
	}

	return errors.Join(errs...)
}
