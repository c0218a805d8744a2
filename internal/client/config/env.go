package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every variable name, e.g. TOUKAN_BASE_URL.
const EnvPrefix = "TOUKAN"

// parseEnv overlays cfg with TOUKAN_* variables. Unset variables leave the
// current value untouched.
func parseEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("failed to process environment variables: %w", err)
	}
	return nil
}
