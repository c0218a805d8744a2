// Package config loads runtime configuration for the toukan client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c/-config or $TOUKAN_CONFIG.
//  3. TOUKAN_* environment variables (kelseyhightower/envconfig).
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-u string    backend base URL
//	-d string    data directory
//	-r int       upload retry ceiling
//	-i duration  online status check interval
//	-l string    log level
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "3s" or integer
// nanoseconds:
//
//	{
//	  "base_url": "http://127.0.0.1:8000",
//	  "data_dir": "/var/lib/toukan",
//	  "max_retries": 5,
//	  "backoff_unit": "1s",
//	  "poll_fast": "1s",
//	  "poll_slow": "10s"
//	}
package config
