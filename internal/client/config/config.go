package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the toukan client.
//
// Durations are time.Duration values; the JSON layer accepts them as strings
// ("3s") or integer nanoseconds, the env layer as Go duration strings.
type Config struct {
	BaseURL string `envconfig:"BASE_URL"`
	APIKey  string `envconfig:"API_KEY"`

	// DataDir holds the SQLite database and, unless AudioDir is absolute,
	// the audio directory.
	DataDir  string `envconfig:"DATA_DIR"`
	AudioDir string `envconfig:"AUDIO_DIR"`
	DBName   string `envconfig:"DB_NAME"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT"`
	MaxRetries     int           `envconfig:"MAX_RETRIES"`
	BackoffBase    float64       `envconfig:"BACKOFF_BASE"`
	BackoffUnit    time.Duration `envconfig:"BACKOFF_UNIT"`

	OnlineCheckInterval time.Duration `envconfig:"ONLINE_CHECK_INTERVAL"`

	PollFast          time.Duration `envconfig:"POLL_FAST"`
	PollSlow          time.Duration `envconfig:"POLL_SLOW"`
	PauseWhenIdle     bool          `envconfig:"PAUSE_WHEN_IDLE"`
	RepromoteInterval time.Duration `envconfig:"REPROMOTE_INTERVAL"`

	BackgroundBudget time.Duration `envconfig:"BACKGROUND_BUDGET"`
	// CaptureCommand is run with the shell; its stdout is the audio stream.
	// Empty records silence.
	CaptureCommand string `envconfig:"CAPTURE_COMMAND"`

	LogLevel string `envconfig:"LOG_LEVEL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BaseURL = "http://127.0.0.1:8000"
	c.DataDir = "toukan-data"
	c.AudioDir = "recordings"
	c.DBName = "toukan.db"
	c.RequestTimeout = 30 * time.Second
	c.MaxRetries = 5
	c.BackoffBase = 2
	c.BackoffUnit = time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.PollFast = time.Second
	c.PollSlow = 10 * time.Second
	c.BackgroundBudget = 30 * time.Second
	c.LogLevel = "info"
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("base url is required")
	case c.DataDir == "":
		return fmt.Errorf("data dir is required")
	case c.MaxRetries < 1:
		return fmt.Errorf("max retries must be positive, got %d", c.MaxRetries)
	case c.BackoffBase < 1:
		return fmt.Errorf("backoff base must be >= 1, got %v", c.BackoffBase)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("request timeout must be positive")
	case c.PollFast <= 0 || c.PollSlow <= 0:
		return fmt.Errorf("poll intervals must be positive")
	}
	return nil
}

// AudioPath returns the absolute-or-relative directory audio files live in.
func (c *Config) AudioPath() string {
	if filepath.IsAbs(c.AudioDir) {
		return c.AudioDir
	}
	return filepath.Join(c.DataDir, c.AudioDir)
}

// DBPath returns the SQLite file location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, c.DBName)
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), environment, and command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
