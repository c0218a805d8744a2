package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/toukan/toukan/internal/flagx"
	"github.com/toukan/toukan/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer fields
// distinguish "absent" from "zero", so a partial file only overrides what it
// names.
type JsonConfig struct {
	BaseURL  *string `json:"base_url"`
	APIKey   *string `json:"api_key"`
	DataDir  *string `json:"data_dir"`
	AudioDir *string `json:"audio_dir"`
	DBName   *string `json:"db_name"`

	RequestTimeout *timex.Duration `json:"request_timeout"`
	MaxRetries     *int            `json:"max_retries"`
	BackoffBase    *float64        `json:"backoff_base"`
	BackoffUnit    *timex.Duration `json:"backoff_unit"`

	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`

	PollFast          *timex.Duration `json:"poll_fast"`
	PollSlow          *timex.Duration `json:"poll_slow"`
	PauseWhenIdle     *bool           `json:"pause_when_idle"`
	RepromoteInterval *timex.Duration `json:"repromote_interval"`

	BackgroundBudget *timex.Duration `json:"background_budget"`
	CaptureCommand   *string         `json:"capture_command"`
	LogLevel         *string         `json:"log_level"`
}

// parseJson overlays cfg with values loaded from the JSON file named by
// -c/-config in args (or $TOUKAN_CONFIG). No file means no changes.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	jc.apply(cfg)
	return nil
}

func (jc *JsonConfig) apply(cfg *Config) {
	setString(&cfg.BaseURL, jc.BaseURL)
	setString(&cfg.APIKey, jc.APIKey)
	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.AudioDir, jc.AudioDir)
	setString(&cfg.DBName, jc.DBName)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.CaptureCommand, jc.CaptureCommand)

	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.BackoffUnit, jc.BackoffUnit)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setDuration(&cfg.PollFast, jc.PollFast)
	setDuration(&cfg.PollSlow, jc.PollSlow)
	setDuration(&cfg.RepromoteInterval, jc.RepromoteInterval)
	setDuration(&cfg.BackgroundBudget, jc.BackgroundBudget)

	if jc.MaxRetries != nil {
		cfg.MaxRetries = *jc.MaxRetries
	}
	if jc.BackoffBase != nil {
		cfg.BackoffBase = *jc.BackoffBase
	}
	if jc.PauseWhenIdle != nil {
		cfg.PauseWhenIdle = *jc.PauseWhenIdle
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
