package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/toukan/toukan/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-u string   backend base URL
//	-d string   data directory
//	-r int      upload retry ceiling
//	-i duration online check interval
//	-l string   log level
//
// args is filtered with flagx.FilterArgs so flags owned by other stages
// (-c/-config) do not break parsing.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-u", "-d", "-r", "-i", "-l"})

	fs := flag.NewFlagSet("toukan", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.BaseURL, "u", cfg.BaseURL, "backend base URL")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.IntVar(&cfg.MaxRetries, "r", cfg.MaxRetries, "upload retry ceiling")
	fs.DurationVar(&cfg.OnlineCheckInterval, "i", cfg.OnlineCheckInterval, "online check interval")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
