package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snore/snore-cli/internal/config"
	"github.com/snore/snore-cli/internal/logger"
)

// GlobalOptions are shared flags that apply across commands.
type GlobalOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	Quiet      bool
}

var globalOpts = GlobalOptions{}

// loadConfig reads the config file and environment, applies the flags the
// user set on cmd through override, and validates the result
func loadConfig(cmd *cobra.Command, override func(cmd *cobra.Command, cfg *config.Config)) (config.Config, error) {
	cfg, err := config.Load(globalOpts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}

	if globalOpts.LogLevel != "" {
		cfg.Log.Level = globalOpts.LogLevel
	}
	if globalOpts.LogFormat != "" {
		cfg.Log.Format = globalOpts.LogFormat
	}
	if override != nil {
		override(cmd, &cfg)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config, service string) (*zap.Logger, error) {
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, service)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}
