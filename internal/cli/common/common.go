// Package common holds what every tila subcommand needs: config and the engine
package common

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"tila/internal/app"
	"tila/pkg/config"
	"tila/pkg/logger"
)

// Persistent flag keys bound into viper by the root command
const (
	KeyConfigFile = "cli.config_file"
	KeyVerbose    = "cli.verbose"
)

// LoadConfig reads the file given by --config (or the APP_ENV default) and
// quiets the logger unless --verbose was passed
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString(KeyConfigFile))
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Logging
	logCfg.Output = "stderr"
	if !viper.GetBool(KeyVerbose) {
		logCfg.Level = "warn"
	}
	logger.Init(logCfg)
	return cfg, nil
}

// OpenApp loads config and opens the engine. Callers must Close it.
func OpenApp(ctx context.Context) (*app.App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.Open(ctx, cfg, app.Options{SkipCache: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return a, nil
}
