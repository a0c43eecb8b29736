package config

import (
	"go.uber.org/fx"

	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
	ConfigFilePath string `name:"configFilePath" optional:"true"`
}

// NewConfigProvider is an Fx provider that loads *Config and applies the configured log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := Load(LoadOptions{
		EnvFilePath: params.EnvFilePath,
		Embedded:    params.EmbeddedConfig,
		FilePath:    params.ConfigFilePath,
	})
	if err != nil {
		return nil, err
	}
	logger.SetLogLevel(cfg.Wrfcycle.System.Logging.Level)
	logger.Debugf("Log level set to: %s", cfg.Wrfcycle.System.Logging.Level)
	return cfg, nil
}

// NewLoggingConfigProvider extracts *LoggingConfig from *Config.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Wrfcycle.System.Logging
}

// Module provides the configuration to Fx.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewLoggingConfigProvider),
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
)
