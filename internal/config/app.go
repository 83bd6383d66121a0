package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds process-level configuration that is not a user preference.
type AppConfig struct {
	SettingsPath string        `mapstructure:"settings_path" yaml:"settings_path"`
	Log          LogConfig     `mapstructure:"log" yaml:"log"`
	History      HistoryConfig `mapstructure:"history" yaml:"history"`
	Runner       RunnerConfig  `mapstructure:"runner" yaml:"runner"`
	Engine       EngineConfig  `mapstructure:"engine" yaml:"engine"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type HistoryConfig struct {
	Path    string `mapstructure:"path" yaml:"path"`
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

type RunnerConfig struct {
	EventBuffer int `mapstructure:"event_buffer" yaml:"event_buffer"`
}

type EngineConfig struct {
	ProgressInterval time.Duration `mapstructure:"progress_interval" yaml:"progress_interval"`
}

// LoadAppConfig reads config.yaml when present, then applies MEDIADL_* environment overrides.
// An empty path looks for config.yaml in the data directory; a missing file is not an error.
func LoadAppConfig(path string) (*AppConfig, error) {
	dataDir := DataDir()

	v := viper.New()
	v.SetDefault("settings_path", filepath.Join(dataDir, "settings.json"))
	v.SetDefault("log.path", filepath.Join(dataDir, "download_log.txt"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", false)
	v.SetDefault("history.path", filepath.Join(dataDir, "history.db"))
	v.SetDefault("history.enabled", true)
	v.SetDefault("runner.event_buffer", 1000)
	v.SetDefault("engine.progress_interval", 250*time.Millisecond)

	explicit := path != ""
	if !explicit {
		path = filepath.Join(dataDir, "config.yaml")
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
			if explicit {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
		default:
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("MEDIADL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if strings.TrimSpace(c.SettingsPath) == "" {
		return errors.New("settings_path is required")
	}
	if c.Runner.EventBuffer <= 0 {
		c.Runner.EventBuffer = 1000
	}
	if c.Engine.ProgressInterval <= 0 {
		c.Engine.ProgressInterval = 250 * time.Millisecond
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) == "" {
		return errors.New("history.path is required when history is enabled")
	}
	return nil
}
