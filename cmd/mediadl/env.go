package main

import (
	"fmt"

	"media-downloader/internal/config"
	"media-downloader/internal/diagnostics"
	"media-downloader/internal/history"
	"media-downloader/internal/logger"
)

// env holds the shared resources of one CLI invocation.
type env struct {
	cfg     *config.AppConfig
	log     *logger.Logger
	store   *config.JSONStore
	checker *diagnostics.Checker
}

// newEnv loads config and opens the log file. stdout logging is suppressed
// when the terminal UI owns the screen.
func newEnv(opts *rootOptions, allowStdoutLog bool) (*env, error) {
	cfg, err := config.LoadAppConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout && allowStdoutLog)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}

	return &env{
		cfg:     cfg,
		log:     log,
		store:   config.NewJSONStore(cfg.SettingsPath),
		checker: diagnostics.NewChecker(),
	}, nil
}

// openHistory returns nil when history is disabled.
func (e *env) openHistory() (*history.Store, error) {
	if !e.cfg.History.Enabled {
		return nil, nil
	}
	return history.NewStore(e.cfg.History.Path)
}

func (e *env) Close() {
	e.log.Close()
}
