package cmd

import (
	"fmt"
	"log/slog"

	"github.com/zeto-space/exoclassify/internal/briefing"
	"github.com/zeto-space/exoclassify/internal/classify"
	"github.com/zeto-space/exoclassify/internal/config"
	"github.com/zeto-space/exoclassify/internal/history"
	"github.com/zeto-space/exoclassify/internal/logging"
	"github.com/zeto-space/exoclassify/internal/pipeline"
)

// app holds the components shared by the commands.
type app struct {
	cfg     config.Config
	client  *classify.Client
	history *history.Store
	service *pipeline.Service
}

// loadConfig reads configuration and sets up logging.
func loadConfig(opts *globalOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	if err := logging.Init(cfg.Log.Level, cfg.Log.Format, nil); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newApp wires the classifier, history and briefing into a pipeline.
// apply may adjust the configuration from command flags before wiring.
func newApp(opts *globalOptions, apply func(*config.Config)) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if apply != nil {
		apply(&cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	a := &app{cfg: cfg, client: classify.New(cfg.ClassifierConfig())}
	pipelineOpts := cfg.PipelineOptions()

	if cfg.HistoryEnabled() {
		store, err := history.Open(cfg.History)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		a.history = store
		pipelineOpts.History = store
		slog.Debug("History enabled", "path", cfg.History)
	}

	writer, err := briefing.New(cfg.Briefing)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to set up briefing: %w", err)
	}
	if writer != nil {
		pipelineOpts.Briefer = writer
		slog.Debug("Briefings enabled", "provider", cfg.Briefing.Provider)
	}

	a.service = pipeline.New(a.client, pipelineOpts)
	slog.Debug("Classifier configured", "endpoint", cfg.Classifier.Endpoint, "timeout_ms", cfg.Classifier.TimeoutMs)
	return a, nil
}

func (a *app) Close() {
	if a.client != nil {
		a.client.Close()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			slog.Error("Failed to close history", "err", err)
		}
	}
}
