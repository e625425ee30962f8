package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harmony-community/harmony-matcher/internal/ai"
	"github.com/harmony-community/harmony-matcher/internal/ai/gemini"
	"github.com/harmony-community/harmony-matcher/internal/event"
	"github.com/harmony-community/harmony-matcher/internal/logger"
	"github.com/harmony-community/harmony-matcher/internal/matching"
	"github.com/harmony-community/harmony-matcher/internal/queue"
	"github.com/harmony-community/harmony-matcher/internal/secrets"
)

// application bundles everything a command needs: config, logger, stores and
// the matching pipeline.
type application struct {
	config       *Config
	logger       *zap.Logger
	attendees    event.AttendeeStore
	matches      event.MatchStore
	runs         event.RunStore
	orchestrator *matching.Orchestrator
	scheduler    *queue.Scheduler
}

// newApplication wires the full stack. withAI controls whether the Gemini
// provider is built; read-only commands skip it so they work without a key.
func newApplication(ctx context.Context, cmd *cobra.Command, withAI bool) (*application, error) {
	json, err := cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return nil, err
	}

	log, err := logger.New(json, debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	config, err := getConfig()
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	db, err := event.Open(config.Database)
	if err != nil {
		return nil, err
	}

	a := &application{
		config:    config,
		logger:    log,
		attendees: event.NewAttendeeStore(db, log),
		matches:   event.NewMatchStore(db, log),
		runs:      event.NewRunStore(db, log),
		scheduler: queue.NewScheduler(log),
	}

	if !withAI {
		return a, nil
	}

	provider, maxLogLength, err := newProvider(ctx, config, log)
	if err != nil {
		return nil, err
	}

	proposer := matching.NewProposer(provider, log, maxLogLength)
	pacer := matching.NewFixedDelayPacer(pacingDelay(config))
	a.orchestrator = matching.NewOrchestrator(a.attendees, a.matches, a.runs, proposer, pacer, log)

	return a, nil
}

func newProvider(ctx context.Context, config *Config, log *zap.Logger) (ai.Provider, int, error) {
	aiCfg := config.AI
	if aiCfg == nil {
		aiCfg = &AIConfig{}
	}

	switch aiCfg.Provider {
	case "", "gemini":
	default:
		return nil, 0, fmt.Errorf("unsupported ai provider: %s", aiCfg.Provider)
	}

	geminiCfg := aiCfg.Gemini
	if geminiCfg == nil {
		geminiCfg = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: geminiCfg.APIKey,
		File:  geminiCfg.APIKeyFile,
	})
	if err != nil {
		return nil, 0, err
	}

	timeout := time.Duration(geminiCfg.TimeoutSeconds) * time.Second
	providerLog := logger.WithCommonFields(log, "gemini", geminiCfg.Model)

	generator, err := gemini.NewGenerator(ctx, apiKey, geminiCfg.Model, geminiCfg.MaxRetries, timeout, providerLog)
	if err != nil {
		return nil, 0, err
	}

	return generator, geminiCfg.MaxLogLength, nil
}

func pacingDelay(config *Config) time.Duration {
	if config.Matching == nil || config.Matching.DelayMS <= 0 {
		return matching.DefaultPacingDelay
	}
	return time.Duration(config.Matching.DelayMS) * time.Millisecond
}
