// Package app wires the copilot's components together from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/foodflow/copilot/src/aisvc"
	"github.com/foodflow/copilot/src/breaker"
	"github.com/foodflow/copilot/src/config"
	"github.com/foodflow/copilot/src/convstore"
	"github.com/foodflow/copilot/src/engine"
	"github.com/foodflow/copilot/src/llmclient"
	"github.com/foodflow/copilot/src/toolreg"
	"github.com/foodflow/copilot/src/tools"
)

// App holds the assembled copilot service.
type App struct {
	Config    *config.Config
	DB        *convstore.DB
	Store     *convstore.Store
	Registry  *toolreg.Registry
	AIService *aisvc.Client
	LLM       *llmclient.Client
	Engine    *engine.Engine

	logger *slog.Logger
}

// New builds the full service from configuration: database with migrations,
// conversation store, analytics client, model client, tool registry, and the
// orchestration engine.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := convstore.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var storeOpts []convstore.StoreOption
	if cfg.Database.MaxHistory > 0 {
		storeOpts = append(storeOpts, convstore.WithMaxHistory(cfg.Database.MaxHistory))
	}
	store := convstore.NewStore(db, logger, storeOpts...)

	aiClient := aisvc.NewClient(aisvc.Config{
		BaseURL: cfg.AIService.BaseURL,
		Timeout: cfg.AIService.Timeout,
		Logger:  logger,
		Breaker: breaker.New(
			breaker.WithFailureThreshold(cfg.AIService.FailureThreshold),
			breaker.WithRecoveryTimeout(cfg.AIService.RecoveryTimeout),
			breaker.WithLogger(logger),
		),
	})

	retry := llmclient.DefaultRetryPolicy()
	if cfg.LLM.MaxRetries > 0 {
		retry.MaxAttempts = cfg.LLM.MaxRetries
	}
	llmCfg := llmclient.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
		Retry:   retry,
		Breaker: breaker.New(breaker.WithLogger(logger)),
		Logger:  logger,
	}
	if cfg.LLM.Temperature != 0 {
		t := cfg.LLM.Temperature
		llmCfg.Temperature = &t
	}
	if cfg.LLM.MaxTokens != 0 {
		m := cfg.LLM.MaxTokens
		llmCfg.MaxTokens = &m
	}
	llmClient := llmclient.NewClient(llmCfg)

	registry := toolreg.NewRegistry(logger)
	tools.RegisterAll(registry, tools.Deps{AI: aiClient, Logger: logger})

	var engineOpts []engine.Option
	if cfg.Engine.MaxIterations > 0 {
		engineOpts = append(engineOpts, engine.WithMaxIterations(cfg.Engine.MaxIterations))
	}
	if cfg.Engine.TurnTimeout > 0 {
		engineOpts = append(engineOpts, engine.WithTurnTimeout(cfg.Engine.TurnTimeout))
	}

	telemetry := NewStoreSink(store, logger)
	eng := engine.New(registry, store, llmClient, telemetry, logger, engineOpts...)

	return &App{
		Config:    cfg,
		DB:        db,
		Store:     store,
		Registry:  registry,
		AIService: aiClient,
		LLM:       llmClient,
		Engine:    eng,
		logger:    logger,
	}, nil
}

// Close releases held resources.
func (a *App) Close() error {
	return a.DB.Close()
}

// StoreSink persists turn telemetry through the conversation store.
type StoreSink struct {
	store  *convstore.Store
	logger *slog.Logger
}

// NewStoreSink creates a store-backed telemetry sink.
func NewStoreSink(store *convstore.Store, logger *slog.Logger) *StoreSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreSink{store: store, logger: logger.With("component", "telemetry")}
}

// RecordTurn implements engine.TelemetrySink.
func (s *StoreSink) RecordTurn(ctx context.Context, rec *engine.TelemetryRecord) error {
	return s.store.InsertTelemetry(ctx, &convstore.TelemetryRow{
		TenantID:       rec.TenantID.String(),
		UserID:         rec.UserID.String(),
		Workspace:      rec.Workspace,
		ConversationID: rec.ConversationID,
		Question:       rec.Question,
		Answer:         rec.Answer,
		ToolsUsed:      rec.ToolsUsed,
		TokensUsed:     rec.TokensUsed,
		DurationMs:     rec.DurationMs,
		Aborted:        rec.Aborted,
	})
}
