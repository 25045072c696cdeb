package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// TelemetryRecord is emitted exactly once per completed or aborted turn.
type TelemetryRecord struct {
	TenantID       uuid.UUID
	UserID         uuid.UUID
	Workspace      string
	ConversationID string
	Question       string
	Answer         string
	ToolsUsed      []string
	TokensUsed     int
	DurationMs     float64
	Aborted        bool
}

// TelemetrySink receives turn records. Sink failures must not fail the
// turn; the engine logs and moves on.
type TelemetrySink interface {
	RecordTurn(ctx context.Context, rec *TelemetryRecord) error
}

// LogSink writes telemetry records to the structured log. It is the default
// sink when no durable one is wired.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log-backed telemetry sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "telemetry")}
}

// RecordTurn implements TelemetrySink.
func (s *LogSink) RecordTurn(_ context.Context, rec *TelemetryRecord) error {
	s.logger.Info("copilot turn",
		"tenant_id", rec.TenantID.String(),
		"user_id", rec.UserID.String(),
		"workspace", rec.Workspace,
		"conversation_id", rec.ConversationID,
		"tools_used", rec.ToolsUsed,
		"tokens_used", rec.TokensUsed,
		"duration_ms", rec.DurationMs,
		"aborted", rec.Aborted,
	)
	return nil
}
