// Package tools declares the copilot's workspace tools: their parameter
// schemas and handlers. Lookup tools read the shared business tables
// directly; analytical tools call the downstream analytics service.
package tools

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/foodflow/copilot/src/aisvc"
	"github.com/foodflow/copilot/src/toolreg"
)

// Deps carries the shared collaborators handlers need beyond the per-call
// execution context.
type Deps struct {
	AI     *aisvc.Client
	Logger *slog.Logger
}

// RegisterAll registers every workspace's tools on the registry.
func RegisterAll(registry *toolreg.Registry, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With("component", "tools")

	registerPlantOps(registry, deps)
	registerFSQ(registry, deps)
	registerPlanning(registry, deps)
	registerBrand(registry, deps)
	registerRetail(registry, deps)
}

func decodeArgs(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// parseDate accepts both bare dates and full RFC 3339 timestamps; the model
// produces either depending on the question.
func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD or RFC 3339", value)
}
