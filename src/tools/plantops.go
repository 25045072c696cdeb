package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/foodflow/copilot/src/prompts"
	"github.com/foodflow/copilot/src/schema"
	"github.com/foodflow/copilot/src/toolreg"
)

type lineRow struct {
	ID                string  `db:"id"`
	Name              string  `db:"name"`
	Status            string  `db:"status"`
	PlantName         string  `db:"plant_name"`
	EfficiencyPct     float64 `db:"efficiency_pct"`
	TargetRatePerHour float64 `db:"target_rate_per_hour"`
}

type batchSummaryRow struct {
	ID          string  `db:"id" json:"id"`
	ProductCode string  `db:"product_code" json:"product_code"`
	Status      string  `db:"status" json:"status"`
	Quantity    float64 `db:"quantity" json:"quantity"`
	StartedAt   *string `db:"started_at" json:"started_at"`
}

type batchRow struct {
	ID               string   `db:"id"`
	BatchNumber      string   `db:"batch_number"`
	ProductCode      string   `db:"product_code"`
	Status           string   `db:"status"`
	LineName         string   `db:"line_name"`
	QuantityPlanned  *float64 `db:"quantity_planned"`
	QuantityProduced *float64 `db:"quantity_produced"`
	StartTime        *string  `db:"start_time"`
	EndTime          *string  `db:"end_time"`
	Notes            *string  `db:"notes"`
}

type moneyLeakRow struct {
	Category  string  `db:"category" json:"category"`
	TotalCost float64 `db:"total_cost" json:"total_cost"`
	Events    int     `db:"events" json:"events"`
}

func getLineStatus(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			LineID string `json:"line_id"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		var line lineRow
		err := sqlscan.Get(ctx, ec.DB, &line, `
			SELECT id, name, status, plant_name, efficiency_pct, target_rate_per_hour
			FROM production_lines
			WHERE id = ? AND tenant_id = ?`,
			a.LineID, ec.TenantID.String())
		if sqlscan.NotFound(err) {
			return nil, fmt.Errorf("line %s not found", a.LineID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch line: %w", err)
		}

		var recent []batchSummaryRow
		err = sqlscan.Select(ctx, ec.DB, &recent, `
			SELECT id, product_code, status, COALESCE(quantity_produced, 0) AS quantity, start_time AS started_at
			FROM batches
			WHERE line_id = ? AND tenant_id = ?
			ORDER BY created_at DESC
			LIMIT 5`,
			a.LineID, ec.TenantID.String())
		if err != nil {
			return nil, fmt.Errorf("failed to fetch recent batches: %w", err)
		}

		return map[string]any{
			"line_id":            line.ID,
			"name":               line.Name,
			"status":             line.Status,
			"plant_name":         line.PlantName,
			"current_efficiency": line.EfficiencyPct,
			"target_rate":        line.TargetRatePerHour,
			"recent_batches":     recent,
		}, nil
	}
}

func getBatchDetails(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			BatchID string `json:"batch_id"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		var batch batchRow
		err := sqlscan.Get(ctx, ec.DB, &batch, `
			SELECT b.id, b.batch_number, b.product_code, b.status,
			       COALESCE(l.name, 'Unknown') AS line_name,
			       b.quantity_planned, b.quantity_produced,
			       b.start_time, b.end_time, b.notes
			FROM batches b
			LEFT JOIN production_lines l ON l.id = b.line_id
			WHERE b.id = ? AND b.tenant_id = ?`,
			a.BatchID, ec.TenantID.String())
		if sqlscan.NotFound(err) {
			return nil, fmt.Errorf("batch %s not found", a.BatchID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch batch: %w", err)
		}

		yieldPct := 0.0
		if batch.QuantityPlanned != nil && batch.QuantityProduced != nil && *batch.QuantityPlanned > 0 {
			yieldPct = *batch.QuantityProduced / *batch.QuantityPlanned * 100
		}

		var durationMinutes *float64
		if batch.StartTime != nil && batch.EndTime != nil {
			start, errStart := parseDate(*batch.StartTime)
			end, errEnd := parseDate(*batch.EndTime)
			if errStart == nil && errEnd == nil {
				minutes := end.Sub(start).Minutes()
				durationMinutes = &minutes
			}
		}

		return map[string]any{
			"id":                batch.ID,
			"batch_number":      batch.BatchNumber,
			"product_code":      batch.ProductCode,
			"status":            batch.Status,
			"line_name":         batch.LineName,
			"quantity_planned":  batch.QuantityPlanned,
			"quantity_produced": batch.QuantityProduced,
			"yield_pct":         yieldPct,
			"start_time":        batch.StartTime,
			"end_time":          batch.EndTime,
			"duration_minutes":  durationMinutes,
			"notes":             batch.Notes,
		}, nil
	}
}

func analyzeScrap(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			PlantID   string `json:"plant_id"`
			LineID    string `json:"line_id"`
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		start, err := parseDate(a.StartDate)
		if err != nil {
			return nil, err
		}
		end, err := parseDate(a.EndDate)
		if err != nil {
			return nil, err
		}

		return deps.AI.AnalyzeScrap(ctx, ec.TenantID, a.PlantID, a.LineID, start, end)
	}
}

func suggestTrial(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		a := struct {
			LineID            string         `json:"line_id"`
			SKUID             string         `json:"sku_id"`
			CurrentParameters map[string]any `json:"current_parameters"`
			OptimizationGoal  string         `json:"optimization_goal"`
		}{OptimizationGoal: "reduce_scrap"}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		return deps.AI.SuggestTrial(ctx, ec.TenantID, a.LineID, a.SKUID, a.CurrentParameters, a.OptimizationGoal)
	}
}

func getMoneyLeaks(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			PlantID   string `json:"plant_id"`
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		start, err := parseDate(a.StartDate)
		if err != nil {
			return nil, err
		}
		end, err := parseDate(a.EndDate)
		if err != nil {
			return nil, err
		}

		var categories []moneyLeakRow
		err = sqlscan.Select(ctx, ec.DB, &categories, `
			SELECT category, SUM(cost_usd) AS total_cost, COUNT(*) AS events
			FROM money_leak_events
			WHERE tenant_id = ? AND plant_id = ? AND occurred_at >= ? AND occurred_at < ?
			GROUP BY category
			ORDER BY total_cost DESC`,
			ec.TenantID.String(), a.PlantID,
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch money leaks: %w", err)
		}

		total := 0.0
		for _, c := range categories {
			total += c.TotalCost
		}

		return map[string]any{
			"plant_id":   a.PlantID,
			"period":     map[string]any{"start": a.StartDate, "end": a.EndDate},
			"categories": categories,
			"total_cost": total,
		}, nil
	}
}

func compareBatch(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			BatchID string `json:"batch_id"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		return deps.AI.CompareBatch(ctx, ec.TenantID, a.BatchID)
	}
}

func registerPlantOps(r *toolreg.Registry, deps Deps) {
	r.Register(&toolreg.Tool{
		Name:        "get_line_status",
		Description: "Get current status and real-time metrics for a production line including efficiency, recent batches, and operational state",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"line_id": schema.String("The production line ID (UUID format)"),
		}, []string{"line_id"}),
		Workspace: prompts.WorkspacePlantOps,
		Handler:   getLineStatus(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "get_batch_details",
		Description: "Retrieve detailed information about a specific production batch including quantities, yield, timing, and status",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"batch_id": schema.String("The batch ID (UUID format)"),
		}, []string{"batch_id"}),
		Workspace: prompts.WorkspacePlantOps,
		Handler:   getBatchDetails(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "analyze_scrap",
		Description: "Analyze scrap patterns and identify root causes using AI-powered analytics for a production line over a date range",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"plant_id":   schema.String("The plant ID (UUID format)"),
			"line_id":    schema.String("The production line ID (UUID format)"),
			"start_date": schema.String("Start date in ISO format (YYYY-MM-DD)"),
			"end_date":   schema.String("End date in ISO format (YYYY-MM-DD)"),
		}, []string{"plant_id", "line_id", "start_date", "end_date"}),
		Workspace: prompts.WorkspacePlantOps,
		Handler:   analyzeScrap(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "suggest_trial",
		Description: "Get AI-powered trial parameter recommendations to optimize line performance (reduce scrap, increase speed, improve quality)",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"line_id":            schema.String("The production line ID (UUID format)"),
			"sku_id":             schema.String("The SKU/product code"),
			"current_parameters": schema.Map("Current line parameters (temperature, speed, pressure, etc.)"),
			"optimization_goal": schema.WithDefault(
				schema.StringEnum("Optimization objective", []string{"reduce_scrap", "increase_speed", "improve_quality"}),
				"reduce_scrap"),
		}, []string{"line_id", "sku_id", "current_parameters"}),
		Workspace: prompts.WorkspacePlantOps,
		Handler:   suggestTrial(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "get_money_leaks",
		Description: "Get money leak breakdown by category (scrap cost, downtime cost, yield loss) for a plant over a date range",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"plant_id":   schema.String("The plant ID (UUID format)"),
			"start_date": schema.String("Start date in ISO format (YYYY-MM-DD)"),
			"end_date":   schema.String("End date in ISO format (YYYY-MM-DD)"),
		}, []string{"plant_id", "start_date", "end_date"}),
		Workspace: prompts.WorkspacePlantOps,
		Handler:   getMoneyLeaks(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "compare_batch",
		Description: "Compare a batch to similar historical batches using AI to identify deviations and insights",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"batch_id": schema.String("The batch ID (UUID format)"),
		}, []string{"batch_id"}),
		Workspace: prompts.WorkspacePlantOps,
		Handler:   compareBatch(deps),
	})
}
