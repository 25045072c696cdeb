package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/georgysavva/scany/v2/sqlscan"
	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/foodflow/copilot/src/prompts"
	"github.com/foodflow/copilot/src/schema"
	"github.com/foodflow/copilot/src/toolreg"
)

const defaultServiceLevel = 0.95

type forecastRow struct {
	ID           string  `db:"id"`
	Name         string  `db:"name"`
	HorizonWeeks int     `db:"horizon_weeks"`
	Status       string  `db:"status"`
	CreatedAt    string  `db:"created_at"`
	ForecastData *string `db:"forecast_data"`
}

type planRow struct {
	ID           string  `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	Status       string  `db:"status" json:"status"`
	HorizonWeeks int     `db:"horizon_weeks" json:"horizon_weeks"`
	StartDate    *string `db:"start_date" json:"start_date"`
	EndDate      *string `db:"end_date" json:"end_date"`
	CreatedAt    string  `db:"created_at" json:"created_at"`
}

func getForecast(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			ForecastID string `json:"forecast_id"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		var fc forecastRow
		err := sqlscan.Get(ctx, ec.DB, &fc, `
			SELECT id, name, horizon_weeks, status, created_at, forecast_data
			FROM forecasts
			WHERE id = ? AND tenant_id = ?`,
			a.ForecastID, ec.TenantID.String())
		if sqlscan.NotFound(err) {
			return nil, fmt.Errorf("forecast %s not found", a.ForecastID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch forecast: %w", err)
		}

		// forecast_data is stored as a JSON document; pass it through intact.
		var data any
		if fc.ForecastData != nil {
			if err := json.Unmarshal([]byte(*fc.ForecastData), &data); err != nil {
				data = *fc.ForecastData
			}
		}

		return map[string]any{
			"id":            fc.ID,
			"name":          fc.Name,
			"horizon_weeks": fc.HorizonWeeks,
			"status":        fc.Status,
			"created_at":    fc.CreatedAt,
			"forecast_data": data,
		}, nil
	}
}

func getProductionPlans(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		a := struct {
			Limit int `json:"limit"`
		}{Limit: 10}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		var plans []planRow
		err := sqlscan.Select(ctx, ec.DB, &plans, `
			SELECT id, name, status, horizon_weeks, start_date, end_date, created_at
			FROM production_plans
			WHERE tenant_id = ?
			ORDER BY created_at DESC
			LIMIT ?`,
			ec.TenantID.String(), a.Limit)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch production plans: %w", err)
		}

		return map[string]any{
			"plans": plans,
			"count": len(plans),
		}, nil
	}
}

func generateForecast(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			HorizonWeeks int      `json:"horizon_weeks"`
			Grouping     string   `json:"grouping"`
			SKUIDs       []string `json:"sku_ids"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		return deps.AI.GenerateForecast(ctx, ec.TenantID, a.HorizonWeeks, a.Grouping, a.SKUIDs)
	}
}

func generateProductionPlan(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			ForecastVersionID string   `json:"forecast_version_id"`
			HorizonWeeks      int      `json:"horizon_weeks"`
			PlantIDs          []string `json:"plant_ids"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		return deps.AI.GenerateProductionPlan(ctx, ec.TenantID, a.ForecastVersionID, a.HorizonWeeks, a.PlantIDs)
	}
}

func recommendSafetyStocks(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		a := struct {
			SKUIDs       []string `json:"sku_ids"`
			LocationIDs  []string `json:"location_ids"`
			ServiceLevel float64  `json:"service_level"`
		}{ServiceLevel: defaultServiceLevel}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		return deps.AI.RecommendSafetyStocks(ctx, ec.TenantID, a.SKUIDs, a.LocationIDs, a.ServiceLevel)
	}
}

func registerPlanning(r *toolreg.Registry, deps Deps) {
	r.Register(&toolreg.Tool{
		Name:        "get_forecast",
		Description: "Retrieve a demand forecast with baseline, confidence intervals, and accuracy metrics",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"forecast_id": schema.String("The forecast ID (UUID format)"),
		}, []string{"forecast_id"}),
		Workspace: prompts.WorkspacePlanning,
		Handler:   getForecast(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "get_production_plans",
		Description: "List recent production plans with status, dates, and horizon",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"limit": schema.WithDefault(schema.Integer("Maximum number of plans to return"), 10),
		}, nil),
		Workspace: prompts.WorkspacePlanning,
		Handler:   getProductionPlans(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "generate_forecast",
		Description: "Generate AI-powered demand forecast for specified horizon and grouping level",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"horizon_weeks": schema.Integer("Forecast horizon in weeks"),
			"grouping":      schema.StringEnum("Forecast grouping level", []string{"sku", "category", "plant"}),
			"sku_ids":       schema.StringArray("Optional list of specific SKU IDs"),
		}, []string{"horizon_weeks", "grouping"}),
		Workspace: prompts.WorkspacePlanning,
		Handler:   generateForecast(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "generate_production_plan",
		Description: "Generate optimized production plan from forecast using AI-powered scheduling and capacity optimization",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"forecast_version_id": schema.String("Base forecast ID (UUID format)"),
			"horizon_weeks":       schema.Integer("Planning horizon in weeks"),
			"plant_ids":           schema.StringArray("List of plant IDs to include in plan"),
		}, []string{"forecast_version_id", "horizon_weeks", "plant_ids"}),
		Workspace: prompts.WorkspacePlanning,
		Handler:   generateProductionPlan(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "recommend_safety_stocks",
		Description: "Get AI-powered safety stock recommendations based on demand variability and lead times",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"sku_ids":       schema.StringArray("List of SKU IDs"),
			"location_ids":  schema.StringArray("List of location IDs (UUIDs)"),
			"service_level": schema.Number("Target service level as a fraction", defaultServiceLevel),
		}, []string{"sku_ids", "location_ids"}),
		Workspace: prompts.WorkspacePlanning,
		Handler:   recommendSafetyStocks(deps),
	})
}
