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

type storeRow struct {
	ID          string `db:"id"`
	StoreNumber string `db:"store_number"`
	Name        string `db:"name"`
}

func getStorePerformance(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			StoreID   string `json:"store_id"`
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

		var store storeRow
		err = sqlscan.Get(ctx, ec.DB, &store, `
			SELECT id, store_number, name FROM stores WHERE id = ? AND tenant_id = ?`,
			a.StoreID, ec.TenantID.String())
		if sqlscan.NotFound(err) {
			return nil, fmt.Errorf("store %s not found", a.StoreID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch store: %w", err)
		}

		var perf struct {
			SalesUnits int     `db:"sales_units"`
			Velocity   float64 `db:"velocity"`
			OSAPct     float64 `db:"osa_pct"`
			WastePct   float64 `db:"waste_pct"`
		}
		err = sqlscan.Get(ctx, ec.DB, &perf, `
			SELECT COALESCE(SUM(sales_units), 0) AS sales_units,
			       COALESCE(AVG(velocity_per_week), 0) AS velocity,
			       COALESCE(AVG(osa_pct), 0) AS osa_pct,
			       COALESCE(AVG(waste_pct), 0) AS waste_pct
			FROM store_sales
			WHERE tenant_id = ? AND store_id = ? AND week_start >= ? AND week_start < ?`,
			ec.TenantID.String(), a.StoreID,
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch store sales: %w", err)
		}

		return map[string]any{
			"store_id":          store.ID,
			"store_number":      store.StoreNumber,
			"name":              store.Name,
			"period":            map[string]any{"start": a.StartDate, "end": a.EndDate},
			"sales_units":       perf.SalesUnits,
			"velocity_per_week": perf.Velocity,
			"osa_pct":           perf.OSAPct,
			"waste_pct":         perf.WastePct,
		}, nil
	}
}

func forecastRetailDemand(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			BannerID     string   `json:"banner_id"`
			StoreIDs     []string `json:"store_ids"`
			SKUIDs       []string `json:"sku_ids"`
			HorizonWeeks int      `json:"horizon_weeks"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		return deps.AI.ForecastRetailDemand(ctx, ec.TenantID, a.BannerID, a.StoreIDs, a.SKUIDs, a.HorizonWeeks)
	}
}

func recommendReplenishment(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			BannerID string   `json:"banner_id"`
			StoreIDs []string `json:"store_ids"`
			SKUIDs   []string `json:"sku_ids"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		return deps.AI.RecommendReplenishment(ctx, ec.TenantID, a.BannerID, a.StoreIDs, a.SKUIDs)
	}
}

func detectOSAIssues(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		a := struct {
			CategoryID  string `json:"category_id"`
			BannerID    string `json:"banner_id"`
			MinSeverity string `json:"min_severity"`
		}{MinSeverity: "medium"}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		return deps.AI.DetectOSAIssues(ctx, ec.TenantID, a.CategoryID, a.BannerID, a.MinSeverity)
	}
}

func evaluatePromo(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			PromoID string `json:"promo_id"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		return deps.AI.EvaluatePromo(ctx, ec.TenantID, a.PromoID)
	}
}

func registerRetail(r *toolreg.Registry, deps Deps) {
	r.Register(&toolreg.Tool{
		Name:        "get_store_performance",
		Description: "Get store-level performance metrics including sales, velocity, OSA%, and waste%",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"store_id":   schema.String("Store ID (UUID)"),
			"start_date": schema.String("Start date (ISO format)"),
			"end_date":   schema.String("End date (ISO format)"),
		}, []string{"store_id", "start_date", "end_date"}),
		Workspace: prompts.WorkspaceRetail,
		Handler:   getStorePerformance(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "forecast_retail_demand",
		Description: "Generate AI-powered store-level demand forecast accounting for local trends and promotions",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"banner_id":     schema.String("Banner/chain ID (UUID)"),
			"store_ids":     schema.StringArray("List of store IDs"),
			"sku_ids":       schema.StringArray("List of SKU IDs"),
			"horizon_weeks": schema.Integer("Forecast horizon in weeks"),
		}, []string{"banner_id", "store_ids", "sku_ids", "horizon_weeks"}),
		Workspace: prompts.WorkspaceRetail,
		Handler:   forecastRetailDemand(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "recommend_replenishment",
		Description: "Get AI-powered replenishment recommendations balancing availability with freshness and waste",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"banner_id": schema.String("Banner/chain ID (UUID)"),
			"store_ids": schema.StringArray("Optional store IDs"),
			"sku_ids":   schema.StringArray("Optional SKU IDs"),
		}, []string{"banner_id", "store_ids", "sku_ids"}),
		Workspace: prompts.WorkspaceRetail,
		Handler:   recommendReplenishment(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "detect_osa_issues",
		Description: "Detect on-shelf availability problems using AI pattern recognition across stores",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"category_id": schema.String("Optional category ID filter"),
			"banner_id":   schema.String("Optional banner ID filter (UUID)"),
			"min_severity": schema.WithDefault(
				schema.StringEnum("Minimum severity level", []string{"low", "medium", "high"}),
				"medium"),
		}, nil),
		Workspace: prompts.WorkspaceRetail,
		Handler:   detectOSAIssues(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "evaluate_promo",
		Description: "Evaluate promotion effectiveness calculating lift, ROI, cannibalization, and post-promo dip",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"promo_id": schema.String("Promotion ID (UUID)"),
		}, []string{"promo_id"}),
		Workspace: prompts.WorkspaceRetail,
		Handler:   evaluatePromo(deps),
	})
}
