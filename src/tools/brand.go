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

const noBrandDocsAnswer = "I don't have that specific contract or specification in the system yet. " +
	"I recommend uploading it to the Brand document library so I can reference it in the future."

type copackerRow struct {
	ID                     string  `db:"id"`
	Name                   string  `db:"name"`
	QualityScore           float64 `db:"quality_score"`
	DeliveryPerformancePct float64 `db:"delivery_performance_pct"`
	CapacityUtilizationPct float64 `db:"capacity_utilization_pct"`
}

func getBrandPerformance(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			BrandID   string `json:"brand_id"`
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

		var brandName string
		err = sqlscan.Get(ctx, ec.DB, &brandName, `
			SELECT name FROM brands WHERE id = ? AND tenant_id = ?`,
			a.BrandID, ec.TenantID.String())
		if sqlscan.NotFound(err) {
			return nil, fmt.Errorf("brand %s not found", a.BrandID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch brand: %w", err)
		}

		var perf struct {
			Revenue     float64 `db:"revenue"`
			GrossMargin float64 `db:"gross_margin"`
			UnitsSold   int     `db:"units_sold"`
			Velocity    float64 `db:"velocity"`
		}
		err = sqlscan.Get(ctx, ec.DB, &perf, `
			SELECT COALESCE(SUM(revenue), 0) AS revenue,
			       COALESCE(SUM(gross_margin), 0) AS gross_margin,
			       COALESCE(SUM(units_sold), 0) AS units_sold,
			       COALESCE(AVG(velocity_per_store_per_week), 0) AS velocity
			FROM brand_sales
			WHERE tenant_id = ? AND brand_id = ? AND week_start >= ? AND week_start < ?`,
			ec.TenantID.String(), a.BrandID,
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch brand sales: %w", err)
		}

		marginPct := 0.0
		if perf.Revenue > 0 {
			marginPct = perf.GrossMargin / perf.Revenue * 100
		}

		return map[string]any{
			"brand_id":                    a.BrandID,
			"brand_name":                  brandName,
			"period":                      map[string]any{"start": a.StartDate, "end": a.EndDate},
			"revenue":                     perf.Revenue,
			"gross_margin_pct":            marginPct,
			"units_sold":                  perf.UnitsSold,
			"velocity_per_store_per_week": perf.Velocity,
		}, nil
	}
}

func getCopackerPerformance(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			CopackerID string `json:"copacker_id"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		var cp copackerRow
		err := sqlscan.Get(ctx, ec.DB, &cp, `
			SELECT id, name, quality_score, delivery_performance_pct, capacity_utilization_pct
			FROM copackers
			WHERE id = ? AND tenant_id = ?`,
			a.CopackerID, ec.TenantID.String())
		if sqlscan.NotFound(err) {
			return nil, fmt.Errorf("co-packer %s not found", a.CopackerID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch co-packer: %w", err)
		}

		return map[string]any{
			"copacker_id":              cp.ID,
			"name":                     cp.Name,
			"quality_score":            cp.QualityScore,
			"delivery_performance_pct": cp.DeliveryPerformancePct,
			"capacity_utilization_pct": cp.CapacityUtilizationPct,
		}, nil
	}
}

func computeMarginBridge(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			BrandID      string `json:"brand_id"`
			Period1Start string `json:"period1_start"`
			Period1End   string `json:"period1_end"`
			Period2Start string `json:"period2_start"`
			Period2End   string `json:"period2_end"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		dates := make([]time.Time, 4)
		for i, value := range []string{a.Period1Start, a.Period1End, a.Period2Start, a.Period2End} {
			t, err := parseDate(value)
			if err != nil {
				return nil, err
			}
			dates[i] = t
		}

		return deps.AI.ComputeMarginBridge(ctx, ec.TenantID, a.BrandID, dates[0], dates[1], dates[2], dates[3])
	}
}

func evaluateCopacker(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			CopackerID string `json:"copacker_id"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		return deps.AI.ComputeCopackerRisk(ctx, ec.TenantID, a.CopackerID)
	}
}

func answerBrandQuestion(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			Question string `json:"question"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		hits := searchDocuments(ctx, deps, ec, a.Question, "brand")
		if len(hits) == 0 {
			return map[string]any{
				"answer":        noBrandDocsAnswer,
				"sources":       []documentHit{},
				"has_documents": false,
			}, nil
		}

		return map[string]any{
			"answer":        "Based on the available documentation, see the referenced excerpts below.",
			"sources":       hits,
			"has_documents": true,
		}, nil
	}
}

func registerBrand(r *toolreg.Registry, deps Deps) {
	r.Register(&toolreg.Tool{
		Name:        "get_brand_performance",
		Description: "Get brand-level performance metrics including revenue, margin, velocity, and units sold",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"brand_id":   schema.String("Brand ID (UUID)"),
			"start_date": schema.String("Start date (ISO format)"),
			"end_date":   schema.String("End date (ISO format)"),
		}, []string{"brand_id", "start_date", "end_date"}),
		Workspace: prompts.WorkspaceBrand,
		Handler:   getBrandPerformance(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "get_copacker_performance",
		Description: "Get co-packer performance metrics including quality, delivery, cost, and capacity utilization",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"copacker_id": schema.String("Co-packer ID (UUID)"),
		}, []string{"copacker_id"}),
		Workspace: prompts.WorkspaceBrand,
		Handler:   getCopackerPerformance(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "compute_margin_bridge",
		Description: "Generate AI-powered margin waterfall analysis comparing two time periods to identify drivers of margin change",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"brand_id":      schema.String("Brand ID (UUID)"),
			"period1_start": schema.String("Period 1 start date (ISO format)"),
			"period1_end":   schema.String("Period 1 end date (ISO format)"),
			"period2_start": schema.String("Period 2 start date (ISO format)"),
			"period2_end":   schema.String("Period 2 end date (ISO format)"),
		}, []string{"brand_id", "period1_start", "period1_end", "period2_start", "period2_end"}),
		Workspace: prompts.WorkspaceBrand,
		Handler:   computeMarginBridge(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "evaluate_copacker",
		Description: "AI-powered co-packer risk and performance evaluation based on quality, delivery, financials, and capacity",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"copacker_id": schema.String("Co-packer ID (UUID)"),
		}, []string{"copacker_id"}),
		Workspace: prompts.WorkspaceBrand,
		Handler:   evaluateCopacker(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "answer_brand_question",
		Description: "Answer questions about brand contracts, specifications, and agreements using document search",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"question": schema.String("Brand or contract question"),
		}, []string{"question"}),
		Workspace: prompts.WorkspaceBrand,
		Handler:   answerBrandQuestion(deps),
	})
}
