package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/foodflow/copilot/src/prompts"
	"github.com/foodflow/copilot/src/schema"
	"github.com/foodflow/copilot/src/toolreg"
)

const traceMaxDepth = 10

const noComplianceDocsAnswer = "I don't have direct access to that specific document or procedure in the system yet. " +
	"I recommend checking your FSQ document library, SOPs, or HACCP plans, or uploading relevant documents " +
	"so I can reference them in the future."

type lotRow struct {
	ID             string  `db:"id"`
	LotNumber      string  `db:"lot_number"`
	IngredientName string  `db:"ingredient_name"`
	SupplierName   string  `db:"supplier_name"`
	Quantity       float64 `db:"quantity"`
	Unit           string  `db:"unit"`
	ProductionDate *string `db:"production_date"`
	ExpirationDate *string `db:"expiration_date"`
	Status         string  `db:"status"`
	QualityStatus  string  `db:"quality_status"`
	OnHold         bool    `db:"on_hold"`
}

type genealogyRow struct {
	ParentLotID  string `db:"parent_lot_id"`
	ChildLotID   string `db:"child_lot_id"`
	Relationship string `db:"relationship"`
}

type traceHop struct {
	LotID        string `json:"lot_id"`
	Relationship string `json:"relationship"`
	Depth        int    `json:"depth"`
}

func getLotDetails(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			LotID string `json:"lot_id"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		var lot lotRow
		err := sqlscan.Get(ctx, ec.DB, &lot, `
			SELECT id, lot_number,
			       COALESCE(ingredient_name, 'Unknown') AS ingredient_name,
			       COALESCE(supplier_name, 'Unknown') AS supplier_name,
			       quantity, unit, production_date, expiration_date,
			       status, quality_status, on_hold
			FROM lots
			WHERE id = ? AND tenant_id = ?`,
			a.LotID, ec.TenantID.String())
		if sqlscan.NotFound(err) {
			return nil, fmt.Errorf("lot %s not found", a.LotID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch lot: %w", err)
		}

		return map[string]any{
			"id":              lot.ID,
			"lot_number":      lot.LotNumber,
			"ingredient_name": lot.IngredientName,
			"supplier_name":   lot.SupplierName,
			"quantity":        lot.Quantity,
			"unit":            lot.Unit,
			"production_date": lot.ProductionDate,
			"expiration_date": lot.ExpirationDate,
			"status":          lot.Status,
			"quality_status":  lot.QualityStatus,
			"on_hold":         lot.OnHold,
		}, nil
	}
}

// traceLots walks the lot genealogy graph breadth-first. Forward follows
// parent -> child edges (what was made from this lot), backward follows
// child -> parent (what went into it). Depth is capped; real genealogies are
// shallow and a cycle in the data must not hang the tool.
func traceLots(ctx context.Context, db *sql.DB, tenantID, lotID string, forward bool) ([]traceHop, error) {
	visited := map[string]bool{lotID: true}
	frontier := []string{lotID}
	var chain []traceHop

	for depth := 1; depth <= traceMaxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			query := `
				SELECT parent_lot_id, child_lot_id, relationship
				FROM lot_genealogy
				WHERE tenant_id = ? AND child_lot_id = ?`
			if forward {
				query = `
					SELECT parent_lot_id, child_lot_id, relationship
					FROM lot_genealogy
					WHERE tenant_id = ? AND parent_lot_id = ?`
			}

			var edges []genealogyRow
			if err := sqlscan.Select(ctx, db, &edges, query, tenantID, id); err != nil {
				return nil, fmt.Errorf("failed to walk lot genealogy: %w", err)
			}

			for _, edge := range edges {
				other := edge.ParentLotID
				if forward {
					other = edge.ChildLotID
				}
				if visited[other] {
					continue
				}
				visited[other] = true
				chain = append(chain, traceHop{LotID: other, Relationship: edge.Relationship, Depth: depth})
				next = append(next, other)
			}
		}
		frontier = next
	}
	return chain, nil
}

func traceLot(deps Deps, forward bool) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			LotID string `json:"lot_id"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		chain, err := traceLots(ctx, ec.DB, ec.TenantID.String(), a.LotID, forward)
		if err != nil {
			return nil, err
		}

		direction := "backward"
		if forward {
			direction = "forward"
		}
		return map[string]any{
			"lot_id":    a.LotID,
			"direction": direction,
			"trace":     chain,
			"count":     len(chain),
		}, nil
	}
}

func computeLotRisk(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			LotID string `json:"lot_id"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		return deps.AI.ComputeLotRisk(ctx, ec.TenantID, a.LotID)
	}
}

func computeSupplierRisk(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			SupplierID string `json:"supplier_id"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		return deps.AI.ComputeSupplierRisk(ctx, ec.TenantID, a.SupplierID)
	}
}

func checkCCPStatus(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			PlantID string `json:"plant_id"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		var row struct {
			CCPCount     int     `db:"ccp_count"`
			ActiveAlerts int     `db:"active_alerts"`
			LastCheck    *string `db:"last_check"`
		}
		cutoff := time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339)
		err := sqlscan.Get(ctx, ec.DB, &row, `
			SELECT COUNT(DISTINCT ccp_name) AS ccp_count,
			       COALESCE(SUM(CASE WHEN in_control = 0 THEN 1 ELSE 0 END), 0) AS active_alerts,
			       MAX(checked_at) AS last_check
			FROM ccp_logs
			WHERE tenant_id = ? AND plant_id = ? AND checked_at >= ?`,
			ec.TenantID.String(), a.PlantID, cutoff)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch CCP logs: %w", err)
		}

		status := "all_ccps_in_control"
		message := "All Critical Control Points are within acceptable limits"
		if row.ActiveAlerts > 0 {
			status = "alerts_active"
			message = fmt.Sprintf("%d Critical Control Point readings are out of limits in the last 24 hours", row.ActiveAlerts)
		}

		return map[string]any{
			"plant_id":      a.PlantID,
			"ccp_count":     row.CCPCount,
			"active_alerts": row.ActiveAlerts,
			"last_check":    row.LastCheck,
			"status":        status,
			"message":       message,
		}, nil
	}
}

func answerComplianceQuestion(deps Deps) toolreg.Handler {
	return func(ctx context.Context, ec toolreg.ExecContext, raw json.RawMessage) (any, error) {
		var a struct {
			Question string   `json:"question"`
			DocIDs   []string `json:"doc_ids"`
		}
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		hits := searchDocuments(ctx, deps, ec, a.Question, "fsq")
		if len(a.DocIDs) > 0 {
			wanted := make(map[string]bool, len(a.DocIDs))
			for _, id := range a.DocIDs {
				wanted[id] = true
			}
			filtered := hits[:0]
			for _, hit := range hits {
				if wanted[hit.ID] {
					filtered = append(filtered, hit)
				}
			}
			hits = filtered
		}

		if len(hits) == 0 {
			return map[string]any{
				"answer":        noComplianceDocsAnswer,
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

func registerFSQ(r *toolreg.Registry, deps Deps) {
	r.Register(&toolreg.Tool{
		Name:        "get_lot_details",
		Description: "Get detailed information about a production lot including ingredient, supplier, quantity, dates, and quality status",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"lot_id": schema.String("The lot ID (UUID format)"),
		}, []string{"lot_id"}),
		Workspace: prompts.WorkspaceFSQ,
		Handler:   getLotDetails(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "trace_lot_forward",
		Description: "Trace a lot forward through production to see what products were made from it and where they were distributed",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"lot_id": schema.String("The lot ID (UUID format)"),
		}, []string{"lot_id"}),
		Workspace: prompts.WorkspaceFSQ,
		Handler:   traceLot(deps, true),
	})

	r.Register(&toolreg.Tool{
		Name:        "trace_lot_backward",
		Description: "Trace a lot backward to identify all ingredient lots and suppliers that went into producing it",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"lot_id": schema.String("The lot ID (UUID format)"),
		}, []string{"lot_id"}),
		Workspace: prompts.WorkspaceFSQ,
		Handler:   traceLot(deps, false),
	})

	r.Register(&toolreg.Tool{
		Name:        "compute_lot_risk",
		Description: "Calculate AI-powered risk score for a lot based on quality history, supplier risk, test results, and deviations",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"lot_id": schema.String("The lot ID (UUID format)"),
		}, []string{"lot_id"}),
		Workspace: prompts.WorkspaceFSQ,
		Handler:   computeLotRisk(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "compute_supplier_risk",
		Description: "Assess supplier risk level using AI analysis of quality history, certifications, audit scores, and deviation trends",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"supplier_id": schema.String("The supplier ID (UUID format)"),
		}, []string{"supplier_id"}),
		Workspace: prompts.WorkspaceFSQ,
		Handler:   computeSupplierRisk(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "check_ccp_status",
		Description: "Get Critical Control Point (CCP) monitoring status and active alerts for HACCP compliance",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"plant_id": schema.String("The plant ID (UUID format)"),
		}, []string{"plant_id"}),
		Workspace: prompts.WorkspaceFSQ,
		Handler:   checkCCPStatus(deps),
	})

	r.Register(&toolreg.Tool{
		Name:        "answer_compliance_question",
		Description: "Answer food safety and compliance questions by searching FSQ documentation (SOPs, HACCP plans, specifications)",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"question": schema.String("The compliance or food safety question"),
			"doc_ids":  schema.StringArray("Optional specific document IDs to search"),
		}, []string{"question"}),
		Workspace: prompts.WorkspaceFSQ,
		Handler:   answerComplianceQuestion(deps),
	})
}
