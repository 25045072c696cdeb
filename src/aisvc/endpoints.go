package aisvc

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// PlantOps endpoints.

// AnalyzeScrap analyzes scrap patterns for a production line over a date
// range.
func (c *Client) AnalyzeScrap(ctx context.Context, tenantID uuid.UUID, plantID, lineID string, startDate, endDate time.Time) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/plantops/analyze-scrap", tenantID, map[string]any{
		"tenant_id":  tenantID.String(),
		"plant_id":   plantID,
		"line_id":    lineID,
		"start_date": startDate.Format(time.RFC3339),
		"end_date":   endDate.Format(time.RFC3339),
	})
}

// SuggestTrial suggests optimal trial parameters for a line/SKU pair.
func (c *Client) SuggestTrial(ctx context.Context, tenantID uuid.UUID, lineID, skuID string, currentParameters map[string]any, optimizationGoal string) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/plantops/suggest-trial", tenantID, map[string]any{
		"tenant_id":          tenantID.String(),
		"line_id":            lineID,
		"sku_id":             skuID,
		"current_parameters": currentParameters,
		"optimization_goal":  optimizationGoal,
	})
}

// CompareBatch compares a batch to similar historical batches.
func (c *Client) CompareBatch(ctx context.Context, tenantID uuid.UUID, batchID string) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/plantops/compare-batch", tenantID, map[string]any{
		"tenant_id": tenantID.String(),
		"batch_id":  batchID,
	})
}

// ComputeLineEfficiency calculates line efficiency metrics and money leaks.
func (c *Client) ComputeLineEfficiency(ctx context.Context, tenantID uuid.UUID, lineID string, startDate, endDate time.Time) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/plantops/compute-line-efficiency", tenantID, map[string]any{
		"tenant_id":  tenantID.String(),
		"line_id":    lineID,
		"start_date": startDate.Format(time.RFC3339),
		"end_date":   endDate.Format(time.RFC3339),
	})
}

// FSQ endpoints.

// ComputeLotRisk calculates the risk score for a production lot.
func (c *Client) ComputeLotRisk(ctx context.Context, tenantID uuid.UUID, lotID string) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/fsq/compute-lot-risk", tenantID, map[string]any{
		"tenant_id": tenantID.String(),
		"lot_id":    lotID,
	})
}

// ComputeSupplierRisk assesses a supplier's risk level.
func (c *Client) ComputeSupplierRisk(ctx context.Context, tenantID uuid.UUID, supplierID string) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/fsq/compute-supplier-risk", tenantID, map[string]any{
		"tenant_id":   tenantID.String(),
		"supplier_id": supplierID,
	})
}

// CCPDriftSummary analyzes critical control point drift over time.
func (c *Client) CCPDriftSummary(ctx context.Context, tenantID uuid.UUID, plantID string, startDate, endDate time.Time) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/fsq/ccp-drift-summary", tenantID, map[string]any{
		"tenant_id":  tenantID.String(),
		"plant_id":   plantID,
		"start_date": startDate.Format(time.RFC3339),
		"end_date":   endDate.Format(time.RFC3339),
	})
}

// RunMockRecall simulates a recall scenario for the given scope.
func (c *Client) RunMockRecall(ctx context.Context, tenantID uuid.UUID, scopeType, scopeID string) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/fsq/run-mock-recall", tenantID, map[string]any{
		"tenant_id":  tenantID.String(),
		"scope_type": scopeType,
		"scope_id":   scopeID,
	})
}

// AnswerComplianceQuestion answers compliance questions using retrieval.
func (c *Client) AnswerComplianceQuestion(ctx context.Context, tenantID uuid.UUID, question string, extra map[string]any) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/fsq/answer-compliance-question", tenantID, map[string]any{
		"tenant_id": tenantID.String(),
		"question":  question,
		"context":   extra,
	})
}

// Planning endpoints.

// GenerateForecast generates a demand forecast.
func (c *Client) GenerateForecast(ctx context.Context, tenantID uuid.UUID, horizonWeeks int, grouping string, skuIDs []string) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/planning/generate-forecast", tenantID, map[string]any{
		"tenant_id":     tenantID.String(),
		"horizon_weeks": horizonWeeks,
		"grouping":      grouping,
		"sku_ids":       skuIDs,
	})
}

// GenerateProductionPlan generates a production plan from a forecast.
func (c *Client) GenerateProductionPlan(ctx context.Context, tenantID uuid.UUID, forecastVersionID string, horizonWeeks int, plantIDs []string) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/planning/generate-production-plan", tenantID, map[string]any{
		"tenant_id":           tenantID.String(),
		"forecast_version_id": forecastVersionID,
		"horizon_weeks":       horizonWeeks,
		"plant_ids":           plantIDs,
	})
}

// RecommendSafetyStocks recommends safety stock levels.
func (c *Client) RecommendSafetyStocks(ctx context.Context, tenantID uuid.UUID, skuIDs, locationIDs []string, serviceLevel float64) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/planning/recommend-safety-stocks", tenantID, map[string]any{
		"tenant_id":     tenantID.String(),
		"sku_ids":       skuIDs,
		"location_ids":  locationIDs,
		"service_level": serviceLevel,
	})
}

// Brand endpoints.

// ComputeMarginBridge generates a margin bridge analysis between two
// periods.
func (c *Client) ComputeMarginBridge(ctx context.Context, tenantID uuid.UUID, brandID string, period1Start, period1End, period2Start, period2End time.Time) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/brand/compute-margin-bridge", tenantID, map[string]any{
		"tenant_id":     tenantID.String(),
		"brand_id":      brandID,
		"period1_start": period1Start.Format(time.RFC3339),
		"period1_end":   period1End.Format(time.RFC3339),
		"period2_start": period2Start.Format(time.RFC3339),
		"period2_end":   period2End.Format(time.RFC3339),
	})
}

// ComputeCopackerRisk evaluates a co-packer's risk profile.
func (c *Client) ComputeCopackerRisk(ctx context.Context, tenantID uuid.UUID, copackerID string) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/brand/compute-copacker-risk", tenantID, map[string]any{
		"tenant_id":   tenantID.String(),
		"copacker_id": copackerID,
	})
}

// Retail endpoints.

// ForecastRetailDemand generates a store-level demand forecast.
func (c *Client) ForecastRetailDemand(ctx context.Context, tenantID uuid.UUID, bannerID string, storeIDs, skuIDs []string, horizonWeeks int) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/retail/forecast-retail-demand", tenantID, map[string]any{
		"tenant_id":     tenantID.String(),
		"banner_id":     bannerID,
		"store_ids":     storeIDs,
		"sku_ids":       skuIDs,
		"horizon_weeks": horizonWeeks,
	})
}

// RecommendReplenishment generates replenishment recommendations.
func (c *Client) RecommendReplenishment(ctx context.Context, tenantID uuid.UUID, bannerID string, storeIDs, skuIDs []string) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/retail/recommend-replenishment", tenantID, map[string]any{
		"tenant_id": tenantID.String(),
		"banner_id": bannerID,
		"store_ids": storeIDs,
		"sku_ids":   skuIDs,
	})
}

// DetectOSAIssues detects on-shelf availability issues.
func (c *Client) DetectOSAIssues(ctx context.Context, tenantID uuid.UUID, categoryID, bannerID, minSeverity string) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/retail/detect-osa-issues", tenantID, map[string]any{
		"tenant_id":    tenantID.String(),
		"category_id":  categoryID,
		"banner_id":    bannerID,
		"min_severity": minSeverity,
	})
}

// EvaluatePromo evaluates a promotion's effectiveness.
func (c *Client) EvaluatePromo(ctx context.Context, tenantID uuid.UUID, promoID string) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/retail/evaluate-promo", tenantID, map[string]any{
		"tenant_id": tenantID.String(),
		"promo_id":  promoID,
	})
}
