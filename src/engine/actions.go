package engine

import (
	"fmt"
)

// ActionLink is a presentation hint pointing the user at the UI view backing
// a tool result. It plays no part in state-machine correctness.
type ActionLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
	Icon  string `json:"icon,omitempty"`
}

// actionTemplate maps one tool to a UI link. When contextKey is set the URL
// contains a %s filled from the request context.
type actionTemplate struct {
	tool       string
	label      string
	url        string
	icon       string
	contextKey string
}

// actionTable is the static workspace -> tool -> link table. Order matters:
// links are emitted in table order for a stable UI.
var actionTable = map[string][]actionTemplate{
	"plantops": {
		{tool: "get_line_status", label: "View Line Details", url: "/plant-ops/lines/%s", icon: "line-chart", contextKey: "line_id"},
		{tool: "analyze_scrap", label: "View Scrap Log", url: "/plant-ops/scrap?line_id=%s", icon: "alert-triangle", contextKey: "line_id"},
		{tool: "get_money_leaks", label: "View Money Leaks Dashboard", url: "/plant-ops/money-leaks", icon: "dollar-sign"},
	},
	"fsq": {
		{tool: "trace_lot_backward", label: "View Lot Details", url: "/fsq/lots/%s", icon: "package", contextKey: "lot_id"},
		{tool: "trace_lot_forward", label: "View Lot Details", url: "/fsq/lots/%s", icon: "package", contextKey: "lot_id"},
		{tool: "compute_lot_risk", label: "View Risk Assessment", url: "/fsq/risk/%s", icon: "shield", contextKey: "lot_id"},
	},
	"planning": {
		{tool: "generate_forecast", label: "View Forecast", url: "/planning/forecasts", icon: "trending-up"},
		{tool: "generate_production_plan", label: "View Production Plan", url: "/planning/plans", icon: "calendar"},
	},
	"brand": {
		{tool: "compute_margin_bridge", label: "View Margin Analysis", url: "/brand/margin/%s", icon: "bar-chart", contextKey: "brand_id"},
		{tool: "evaluate_copacker", label: "View Co-packer Details", url: "/brand/copackers/%s", icon: "building", contextKey: "copacker_id"},
	},
	"retail": {
		{tool: "detect_osa_issues", label: "View OSA Dashboard", url: "/retail/osa", icon: "alert-circle"},
		{tool: "evaluate_promo", label: "View Promo Details", url: "/retail/promos/%s", icon: "tag", contextKey: "promo_id"},
	},
}

// ActionLinks derives UI action links from the tools invoked during a turn.
// Each matching table entry is emitted at most once, regardless of how many
// times its tool ran.
func ActionLinks(workspace string, toolsUsed []string, reqContext map[string]any) []ActionLink {
	templates := actionTable[workspace]
	if len(templates) == 0 || len(toolsUsed) == 0 {
		return nil
	}

	used := make(map[string]bool, len(toolsUsed))
	for _, tool := range toolsUsed {
		used[tool] = true
	}

	var out []ActionLink
	seen := make(map[string]bool)
	for _, t := range templates {
		if !used[t.tool] || seen[t.label+t.url] {
			continue
		}
		seen[t.label+t.url] = true

		url := t.url
		if t.contextKey != "" {
			value, _ := reqContext[t.contextKey].(string)
			url = fmt.Sprintf(t.url, value)
		}
		out = append(out, ActionLink{Label: t.label, URL: url, Icon: t.icon})
	}
	return out
}
