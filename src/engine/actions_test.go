package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionLinksTableOrder(t *testing.T) {
	// Tools ran out of table order; links still come back in table order.
	links := ActionLinks("plantops",
		[]string{"get_money_leaks", "get_line_status"},
		map[string]any{"line_id": "L7"})

	require.Len(t, links, 2)
	assert.Equal(t, "View Line Details", links[0].Label)
	assert.Equal(t, "/plant-ops/lines/L7", links[0].URL)
	assert.Equal(t, "line-chart", links[0].Icon)
	assert.Equal(t, "View Money Leaks Dashboard", links[1].Label)
	assert.Equal(t, "/plant-ops/money-leaks", links[1].URL)
}

func TestActionLinksDeduplicated(t *testing.T) {
	// Both trace directions map to the same lot view.
	links := ActionLinks("fsq",
		[]string{"trace_lot_backward", "trace_lot_forward"},
		map[string]any{"lot_id": "LOT-42"})

	require.Len(t, links, 1)
	assert.Equal(t, "View Lot Details", links[0].Label)
	assert.Equal(t, "/fsq/lots/LOT-42", links[0].URL)
}

func TestActionLinksMissingContextValue(t *testing.T) {
	links := ActionLinks("fsq", []string{"compute_lot_risk"}, nil)

	require.Len(t, links, 1)
	assert.Equal(t, "/fsq/risk/", links[0].URL)
}

func TestActionLinksNoMatches(t *testing.T) {
	assert.Nil(t, ActionLinks("plantops", nil, nil))
	assert.Nil(t, ActionLinks("plantops", []string{"get_batch_details"}, nil))
	assert.Nil(t, ActionLinks("warehouse", []string{"get_line_status"}, nil))
}

func TestActionLinksRepeatedTool(t *testing.T) {
	links := ActionLinks("retail",
		[]string{"evaluate_promo", "evaluate_promo", "detect_osa_issues"},
		map[string]any{"promo_id": "P9"})

	require.Len(t, links, 2)
	assert.Equal(t, "View OSA Dashboard", links[0].Label)
	assert.Equal(t, "/retail/promos/P9", links[1].URL)
}
