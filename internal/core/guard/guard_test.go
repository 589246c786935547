package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boxledger/internal/core/apperror"
)

func TestNew_CompileError(t *testing.T) {
	_, err := New([]Rule{{Name: "broken", Expression: "qty <=="}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestNew_NonBoolExpression(t *testing.T) {
	_, err := New([]Rule{{Name: "arithmetic", Expression: "qty + 1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must evaluate to bool")
}

func TestCheckLine_RejectNamesRule(t *testing.T) {
	g, err := New([]Rule{
		{Name: "qty_ceiling", Expression: "qty <= 100"},
	})
	require.NoError(t, err)

	err = g.CheckLine(LineInput{Kind: "ISSUE", BoxID: "BOX-1", Qty: 250})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "qty_ceiling", appErr.Details["rule"])
	assert.Equal(t, "BOX-1", appErr.Details["box_id"])
}

func TestCheckLine_AllRulesPass(t *testing.T) {
	g, err := New([]Rule{
		{Name: "qty_ceiling", Expression: "qty <= 100"},
		{Name: "no_defect_into_fg", Expression: "!(defect && destWarehouse == 'WH-FG')"},
		{Name: "box_prefix", Expression: "boxId.startsWith('BOX-')"},
	})
	require.NoError(t, err)

	err = g.CheckLine(LineInput{
		Kind:          "TRANSFER",
		Warehouse:     "WH-A",
		DestWarehouse: "WH-B",
		BoxID:         "BOX-7",
		ItemCode:      "ITEM-1",
		Qty:           42,
	})
	assert.NoError(t, err)

	err = g.CheckLine(LineInput{
		Kind:          "TRANSFER",
		DestWarehouse: "WH-FG",
		BoxID:         "BOX-7",
		Qty:           1,
		Defect:        true,
	})
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "no_defect_into_fg", appErr.Details["rule"])
}

func TestCheckLine_NilGuardAcceptsEverything(t *testing.T) {
	var g *Guard
	assert.NoError(t, g.CheckLine(LineInput{Qty: 1 << 40}))
}
