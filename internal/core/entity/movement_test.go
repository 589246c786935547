package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMovementKind_Valid(t *testing.T) {
	for _, kind := range []MovementKind{
		KindIssue, KindReceive, KindTransfer, KindDisposal, KindRepack,
		KindReturn, KindShipment, KindShipmentCancel, KindReturnCancel,
		KindProductionInput, KindProductionResult,
	} {
		assert.True(t, kind.Valid(), kind)
	}

	assert.False(t, MovementKind("").Valid())
	assert.False(t, MovementKind("TELEPORT").Valid())
	assert.False(t, MovementKind("issue").Valid())
}

func TestMovementKind_ReversalOf(t *testing.T) {
	assert.Equal(t, KindShipment, KindShipmentCancel.ReversalOf())
	assert.Equal(t, KindReturn, KindReturnCancel.ReversalOf())

	// Disposal is irreversible; regular kinds reverse nothing.
	assert.Equal(t, MovementKind(""), KindDisposal.ReversalOf())
	assert.Equal(t, MovementKind(""), KindIssue.ReversalOf())
}

func TestMovementRecord_SignedQty(t *testing.T) {
	out := MovementRecord{Kind: KindIssue, Qty: 20}
	assert.Equal(t, int64(-20), out.SignedQty())

	in := MovementRecord{Kind: KindShipmentCancel, Qty: 20}
	assert.Equal(t, int64(20), in.SignedQty())

	both := MovementRecord{Kind: KindTransfer, Qty: 20}
	assert.Equal(t, int64(20), both.SignedQty())
}
