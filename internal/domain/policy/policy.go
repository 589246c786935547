// Package policy implements one movement strategy per movement kind.
//
// The duplicated per-screen SQL of the PDA handlers collapses here into a
// single dispatch keyed by kind: every strategy composes the three ledger
// primitives (conditional decrement, upsert increment, zero) plus log
// appends, and nothing else. Policies are stateless and shared; the
// orchestrator runs Apply inside one transaction.
package policy

import (
	"context"

	"boxledger/internal/core/apperror"
	"boxledger/internal/core/entity"
	"boxledger/internal/domain/catalog"
	"boxledger/internal/domain/ledger"
	"boxledger/internal/domain/movement"
	"boxledger/internal/domain/sequence"
)

// Env bundles the collaborators a policy operates through. Ledger and Log
// calls run inside the orchestrator's transaction; Sequence deliberately
// does not (gaps on rollback are acceptable, duplicates are not).
type Env struct {
	Ledger    ledger.Ledger
	Log       movement.Log
	Sequence  sequence.Generator
	Catalog   catalog.Lookup
	Namespace string
}

// NextKey allocates the next sequence key for the request's work date.
func (e Env) NextKey(ctx context.Context, req *movement.Request) (string, error) {
	ns := e.Namespace
	if ns == "" {
		ns = sequence.DefaultNamespace
	}
	return e.Sequence.Next(ctx, ns, req.WorkDate)
}

// Applied collects what one policy application wrote and touched.
type Applied struct {
	// Keys are the sequence keys of all appended records, in order.
	Keys []string

	// Touched are the ledger keys the policy mutated; the orchestrator
	// snapshots them after commit preparation.
	Touched []entity.StockKey
}

func (a *Applied) addKey(key string) {
	a.Keys = append(a.Keys, key)
}

func (a *Applied) touch(keys ...entity.StockKey) {
	for _, k := range keys {
		seen := false
		for _, t := range a.Touched {
			if t == k {
				seen = true
				break
			}
		}
		if !seen {
			a.Touched = append(a.Touched, k)
		}
	}
}

// Policy is one movement strategy. Validate performs kind-specific static
// checks and must not touch storage; Apply performs the ledger/log effects
// and is always executed inside a transaction.
type Policy interface {
	Kind() entity.MovementKind
	Validate(req *movement.Request) error
	Apply(ctx context.Context, env Env, req *movement.Request) (*Applied, error)
}

// Registry dispatches requests to policies by kind.
type Registry struct {
	policies map[entity.MovementKind]Policy
}

// NewRegistry builds the full policy table.
func NewRegistry() *Registry {
	r := &Registry{policies: make(map[entity.MovementKind]Policy)}
	for _, p := range []Policy{
		Issue{},
		Receive{},
		Transfer{},
		Disposal{},
		Repack{},
		Return{},
		ReturnCancel{},
		Shipment{},
		ShipmentCancel{},
		ProductionInput{},
		ProductionResult{},
	} {
		r.policies[p.Kind()] = p
	}
	return r
}

// Resolve returns the policy for a kind.
func (r *Registry) Resolve(kind entity.MovementKind) (Policy, error) {
	if p, ok := r.policies[kind]; ok {
		return p, nil
	}
	return nil, apperror.NewValidation("unknown movement kind").WithDetail("kind", string(kind))
}

// baseRecord fills the fields every record shares.
func baseRecord(key string, kind entity.MovementKind, req *movement.Request) entity.MovementRecord {
	return entity.MovementRecord{
		SequenceKey:  key,
		Kind:         kind,
		BusinessUnit: req.BusinessUnit,
		Actor:        req.Actor,
		WorkDate:     req.WorkDate,
	}
}

// requireLineFields rejects lines missing the ledger key components or a
// positive quantity. Kinds with special line shapes skip this.
func requireLineFields(req *movement.Request) error {
	for i, l := range req.Lines {
		if l.Warehouse == "" || l.BoxID == "" || l.ItemCode == "" {
			return apperror.NewValidation("warehouse, box and item are required").WithDetail("line", i)
		}
		if l.Qty <= 0 {
			return apperror.NewValidation("quantity must be positive").WithDetail("line", i)
		}
	}
	return nil
}
