// Package orchestrator drives a movement request through its full lifecycle:
// static validation, idempotency acquisition, policy execution inside one
// transaction, and a bounded retry loop for transient storage failures.
//
// The invariant the retry loop protects: business effects either commit fully
// or not at all, and a retried attempt starts from the same clean state the
// first one did. Only transient connectivity failures are retried; a business
// rejection is terminal on the first attempt.
package orchestrator

import (
	"context"
	"time"

	"boxledger/internal/core/apperror"
	"boxledger/internal/core/guard"
	"boxledger/internal/core/tx"
	"boxledger/internal/domain/catalog"
	"boxledger/internal/domain/ledger"
	"boxledger/internal/domain/movement"
	"boxledger/internal/domain/policy"
	"boxledger/internal/domain/sequence"
	"boxledger/pkg/logger"
)

// IdempotencyStore deduplicates movement submissions by caller-supplied key.
type IdempotencyStore interface {
	// Acquire claims the key for this request. It returns the stored result
	// when the same request already completed (a replay), nil when the key
	// was newly claimed, and IdempotencyConflict/IdempotencyMismatch errors
	// for an in-flight duplicate or a key reused with a different payload.
	Acquire(ctx context.Context, key, requestHash string) (*movement.Result, error)

	// Complete stores the committed result under the key.
	Complete(ctx context.Context, key string, result *movement.Result) error

	// Fail releases the key so the caller may retry after fixing the request.
	Fail(ctx context.Context, key string) error
}

// Auditor records committed movements out-of-band. Audit failures never fail
// the movement.
type Auditor interface {
	Record(ctx context.Context, req *movement.Request, result *movement.Result) error
}

// Config tunes the orchestrator's retry and timeout behavior.
type Config struct {
	// Namespace is the sequence counter namespace; empty uses the shared
	// movement namespace.
	Namespace string

	// MaxAttempts bounds transaction attempts for transient storage
	// failures. Defaults to 3.
	MaxAttempts int

	// RetryBackoff is the fixed pause between attempts. Defaults to 3s.
	RetryBackoff time.Duration

	// ExecTimeout bounds a single transaction attempt. Defaults to 30s.
	ExecTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 3 * time.Second
	}
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = 30 * time.Second
	}
	return c
}

// Deps are the orchestrator's collaborators. Idempotency, Guard and Auditor
// are optional; the rest are required.
type Deps struct {
	Registry    *policy.Registry
	Ledger      ledger.Ledger
	Log         movement.Log
	Sequence    sequence.Generator
	Catalog     catalog.Lookup
	TxManager   tx.Manager
	Idempotency IdempotencyStore
	Guard       *guard.Guard
	Auditor     Auditor
}

// Orchestrator is the single entry point for movement execution.
type Orchestrator struct {
	cfg  Config
	deps Deps
}

// New creates an orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	return &Orchestrator{cfg: cfg.withDefaults(), deps: deps}
}

// Submit validates and executes one movement request.
//
// The pipeline short-circuits in order: validation failures never touch
// storage, idempotent replays never re-execute, and business rejections never
// retry. A transient storage failure retries up to MaxAttempts with a fixed
// backoff; exhaustion surfaces as StorageUnavailable.
func (o *Orchestrator) Submit(ctx context.Context, req *movement.Request) (*movement.Result, error) {
	pol, err := o.deps.Registry.Resolve(req.Kind)
	if err != nil {
		return nil, err
	}
	if err := o.validate(ctx, pol, req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" && o.deps.Idempotency != nil {
		prev, err := o.deps.Idempotency.Acquire(ctx, req.IdempotencyKey, requestHash(req))
		if err != nil {
			return nil, err
		}
		if prev != nil {
			prev.Replayed = true
			logger.Info(ctx, "movement replayed from idempotency store",
				"kind", string(req.Kind),
				"idempotency_key", req.IdempotencyKey,
			)
			return prev, nil
		}
	}

	result, err := o.run(ctx, pol, req)
	if err != nil {
		o.release(ctx, req)
		return nil, err
	}

	o.finish(ctx, req, result)
	return result, nil
}

// run is the bounded retry loop around one transactional attempt.
func (o *Orchestrator) run(ctx context.Context, pol policy.Policy, req *movement.Request) (*movement.Result, error) {
	env := policy.Env{
		Ledger:    o.deps.Ledger,
		Log:       o.deps.Log,
		Sequence:  o.deps.Sequence,
		Catalog:   o.deps.Catalog,
		Namespace: o.cfg.Namespace,
	}

	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		result, err := o.execute(ctx, pol, env, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !apperror.IsRetryable(err) {
			return nil, err
		}

		logger.Warn(ctx, "movement attempt failed on transient storage error",
			"kind", string(req.Kind),
			"attempt", attempt,
			"max_attempts", o.cfg.MaxAttempts,
			"error", err,
		)
		if attempt == o.cfg.MaxAttempts {
			break
		}
		select {
		case <-time.After(o.cfg.RetryBackoff):
		case <-ctx.Done():
			return nil, apperror.NewStorageUnavailable(ctx.Err())
		}
	}
	return nil, apperror.NewStorageUnavailable(lastErr)
}

// execute runs the policy inside one transaction and snapshots every touched
// ledger row before commit, so the response reflects exactly the state the
// batch produced.
func (o *Orchestrator) execute(ctx context.Context, pol policy.Policy, env policy.Env, req *movement.Request) (*movement.Result, error) {
	execCtx, cancel := context.WithTimeout(ctx, o.cfg.ExecTimeout)
	defer cancel()

	result := &movement.Result{}
	err := o.deps.TxManager.RunInTransaction(execCtx, func(txCtx context.Context) error {
		applied, err := pol.Apply(txCtx, env, req)
		if err != nil {
			return err
		}
		result.CommittedKeys = applied.Keys

		for _, key := range applied.Touched {
			rec, err := o.deps.Ledger.Get(txCtx, key)
			if err != nil {
				return err
			}
			result.Affected = append(result.Affected, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// finish stores the idempotency result and records the audit entry. Both are
// best effort: the movement is already committed.
func (o *Orchestrator) finish(ctx context.Context, req *movement.Request, result *movement.Result) {
	if req.IdempotencyKey != "" && o.deps.Idempotency != nil {
		if err := o.deps.Idempotency.Complete(ctx, req.IdempotencyKey, result); err != nil {
			logger.Error(ctx, "failed to store idempotency result",
				"idempotency_key", req.IdempotencyKey,
				"error", err,
			)
		}
	}
	if o.deps.Auditor != nil {
		if err := o.deps.Auditor.Record(ctx, req, result); err != nil {
			logger.Error(ctx, "failed to record audit entry",
				"kind", string(req.Kind),
				"error", err,
			)
		}
	}
	logger.Info(ctx, "movement committed",
		"kind", string(req.Kind),
		"business_unit", req.BusinessUnit,
		"work_date", req.WorkDate,
		"records", len(result.CommittedKeys),
	)
}

// release frees the idempotency key after a failed execution so the operator
// can resubmit once the cause is fixed.
func (o *Orchestrator) release(ctx context.Context, req *movement.Request) {
	if req.IdempotencyKey == "" || o.deps.Idempotency == nil {
		return
	}
	if err := o.deps.Idempotency.Fail(ctx, req.IdempotencyKey); err != nil {
		logger.Error(ctx, "failed to release idempotency key",
			"idempotency_key", req.IdempotencyKey,
			"error", err,
		)
	}
}
