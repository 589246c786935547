package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boxledger/internal/core/guard"
	"boxledger/internal/domain/orchestrator"
	"boxledger/internal/domain/policy"
	"boxledger/internal/infrastructure/config"
	v1 "boxledger/internal/infrastructure/http/v1"
	"boxledger/internal/infrastructure/http/v1/middleware"
	"boxledger/internal/infrastructure/storage/postgres"
	"boxledger/internal/infrastructure/storage/postgres/catalog_repo"
	"boxledger/internal/infrastructure/storage/postgres/ledger_repo"
	"boxledger/internal/infrastructure/storage/postgres/movement_repo"
	"boxledger/internal/infrastructure/storage/postgres/sequence_repo"
	"boxledger/pkg/logger"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	log.Infow("starting boxledger",
		"version", version,
		"env", cfg.App.Env,
		"port", cfg.App.Port,
	)

	ctx := context.Background()

	// Database
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN())
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	log.Infow("database connected", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)

	txManager := postgres.NewTxManager(pool)

	// Repositories
	stockRepo := ledger_repo.NewStockRepo(txManager)
	logRepo := movement_repo.NewLogRepo(txManager)
	catalogRepo := catalog_repo.NewCatalogRepo(txManager)
	// Sequence allocation runs on the pool, outside the business transaction,
	// so concurrent movements never serialize on the counter row.
	counterRepo := sequence_repo.NewCounterRepo(pool.Unwrap())

	idempotencyStore := postgres.NewIdempotencyStore(txManager, cfg.Engine.IdempotencyTTL)

	var auditor orchestrator.Auditor
	if cfg.Audit.Enabled {
		auditService, err := postgres.NewAuditService(txManager)
		if err != nil {
			return fmt.Errorf("init audit service: %w", err)
		}
		auditor = auditService
		log.Infow("audit trail enabled")
	}

	// Guard rules are optional; a nil guard accepts every line.
	var lineGuard *guard.Guard
	if len(cfg.Guard.Rules) > 0 {
		rules := make([]guard.Rule, len(cfg.Guard.Rules))
		for i, r := range cfg.Guard.Rules {
			rules[i] = guard.Rule{Name: r.Name, Expression: r.Expression}
		}
		lineGuard, err = guard.New(rules)
		if err != nil {
			return fmt.Errorf("compile guard rules: %w", err)
		}
		log.Infow("guard rules compiled", "count", len(rules))
	}

	orch := orchestrator.New(
		orchestrator.Config{
			Namespace:    cfg.Engine.SequenceNamespace,
			MaxAttempts:  cfg.Engine.MaxAttempts,
			RetryBackoff: cfg.Engine.RetryBackoff,
			ExecTimeout:  cfg.Engine.ExecTimeout,
		},
		orchestrator.Deps{
			Registry:    policy.NewRegistry(),
			Ledger:      stockRepo,
			Log:         logRepo,
			Sequence:    counterRepo,
			Catalog:     catalogRepo,
			TxManager:   txManager,
			Idempotency: idempotencyStore,
			Guard:       lineGuard,
			Auditor:     auditor,
		},
	)

	router := v1.NewRouter(v1.RouterConfig{
		Pool:           pool,
		TxManager:      txManager,
		Logger:         log,
		TokenValidator: middleware.NewHMACValidator(cfg.JWT.Secret),
		Orchestrator:   orch,
		Version:        version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		log.Infow("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Infow("server stopped")
	return nil
}
