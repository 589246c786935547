// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"boxledger/internal/domain/orchestrator"
	"boxledger/internal/infrastructure/http/v1/handlers"
	"boxledger/internal/infrastructure/http/v1/middleware"
	"boxledger/internal/infrastructure/storage/postgres"
	"boxledger/internal/infrastructure/storage/postgres/catalog_repo"
	"boxledger/internal/infrastructure/storage/postgres/ledger_repo"
	"boxledger/internal/infrastructure/storage/postgres/movement_repo"
	"boxledger/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the database connection pool (health checks).
	Pool *postgres.Pool

	// TxManager provides transactional access for repositories.
	TxManager *postgres.TxManager

	// Logger for request logging.
	Logger *logger.Logger

	// TokenValidator resolves the acting operator from bearer tokens.
	TokenValidator middleware.TokenValidator

	// Orchestrator executes movement requests.
	Orchestrator *orchestrator.Orchestrator

	// Version is reported by the info endpoint.
	Version string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool.Unwrap(), cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1 - every endpoint requires a known operator
	baseHandler := handlers.NewBaseHandler()

	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.Actor(cfg.TokenValidator))
	{
		// Movements: submission plus log queries
		logRepo := movement_repo.NewLogRepo(cfg.TxManager)
		movementHandler := handlers.NewMovementHandler(baseHandler, cfg.Orchestrator, logRepo)
		movementHandler.RegisterRoutes(apiV1.Group("/movements"))

		// Stock ledger queries
		stockRepo := ledger_repo.NewStockRepo(cfg.TxManager)
		stockHandler := handlers.NewStockHandler(baseHandler, stockRepo)
		stockHandler.RegisterRoutes(apiV1.Group("/stock"))

		// Warehouse master data for PDA dropdowns
		catalogRepo := catalog_repo.NewCatalogRepo(cfg.TxManager)
		apiV1.GET("/catalog/warehouses", func(c *gin.Context) {
			warehouses, err := catalogRepo.ListWarehouses(c.Request.Context())
			if err != nil {
				baseHandler.Error(c, err)
				return
			}
			baseHandler.OK(c, gin.H{"items": warehouses})
		})
	}

	return router
}
