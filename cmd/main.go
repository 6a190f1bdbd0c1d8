package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/justthetip/treasury_service/internal/adapters/solana"
	"github.com/justthetip/treasury_service/internal/api/handlers"
	"github.com/justthetip/treasury_service/internal/api/routes"
	"github.com/justthetip/treasury_service/internal/domain/services"
	"github.com/justthetip/treasury_service/internal/infrastructure/cache"
	"github.com/justthetip/treasury_service/internal/infrastructure/config"
	"github.com/justthetip/treasury_service/internal/infrastructure/database"
	"github.com/justthetip/treasury_service/internal/infrastructure/repositories"
	"github.com/justthetip/treasury_service/internal/workers/expiry_sweeper"
	"github.com/justthetip/treasury_service/pkg/graceful"
	"github.com/justthetip/treasury_service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.LogLevel, cfg.Environment)
	defer appLogger.Sync()

	appLogger.Info("Starting treasury service", "environment", cfg.Environment)

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}

	if err := database.RunMigrations(db); err != nil {
		appLogger.Fatal("Failed to run migrations", "error", err)
	}
	appLogger.Info("Database migrations applied")

	redisClient, err := cache.NewRedisClient(&cfg.Redis, appLogger.Zap())
	if err != nil {
		appLogger.Warn("Redis unavailable, wallet lookups will skip the cache", "error", err)
		redisClient = nil
	}

	executor, err := solana.NewExecutor(&cfg.Solana, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize Solana executor", "error", err)
	}
	appLogger.Info("Solana executor ready", "treasury_address", executor.TreasuryAddress())

	withdrawalRepo := repositories.NewWithdrawalRepository(db)
	multisigRepo := repositories.NewMultiSigRepository(db)
	proposalRepo := repositories.NewProposalRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	policy := services.NewApprovalPolicy(cfg.Treasury.AutoApproveThresholds, cfg.Treasury.MultiSigThreshold)
	authority := services.NewStaticAdminAuthority(cfg.Treasury.Admins)

	withdrawalService := services.NewWithdrawalService(
		withdrawalRepo, executor, policy, authority, auditRepo,
		cfg.Treasury.WithdrawalTTL, appLogger,
	)
	multisigService := services.NewMultiSigService(
		multisigRepo, proposalRepo, executor, auditRepo, redisClient,
		cfg.Treasury.ProposalTTL, cfg.Treasury.WalletCacheTTL, appLogger,
	)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	routes.SetupRoutes(
		router,
		cfg,
		appLogger,
		handlers.NewCoreHandlers(db, redisClient, appLogger),
		handlers.NewWithdrawalHandlers(withdrawalService, appLogger),
		handlers.NewMultiSigHandlers(multisigService, appLogger),
		handlers.NewAuditHandlers(auditRepo, appLogger),
	)

	sweeper := expiry_sweeper.NewWorker(
		cfg.Treasury.SweepSchedule, withdrawalService, multisigService, appLogger,
	)
	if err := sweeper.Start(); err != nil {
		appLogger.Fatal("Failed to start expiry sweeper", "error", err)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		appLogger.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("HTTP server failed", "error", err)
		}
	}()

	shutdown := graceful.NewShutdownManager(server, db.DB, appLogger)
	shutdown.Register(sweeper)
	shutdown.WaitForShutdown()
}
