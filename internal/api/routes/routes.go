package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/justthetip/treasury_service/internal/api/handlers"
	"github.com/justthetip/treasury_service/internal/api/middleware"
	"github.com/justthetip/treasury_service/internal/infrastructure/config"
	"github.com/justthetip/treasury_service/pkg/logger"
)

// SetupRoutes wires middleware and all HTTP endpoints.
func SetupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	log *logger.Logger,
	core *handlers.CoreHandlers,
	withdrawals *handlers.WithdrawalHandlers,
	multisig *handlers.MultiSigHandlers,
	audit *handlers.AuditHandlers,
) {
	router.Use(middleware.RequestID())
	router.Use(middleware.ActorID())
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.Metrics())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(cfg.Server.RateLimitPerMin))

	router.GET("/health", core.Health)
	router.GET("/health/ready", core.Ready)
	router.GET("/health/live", core.Live)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		withdrawalRoutes := v1.Group("/withdrawals")
		{
			withdrawalRoutes.POST("", withdrawals.RequestWithdrawal)
			withdrawalRoutes.GET("/pending", withdrawals.ListPending)
			withdrawalRoutes.GET("/policy", withdrawals.PreviewPolicy)
			withdrawalRoutes.GET("/:id", withdrawals.GetWithdrawal)
			withdrawalRoutes.POST("/:id/approve", withdrawals.ApproveWithdrawal)
			withdrawalRoutes.POST("/:id/reject", withdrawals.RejectWithdrawal)
		}

		v1.GET("/users/:user_id/withdrawals", withdrawals.GetUserWithdrawals)

		multisigRoutes := v1.Group("/multisig")
		{
			multisigRoutes.POST("/wallets", multisig.CreateWallet)
			multisigRoutes.GET("/wallets/:address", multisig.GetWallet)
			multisigRoutes.POST("/proposals", multisig.CreateProposal)
			multisigRoutes.GET("/proposals", multisig.ListOpenProposals)
			multisigRoutes.GET("/proposals/:id", multisig.GetProposal)
			multisigRoutes.POST("/proposals/:id/approve", multisig.ApproveProposal)
		}

		v1.GET("/audit/:subject_id", audit.GetTrail)
	}
}
