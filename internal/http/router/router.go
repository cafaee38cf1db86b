package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-engine/internal/config"
	"github.com/ignatzorin/escrow-engine/internal/http/handlers"
	"github.com/ignatzorin/escrow-engine/internal/http/middleware"
	"github.com/ignatzorin/escrow-engine/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	escrowHandler *handlers.EscrowHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(tokenManager))

	// Денежные операции ограничены по частоте.
	moneyRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)

	escrows := api.Group("/escrows")
	{
		escrows.POST("", escrowHandler.CreateEscrow)
		escrows.GET("", escrowHandler.ListMyEscrows)
		escrows.GET("/reference/:reference", escrowHandler.GetEscrowByReference)

		escrows.GET("/:id", middleware.UUIDValidator("id"), escrowHandler.GetEscrow)
		escrows.GET("/:id/payments", middleware.UUIDValidator("id"), escrowHandler.GetEscrowPayments)

		escrows.POST("/:id/fund", middleware.UUIDValidator("id"), moneyRateLimit, escrowHandler.FundEscrow)
		escrows.POST("/:id/start", middleware.UUIDValidator("id"), escrowHandler.StartWork)
		escrows.POST("/:id/submit", middleware.UUIDValidator("id"), escrowHandler.SubmitForReview)
		escrows.POST("/:id/review/client", middleware.UUIDValidator("id"), moneyRateLimit, escrowHandler.ClientReview)
		escrows.POST("/:id/review/freelancer", middleware.UUIDValidator("id"), moneyRateLimit, escrowHandler.FreelancerReview)
		escrows.POST("/:id/dispute", middleware.UUIDValidator("id"), moneyRateLimit, escrowHandler.Dispute)
		escrows.POST("/:id/cancel", middleware.UUIDValidator("id"), escrowHandler.Cancel)

		escrows.POST("/:id/milestones", middleware.UUIDValidator("id"), escrowHandler.AddMilestone)
		escrows.POST("/:id/milestones/:milestoneId/complete", middleware.UUIDValidator("id"), middleware.UUIDValidator("milestoneId"), escrowHandler.CompleteMilestone)
		escrows.POST("/:id/milestones/:milestoneId/approve", middleware.UUIDValidator("id"), middleware.UUIDValidator("milestoneId"), escrowHandler.ApproveMilestone)
	}

	api.GET("/jobs/:jobId/escrow", middleware.UUIDValidator("jobId"), escrowHandler.GetEscrowByJob)

	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	{
		admin.GET("/escrows/stats", escrowHandler.GetStats)
		admin.POST("/escrows/:id/dispute/resolve", middleware.UUIDValidator("id"), escrowHandler.ResolveDispute)
	}

	return r
}
