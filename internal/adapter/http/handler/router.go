package handler

import (
	"student-wallet-service/internal/adapter/gateway"
	"student-wallet-service/internal/adapter/http/middleware"
	redisStore "student-wallet-service/internal/adapter/storage/redis"
	"student-wallet-service/internal/core/ports"
	"student-wallet-service/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc         ports.LedgerService
	ReconciliationSvc ports.ReconciliationService
	FeeProjectionSvc  ports.FeeProjectionService
	GatewayClient     ports.GatewayClient
	Verifier          *gateway.SignatureVerifier
	RateLimitStore    *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers    []ports.HealthChecker
	ServiceAuthSecret string
	ServiceAuthIssuer string
	Logger            zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	r.Use(middleware.Metrics())

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Prometheus scrape endpoint
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Gateway intake (authenticated by HMAC signature, not tokens) ---
	paymentHandler := NewPaymentHandler(deps.LedgerSvc, deps.GatewayClient, deps.Verifier, deps.Logger)
	gatewayRoutes := v1.Group("/payments")
	{
		gatewayRoutes.POST("/webhook", rl("gateway"), paymentHandler.HandleWebhook)
		gatewayRoutes.GET("/callback", rl("gateway"), paymentHandler.HandleCallback)
	}

	// --- Service-token-authenticated routes (internal services) ---
	serviceAuth := middleware.ServiceAuth(deps.ServiceAuthSecret, deps.ServiceAuthIssuer, deps.Logger)
	walletHandler := NewWalletHandler(deps.LedgerSvc, deps.Logger)
	jobHandler := NewJobHandler(deps.ReconciliationSvc, deps.FeeProjectionSvc, deps.Logger)

	payments := v1.Group("/payments", serviceAuth)
	{
		payments.POST("/initialize", rl("payments"), paymentHandler.InitializeDeposit)
	}

	wallets := v1.Group("/wallets", serviceAuth)
	{
		wallets.GET("/:studentId", rl("wallets"), walletHandler.GetWallet)
		wallets.GET("/:studentId/transactions", rl("wallets"), walletHandler.ListTransactions)
		wallets.POST("/:studentId/charges", rl("payments"), walletHandler.ChargeFee)
	}

	jobs := v1.Group("/jobs", serviceAuth)
	{
		jobs.POST("/reconcile", rl("jobs"), jobHandler.Reconcile)
		jobs.POST("/fee-sync", rl("jobs"), jobHandler.FeeSync)
	}

	return r
}
