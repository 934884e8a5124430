package api

import (
	"net/http"

	"github.com/evetabi/predict/internal/api/handler"
	"github.com/evetabi/predict/internal/api/middleware"
	"github.com/evetabi/predict/internal/config"
	"github.com/evetabi/predict/internal/contract"
	"github.com/evetabi/predict/internal/service"
	"github.com/evetabi/predict/internal/ws"
	"github.com/gin-gonic/gin"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	AuthSvc   *service.AuthService
	MarketSvc *service.MarketService
	Executor  *contract.Executor
	Hub       *ws.Hub
	Cfg       *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	userH := handler.NewUserHandler(deps.AuthSvc, deps.MarketSvc)
	marketH := handler.NewMarketHandler(deps.MarketSvc)
	betH := handler.NewBetHandler(deps.MarketSvc)
	rpcH := handler.NewRPCHandler(deps.Executor)

	// ── JWT middleware (shared) ───────────────────────────────────────────────
	jwtMW := middleware.JWTMiddleware(deps.AuthSvc)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	rps := deps.Cfg.Server.RateLimitRPS
	if rps <= 0 {
		rps = 20
	}
	authRL := middleware.RateLimitMiddleware(10) // 10 req/s per IP for login
	readRL := middleware.RateLimitMiddleware(rps)
	writeRL := middleware.RateLimitMiddleware(rps) // keyed by address: runs after jwtMW

	api := r.Group("/api")
	{
		// ── Auth (public, strict rate limit) ─────────────────────────────────
		auth := api.Group("/auth")
		auth.Use(authRL)
		{
			auth.POST("/nonce", userH.Nonce)
			auth.POST("/login", userH.Login)
		}

		// ── Public reads ─────────────────────────────────────────────────────
		public := api.Group("")
		public.Use(readRL)
		{
			markets := public.Group("/markets")
			{
				markets.GET("", marketH.ListMarkets)
				markets.GET("/next-id", marketH.NextID)
				markets.GET("/:id", marketH.GetByID)
				markets.GET("/:id/meta", marketH.GetMeta)
				markets.GET("/:id/pools", marketH.GetPools)
				markets.GET("/:id/odds", marketH.GetOdds)
				markets.GET("/:id/payout", marketH.GetPayout)
				markets.GET("/:id/positions/:address", marketH.GetPosition)
				markets.GET("/:id/history", marketH.GetHistory)
			}

			users := public.Group("/users/:address")
			{
				users.GET("/markets", userH.Markets)
				users.GET("/created", userH.Created)
				users.GET("/activity", userH.Activity)
			}

			public.POST("/rpc/call", rpcH.Call)
		}

		// ── Authenticated routes ──────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(jwtMW, writeRL)
		{
			authed.GET("/me", userH.Me)

			authed.POST("/markets", marketH.CreateMarket)
			authed.POST("/markets/:id/bets", betH.PlaceBet)
			authed.POST("/markets/:id/resolve", betH.Resolve)
			authed.POST("/markets/:id/claim", betH.Claim)

			authed.POST("/rpc/send", rpcH.Send)
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// Outside production all origins are allowed; in production only
// Server.AllowedOrigins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
