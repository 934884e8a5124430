package backoffice

import (
	"net/http"
	"strings"

	"github.com/evetabi/predict/internal/api/middleware"
	"github.com/evetabi/predict/internal/backoffice/handler"
	"github.com/evetabi/predict/internal/config"
	"github.com/evetabi/predict/internal/service"
	"github.com/gin-gonic/gin"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	AuthSvc *service.AuthService
	Replica *Replica
	Events  handler.EventStore
	Archive handler.ArchiveStatus // nil when archiving is disabled
	Cfg     *config.Config
}

// SetupBackofficeRouter creates the admin Gin engine. Every route is
// read-only: the backoffice observes the ledger through its replica and has
// no way to mutate it.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "last_seq": deps.Replica.LastSeq()})
	})

	view := deps.Replica.Ledger()
	dashH := handler.NewDashboardHandler(view, deps.Events, deps.Replica, deps.Cfg)
	if deps.Archive != nil {
		dashH.SetArchive(deps.Archive)
	}
	marketH := handler.NewMarketAdminHandler(view, deps.Events)
	userH := handler.NewUserAdminHandler(view, deps.Events)
	riskH := handler.NewRiskHandler(view)
	financeH := handler.NewFinanceHandler(view)

	admin := r.Group("/admin")
	admin.Use(middleware.JWTMiddleware(deps.AuthSvc), middleware.AdminMiddleware())
	{
		admin.GET("/dashboard", dashH.Dashboard)

		// Markets
		m := admin.Group("/markets")
		{
			m.GET("", marketH.List)
			m.GET("/:id", marketH.Detail)
			m.GET("/:id/events", marketH.Events)
		}

		// Users (wallet addresses)
		u := admin.Group("/users")
		{
			u.GET("/:address", userH.Detail)
			u.GET("/:address/events", userH.Events)
		}

		// Risk
		risk := admin.Group("/risk")
		{
			risk.GET("/live", riskH.Live)
			risk.GET("/stale", riskH.Stale)
		}

		// Finance
		admin.GET("/finance/fees", financeH.Fees)
	}

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// allowedIPs is a comma-separated string; empty means allow all.
func ipWhitelistMiddleware(allowedIPs string) gin.HandlerFunc {
	if allowedIPs == "" {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	allowed := make(map[string]bool)
	for _, ip := range strings.Split(allowedIPs, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		if !allowed[c.ClientIP()] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "access denied: your IP is not whitelisted",
				"code":    "ERR_IP_BLOCKED",
			})
			return
		}
		c.Next()
	}
}
