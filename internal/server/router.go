package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"agentrelay/internal/auth"
	"agentrelay/internal/config"
	"agentrelay/internal/handler"
	"agentrelay/internal/middleware"
	"agentrelay/internal/router"
	"agentrelay/internal/store"
)

// Deps bundles everything NewRouter needs to wire the full HTTP/WS surface.
type Deps struct {
	Store       *store.Store
	Router      *router.Router
	Cfg         config.Config
	TokenConfig auth.TokenConfig
	Log         *slog.Logger
}

// NewRouter assembles the gin engine: structured request logging,
// panic recovery, and every route spec.md §4 names.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(deps.Log))

	hdeps := handler.Deps{
		Store:       deps.Store,
		Router:      deps.Router,
		Cfg:         deps.Cfg,
		TokenConfig: deps.TokenConfig,
		Log:         deps.Log,
	}

	healthHandler := handler.NewHealthHandler()
	r.GET("/health", healthHandler.Health)

	pairingHandler := handler.NewPairingHandler(hdeps)
	pairingRate := middleware.RateLimit(deps.Store, deps.Cfg.PairingRatePerHour, 3600, middleware.PairingRateKey)
	r.POST("/api/pair/start", pairingRate, pairingHandler.Start)
	r.POST("/api/pair/complete", pairingRate, middleware.OptionalAccountSession(deps.Store), pairingHandler.Complete)

	tokenHandler := handler.NewTokenHandler(hdeps)
	r.POST("/api/token/refresh", tokenHandler.Refresh)

	agentsHandler := handler.NewAgentsHandler(hdeps)
	authorized := r.Group("/api")
	authorized.Use(middleware.RequireAccessToken(deps.TokenConfig))
	authorized.GET("/agents", agentsHandler.List)
	authorized.POST("/agents/:id/revoke-device", agentsHandler.RevokeDevice)
	authorized.DELETE("/agents/:id/devices/:device_id", agentsHandler.RevokeDevice)

	billingHandler := handler.NewBillingHandler(hdeps)
	billing := r.Group("/api/billing")
	billing.POST("/auth/google", billingHandler.AuthGoogle)
	billing.POST("/auth/chrome-profile", billingHandler.AuthChromeProfile)
	billing.GET("/plans", billingHandler.Plans)
	billing.POST("/webhook/stripe", billingHandler.WebhookStripe)

	billingAuthed := billing.Group("")
	billingAuthed.Use(middleware.RequireAccountSession(deps.Store))
	billingAuthed.GET("/me", billingHandler.Me)
	billingAuthed.POST("/sync-agents", billingHandler.SyncAgents)
	billingAuthed.POST("/checkout", billingHandler.Checkout)
	billingAuthed.POST("/portal", billingHandler.Portal)

	agentWS := handler.NewAgentWSHandler(hdeps)
	r.GET("/ws/agent", agentWS.Serve)

	clientWS := handler.NewClientWSHandler(hdeps)
	r.GET("/ws/client", middleware.RequireAccessToken(deps.TokenConfig), clientWS.Serve)

	return r
}

// requestLogger mirrors gin.Logger's slot in the middleware chain but emits
// structured records through the relay's slog logger instead of gin's
// default writer.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
