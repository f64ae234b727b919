package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/hypercore-one/bridge-monitor/internal/config"
	"github.com/hypercore-one/bridge-monitor/internal/handlers"
	"github.com/hypercore-one/bridge-monitor/internal/middleware"
	"github.com/hypercore-one/bridge-monitor/internal/services"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth         *handlers.AuthHandler
	User         *handlers.UserHandler
	Bridge       *handlers.BridgeHandler
	Orchestrator *handlers.OrchestratorHandler
	Statistics   *handlers.StatisticsHandler
	WebSocket    *handlers.WebSocketHandler
	Health       *handlers.HealthHandler
}

// Setup builds the gin engine with all middleware and routes.
func Setup(
	cfg *config.Config,
	h Handlers,
	authService *services.AuthService,
	limiter *middleware.RateLimiter,
	syncFlags middleware.SyncFlagReader,
	logger *logrus.Logger,
) *gin.Engine {
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestLogger(logger),
		middleware.Metrics(),
		middleware.CORS(&cfg.CORS),
	)

	// Unauthenticated surface.
	engine.GET("/ping", h.Health.Ping)
	engine.GET("/health", h.Health.Live)
	engine.GET("/health/ready", h.Health.Ready)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/ws/status", h.WebSocket.Stream)

	v1 := engine.Group("/api/v1")

	v1.POST("/auth/login", limiter.ForLogin(), h.Auth.Login)

	authed := v1.Group("")
	authed.Use(middleware.RequireAuth(authService, logger), limiter.PerUser())

	authGroup := authed.Group("/auth")
	{
		authGroup.GET("/me", h.Auth.Me)
		authGroup.POST("/tokens", h.Auth.CreateToken)
		authGroup.GET("/tokens", h.Auth.ListTokens)
		authGroup.DELETE("/tokens/:id", h.Auth.RevokeToken)
	}

	bridge := authed.Group("/bridge")
	{
		// Sync status must stay reachable while the mirror fills.
		bridge.GET("/sync-status", h.Bridge.SyncStatus)

		gated := bridge.Group("", middleware.RequireSyncComplete(syncFlags))
		gated.GET("/wraps", h.Bridge.ListWraps)
		gated.GET("/unwraps", h.Bridge.ListUnwraps)
	}

	orchestrators := authed.Group("/orchestrators")
	{
		orchestrators.GET("", h.Orchestrator.List)
		orchestrators.GET("/status", h.Orchestrator.Status)
		orchestrators.GET("/status/summary", h.Orchestrator.Summary)
		orchestrators.GET("/:id", h.Orchestrator.Get)
		orchestrators.GET("/:id/history", h.Orchestrator.History)
		orchestrators.PATCH("/:id", middleware.RequireAdmin(), h.Orchestrator.SetActive)
	}

	statistics := authed.Group("/statistics")
	{
		// Uptime reads orchestrator snapshots only, so it does not wait
		// for the bridge mirror to catch up.
		statistics.GET("/uptime", h.Statistics.Uptime)

		mirrored := statistics.Group("", middleware.RequireSyncComplete(syncFlags))
		mirrored.GET("/bridge", h.Statistics.Bridge)
		mirrored.GET("/networks", h.Statistics.Networks)
		mirrored.GET("/health", h.Statistics.Health)
	}

	users := authed.Group("/users", middleware.RequireAdmin())
	{
		users.POST("", h.User.Create)
		users.GET("", h.User.List)
		users.GET("/:id", h.User.Get)
		users.PATCH("/:id", h.User.Update)
		users.DELETE("/:id", h.User.Delete)
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "not_found",
			"message": "Route not found",
			"code":    "NOT_FOUND",
		})
	})

	return engine
}
