package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/hypercore-one/bridge-monitor/internal/middleware"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db    *gorm.DB
	rdb   *redis.Client
	flags middleware.SyncFlagReader
}

// NewHealthHandler creates the handler.
func NewHealthHandler(db *gorm.DB, rdb *redis.Client, flags middleware.SyncFlagReader) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb, flags: flags}
}

// Live reports process liveness.
// GET /health
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready checks the dependencies and the sync gate.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{}
	healthy := true

	if sqlDB, err := h.db.DB(); err == nil && sqlDB.PingContext(ctx) == nil {
		checks["database"] = "ok"
	} else {
		checks["database"] = "unreachable"
		healthy = false
	}

	if err := h.rdb.Ping(ctx).Err(); err == nil {
		checks["redis"] = "ok"
	} else {
		checks["redis"] = "unreachable"
		healthy = false
	}

	if h.flags.IsSyncComplete(ctx) {
		checks["bridge_sync"] = "complete"
	} else {
		checks["bridge_sync"] = "in_progress"
		healthy = false
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"healthy": healthy, "checks": checks})
}

// Ping is the minimal connectivity check.
// GET /ping
func (h *HealthHandler) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}
