package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/hypercore-one/bridge-monitor/internal/services"
)

// StatisticsHandler serves aggregate views.
type StatisticsHandler struct {
	statsService *services.StatisticsService
	logger       *logrus.Logger
}

// NewStatisticsHandler creates the handler.
func NewStatisticsHandler(statsService *services.StatisticsService, logger *logrus.Logger) *StatisticsHandler {
	return &StatisticsHandler{statsService: statsService, logger: logger}
}

func windowFromQuery(c *gin.Context, fallbackHours int) time.Duration {
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", strconv.Itoa(fallbackHours)))
	if hours <= 0 || hours > 24*365 {
		hours = fallbackHours
	}
	return time.Duration(hours) * time.Hour
}

// Bridge returns mirror-wide totals.
// GET /api/v1/statistics/bridge
func (h *StatisticsHandler) Bridge(c *gin.Context) {
	stats, err := h.statsService.BridgeStats(c.Request.Context())
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

// Networks returns per-chain totals.
// GET /api/v1/statistics/networks
func (h *StatisticsHandler) Networks(c *gin.Context) {
	stats, err := h.statsService.NetworkStats(c.Request.Context())
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

// Uptime returns per-node uptime over a window.
// GET /api/v1/statistics/uptime?hours=24
func (h *StatisticsHandler) Uptime(c *gin.Context) {
	uptimes, err := h.statsService.Uptime(c.Request.Context(), windowFromQuery(c, 24))
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": uptimes})
}

// Health returns the bucketed fleet and activity timeline.
// GET /api/v1/statistics/health?hours=24
func (h *StatisticsHandler) Health(c *gin.Context) {
	timeline, err := h.statsService.HealthOverTime(c.Request.Context(), windowFromQuery(c, 24))
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": timeline})
}
