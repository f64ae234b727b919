package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/hypercore-one/bridge-monitor/internal/services"
)

// OrchestratorHandler serves fleet status and history.
type OrchestratorHandler struct {
	orchService *services.OrchestratorService
	logger      *logrus.Logger
}

// NewOrchestratorHandler creates the handler.
func NewOrchestratorHandler(orchService *services.OrchestratorService, logger *logrus.Logger) *OrchestratorHandler {
	return &OrchestratorHandler{orchService: orchService, logger: logger}
}

// List returns the configured fleet.
// GET /api/v1/orchestrators
func (h *OrchestratorHandler) List(c *gin.Context) {
	activeOnly := c.DefaultQuery("active", "true") == "true"
	nodes, err := h.orchService.ListNodes(c.Request.Context(), activeOnly)
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": nodes})
}

// Status returns the latest observation per node.
// GET /api/v1/orchestrators/status
func (h *OrchestratorHandler) Status(c *gin.Context) {
	views, err := h.orchService.Status(c.Request.Context())
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": views})
}

// Summary returns the aggregated fleet view.
// GET /api/v1/orchestrators/status/summary
func (h *OrchestratorHandler) Summary(c *gin.Context) {
	summary, err := h.orchService.Summary(c.Request.Context())
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}

func (h *OrchestratorHandler) nodeID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		badRequest(c, "Invalid node id")
		return 0, false
	}
	return uint(id), true
}

// Get returns one node.
// GET /api/v1/orchestrators/:id
func (h *OrchestratorHandler) Get(c *gin.Context) {
	id, ok := h.nodeID(c)
	if !ok {
		return
	}

	node, err := h.orchService.GetNode(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound(c, "Node not found")
			return
		}
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": node})
}

// SetActive enables or disables polling for one node.
// PATCH /api/v1/orchestrators/:id (admin)
func (h *OrchestratorHandler) SetActive(c *gin.Context) {
	id, ok := h.nodeID(c)
	if !ok {
		return
	}

	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "is_active is required")
		return
	}

	if err := h.orchService.SetNodeActive(c.Request.Context(), id, *req.IsActive); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound(c, "Node not found")
			return
		}
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"id": id, "is_active": *req.IsActive}})
}

// History returns a page of a node's snapshots within a window.
// GET /api/v1/orchestrators/:id/history?hours=24&limit=50&offset=0
func (h *OrchestratorHandler) History(c *gin.Context) {
	id, ok := h.nodeID(c)
	if !ok {
		return
	}

	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if hours <= 0 || hours > 24*30 {
		hours = 24
	}
	limit := queryInt(c, "limit")
	offset := queryInt(c, "offset")

	page, err := h.orchService.History(c.Request.Context(), id, time.Duration(hours)*time.Hour, limit, offset)
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": page})
}
