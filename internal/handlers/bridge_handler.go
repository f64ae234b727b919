package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/hypercore-one/bridge-monitor/internal/repository"
	"github.com/hypercore-one/bridge-monitor/internal/services"
)

// BridgeHandler serves the mirrored ledger data.
type BridgeHandler struct {
	bridgeService *services.BridgeService
	logger        *logrus.Logger
}

// NewBridgeHandler creates the handler.
func NewBridgeHandler(bridgeService *services.BridgeService, logger *logrus.Logger) *BridgeHandler {
	return &BridgeHandler{bridgeService: bridgeService, logger: logger}
}

func queryInt(c *gin.Context, name string) int {
	value, _ := strconv.Atoi(c.Query(name))
	return value
}

func queryIntPtr(c *gin.Context, name string) *int {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &value
}

func queryBoolPtr(c *gin.Context, name string) *bool {
	switch c.Query(name) {
	case "true":
		value := true
		return &value
	case "false":
		value := false
		return &value
	default:
		return nil
	}
}

// ListWraps lists wrap requests newest first.
// GET /api/v1/bridge/wraps
func (h *BridgeHandler) ListWraps(c *gin.Context) {
	filter := repository.WrapFilter{
		ChainID:       queryInt(c, "chain_id"),
		NetworkClass:  queryInt(c, "network_class"),
		TokenStandard: c.Query("token_standard"),
		TokenSymbol:   c.Query("token_symbol"),
		ToAddress:     c.Query("to_address"),
		Confirmations: queryIntPtr(c, "confirmations"),
		PendingOnly:   c.Query("pending") == "true",
		Limit:         queryInt(c, "limit"),
		Offset:        queryInt(c, "offset"),
	}

	result, err := h.bridgeService.ListWraps(c.Request.Context(), filter)
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// ListUnwraps lists unwrap requests newest first.
// GET /api/v1/bridge/unwraps
func (h *BridgeHandler) ListUnwraps(c *gin.Context) {
	filter := repository.UnwrapFilter{
		ChainID:       queryInt(c, "chain_id"),
		NetworkClass:  queryInt(c, "network_class"),
		TokenStandard: c.Query("token_standard"),
		TokenSymbol:   c.Query("token_symbol"),
		ToAddress:     c.Query("to_address"),
		Redeemed:      queryBoolPtr(c, "redeemed"),
		Revoked:       queryBoolPtr(c, "revoked"),
		PendingOnly:   c.Query("pending") == "true",
		Limit:         queryInt(c, "limit"),
		Offset:        queryInt(c, "offset"),
	}

	result, err := h.bridgeService.ListUnwraps(c.Request.Context(), filter)
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// SyncStatus reports how far the mirror has caught up.
// GET /api/v1/bridge/sync-status
func (h *BridgeHandler) SyncStatus(c *gin.Context) {
	status, err := h.bridgeService.SyncStatus(c.Request.Context())
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": status})
}
