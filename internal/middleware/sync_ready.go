package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SyncFlagReader reports whether the bridge worker finished its
// initial mirror.
type SyncFlagReader interface {
	IsSyncComplete(ctx context.Context) bool
}

// RequireSyncComplete gates data routes until the mirror is complete,
// so clients never act on a partially synced view.
func RequireSyncComplete(flags SyncFlagReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !flags.IsSyncComplete(c.Request.Context()) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   "service_unavailable",
				"message": "Bridge data is still syncing, try again shortly",
				"code":    "SYNC_IN_PROGRESS",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
