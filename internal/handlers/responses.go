package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Shared error response helpers. Every error body carries the same
// shape: success, error, message and a machine-readable code.

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "bad_request",
		"message": message,
		"code":    "BAD_REQUEST",
	})
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   "unauthorized",
		"message": "Authentication required",
		"code":    "MISSING_TOKEN",
	})
}

func notFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"error":   "not_found",
		"message": message,
		"code":    "NOT_FOUND",
	})
}

func internalError(c *gin.Context, logger *logrus.Logger, err error) {
	logger.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   "internal_error",
		"message": "Something went wrong",
		"code":    "INTERNAL_ERROR",
	})
}
