package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/hypercore-one/bridge-monitor/internal/models"
	"github.com/hypercore-one/bridge-monitor/internal/services"
)

const userContextKey = "currentUser"

// CurrentUser returns the authenticated user set by RequireAuth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}

// RequireAuth authenticates the Bearer credential, either a session
// JWT or a prefixed API token, and stores the user on the context.
func RequireAuth(authService *services.AuthService, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "unauthorized",
				"message": "Missing or malformed Authorization header",
				"code":    "MISSING_TOKEN",
			})
			c.Abort()
			return
		}

		credential := strings.TrimPrefix(header, "Bearer ")
		user, err := authService.ResolveCredential(c.Request.Context(), credential)
		if err != nil {
			code := "INVALID_TOKEN"
			switch {
			case errors.Is(err, services.ErrTokenRevoked):
				code = "TOKEN_REVOKED"
			case errors.Is(err, services.ErrTokenExpired):
				code = "TOKEN_EXPIRED"
			case errors.Is(err, services.ErrUserInactive):
				code = "USER_INACTIVE"
			}
			logger.WithFields(logrus.Fields{
				"path": c.Request.URL.Path,
				"ip":   c.ClientIP(),
				"code": code,
			}).Warn("authentication failed")
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "unauthorized",
				"message": "Invalid or expired credentials",
				"code":    code,
			})
			c.Abort()
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// RequireAdmin allows only admin users past. Must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok || !user.IsAdmin {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "forbidden",
				"message": "Administrator privileges required",
				"code":    "ADMIN_REQUIRED",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
