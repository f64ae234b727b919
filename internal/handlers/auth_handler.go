package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/hypercore-one/bridge-monitor/internal/middleware"
	"github.com/hypercore-one/bridge-monitor/internal/services"
)

// AuthHandler serves login and API token management.
type AuthHandler struct {
	authService *services.AuthService
	logger      *logrus.Logger
}

// NewAuthHandler creates the handler.
func NewAuthHandler(authService *services.AuthService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login issues a short-lived session JWT.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Username and password are required")
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) || errors.Is(err, services.ErrUserInactive) {
			h.logger.WithFields(logrus.Fields{
				"username": req.Username,
				"ip":       c.ClientIP(),
			}).Warn("login rejected")
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "unauthorized",
				"message": "Invalid username or password",
				"code":    "INVALID_CREDENTIALS",
			})
			return
		}
		internalError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"access_token": token,
			"token_type":   "bearer",
			"user":         user,
		},
	})
}

type createTokenRequest struct {
	Name          string `json:"name" binding:"required"`
	ExpiresInDays int    `json:"expires_in_days"`
}

// CreateToken mints a long-lived API token for the caller.
// POST /api/v1/auth/tokens
func (h *AuthHandler) CreateToken(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Token name is required")
		return
	}

	plaintext, token, err := h.authService.CreateAPIToken(c.Request.Context(), user.ID, req.Name, req.ExpiresInDays)
	if err != nil {
		internalError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			// Shown exactly once; only the hash survives server-side.
			"token":      plaintext,
			"id":         token.ID,
			"name":       token.Name,
			"expires_at": token.ExpiresAt,
		},
	})
}

// ListTokens returns the caller's tokens.
// GET /api/v1/auth/tokens
func (h *AuthHandler) ListTokens(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		unauthorized(c)
		return
	}

	tokens, err := h.authService.ListAPITokens(c.Request.Context(), user.ID)
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": tokens})
}

// RevokeToken revokes one of the caller's tokens.
// DELETE /api/v1/auth/tokens/:id
func (h *AuthHandler) RevokeToken(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		unauthorized(c)
		return
	}

	tokenID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid token id")
		return
	}

	if err := h.authService.RevokeAPIToken(c.Request.Context(), tokenID, user.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound(c, "Token not found")
			return
		}
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Token revoked"})
}

// Me returns the authenticated user.
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		unauthorized(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}
