package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/hypercore-one/bridge-monitor/internal/services"
)

// UserHandler serves admin-only user management.
type UserHandler struct {
	authService *services.AuthService
	logger      *logrus.Logger
}

// NewUserHandler creates the handler.
func NewUserHandler(authService *services.AuthService, logger *logrus.Logger) *UserHandler {
	return &UserHandler{authService: authService, logger: logger}
}

type createUserRequest struct {
	Username           string `json:"username" binding:"required,min=3,max=50"`
	Email              string `json:"email" binding:"required,email"`
	Password           string `json:"password" binding:"required,min=8"`
	IsAdmin            bool   `json:"is_admin"`
	RateLimitPerSecond int    `json:"rate_limit_per_second"`
	RateLimitBurst     int    `json:"rate_limit_burst"`
}

// Create registers a user.
// POST /api/v1/users
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid user payload: "+err.Error())
		return
	}
	if req.RateLimitPerSecond <= 0 {
		req.RateLimitPerSecond = 10
	}
	if req.RateLimitBurst <= 0 {
		req.RateLimitBurst = 20
	}

	user, err := h.authService.CreateUser(c.Request.Context(), services.CreateUserParams{
		Username:           req.Username,
		Email:              req.Email,
		Password:           req.Password,
		IsAdmin:            req.IsAdmin,
		RateLimitPerSecond: req.RateLimitPerSecond,
		RateLimitBurst:     req.RateLimitBurst,
	})
	if err != nil {
		if errors.Is(err, services.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error":   "conflict",
				"message": "Username already taken",
				"code":    "USERNAME_TAKEN",
			})
			return
		}
		internalError(c, h.logger, err)
		return
	}

	h.logger.WithField("username", user.Username).Info("user created")
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": user})
}

// List pages through users.
// GET /api/v1/users
func (h *UserHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	users, total, err := h.authService.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    users,
		"total":   total,
	})
}

// Get returns one user.
// GET /api/v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid user id")
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound(c, "User not found")
			return
		}
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}

type updateUserRequest struct {
	Email              *string `json:"email" binding:"omitempty,email"`
	Password           *string `json:"password" binding:"omitempty,min=8"`
	IsActive           *bool   `json:"is_active"`
	IsAdmin            *bool   `json:"is_admin"`
	RateLimitPerSecond *int    `json:"rate_limit_per_second"`
	RateLimitBurst     *int    `json:"rate_limit_burst"`
}

// Update applies a partial update.
// PATCH /api/v1/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid user id")
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid user payload: "+err.Error())
		return
	}

	user, err := h.authService.UpdateUser(c.Request.Context(), id, services.UpdateUserParams{
		Email:              req.Email,
		Password:           req.Password,
		IsActive:           req.IsActive,
		IsAdmin:            req.IsAdmin,
		RateLimitPerSecond: req.RateLimitPerSecond,
		RateLimitBurst:     req.RateLimitBurst,
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound(c, "User not found")
			return
		}
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}

// Delete removes a user.
// DELETE /api/v1/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid user id")
		return
	}

	if err := h.authService.DeleteUser(c.Request.Context(), id); err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User deleted"})
}
