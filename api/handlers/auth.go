package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/imagizer-autoscaler/internal/auth"
	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
	"github.com/OldStager01/imagizer-autoscaler/pkg/database/queries"
	"github.com/OldStager01/imagizer-autoscaler/pkg/validation"
)

// UserStore is satisfied by queries.UserRepository and auth.StaticUsers.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*queries.User, error)
}

type AuthHandler struct {
	users        UserStore
	authService  *auth.Service
	cookieName   string
	secureCookie bool
}

func NewAuthHandler(users UserStore, authService *auth.Service, cookieName string, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		users:        users,
		authService:  authService,
		cookieName:   cookieName,
		secureCookie: secureCookie,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"ops"`
	Password string `json:"password" binding:"required" example:"secret"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in" example:"86400"`
	Username  string `json:"username" example:"ops"`
}

// Login godoc
// @Summary Log in
// @Description Exchange credentials for a JWT
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req.Username = validation.SanitizeString(req.Username)
	if err := validation.ValidateUsername(req.Username); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, queries.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		logger.ErrorCtxf(ctx, "User lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		logger.WarnCtxf(ctx, "Failed login for %s", req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.authService.GenerateToken(user.ID, user.Username)
	if err != nil {
		logger.ErrorCtxf(ctx, "Token generation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	maxAge := int(h.authService.Expiry().Seconds())
	if h.cookieName != "" {
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(h.cookieName, token, maxAge, "/", "", h.secureCookie, true)
	}

	logger.InfoCtxf(ctx, "User %s logged in", user.Username)
	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresIn: maxAge,
		Username:  user.Username,
	})
}
