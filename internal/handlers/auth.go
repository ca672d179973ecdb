package handlers

import (
	"net/http"

	"freelance-market/internal/auth"
	"freelance-market/internal/models"
	"freelance-market/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Challenge issues a single-use nonce and the message to sign with it
// POST /auth/challenge
func (h *AuthHandler) Challenge(c *gin.Context) {
	var req models.ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	challenge, message, err := h.authService.Challenge(c.Request.Context(), req.PublicKey)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"nonce":      challenge.Nonce,
		"message":    message,
		"expires_at": challenge.ExpiresAt,
	})
}

// Login authenticates a key holder by an ed25519 signature of a challenge message.
// The first login creates the profile with the given role.
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, created, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := auth.GenerateToken(profile.ID, profile.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"token":   token,
		"profile": profile,
		"created": created,
	})
}

// GetMe returns the currently authenticated profile
// GET /auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	profile, err := h.authService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile": profile,
	})
}
