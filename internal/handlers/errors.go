package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"freelance-market/internal/auth"
	"freelance-market/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError maps service errors onto HTTP status codes
func respondError(c *gin.Context, err error) {
	var validation *services.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": validation.Field})
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidSignature), errors.Is(err, services.ErrChallengeInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInsufficientCredit):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrProfileNotFound),
		errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrProposalNotFound),
		errors.Is(err, services.ErrCatalogNotFound),
		errors.Is(err, services.ErrNotificationMissing):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrProjectNotOpen),
		errors.Is(err, services.ErrProjectNotActive),
		errors.Is(err, services.ErrProposalNotPending),
		errors.Is(err, services.ErrCatalogInactive),
		errors.Is(err, services.ErrDuplicateProposal),
		errors.Is(err, services.ErrIdempotencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("[API] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// requireUser returns the authenticated profile ID or writes a 401
func requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, false
	}
	return userID, true
}

// paramUUID parses a UUID path parameter or writes a 400
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// page reads limit/offset query parameters
func page(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

func respondPage(c *gin.Context, data interface{}, total int64, limit, offset int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}
