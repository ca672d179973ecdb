package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"freelance-market/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	InitJWT("test-secret")
	id := uuid.New()

	token, err := GenerateToken(id, models.RoleFreelancer)
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, models.RoleFreelancer, claims.Role)

	InitJWT("other-secret")
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	InitJWT("test-secret")
	id := uuid.New()
	token, err := GenerateToken(id, models.RoleClient)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", AuthMiddleware(), func(c *gin.Context) {
		userID, ok := GetUserID(c)
		require.True(t, ok)
		role, _ := GetRole(c)
		c.JSON(http.StatusOK, gin.H{"id": userID, "role": role})
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), id.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	InitJWT("test-secret")

	r := gin.New()
	r.POST("/projects", AuthMiddleware(), RequireRole(models.RoleClient), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	for role, status := range map[models.Role]int{
		models.RoleClient:     http.StatusCreated,
		models.RoleFreelancer: http.StatusForbidden,
	} {
		token, err := GenerateToken(uuid.New(), role)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/projects", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code, "role %s", role)
	}
}
