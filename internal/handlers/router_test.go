package handlers

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"freelance-market/internal/auth"
	"freelance-market/internal/database"
	"freelance-market/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	t      *testing.T
	router *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth.InitJWT("handler-test-secret")

	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateDB(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	router := NewRouter(New(services.New(db, 50)), RouterConfig{
		AllowedOrigins: []string{"https://app.example"},
		MetricsPath:    "/metrics",
	})
	return &testAPI{t: t, router: router}
}

func (a *testAPI) do(method, path, token string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func dataField(t *testing.T, w *httptest.ResponseRecorder, key string) interface{} {
	t.Helper()
	data, ok := decode(t, w)["data"].(map[string]interface{})
	require.True(t, ok, w.Body.String())
	return data[key]
}

// login signs in a fresh key and returns the JWT
func (a *testAPI) login(role string) string {
	a.t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(a.t, err)

	publicKey := base58.Encode(pub)

	w := a.do(http.MethodPost, "/auth/challenge", "", map[string]string{"public_key": publicKey}, nil)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	challenge := decode(a.t, w)
	message, ok := challenge["message"].(string)
	require.True(a.t, ok)

	w = a.do(http.MethodPost, "/auth/login", "", map[string]string{
		"public_key": publicKey,
		"nonce":      challenge["nonce"].(string),
		"signature":  base58.Encode(ed25519.Sign(priv, []byte(message))),
		"role":       role,
	}, nil)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	token, ok := decode(a.t, w)["token"].(string)
	require.True(a.t, ok)
	return token
}

func (a *testAPI) balance(token string) float64 {
	a.t.Helper()
	w := a.do(http.MethodGet, "/api/ledger/balance", token, nil, nil)
	require.Equal(a.t, http.StatusOK, w.Code)
	return dataField(a.t, w, "credit").(float64)
}

func (a *testAPI) createProject(token string, fee int) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/projects", token, map[string]interface{}{
		"title":       "Data pipeline",
		"budget_type": "fixed",
		"budget":      "900",
		"posting_fee": fee,
	}, nil)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return dataField(a.t, w, "id").(string)
}

func (a *testAPI) submit(token, projectID string) *httptest.ResponseRecorder {
	a.t.Helper()
	return a.do(http.MethodPost, "/api/proposals", token, map[string]interface{}{
		"project_id":         projectID,
		"cover_letter":       "Happy to help.",
		"proposed_budget":    "850",
		"estimated_duration": "3 weeks",
	}, nil)
}

func TestProposalLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	client := api.login("client")
	alice := api.login("freelancer")
	bob := api.login("freelancer")

	projectID := api.createProject(client, 10)

	wa := api.submit(alice, projectID)
	require.Equal(t, http.StatusCreated, wa.Code, wa.Body.String())
	aliceProposal := dataField(t, wa, "id").(string)

	wb := api.submit(bob, projectID)
	require.Equal(t, http.StatusCreated, wb.Code, wb.Body.String())
	bobProposal := dataField(t, wb, "id").(string)

	assert.Equal(t, float64(40), api.balance(alice))
	assert.Equal(t, http.StatusConflict, api.submit(alice, projectID).Code)

	// only the client may decide
	w := api.do(http.MethodPost, "/api/proposals/"+aliceProposal+"/accept", bob, nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	headers := map[string]string{IdempotencyKeyHeader: "accept-alice-1"}
	w = api.do(http.MethodPost, "/api/proposals/"+aliceProposal+"/accept", client, nil, headers)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "accept-alice-1", w.Header().Get(IdempotencyKeyHeader))
	assert.Equal(t, "accepted", dataField(t, w, "status"))
	assert.Equal(t, []interface{}{bobProposal}, dataField(t, w, "rejected_ids"))

	assert.Equal(t, float64(40), api.balance(alice))
	assert.Equal(t, float64(50), api.balance(bob))

	w = api.do(http.MethodPost, "/api/proposals/"+aliceProposal+"/accept", client, nil, headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, dataField(t, w, "replayed"))

	w = api.do(http.MethodPost, "/api/proposals/"+bobProposal+"/accept", client, nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodGet, "/api/projects/"+projectID+"/verify", client, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, dataField(t, w, "ok"))

	w = api.do(http.MethodGet, "/api/ledger/reconcile", bob, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, dataField(t, w, "balanced"))
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	client := api.login("client")
	freelancer := api.login("freelancer")

	expensive := api.createProject(client, 500)
	w := api.submit(freelancer, expensive)
	assert.Equal(t, http.StatusPaymentRequired, w.Code, w.Body.String())
	assert.Equal(t, float64(50), api.balance(freelancer))

	w = api.do(http.MethodPost, "/api/proposals", freelancer, map[string]interface{}{
		"project_id":      expensive,
		"proposed_budget": "100",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, decode(t, w)["field"])

	w = api.do(http.MethodGet, "/api/projects/not-a-uuid", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/projects/00000000-0000-0000-0000-000000000001", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodPost, "/api/projects", freelancer, map[string]interface{}{
		"title": "x", "budget_type": "fixed", "budget": "10",
	}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodGet, "/api/ledger/balance", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/health", "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/metrics", "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		origins []string
		origin  string
		allowed string
	}{
		{"configured origin", []string{"https://app.example"}, "https://app.example", "https://app.example"},
		{"no origins configured", nil, "https://anywhere.example", "*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var router *gin.Engine
			require.NotPanics(t, func() {
				router = NewRouter(New(&services.Services{}), RouterConfig{AllowedOrigins: tt.origins})
			})

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.allowed, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
