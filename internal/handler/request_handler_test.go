package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/studyhelper/studyhelper-api/internal/middleware"
	"github.com/studyhelper/studyhelper-api/internal/models"
	"github.com/studyhelper/studyhelper-api/internal/service"
	"github.com/studyhelper/studyhelper-api/internal/store"
	"github.com/studyhelper/studyhelper-api/pkg/kv"
	"github.com/studyhelper/studyhelper-api/pkg/response"
)

type apiFixture struct {
	router   *gin.Engine
	identity *service.IdentityService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kvStore := kv.NewMemory()
	requests := store.New(kvStore, "studyhelper_requests", nil)
	require.NoError(t, requests.Load(context.Background()))

	hash, err := bcrypt.GenerateFromPassword([]byte("owner123"), bcrypt.MinCost)
	require.NoError(t, err)
	identity := service.NewIdentityService(kvStore, nil, nil, service.IdentityConfig{
		FulfillerEmail:        "owner@studyhelper.com",
		FulfillerPasswordHash: string(hash),
		FulfillerName:         "Owner",
		TokenSecret:           "test-secret",
		TokenExpiry:           time.Hour,
	})

	requestSvc := service.NewRequestService(requests, nil, nil)
	authHandler := NewAuthHandler(identity)
	requestHandler := NewRequestHandler(requestSvc)

	router := gin.New()
	api := router.Group("/api/v1")
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("", middleware.JWT(identity))
	protected.GET("/auth/me", authHandler.Me)
	protected.POST("/requests", middleware.RequireRoles(models.RoleRequester), requestHandler.Create)
	protected.GET("/requests", requestHandler.List)
	protected.GET("/requests/stats", requestHandler.Stats)
	protected.GET("/requests/:id", requestHandler.Get)
	protected.PATCH("/requests/:id/status", middleware.RequireRoles(models.RoleFulfiller), requestHandler.UpdateStatus)

	return &apiFixture{router: router, identity: identity}
}

func (f *apiFixture) login(t *testing.T, email, password string) string {
	t.Helper()
	body, _ := json.Marshal(models.LoginRequest{Email: email, Password: password})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data.AccessToken
}

func (f *apiFixture) do(method, path, token string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	f.router.ServeHTTP(w, req)
	return w
}

func TestRequestEndpointsRequireAuth(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/api/v1/requests", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/api/v1/requests", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequesterSeesOnlyOwnRequests(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t, "newcomer@example.com", "secret1")

	w := f.do(http.MethodGet, "/api/v1/requests", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.Request       `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Empty(t, envelope.Data)
}

func TestFulfillerSeesSeededRequests(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t, "owner@studyhelper.com", "owner123")

	w := f.do(http.MethodGet, "/api/v1/requests", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.Request `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 3)
}

func TestCreateAndFetchRequest(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t, "newcomer@example.com", "secret1")

	payload := []byte(`{"category":"Mathematics","topic":"Integrals","materialKind":"Study Guide","difficulty":"Advanced","dueDate":"2024-04-01"}`)
	w := f.do(http.MethodPost, "/api/v1/requests", token, payload)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data models.Request `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 4, created.Data.ID)
	assert.Equal(t, models.StatusPending, created.Data.Status)

	w = f.do(http.MethodGet, "/api/v1/requests/4", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Another requester must not see it.
	other := f.login(t, "someone.else@example.com", "secret1")
	w = f.do(http.MethodGet, "/api/v1/requests/4", other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateRequestForbiddenForFulfiller(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t, "owner@studyhelper.com", "owner123")

	payload := []byte(`{"category":"Mathematics","topic":"Integrals","materialKind":"Study Guide","difficulty":"Advanced","dueDate":"2024-04-01"}`)
	w := f.do(http.MethodPost, "/api/v1/requests", token, payload)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateStatusRoles(t *testing.T) {
	f := newAPIFixture(t)
	fulfiller := f.login(t, "owner@studyhelper.com", "owner123")
	requester := f.login(t, "newcomer@example.com", "secret1")

	w := f.do(http.MethodPatch, "/api/v1/requests/3/status", fulfiller, []byte(`{"status":"in-progress"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated struct {
		Data models.Request `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, models.StatusInProgress, updated.Data.Status)

	w = f.do(http.MethodPatch, "/api/v1/requests/3/status", requester, []byte(`{"status":"completed"}`))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPatch, "/api/v1/requests/3/status", fulfiller, []byte(`{"status":"archived"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t, "owner@studyhelper.com", "owner123")

	w := f.do(http.MethodGet, "/api/v1/requests/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.StatusCounts `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, 3, envelope.Data.Total)
	assert.Equal(t, 1, envelope.Data.Completed)
}

func TestErrorEnvelopeShape(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t, "owner@studyhelper.com", "owner123")

	w := f.do(http.MethodGet, "/api/v1/requests/99", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "NOT_FOUND", envelope.Error.Code)
}
