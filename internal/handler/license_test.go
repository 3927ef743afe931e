package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/receiptly/activation-api/internal/config"
	"github.com/receiptly/activation-api/internal/domain/apikey"
	"github.com/receiptly/activation-api/internal/domain/license"
	"github.com/receiptly/activation-api/internal/handler/dto"
	"github.com/receiptly/activation-api/internal/handler/middleware"
	"github.com/receiptly/activation-api/internal/service"
	"github.com/receiptly/activation-api/internal/storage/memstorage"
	"github.com/receiptly/activation-api/internal/util"
)

type adminFixture struct {
	router     *gin.Engine
	repo       *memstorage.LicenseRepository
	apiKeyRepo *memstorage.APIKeyRepository
	token      string
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()

	hash, err := bcrypt.GenerateFromPassword([]byte("admin2025"), bcrypt.MinCost)
	require.NoError(t, err)

	authCfg := &config.AuthConfig{
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
		JWTSecret:         "test-secret",
		JWTIssuer:         "activation-api-test",
		TokenTTL:          time.Hour,
	}

	repo := memstorage.NewLicenseRepository()
	apiKeyRepo := memstorage.NewAPIKeyRepository()
	users := memstorage.NewUserRepository(authCfg.AdminUsername, authCfg.AdminPasswordHash)

	authService := service.NewAuthService(users, memstorage.NewTokenDenylist(), authCfg, logger)
	licenseService := service.NewLicenseService(repo, logger)

	authHandler := NewAuthHandler(authService, logger)
	licenseHandler := NewLicenseHandler(licenseService, logger)

	authMiddleware := middleware.AuthMiddleware(authService, logger)
	issuerAuth := middleware.IssuerAuthMiddleware(authService, apiKeyRepo, logger)

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(logger))
	router.POST("/login", authHandler.Login)
	router.GET("/logout", authHandler.Logout)

	licenses := router.Group("/api/licenses")
	licenses.POST("", issuerAuth, licenseHandler.Create)
	licenses.Use(authMiddleware)
	licenses.GET("", licenseHandler.List)
	licenses.GET("/summary", licenseHandler.Summary)
	licenses.DELETE("/:code", licenseHandler.Delete)

	fixture := &adminFixture{router: router, repo: repo, apiKeyRepo: apiKeyRepo}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"admin","password":"admin2025"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var loginResp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loginResp))
	fixture.token = loginResp.AccessToken

	return fixture
}

func (f *adminFixture) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	f.router.ServeHTTP(w, req)
	return w
}

func TestAdminEndpointsFailClosedWithoutToken(t *testing.T) {
	f := newAdminFixture(t)

	for _, tc := range []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/licenses", ""},
		{http.MethodGet, "/api/licenses/summary", ""},
		{http.MethodPost, "/api/licenses", `{"duration":7}`},
		{http.MethodDelete, "/api/licenses/ABC123", ""},
	} {
		w := f.do(t, tc.method, tc.path, tc.body, false)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestCreateListDeleteLicenseFlow(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do(t, http.MethodPost, "/api/licenses", `{"duration":7}`, true)
	require.Equal(t, http.StatusCreated, w.Code)

	var created dto.CreateLicenseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Len(t, created.Code, license.CodeLength)
	assert.Equal(t, license.Today().AddDate(0, 0, 7).Format(time.DateOnly), created.Expires)

	w = f.do(t, http.MethodGet, "/api/licenses", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var listing map[string]dto.LicenseEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	entry, ok := listing[created.Code]
	require.True(t, ok, "created code must appear in the listing")
	assert.True(t, entry.Valid)
	assert.False(t, entry.Used)
	assert.Nil(t, entry.DeviceID)
	assert.Equal(t, created.Expires, entry.Expires)

	w = f.do(t, http.MethodDelete, "/api/licenses/"+created.Code, "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var deleted dto.DeleteLicenseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &deleted))
	assert.Equal(t, "deleted", deleted.Status)
	assert.Equal(t, created.Code, deleted.Code)

	w = f.do(t, http.MethodDelete, "/api/licenses/"+created.Code, "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateLicenseInvalidDurationIs400(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do(t, http.MethodPost, "/api/licenses", `{"duration":10}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/licenses", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var listing map[string]dto.LicenseEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Empty(t, listing, "no record may be created for a rejected duration")
}

func TestCreateLicenseWithAPIKey(t *testing.T) {
	f := newAdminFixture(t)

	fullKey, prefix, keyHash, err := util.GenerateAPIKey()
	require.NoError(t, err)
	_, err = f.apiKeyRepo.Create(context.Background(), &apikey.APIKey{
		KeyHash:     keyHash,
		Prefix:      prefix,
		Description: "issuance bot",
		IsEnabled:   true,
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/licenses", strings.NewReader(`{"duration":30}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", fullKey)
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	// A tampered key with a known prefix must be rejected.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/licenses", strings.NewReader(`{"duration":30}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", fullKey+"x")
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do(t, http.MethodGet, "/logout", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/licenses", "", true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListShowsBoundDevice(t *testing.T) {
	f := newAdminFixture(t)

	expires := license.Today().AddDate(0, 0, 30)
	require.NoError(t, f.repo.Create(context.Background(), &license.License{
		Code:      "BOUND9",
		Valid:     true,
		ExpiresAt: expires,
	}))
	won, err := f.repo.Bind(context.Background(), "BOUND9", "dev-42")
	require.NoError(t, err)
	require.True(t, won)

	w := f.do(t, http.MethodGet, "/api/licenses", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var listing map[string]dto.LicenseEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	entry := listing["BOUND9"]
	assert.True(t, entry.Used)
	require.NotNil(t, entry.DeviceID)
	assert.Equal(t, "dev-42", *entry.DeviceID)
}
