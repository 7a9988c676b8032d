package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbottock-ai/VeraScore/internal/database"
)

func setupHandler(t *testing.T) *Handler {
	t.Helper()
	dir := t.TempDir()

	appDB, err := database.New(database.Config{
		Path:    filepath.Join(dir, "app.db"),
		Profile: database.ProfileStandard,
		Name:    "app",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = appDB.Close() })

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(dir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cacheDB.Close() })

	return NewHandler(appDB, cacheDB, zerolog.Nop())
}

func TestHandleHealth(t *testing.T) {
	h := setupHandler(t)
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/system/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "ok", response.Databases["app"])
	assert.Equal(t, "ok", response.Databases["cache"])
}

func TestHandleStatus(t *testing.T) {
	h := setupHandler(t)
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/system/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.GreaterOrEqual(t, response.UptimeSeconds, int64(0))
	assert.Greater(t, response.Goroutines, 0)
	assert.NotEmpty(t, response.GoVersion)
	assert.Contains(t, response.Databases, "app")
	assert.Contains(t, response.Databases, "cache")
}
