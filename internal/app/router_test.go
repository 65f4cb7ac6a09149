package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/paud-api/pkg/config"
)

func newTestContainer(t *testing.T, exports bool) (*Container, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Env:        "test",
		APIPrefix:  "/api/v1",
		SchoolName: "PAUD Uji",
		JWT:        config.JWTConfig{Secret: "test-secret", Expiration: time.Hour},
		Imports:    config.ImportsConfig{UploadDir: t.TempDir(), MaxFileSizeBytes: 1 << 20},
		Exports: config.ExportsConfig{
			Enabled:           exports,
			StorageDir:        t.TempDir(),
			SignedURLSecret:   "export-secret",
			SignedURLTTL:      time.Hour,
			WorkerConcurrency: 1,
			WorkerRetries:     2,
		},
		Cache: config.CacheConfig{ReportCardTTL: time.Minute, StatisticsTTL: time.Minute},
	}
	c, err := New(cfg, sqlx.NewDb(db, "sqlmock"), nil, zap.NewNop())
	require.NoError(t, err)
	return c, mock
}

func routeSet(r *gin.Engine) map[string]bool {
	set := map[string]bool{}
	for _, route := range r.Routes() {
		set[route.Method+" "+route.Path] = true
	}
	return set
}

func TestNewRouterRegistersDomainRoutes(t *testing.T) {
	c, _ := newTestContainer(t, true)
	routes := routeSet(NewRouter(c))

	for _, want := range []string{
		"POST /api/v1/auth/login",
		"POST /api/v1/rosters/import",
		"POST /api/v1/report-cards/assessments",
		"POST /api/v1/report-cards/students/:studentId/terms/:termId/publish",
		"GET /api/v1/parent/children/:studentId/report-cards/:termId/pdf",
		"POST /api/v1/exports",
		"GET /api/v1/exports/download/:token",
		"POST /api/v1/daily-logs",
		"GET /health",
	} {
		assert.True(t, routes[want], want)
	}
}

func TestNewRouterWithoutExports(t *testing.T) {
	c, _ := newTestContainer(t, false)
	assert.Nil(t, c.Exports)
	routes := routeSet(NewRouter(c))
	assert.False(t, routes["POST /api/v1/exports"])

	stop, err := c.StartWorkers(context.Background())
	require.NoError(t, err)
	stop()
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	c, _ := newTestContainer(t, true)
	r := NewRouter(c)

	for _, path := range []string{"/api/v1/students", "/api/v1/parent/children", "/api/v1/users"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestHealthReportsDatabase(t *testing.T) {
	c, mock := newTestContainer(t, false)
	r := NewRouter(c)

	mock.ExpectPing()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
