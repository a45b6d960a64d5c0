package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterops/waterops/internal/observability"
	"github.com/waterops/waterops/internal/orders"
	"github.com/waterops/waterops/internal/rbac"
	"github.com/waterops/waterops/internal/reconcile"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("WATEROPS_API_URL", "http://api.local")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	assert.Equal(t, "http://api.local", cfg.APIURL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsNegativeRateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "-1")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestRefreshTestMode(t *testing.T) {
	t.Setenv(TestModeEnv, "true")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(TestModeEnv, "")
	RefreshTestMode()
	assert.False(t, InTestMode())
}

func newTestRouter() http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := rbac.Middleware{Logger: logger}
	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         &Config{AppEnv: "test", AppRequestTimeout: time.Second, RateLimitPerMinute: 1000},
		RBACMiddleware: mw,
		OrdersHandler:  orders.NewHandler(logger, nil, mw),
		ReturnsHandler: reconcile.NewHandler(logger, nil, mw),
		Metrics:        observability.NewMetrics(),
	})
}

func TestRouterHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Frame-Options"))
}

func TestRouterRequiresActor(t *testing.T) {
	router := newTestRouter()
	for _, path := range []string{"/api/orders", "/api/orders/5"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders/5/returns/check", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterCustomerCannotCommitReturns(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/orders/5/returns/commit", nil)
	req.Header.Set(rbac.HeaderActorID, "30")
	req.Header.Set(rbac.HeaderActorRole, "customer")

	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterExposesMetrics(t *testing.T) {
	router := newTestRouter()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `waterops_http_requests_total{code="200",route="/healthz"}`)
}

func TestLoggerLevelAndAttributes(t *testing.T) {
	var buf strings.Builder
	logger := newLogger(&buf, &Config{AppEnv: "staging", LogFormat: "json", LogLevel: "warn"})

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"service":"waterops"`)
	assert.Contains(t, out, `"env":"staging"`)
}

func TestRateLimitIsPerActor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(RouterParams{
		Logger:         logger,
		Config:         &Config{AppEnv: "test", RateLimitPerMinute: 1},
		RBACMiddleware: rbac.Middleware{Logger: logger},
	})
	hit := func(actor string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(rbac.HeaderActorID, actor)
		req.Header.Set(rbac.HeaderActorRole, "staff")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, hit("7").Code)
	limited := hit("7")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "application/problem+json", limited.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusOK, hit("8").Code)
}
