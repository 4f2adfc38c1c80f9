package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/redmonkez12/go-events-app/docs"
	"github.com/redmonkez12/go-events-app/internal/auth"
	"github.com/redmonkez12/go-events-app/internal/config"
	"github.com/redmonkez12/go-events-app/internal/event"
	"github.com/redmonkez12/go-events-app/internal/httputil"
	"github.com/redmonkez12/go-events-app/internal/logging"
	"github.com/redmonkez12/go-events-app/internal/ratelimit"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testConfig(env string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "3333",
			Env:            env,
			APIPrefix:      "api",
			TrustedOrigins: []string{"http://localhost:3000"},
		},
		RateLimit: config.RateLimitConfig{
			Requests:      3,
			Window:        time.Minute,
			AuthRequests:  3,
			EmailCooldown: time.Minute,
		},
	}
}

func newTestRouter(t *testing.T, env string, web http.Handler) (http.Handler, *auth.JWTService) {
	t.Helper()
	cfg := testConfig(env)
	logger := logging.Discard()

	tokens, err := auth.NewJWTService(testSecret)
	require.NoError(t, err)

	store := ratelimit.NewMemoryStore()
	t.Cleanup(store.Close)
	limiter := ratelimit.NewLimiter(store, cfg.RateLimit, logger, "/api/health")

	authService := auth.NewService(nil, nil, nil, tokens, nil, logger, auth.Options{})

	return NewRouter(Deps{
		Config:         cfg,
		Logger:         logger,
		AuthHandler:    auth.NewHandler(authService, limiter, false),
		AuthMiddleware: auth.NewMiddleware(tokens),
		EventHandler:   event.NewHandler(event.NewService(nil, logger)),
		RateLimiter:    limiter,
		Web:            web,
	}), tokens
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIndexAndHealth(t *testing.T) {
	router, _ := newTestRouter(t, "dev", nil)

	rec := serve(router, http.MethodGet, "/api")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Hello API","environment":"Running in development mode on port 3333"}`, rec.Body.String())

	rec = serve(router, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	_, err := time.Parse(time.RFC3339, health.Timestamp)
	assert.NoError(t, err)
}

func TestNotFoundAndMethodNotAllowedEnvelopes(t *testing.T) {
	router, _ := newTestRouter(t, "dev", nil)

	rec := serve(router, http.MethodGet, "/api/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Cannot GET /api/nope", body.Message)
	assert.Equal(t, "Not Found", body.Error)
	assert.Equal(t, "/api/nope", body.Path)
	assert.NotEmpty(t, body.CorrelationID)
	assert.Equal(t, body.CorrelationID, rec.Header().Get(httputil.CorrelationHeader))

	rec = serve(router, http.MethodDelete, "/api/health")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), httputil.CodeMethodNotAllowed)
}

func TestSecurityHeaders(t *testing.T) {
	router, _ := newTestRouter(t, "dev", nil)

	rec := serve(router, http.MethodGet, "/api/health")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "0", rec.Header().Get("X-XSS-Protection"))
	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=31536000")
	assert.Equal(t, contentSecurityPolicy, rec.Header().Get("Content-Security-Policy"))

	rec = serve(router, http.MethodGet, "/api/docs/index.html")
	assert.Equal(t, docsSecurityPolicy, rec.Header().Get("Content-Security-Policy"))
}

func TestCORSAllowsCredentials(t *testing.T) {
	router, _ := newTestRouter(t, "dev", nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestDocsOnlyInDevelopment(t *testing.T) {
	dev, _ := newTestRouter(t, "dev", nil)
	rec := serve(dev, http.MethodGet, "/api/docs-json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"swagger"`)

	prod, _ := newTestRouter(t, "prod", nil)
	rec = serve(prod, http.MethodGet, "/api/docs-json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, "dev", nil)
	serve(router, http.MethodGet, "/api/health")

	rec := serve(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "events_app_http_requests_total")
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	router, tokens := newTestRouter(t, "dev", nil)

	for _, path := range []string{"/api/events", "/api/auth/me"} {
		rec := serve(router, http.MethodGet, path)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	token, err := tokens.CreateToken(uuid.New(), "jane@example.com", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/events/not-a-uuid", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Event with ID not-a-uuid not found")
}

func TestGlobalRateLimit(t *testing.T) {
	router, _ := newTestRouter(t, "dev", nil)

	for i := 0; i < 3; i++ {
		rec := serve(router, http.MethodGet, "/api")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := serve(router, http.MethodGet, "/api")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "ThrottlerException: Too Many Requests")

	// health checks are exempt
	rec = serve(router, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebMountedAtRoot(t *testing.T) {
	web := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("page " + r.URL.Path))
	})
	router, _ := newTestRouter(t, "dev", web)

	rec := serve(router, http.MethodGet, "/login")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "page /login", rec.Body.String())

	rec = serve(router, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(logging.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := serve(h, http.MethodGet, "/boom")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body.Message)
	assert.Equal(t, httputil.CodeInternalError, body.Code)
}
