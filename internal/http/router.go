package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"

	"github.com/redmonkez12/go-events-app/internal/auth"
	"github.com/redmonkez12/go-events-app/internal/config"
	"github.com/redmonkez12/go-events-app/internal/event"
	"github.com/redmonkez12/go-events-app/internal/httputil"
	"github.com/redmonkez12/go-events-app/internal/logging"
	"github.com/redmonkez12/go-events-app/internal/metrics"
	"github.com/redmonkez12/go-events-app/internal/ratelimit"
)

// Deps are the handlers and middleware the router mounts
type Deps struct {
	Config         *config.Config
	Logger         *logging.Logger
	AuthHandler    *auth.Handler
	AuthMiddleware *auth.Middleware
	EventHandler   *event.Handler
	RateLimiter    *ratelimit.Limiter

	// Web serves the server-rendered frontend at /; optional
	Web http.Handler
}

// NewRouter creates and configures the HTTP router
func NewRouter(d Deps) *chi.Mux {
	cfg := d.Config
	prefix := "/" + cfg.Server.APIPrefix

	r := chi.NewRouter()

	// CORS - must be first
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.TrustedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.AuthModeHeader, httputil.CorrelationHeader},
		ExposedHeaders:   []string{"Content-Length", "Retry-After", httputil.CorrelationHeader},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Use(SecurityHeaders(prefix + "/docs"))
	r.Use(Recoverer(d.Logger))
	r.Use(httputil.CorrelationID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(d.Logger))
	r.Use(metrics.HTTPMiddleware)
	r.Use(middleware.Compress(5))

	r.NotFound(httputil.NotFound)
	r.MethodNotAllowed(httputil.MethodNotAllowed)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route(prefix, func(r chi.Router) {
		r.Use(d.RateLimiter.Middleware)
		r.NotFound(httputil.NotFound)
		r.MethodNotAllowed(httputil.MethodNotAllowed)

		r.Get("/", handleIndex(cfg.Server))
		r.Get("/health", handleHealth)

		// API docs only in development
		if cfg.Server.IsDevelopment() {
			d.Logger.Info("swagger UI enabled", "path", prefix+"/docs/")
			r.Get("/docs-json", handleDocsJSON)
			r.Get("/docs", http.RedirectHandler(prefix+"/docs/index.html", http.StatusMovedPermanently).ServeHTTP)
			r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(prefix+"/docs-json")))
		}

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", d.AuthHandler.Register)
			r.Post("/login", d.AuthHandler.Login)
			r.Post("/verify-email", d.AuthHandler.VerifyEmail)
			r.Post("/refresh", d.AuthHandler.Refresh)
			r.Post("/logout", d.AuthHandler.Logout)
			r.Post("/forgot-password", d.AuthHandler.ForgotPassword)
			r.Post("/reset-password", d.AuthHandler.ResetPassword)
			r.Post("/resend-verification", d.AuthHandler.ResendVerificationEmail)
			r.With(d.AuthMiddleware.RequireAuth).Get("/me", d.AuthHandler.Me)
		})

		r.Route("/events", func(r chi.Router) {
			r.Use(d.AuthMiddleware.RequireAuth)
			d.EventHandler.Routes(r)
		})
	})

	if d.Web != nil {
		r.Mount("/", d.Web)
	}

	return r
}

// IndexResponse is returned by the API root
type IndexResponse struct {
	Message     string `json:"message" example:"Hello API"`
	Environment string `json:"environment" example:"Running in development mode on port 3333"`
}

// HealthResponse is returned by the health check
type HealthResponse struct {
	Status    string `json:"status" example:"ok"`
	Timestamp string `json:"timestamp" example:"2025-03-01T10:00:00Z"`
}

// handleIndex greets API clients
// @Summary      API index
// @Tags         health
// @Produce      json
// @Success      200 {object} IndexResponse
// @Router       / [get]
func handleIndex(cfg config.ServerConfig) http.HandlerFunc {
	resp := IndexResponse{
		Message:     "Hello API",
		Environment: fmt.Sprintf("Running in %s mode on port %s", cfg.EnvName(), cfg.Port),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondJSON(w, resp, http.StatusOK)
	}
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} HealthResponse
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// handleDocsJSON serves the registered OpenAPI document
func handleDocsJSON(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		httputil.RespondErrorWithCode(w, r, "API documentation unavailable", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}
