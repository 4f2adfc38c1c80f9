// Package web serves the server-rendered frontend: sign-in and registration
// forms, the calendar home page and the event forms. Pages share the API's
// auth cookies and post through gorilla/csrf protected forms.
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/csrf"

	"github.com/redmonkez12/go-events-app/internal/auth"
	"github.com/redmonkez12/go-events-app/internal/event"
	"github.com/redmonkez12/go-events-app/internal/logging"
	"github.com/redmonkez12/go-events-app/internal/ratelimit"
	"github.com/redmonkez12/go-events-app/internal/user"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pageNames = []string{
	"login.html",
	"register.html",
	"check_email.html",
	"verify_email.html",
	"home.html",
	"event_form.html",
	"profile.html",
	"error.html",
}

// AuthService is the part of the auth service the pages use
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*user.User, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	VerifyEmail(ctx context.Context, token string) (*auth.Session, error)
	ValidateUser(ctx context.Context, userID uuid.UUID) (*user.User, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*auth.Session, error)
	RevokeRefreshToken(ctx context.Context, refreshToken string) error
	AccessTokenDuration() time.Duration
	RefreshTokenDuration() time.Duration
}

// EventService is the event CRUD the pages use
type EventService interface {
	Create(ctx context.Context, userID uuid.UUID, ne event.NewEvent) (*event.Event, error)
	FindAll(ctx context.Context, userID uuid.UUID, filter event.ListFilter) ([]*event.Event, error)
	FindOne(ctx context.Context, id, userID uuid.UUID) (*event.Event, error)
	Update(ctx context.Context, id, userID uuid.UUID, p event.Patch) (*event.Event, error)
	Remove(ctx context.Context, id, userID uuid.UUID) error
}

// Authenticator verifies access tokens
type Authenticator interface {
	Authenticate(token string) (uuid.UUID, string, error)
}

// Options configures the frontend
type Options struct {
	CSRFKey []byte
	Secure  bool // HTTPS only cookies and strict CSRF origin checks

	// Limiter applies the auth rate limits to the login and register forms; optional
	Limiter auth.RateLimiter
}

// Handler renders the frontend pages
type Handler struct {
	auth   AuthService
	events EventService
	authn  Authenticator
	logger *logging.Logger
	opts   Options
	pages  map[string]*template.Template
	now    func() time.Time
}

func NewHandler(authService AuthService, events EventService, authn Authenticator, logger *logging.Logger, opts Options) (*Handler, error) {
	funcs := template.FuncMap{
		"iso":  func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
		"when": func(t time.Time) string { return t.UTC().Format("Mon, Jan 2 · 15:04") },
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &Handler{
		auth:   authService,
		events: events,
		authn:  authn,
		logger: logger,
		opts:   opts,
		pages:  pages,
		now:    time.Now,
	}, nil
}

// Routes returns the frontend router
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(h.markPlaintext)
	r.Use(csrf.Protect(h.opts.CSRFKey,
		csrf.Secure(h.opts.Secure),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(h.csrfFailed)),
	))
	r.Use(h.loadSession)

	r.NotFound(h.notFound)
	r.Handle("/static/*", http.FileServerFS(staticFS))

	r.Get("/login", h.loginPage)
	r.Post("/login", h.login)
	r.Get("/register", h.registerPage)
	r.Post("/register", h.register)
	r.Get("/verify-email", h.verifyEmail)
	r.Post("/logout", h.logout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireUser)
		r.Get("/", h.home)
		r.Get("/add", h.addPage)
		r.Post("/add", h.add)
		r.Get("/events/{id}/edit", h.editPage)
		r.Post("/events/{id}/edit", h.edit)
		r.Post("/events/{id}/delete", h.remove)
		r.Get("/profile", h.profile)
	})

	return r
}

// formValues carries submitted form fields back into the page
type formValues struct {
	Email    string
	Name     string
	Title    string
	Members  string
	Messages string
	Datetime string
}

// page is the data every template renders
type page struct {
	Title       string
	Nav         string
	Flash       string
	Error       string
	UserEmail   string
	CSRFField   template.HTML
	Form        formValues
	FieldErrors map[string]string

	Email        string
	Calendar     Calendar
	Events       []*event.Event
	SelectedDate string
	Action       string
	EventID      string
	Profile      user.Public
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	p.CSRFField = csrf.TemplateField(r)
	if email, ok := auth.GetUserEmailFromContext(r.Context()); ok {
		p.UserEmail = email
	}

	var buf bytes.Buffer
	if err := h.pages[name].ExecuteTemplate(&buf, "layout", p); err != nil {
		h.log(r).Error("failed to render page", "page", name, "error", err.Error())
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.render(w, r, status, "error.html", page{Title: http.StatusText(status), Error: message})
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, http.StatusNotFound, "Page not found")
}

func (h *Handler) csrfFailed(w http.ResponseWriter, r *http.Request) {
	h.log(r).Warn("csrf validation failed", "reason", csrf.FailureReason(r))
	h.renderError(w, r, http.StatusForbidden, "Your form has expired. Please reload the page and try again.")
}

// markPlaintext lets gorilla/csrf skip its HTTPS referer checks when the app
// is served over plain HTTP
func (h *Handler) markPlaintext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.opts.Secure {
			r = csrf.PlaintextHTTPRequest(r)
		}
		next.ServeHTTP(w, r)
	})
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// allow applies the auth rate limit for purpose when a limiter is configured.
// Limiter failures let the request through.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, purpose string) bool {
	if h.opts.Limiter == nil {
		return true
	}
	logger := h.log(r)

	res, err := h.opts.Limiter.AllowPurpose(r.Context(), purpose, ratelimit.ClientIP(r))
	if err != nil {
		logger.Error("failed to check IP rate limit", "purpose", purpose, "error", err.Error())
		return true
	}
	if res.Allowed {
		return true
	}

	logger.Warn("IP rate limit exceeded", "purpose", purpose)
	secs := int(math.Ceil(res.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	h.renderError(w, r, http.StatusTooManyRequests, "Too many requests, please try again later")
	return false
}

// log returns the request logger, or the handler's logger outside the request logging middleware
func (h *Handler) log(r *http.Request) *logging.Logger {
	if logger, ok := logging.FromContext(r.Context()); ok {
		return logger
	}
	return h.logger
}
