package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redmonkez12/go-events-app/internal/config"
	"github.com/redmonkez12/go-events-app/internal/httputil"
	"github.com/redmonkez12/go-events-app/internal/logging"
)

// Purposes used with AllowPurpose
const (
	PurposeRegister       = "register"
	PurposeLogin          = "login"
	PurposeForgotPassword = "forgot_password"
	PurposeResend         = "resend_verification"
)

// Limiter applies the global per-IP throttle and the stricter auth limits
type Limiter struct {
	store         Store
	requests      int
	window        time.Duration
	authRequests  int
	emailCooldown time.Duration
	exempt        map[string]bool
	logger        *logging.Logger
}

func NewLimiter(store Store, cfg config.RateLimitConfig, logger *logging.Logger, exemptPaths ...string) *Limiter {
	exempt := make(map[string]bool, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = true
	}
	return &Limiter{
		store:         store,
		requests:      cfg.Requests,
		window:        cfg.Window,
		authRequests:  cfg.AuthRequests,
		emailCooldown: cfg.EmailCooldown,
		exempt:        exempt,
		logger:        logger,
	}
}

// Middleware throttles every request per client IP except the exempt paths.
// Store failures let the request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.exempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		res, err := l.store.Allow(r.Context(), "global:"+ClientIP(r), l.requests, l.window)
		if err != nil {
			logging.GetLoggerFromContext(r.Context()).Error("rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.requests))
		if !res.Allowed {
			w.Header().Set("X-RateLimit-Remaining", "0")
			RespondTooManyRequests(w, r, res.RetryAfter, "ThrottlerException: Too Many Requests", httputil.CodeTooManyRequests)
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		next.ServeHTTP(w, r)
	})
}

// AllowPurpose counts a request for purpose from ip against the auth limit
func (l *Limiter) AllowPurpose(ctx context.Context, purpose, ip string) (Result, error) {
	return l.store.Allow(ctx, purpose+":"+ip, l.authRequests, l.window)
}

// EmailCooldown starts the cooldown for email. It returns false when a cooldown
// is already running.
func (l *Limiter) EmailCooldown(ctx context.Context, purpose, email string) (bool, error) {
	return l.store.Acquire(ctx, purpose+":"+strings.ToLower(strings.TrimSpace(email)), l.emailCooldown)
}

// RespondTooManyRequests writes a 429 envelope with Retry-After in whole seconds
func RespondTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfter time.Duration, message, code string) {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	httputil.RespondErrorWithCode(w, r, message, code, http.StatusTooManyRequests)
}

// ClientIP returns the host part of RemoteAddr, which chi's RealIP middleware
// has already replaced with the forwarded address when present.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
