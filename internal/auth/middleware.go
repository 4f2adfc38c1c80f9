package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/redmonkez12/go-events-app/internal/httputil"
	"github.com/redmonkez12/go-events-app/internal/logging"
)

type principalKey struct{}

// principal is the authenticated caller stored on the request context.
type principal struct {
	id    uuid.UUID
	email string
}

var errMissingAuth = errors.New("missing authentication")

// Middleware turns access tokens into request principals. Tokens come from
// the Authorization header or, for browser clients, the access token cookie.
type Middleware struct {
	tokenService TokenService
}

func NewMiddleware(tokenService TokenService) *Middleware {
	return &Middleware{tokenService: tokenService}
}

// Authenticate verifies an access token and returns the user it names
func (m *Middleware) Authenticate(token string) (uuid.UUID, string, error) {
	claims, err := m.tokenService.VerifyToken(token)
	if err != nil {
		return uuid.Nil, "", err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, "", ErrInvalidToken
	}
	return userID, claims.Email, nil
}

// RequireAuth is a middleware that validates the access token
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := requestToken(r)
		if err != nil {
			if errors.Is(err, errMissingAuth) {
				httputil.RespondErrorWithCode(w, r, "Unauthorized", httputil.CodeMissingAuth, http.StatusUnauthorized)
				return
			}
			httputil.RespondErrorWithCode(w, r, "Invalid authorization header format", httputil.CodeInvalidAuthHeader, http.StatusUnauthorized)
			return
		}

		userID, email, err := m.Authenticate(token)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				httputil.RespondErrorWithCode(w, r, "Token has expired", httputil.CodeTokenExpired, http.StatusUnauthorized)
				return
			}
			httputil.RespondErrorWithCode(w, r, "Invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
			return
		}

		ctx := WithUser(r.Context(), userID, email)
		if logger, ok := logging.FromContext(ctx); ok {
			ctx = logging.WithContext(ctx, logger.WithFields(map[string]any{"user_id": userID.String()}))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestToken reads the bearer token, falling back to the access token cookie
func requestToken(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		token, ok := TokenFromHeader(authHeader)
		if !ok {
			return "", ErrInvalidToken
		}
		return token, nil
	}

	token, err := GetAccessTokenFromCookie(r)
	if err != nil {
		return "", errMissingAuth
	}
	return token, nil
}

// WithUser stores the authenticated user on ctx
func WithUser(ctx context.Context, userID uuid.UUID, email string) context.Context {
	return context.WithValue(ctx, principalKey{}, principal{id: userID, email: email})
}

// GetUserIDFromContext returns the user set by WithUser.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	p, ok := ctx.Value(principalKey{}).(principal)
	return p.id, ok
}

func GetUserEmailFromContext(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(principalKey{}).(principal)
	return p.email, ok
}
