package web

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/redmonkez12/go-events-app/internal/auth"
	"github.com/redmonkez12/go-events-app/internal/logging"
)

// loadSession puts the signed-in user on the request context. An expired
// access token is renewed from the refresh token cookie.
func (h *Handler) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, email, ok := h.sessionUser(w, r); ok {
			ctx := auth.WithUser(r.Context(), userID, email)
			logger := h.log(r).WithFields(map[string]any{"user_id": userID})
			r = r.WithContext(logging.WithContext(ctx, logger))
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) sessionUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	if token, err := auth.GetAccessTokenFromCookie(r); err == nil {
		if userID, email, err := h.authn.Authenticate(token); err == nil {
			return userID, email, true
		}
	}

	refreshToken, err := auth.GetRefreshTokenFromCookie(r)
	if err != nil {
		return uuid.Nil, "", false
	}

	session, err := h.auth.RefreshAccessToken(r.Context(), refreshToken)
	if err != nil {
		h.log(r).Debug("session refresh failed", "error", err.Error())
		auth.ClearAuthCookies(w)
		return uuid.Nil, "", false
	}

	h.setSession(w, session)
	return session.User.ID, session.User.Email, true
}

func (h *Handler) setSession(w http.ResponseWriter, session *auth.Session) {
	auth.SetAuthCookies(w, session.Tokens.AccessToken, session.Tokens.RefreshToken, h.opts.Secure,
		h.auth.AccessTokenDuration(), h.auth.RefreshTokenDuration())
}

// requireUser redirects anonymous visitors to the sign-in page
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.GetUserIDFromContext(r.Context()); !ok {
			redirect(w, r, "/login")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUserID(r *http.Request) uuid.UUID {
	userID, _ := auth.GetUserIDFromContext(r.Context())
	return userID
}
