package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/redmonkez12/go-events-app/internal/httputil"
	"github.com/redmonkez12/go-events-app/internal/logging"
	"github.com/redmonkez12/go-events-app/internal/ratelimit"
	"github.com/redmonkez12/go-events-app/internal/user"
)

// RateLimiter is the subset of the rate limiter used by the auth endpoints
type RateLimiter interface {
	AllowPurpose(ctx context.Context, purpose, ip string) (ratelimit.Result, error)
	EmailCooldown(ctx context.Context, purpose, email string) (bool, error)
}

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service      *Service
	rateLimiter  RateLimiter
	isProduction bool
}

func NewHandler(service *Service, rateLimiter RateLimiter, isProduction bool) *Handler {
	return &Handler{
		service:      service,
		rateLimiter:  rateLimiter,
		isProduction: isProduction,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254" example:"jane@example.com"`
	Password string `json:"password" validate:"required,min=8,max=72" example:"password123"`
	Name     string `json:"name" validate:"notblank,max=100" example:"Jane Doe"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"jane@example.com"`
	Password string `json:"password" validate:"required" example:"password123"`
}

// VerifyEmailRequest represents the email verification request
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"notblank"`
}

// RefreshRequest represents the token refresh request body
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// EmailRequest is the body of forgot-password and resend-verification
type EmailRequest struct {
	Email string `json:"email" validate:"required,email,max=254" example:"jane@example.com"`
}

// ResetPasswordRequest represents the password reset confirmation
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"notblank"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

// RegisterResponse represents the registration response
type RegisterResponse struct {
	Message string      `json:"message"`
	User    user.Public `json:"user"`
}

// AuthResponse is returned by login, verify-email and refresh
type AuthResponse struct {
	User user.Public `json:"user"`
	AuthTokens
}

const (
	registeredMessage = "Registration successful. Please check your email to verify your account."
	forgotMessage     = "If an account exists with that email, a password reset link has been sent."
	resendMessage     = "If your email is registered and not verified, a new verification link has been sent."
)

// Register handles user registration
// @Summary      Register a new user
// @Description  Create a new account. A verification email is sent to the address.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration data"
// @Success      201 {object} RegisterResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email already exists"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, ratelimit.PurposeRegister) {
		return
	}

	var req RegisterRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid registration request", "error", err.Error())
		httputil.RespondDecodeError(w, r, err)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	newUser, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			logger.Warn("registration failed: email already exists")
			httputil.RespondErrorWithCode(w, r, "User with this email already exists", httputil.CodeEmailAlreadyExists, http.StatusConflict)
			return
		}
		logger.Error("registration failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, r, "Internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)

	httputil.RespondJSON(w, RegisterResponse{
		Message: registeredMessage,
		User:    newUser.Public(),
	}, http.StatusCreated)
}

// VerifyEmail handles email verification
// @Summary      Verify email address
// @Description  Exchange the emailed verification token for an activated account and a session
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body VerifyEmailRequest true "Verification token"
// @Success      200 {object} AuthResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid or expired token"
// @Router       /auth/verify-email [post]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req VerifyEmailRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondDecodeError(w, r, err)
		return
	}

	session, err := h.service.VerifyEmail(r.Context(), strings.TrimSpace(req.Token))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidVerificationToken):
			logger.Warn("email verification failed: invalid token")
			httputil.RespondErrorWithCode(w, r, "Invalid verification token", httputil.CodeInvalidVerificationToken, http.StatusBadRequest)
		case errors.Is(err, ErrTokenExpired):
			logger.Warn("email verification failed: token expired")
			httputil.RespondErrorWithCode(w, r, "Verification token expired", httputil.CodeTokenExpired, http.StatusBadRequest)
		default:
			logger.Error("email verification failed: internal error", "error", err.Error())
			httputil.RespondErrorWithCode(w, r, "Internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("email verified successfully", "user_id", session.User.ID)
	h.respondSession(w, r, session)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate a verified user and receive access and refresh tokens
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} AuthResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      403 {object} httputil.ErrorResponse "Email not verified"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, ratelimit.PurposeLogin) {
		return
	}

	var req LoginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondDecodeError(w, r, err)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			logger.Warn("login failed: invalid credentials")
			httputil.RespondErrorWithCode(w, r, "Invalid credentials", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
		case errors.Is(err, ErrEmailNotVerified):
			logger.Warn("login failed: email not verified")
			httputil.RespondErrorWithCode(w, r, "Email not verified. Please check your email inbox.", httputil.CodeEmailNotVerified, http.StatusForbidden)
		default:
			logger.Error("login failed: internal error", "error", err.Error())
			httputil.RespondErrorWithCode(w, r, "Internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user logged in successfully")
	h.respondSession(w, r, session)
}

// Me returns the authenticated user
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} user.Public
// @Failure      401 {object} httputil.ErrorResponse "Missing or invalid token, or user not found"
// @Router       /auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, r, "Unauthorized", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	u, err := h.service.ValidateUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			httputil.RespondErrorWithCode(w, r, "User not found", httputil.CodeUserNotFound, http.StatusUnauthorized)
			return
		}
		logging.GetLoggerFromContext(r.Context()).Error("failed to load current user", "error", err.Error())
		httputil.RespondErrorWithCode(w, r, "Internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, u.Public(), http.StatusOK)
}

// Refresh handles access token refresh
// @Summary      Refresh access token
// @Description  Rotate a refresh token (body or refresh_token cookie) for a new token pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Refresh token"
// @Success      200 {object} AuthResponse
// @Failure      400 {object} httputil.ErrorResponse "Refresh token missing"
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired refresh token"
// @Router       /auth/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	refreshToken := refreshTokenFromRequest(r)
	if refreshToken == "" {
		logger.Warn("refresh token missing from both body and cookie")
		httputil.RespondErrorWithCode(w, r, "Refresh token required", httputil.CodeRefreshTokenRequired, http.StatusBadRequest)
		return
	}

	session, err := h.service.RefreshAccessToken(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrRefreshTokenRevoked) || errors.Is(err, ErrRefreshTokenExpired) {
			logger.Warn("token refresh failed: invalid or expired token", "error", err.Error())
			httputil.RespondErrorWithCode(w, r, "Invalid or expired refresh token", httputil.CodeInvalidRefreshToken, http.StatusUnauthorized)
			return
		}
		logger.Error("token refresh failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, r, "Internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("access token refreshed successfully")
	h.respondSession(w, r, session)
}

// Logout handles user logout
// @Summary      User logout
// @Description  Revoke the refresh token (if given) and clear auth cookies
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Optional refresh token"
// @Success      200 {object} httputil.MessageResponse
// @Router       /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if refreshToken := refreshTokenFromRequest(r); refreshToken != "" {
		if err := h.service.RevokeRefreshToken(r.Context(), refreshToken); err != nil {
			// still clear cookies
			logger.Warn("failed to revoke refresh token", "error", err)
		}
	}

	ClearAuthCookies(w)

	logger.Info("user logged out successfully")
	httputil.RespondMessage(w, "Logged out successfully", http.StatusOK)
}

// ForgotPassword handles password reset requests
// @Summary      Request password reset
// @Description  Send a password reset link. Always succeeds to prevent email enumeration.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email address"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /auth/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, ratelimit.PurposeForgotPassword) {
		return
	}

	var req EmailRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondDecodeError(w, r, err)
		return
	}

	if !h.cooldown(w, r, ratelimit.PurposeForgotPassword, req.Email, "Please wait before requesting another reset") {
		return
	}

	_ = h.service.RequestPasswordReset(r.Context(), req.Email)

	httputil.RespondMessage(w, forgotMessage, http.StatusOK)
}

// ResetPassword handles password reset with token
// @Summary      Reset password
// @Description  Set a new password using a valid reset token; all sessions are revoked
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Reset token and new password"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or token"
// @Router       /auth/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResetPasswordRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondDecodeError(w, r, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), strings.TrimSpace(req.Token), req.NewPassword); err != nil {
		if errors.Is(err, ErrPasswordResetTokenNotFound) {
			logger.Warn("password reset failed: invalid or expired token")
			httputil.RespondErrorWithCode(w, r, "Invalid or expired reset token", httputil.CodeInvalidResetToken, http.StatusBadRequest)
			return
		}
		logger.Error("password reset failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, r, "Internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("password reset successfully")
	httputil.RespondMessage(w, "Password reset successfully. You can now login with your new password.", http.StatusOK)
}

// ResendVerificationEmail handles resending verification email
// @Summary      Resend verification email
// @Description  Send a new verification link. Always succeeds to prevent email enumeration.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email address"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /auth/resend-verification [post]
func (h *Handler) ResendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, ratelimit.PurposeResend) {
		return
	}

	var req EmailRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondDecodeError(w, r, err)
		return
	}

	if !h.cooldown(w, r, ratelimit.PurposeResend, req.Email, "Please wait before requesting another email") {
		return
	}

	_ = h.service.ResendVerificationEmail(r.Context(), req.Email)

	httputil.RespondMessage(w, resendMessage, http.StatusOK)
}

// respondSession writes an AuthResponse, also setting cookies when asked to
func (h *Handler) respondSession(w http.ResponseWriter, r *http.Request, session *Session) {
	if ShouldUseCookies(r) {
		SetAuthCookies(w, session.Tokens.AccessToken, session.Tokens.RefreshToken, h.isProduction,
			h.service.AccessTokenDuration(), h.service.RefreshTokenDuration())
	}
	httputil.RespondJSON(w, AuthResponse{
		User:       session.User.Public(),
		AuthTokens: *session.Tokens,
	}, http.StatusOK)
}

// allow applies the per-IP limit for purpose. Limiter failures let the request through.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, purpose string) bool {
	logger := logging.GetLoggerFromContext(r.Context())
	ip := ratelimit.ClientIP(r)

	res, err := h.rateLimiter.AllowPurpose(r.Context(), purpose, ip)
	if err != nil {
		logger.Error("failed to check IP rate limit", "purpose", purpose, "error", err.Error())
		return true
	}
	if !res.Allowed {
		logger.Warn("IP rate limit exceeded", "purpose", purpose, "ip", ip)
		ratelimit.RespondTooManyRequests(w, r, res.RetryAfter, "Too many requests, please try again later", httputil.CodeTooManyRequests)
		return false
	}
	return true
}

// cooldown starts the per-address cooldown, rejecting the request while one runs
func (h *Handler) cooldown(w http.ResponseWriter, r *http.Request, purpose, email, message string) bool {
	logger := logging.GetLoggerFromContext(r.Context())

	ok, err := h.rateLimiter.EmailCooldown(r.Context(), purpose, email)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
		return true
	}
	if !ok {
		logger.Warn("email on cooldown", "purpose", purpose)
		httputil.RespondErrorWithCode(w, r, message, httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return false
	}
	return true
}

// refreshTokenFromRequest reads {"refreshToken"} from the body, then the cookie
func refreshTokenFromRequest(r *http.Request) string {
	var req RefreshRequest
	if r.Body != nil {
		_ = json.NewDecoder(io.LimitReader(r.Body, httputil.MaxBodyBytes)).Decode(&req)
	}
	if token := strings.TrimSpace(req.RefreshToken); token != "" {
		return token
	}
	token, _ := GetRefreshTokenFromCookie(r)
	return strings.TrimSpace(token)
}
