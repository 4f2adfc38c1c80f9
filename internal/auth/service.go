package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/go-events-app/internal/logging"
	"github.com/redmonkez12/go-events-app/internal/metrics"
	"github.com/redmonkez12/go-events-app/internal/user"
)

var (
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrEmailNotVerified         = errors.New("email not verified")
	ErrInvalidVerificationToken = errors.New("invalid verification token")
	ErrTokenExpired             = errors.New("verification token expired")
	ErrUserNotFound             = errors.New("user not found")
)

// UserStore is the user persistence the service needs
type UserStore interface {
	Create(ctx context.Context, nu user.NewUser) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*user.User, error)
	MarkEmailAsVerified(ctx context.Context, userID uuid.UUID) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	UpdateVerificationToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
}

// PasswordResetStore keeps single-use password reset tokens
type PasswordResetStore interface {
	StorePasswordResetToken(ctx context.Context, userID uuid.UUID, token string) error
	ConsumePasswordResetToken(ctx context.Context, token string) (uuid.UUID, error)
}

// EmailService defines the interface for email operations
type EmailService interface {
	SendVerificationEmail(ctx context.Context, toEmail, name, token string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, token string) error
}

// Options holds the token lifetimes used by the service
type Options struct {
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
	VerificationTokenTTL time.Duration
}

// Service handles authentication business logic
type Service struct {
	userRepo          UserStore
	authRepo          RefreshTokenRepository
	passwordResetRepo PasswordResetStore
	tokenService      TokenService
	emailService      EmailService
	logger            *logging.Logger
	opts              Options
	now               func() time.Time

	// pending mail sends, awaited on shutdown
	mailWG sync.WaitGroup
}

func NewService(
	userRepo UserStore,
	authRepo RefreshTokenRepository,
	passwordResetRepo PasswordResetStore,
	tokenService TokenService,
	emailService EmailService,
	logger *logging.Logger,
	opts Options,
) *Service {
	return &Service{
		userRepo:          userRepo,
		authRepo:          authRepo,
		passwordResetRepo: passwordResetRepo,
		tokenService:      tokenService,
		emailService:      emailService,
		logger:            logger,
		opts:              opts,
		now:               time.Now,
	}
}

// AccessTokenDuration is the lifetime of issued access tokens
func (s *Service) AccessTokenDuration() time.Duration { return s.opts.AccessTokenDuration }

// RefreshTokenDuration is the lifetime of issued refresh tokens
func (s *Service) RefreshTokenDuration() time.Duration { return s.opts.RefreshTokenDuration }

// Register creates a new unverified account and mails the verification link.
// The mail is sent in the background; a send failure does not fail registration.
func (s *Service) Register(ctx context.Context, email, password, name string) (*user.User, error) {
	email = user.NormalizeEmail(email)
	name = strings.TrimSpace(name)

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, user.ErrDuplicateEmail
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	verificationToken, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	// the unique index still guards against a concurrent registration
	newUser, err := s.userRepo.Create(ctx, user.NewUser{
		Email:                      email,
		Name:                       name,
		PasswordHash:               passwordHash,
		VerificationToken:          verificationToken,
		VerificationTokenExpiresAt: s.now().Add(s.opts.VerificationTokenTTL),
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	metrics.Registrations.Inc()

	s.sendAsync("verification", func(ctx context.Context) error {
		return s.emailService.SendVerificationEmail(ctx, newUser.Email, newUser.Name, verificationToken)
	})

	return newUser, nil
}

// VerifyEmail activates the account holding token and logs it in.
// The token is cleared so it can be used only once.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*Session, error) {
	existingUser, err := s.userRepo.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			metrics.EmailVerifications.WithLabelValues("invalid").Inc()
			return nil, ErrInvalidVerificationToken
		}
		return nil, fmt.Errorf("failed to find user by token: %w", err)
	}

	if existingUser.VerificationExpired(s.now()) {
		metrics.EmailVerifications.WithLabelValues("expired").Inc()
		return nil, ErrTokenExpired
	}

	if err := s.userRepo.MarkEmailAsVerified(ctx, existingUser.ID); err != nil {
		return nil, fmt.Errorf("failed to verify email: %w", err)
	}
	existingUser.EmailVerified = true
	existingUser.VerificationToken = nil
	existingUser.VerificationTokenExpiresAt = nil

	metrics.EmailVerifications.WithLabelValues(metrics.ResultSuccess).Inc()

	return s.newSession(ctx, existingUser)
}

// Login authenticates a user and returns tokens
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		metrics.Logins.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	existingUser, err := s.userRepo.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			metrics.Logins.WithLabelValues("invalid_credentials").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !VerifyPassword(existingUser.PasswordHash, password) {
		metrics.Logins.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	if !existingUser.EmailVerified {
		metrics.Logins.WithLabelValues("unverified").Inc()
		return nil, ErrEmailNotVerified
	}

	metrics.Logins.WithLabelValues(metrics.ResultSuccess).Inc()

	if NeedsRehash(existingUser.PasswordHash) {
		s.rehashPassword(ctx, existingUser.ID, password)
	}

	return s.newSession(ctx, existingUser)
}

// rehashPassword upgrades a hash made with older argon2 parameters. Failure
// only costs the upgrade, so it is logged and the login goes on.
func (s *Service) rehashPassword(ctx context.Context, userID uuid.UUID, password string) {
	hash, err := HashPassword(password)
	if err == nil {
		err = s.userRepo.UpdatePassword(ctx, userID, hash)
	}
	if err != nil {
		s.logger.Warn("failed to upgrade password hash", "user_id", userID.String(), "error", err)
	}
}

// ValidateUser loads the user behind an access token
func (s *Service) ValidateUser(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// RefreshAccessToken rotates a refresh token: the old one is revoked and a new
// pair is issued.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (*Session, error) {
	rt, err := s.authRepo.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrRefreshTokenNotFound), errors.Is(err, ErrInvalidToken):
			return nil, ErrInvalidToken
		case errors.Is(err, ErrRefreshTokenRevoked), errors.Is(err, ErrRefreshTokenExpired):
			return nil, err
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	if rt.IsRevoked() {
		return nil, ErrRefreshTokenRevoked
	}
	if rt.IsExpired() {
		return nil, ErrRefreshTokenExpired
	}

	// a concurrent rotation of the same token loses here
	if err := s.authRepo.RevokeRefreshToken(ctx, refreshToken); err != nil {
		if errors.Is(err, ErrRefreshTokenRevoked) {
			return nil, ErrRefreshTokenRevoked
		}
		return nil, fmt.Errorf("failed to revoke old refresh token: %w", err)
	}

	existingUser, err := s.userRepo.GetByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return s.newSession(ctx, existingUser)
}

// RevokeRefreshToken revokes a refresh token
func (s *Service) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	return s.authRepo.RevokeRefreshToken(ctx, refreshToken)
}

// RequestPasswordReset initiates the password reset process
// Always returns nil to prevent email enumeration attacks
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	existingUser, err := s.userRepo.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("failed to get user for password reset", "error", err)
		}
		return nil
	}

	token, err := generateRandomToken()
	if err != nil {
		s.logger.Warn("failed to generate password reset token", "error", err)
		return nil
	}

	if err := s.passwordResetRepo.StorePasswordResetToken(ctx, existingUser.ID, token); err != nil {
		s.logger.Warn("failed to store password reset token", "error", err)
		return nil
	}

	s.sendAsync("password_reset", func(ctx context.Context) error {
		return s.emailService.SendPasswordResetEmail(ctx, existingUser.Email, token)
	})

	return nil
}

// ResetPassword sets a new password using a valid reset token and revokes
// every refresh token of the user
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := s.passwordResetRepo.ConsumePasswordResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrPasswordResetTokenNotFound) {
			return ErrPasswordResetTokenNotFound
		}
		return fmt.Errorf("failed to consume password reset token: %w", err)
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, passwordHash); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrPasswordResetTokenNotFound
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.authRepo.RevokeAllUserTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke all user tokens after password reset", "error", err)
	}

	return nil
}

// ResendVerificationEmail issues a fresh verification token and mails it
// Always returns nil to prevent email enumeration attacks
func (s *Service) ResendVerificationEmail(ctx context.Context, email string) error {
	existingUser, err := s.userRepo.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("failed to get user for resend verification", "error", err)
		}
		return nil
	}

	if existingUser.EmailVerified {
		return nil
	}

	token, err := generateRandomToken()
	if err != nil {
		s.logger.Warn("failed to generate verification token", "error", err)
		return nil
	}

	expiresAt := s.now().Add(s.opts.VerificationTokenTTL)
	if err := s.userRepo.UpdateVerificationToken(ctx, existingUser.ID, token, expiresAt); err != nil {
		s.logger.Warn("failed to update verification token", "error", err)
		return nil
	}

	s.sendAsync("verification", func(ctx context.Context) error {
		return s.emailService.SendVerificationEmail(ctx, existingUser.Email, existingUser.Name, token)
	})

	return nil
}

// Wait blocks until background mail sends have finished
func (s *Service) Wait() {
	s.mailWG.Wait()
}

// sendAsync runs send in a goroutine detached from the request context
func (s *Service) sendAsync(kind string, send func(ctx context.Context) error) {
	s.mailWG.Add(1)
	go func() {
		defer s.mailWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := send(ctx); err != nil {
			s.logger.Warn("failed to send email", "kind", kind, "error", err)
		}
	}()
}

// newSession issues an access token and a stored refresh token for u
func (s *Service) newSession(ctx context.Context, u *user.User) (*Session, error) {
	accessToken, err := s.tokenService.CreateToken(u.ID, u.Email, s.opts.AccessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	expiresAt := s.now().Add(s.opts.RefreshTokenDuration)
	if err := s.authRepo.StoreRefreshToken(ctx, u.ID, refreshToken, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &Session{
		User: u,
		Tokens: &AuthTokens{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    "Bearer",
			ExpiresIn:    int64(s.opts.AccessTokenDuration.Seconds()),
		},
	}, nil
}
