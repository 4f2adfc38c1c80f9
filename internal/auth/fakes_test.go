package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/go-events-app/internal/ratelimit"
	"github.com/redmonkez12/go-events-app/internal/user"
)

type memoryUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[uuid.UUID]*user.User)}
}

func (s *memoryUserStore) Create(_ context.Context, nu user.NewUser) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == nu.Email {
			return nil, user.ErrDuplicateEmail
		}
	}
	token := nu.VerificationToken
	expires := nu.VerificationTokenExpiresAt
	u := &user.User{
		ID:                         uuid.New(),
		Email:                      nu.Email,
		Name:                       nu.Name,
		PasswordHash:               nu.PasswordHash,
		VerificationToken:          &token,
		VerificationTokenExpiresAt: &expires,
		CreatedAt:                  time.Now(),
		UpdatedAt:                  time.Now(),
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *memoryUserStore) find(match func(*user.User) bool) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *memoryUserStore) GetByEmail(_ context.Context, email string) (*user.User, error) {
	return s.find(func(u *user.User) bool { return u.Email == email })
}

func (s *memoryUserStore) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	return s.find(func(u *user.User) bool { return u.ID == id })
}

func (s *memoryUserStore) GetByVerificationToken(_ context.Context, token string) (*user.User, error) {
	return s.find(func(u *user.User) bool {
		return !u.EmailVerified && u.VerificationToken != nil && *u.VerificationToken == token
	})
}

func (s *memoryUserStore) update(id uuid.UUID, fn func(*user.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	fn(u)
	return nil
}

func (s *memoryUserStore) MarkEmailAsVerified(_ context.Context, id uuid.UUID) error {
	return s.update(id, func(u *user.User) {
		u.EmailVerified = true
		u.VerificationToken = nil
		u.VerificationTokenExpiresAt = nil
	})
}

func (s *memoryUserStore) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	return s.update(id, func(u *user.User) { u.PasswordHash = hash })
}

func (s *memoryUserStore) UpdateVerificationToken(_ context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	return s.update(id, func(u *user.User) {
		u.VerificationToken = &token
		u.VerificationTokenExpiresAt = &expiresAt
	})
}

// expireVerification moves the user's verification expiry into the past
func (s *memoryUserStore) expireVerification(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			past := time.Now().Add(-time.Minute)
			u.VerificationTokenExpiresAt = &past
		}
	}
}

type memoryRefreshRepo struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
}

func newMemoryRefreshRepo() *memoryRefreshRepo {
	return &memoryRefreshRepo{tokens: make(map[string]*RefreshToken)}
}

func (r *memoryRefreshRepo) StoreRefreshToken(_ context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[hashToken(token)] = &RefreshToken{ID: uuid.New(), UserID: userID, TokenHash: hashToken(token), ExpiresAt: expiresAt, CreatedAt: time.Now()}
	return nil
}

func (r *memoryRefreshRepo) GetRefreshToken(_ context.Context, token string) (*RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.tokens[hashToken(token)]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	cp := *rt
	return &cp, nil
}

func (r *memoryRefreshRepo) RevokeRefreshToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.tokens[hashToken(token)]
	if !ok {
		return ErrRefreshTokenNotFound
	}
	if rt.RevokedAt != nil {
		return ErrRefreshTokenRevoked
	}
	now := time.Now()
	rt.RevokedAt = &now
	return nil
}

func (r *memoryRefreshRepo) RevokeAllUserTokens(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, rt := range r.tokens {
		if rt.UserID == userID && rt.RevokedAt == nil {
			rt.RevokedAt = &now
		}
	}
	return nil
}

func (r *memoryRefreshRepo) CleanupExpiredTokens(context.Context) error { return nil }

type memoryResetRepo struct {
	mu     sync.Mutex
	tokens map[string]uuid.UUID
}

func newMemoryResetRepo() *memoryResetRepo {
	return &memoryResetRepo{tokens: make(map[string]uuid.UUID)}
}

func (r *memoryResetRepo) StorePasswordResetToken(_ context.Context, userID uuid.UUID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for t, id := range r.tokens {
		if id == userID {
			delete(r.tokens, t)
		}
	}
	r.tokens[token] = userID
	return nil
}

func (r *memoryResetRepo) ConsumePasswordResetToken(_ context.Context, token string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.tokens[token]
	if !ok {
		return uuid.Nil, ErrPasswordResetTokenNotFound
	}
	delete(r.tokens, token)
	return id, nil
}

type sentMail struct {
	kind  string
	to    string
	name  string
	token string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendVerificationEmail(_ context.Context, to, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: "verification", to: to, name: name, token: token})
	return m.err
}

func (m *fakeMailer) SendPasswordResetEmail(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: "password_reset", to: to, token: token})
	return m.err
}

func (m *fakeMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeLimiter struct {
	deny        bool
	coolingDown bool
	purposes    []string
}

func (l *fakeLimiter) AllowPurpose(_ context.Context, purpose, _ string) (ratelimit.Result, error) {
	l.purposes = append(l.purposes, purpose)
	if l.deny {
		return ratelimit.Result{Allowed: false, RetryAfter: 30 * time.Second}, nil
	}
	return ratelimit.Result{Allowed: true}, nil
}

func (l *fakeLimiter) EmailCooldown(context.Context, string, string) (bool, error) {
	return !l.coolingDown, nil
}
