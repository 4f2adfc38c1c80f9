package web

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/go-events-app/internal/auth"
	"github.com/redmonkez12/go-events-app/internal/event"
	"github.com/redmonkez12/go-events-app/internal/ratelimit"
	"github.com/redmonkez12/go-events-app/internal/user"
)

type fakeAccount struct {
	user     *user.User
	password string
}

// fakeAuth issues "access-<user id>" access tokens and random refresh tokens
type fakeAuth struct {
	mu           sync.Mutex
	accounts     map[string]*fakeAccount
	refresh      map[string]uuid.UUID
	verify       map[string]string
	revoked      []string
	refreshCalls int
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		accounts: map[string]*fakeAccount{},
		refresh:  map[string]uuid.UUID{},
		verify:   map[string]string{},
	}
}

func (a *fakeAuth) add(email, name, password string, verified bool) *user.User {
	a.mu.Lock()
	defer a.mu.Unlock()

	u := &user.User{ID: uuid.New(), Email: email, Name: name, EmailVerified: verified}
	a.accounts[email] = &fakeAccount{user: u, password: password}
	return u
}

func (a *fakeAuth) byID(id uuid.UUID) *user.User {
	for _, acc := range a.accounts {
		if acc.user.ID == id {
			return acc.user
		}
	}
	return nil
}

// session must be called with mu held
func (a *fakeAuth) session(u *user.User) *auth.Session {
	refresh := uuid.NewString()
	a.refresh[refresh] = u.ID
	return &auth.Session{User: u, Tokens: &auth.AuthTokens{
		AccessToken:  "access-" + u.ID.String(),
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    900,
	}}
}

func (a *fakeAuth) Register(_ context.Context, email, password, name string) (*user.User, error) {
	email = user.NormalizeEmail(email)
	a.mu.Lock()
	_, exists := a.accounts[email]
	a.mu.Unlock()
	if exists {
		return nil, user.ErrDuplicateEmail
	}
	return a.add(email, strings.TrimSpace(name), password, false), nil
}

func (a *fakeAuth) Login(_ context.Context, email, password string) (*auth.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	acc, ok := a.accounts[user.NormalizeEmail(email)]
	if !ok || acc.password != password {
		return nil, auth.ErrInvalidCredentials
	}
	if !acc.user.EmailVerified {
		return nil, auth.ErrEmailNotVerified
	}
	return a.session(acc.user), nil
}

func (a *fakeAuth) VerifyEmail(_ context.Context, token string) (*auth.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if token == "expired" {
		return nil, auth.ErrTokenExpired
	}
	email, ok := a.verify[token]
	if !ok {
		return nil, auth.ErrInvalidVerificationToken
	}
	delete(a.verify, token)
	acc := a.accounts[email]
	acc.user.EmailVerified = true
	return a.session(acc.user), nil
}

func (a *fakeAuth) ValidateUser(_ context.Context, userID uuid.UUID) (*user.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if u := a.byID(userID); u != nil {
		return u, nil
	}
	return nil, auth.ErrUserNotFound
}

func (a *fakeAuth) RefreshAccessToken(_ context.Context, refreshToken string) (*auth.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.refreshCalls++
	id, ok := a.refresh[refreshToken]
	if !ok {
		return nil, auth.ErrRefreshTokenRevoked
	}
	delete(a.refresh, refreshToken)
	return a.session(a.byID(id)), nil
}

func (a *fakeAuth) RevokeRefreshToken(_ context.Context, refreshToken string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.revoked = append(a.revoked, refreshToken)
	delete(a.refresh, refreshToken)
	return nil
}

func (a *fakeAuth) AccessTokenDuration() time.Duration  { return 15 * time.Minute }
func (a *fakeAuth) RefreshTokenDuration() time.Duration { return 24 * time.Hour }

// fakeAuthn accepts the access tokens fakeAuth issues until reject is set
type fakeAuthn struct {
	auth   *fakeAuth
	mu     sync.Mutex
	reject bool
}

func (f *fakeAuthn) setReject(v bool) {
	f.mu.Lock()
	f.reject = v
	f.mu.Unlock()
}

func (f *fakeAuthn) Authenticate(token string) (uuid.UUID, string, error) {
	f.mu.Lock()
	reject := f.reject
	f.mu.Unlock()
	if reject {
		return uuid.Nil, "", auth.ErrExpiredToken
	}

	id, err := uuid.Parse(strings.TrimPrefix(token, "access-"))
	if err != nil {
		return uuid.Nil, "", auth.ErrInvalidToken
	}

	f.auth.mu.Lock()
	defer f.auth.mu.Unlock()
	u := f.auth.byID(id)
	if u == nil {
		return uuid.Nil, "", auth.ErrInvalidToken
	}
	return u.ID, u.Email, nil
}

// fakeEvents mirrors the event service's ownership rules
type fakeEvents struct {
	mu    sync.Mutex
	items map[uuid.UUID]*event.Event
	err   error
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{items: map[uuid.UUID]*event.Event{}}
}

func (s *fakeEvents) seed(userID uuid.UUID, title string, dt time.Time) *event.Event {
	e, _ := s.Create(context.Background(), userID, event.NewEvent{Title: title, Members: "Jane", Datetime: dt})
	return e
}

func (s *fakeEvents) get(id uuid.UUID) *event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

func (s *fakeEvents) Create(_ context.Context, userID uuid.UUID, ne event.NewEvent) (*event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	e := &event.Event{
		ID:       uuid.New(),
		Title:    ne.Title,
		Members:  ne.Members,
		Messages: ne.Messages,
		Datetime: ne.Datetime,
		UserID:   userID,
	}
	s.items[e.ID] = e
	return e, nil
}

func (s *fakeEvents) FindAll(_ context.Context, userID uuid.UUID, filter event.ListFilter) ([]*event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	out := []*event.Event{}
	for _, e := range s.items {
		if e.UserID != userID {
			continue
		}
		if filter.From != nil && e.Datetime.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !e.Datetime.Before(*filter.To) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Datetime.Before(out[j].Datetime) })
	return out, nil
}

func (s *fakeEvents) FindOne(_ context.Context, id, userID uuid.UUID) (*event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owned(id, userID)
}

func (s *fakeEvents) owned(id, userID uuid.UUID) (*event.Event, error) {
	e, ok := s.items[id]
	if !ok {
		return nil, event.ErrNotFound
	}
	if e.UserID != userID {
		return nil, event.ErrForbidden
	}
	return e, nil
}

func (s *fakeEvents) Update(_ context.Context, id, userID uuid.UUID, p event.Patch) (*event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.owned(id, userID)
	if err != nil {
		return nil, err
	}
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Members != nil {
		e.Members = *p.Members
	}
	if p.Messages != nil {
		e.Messages = *p.Messages
	}
	if p.Datetime != nil {
		e.Datetime = *p.Datetime
	}
	return e, nil
}

func (s *fakeEvents) Remove(_ context.Context, id, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.owned(id, userID); err != nil {
		return err
	}
	delete(s.items, id)
	return nil
}

type fakeLimiter struct {
	deny bool
}

func (l *fakeLimiter) AllowPurpose(context.Context, string, string) (ratelimit.Result, error) {
	if l.deny {
		return ratelimit.Result{Allowed: false, RetryAfter: 30 * time.Second}, nil
	}
	return ratelimit.Result{Allowed: true}, nil
}

func (l *fakeLimiter) EmailCooldown(context.Context, string, string) (bool, error) {
	return true, nil
}

var errBoom = errors.New("boom")
