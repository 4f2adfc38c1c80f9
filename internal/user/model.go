package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                         uuid.UUID  `json:"id"`
	Email                      string     `json:"email"`
	Name                       string     `json:"name"`
	PasswordHash               string     `json:"-"` // Never expose password hash in JSON
	EmailVerified              bool       `json:"emailVerified"`
	VerificationToken          *string    `json:"-"`
	VerificationTokenExpiresAt *time.Time `json:"-"`
	CreatedAt                  time.Time  `json:"createdAt"`
	UpdatedAt                  time.Time  `json:"updatedAt"`
}

// NewUser holds the fields needed to insert a user
type NewUser struct {
	Email                      string
	Name                       string
	PasswordHash               string
	VerificationToken          string
	VerificationTokenExpiresAt time.Time
}

// Public is the user shape returned by the API
type Public struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

func (u *User) Public() Public {
	return Public{ID: u.ID, Email: u.Email, Name: u.Name}
}

// VerificationExpired reports whether the pending verification token has expired at now
func (u *User) VerificationExpired(now time.Time) bool {
	return u.VerificationTokenExpiresAt != nil && now.After(*u.VerificationTokenExpiresAt)
}

// NormalizeEmail lowercases and trims an address before storage or lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
