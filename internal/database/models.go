package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the users table row
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                         uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Email                      string     `bun:"email,notnull,unique"`
	PasswordHash               string     `bun:"password_hash,notnull"`
	Name                       string     `bun:"name,notnull"`
	EmailVerified              bool       `bun:"email_verified,notnull,default:false"`
	VerificationToken          *string    `bun:"verification_token,unique"`
	VerificationTokenExpiresAt *time.Time `bun:"verification_token_expires_at"`
	CreatedAt                  time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt                  time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

// Event is the events table row
type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Title     string    `bun:"title,notnull"`
	Members   string    `bun:"members,notnull"`
	Messages  string    `bun:"messages,notnull"`
	Datetime  time.Time `bun:"datetime,notnull"`
	UserID    uuid.UUID `bun:"user_id,type:uuid,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// RefreshToken is the refresh_tokens table row
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rt"`

	ID        uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	UserID    uuid.UUID  `bun:"user_id,type:uuid,notnull"`
	TokenHash string     `bun:"token_hash,notnull,unique"`
	ExpiresAt time.Time  `bun:"expires_at,notnull"`
	CreatedAt time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	RevokedAt *time.Time `bun:"revoked_at"`
}
