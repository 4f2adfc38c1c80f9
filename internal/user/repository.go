package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/go-events-app/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// pqUniqueViolation is the SQLSTATE postgres reports for the users_email_key
// constraint.
const pqUniqueViolation = "23505"

// Repository reads and writes the users table.
type Repository struct {
	db  *bun.DB
	now func() time.Time
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Create inserts an unverified user. The email is stored normalized, so the
// unique index makes addresses case-insensitive.
func (r *Repository) Create(ctx context.Context, nu NewUser) (*User, error) {
	now := r.now().UTC()
	row := &database.User{
		Email:                      NormalizeEmail(nu.Email),
		Name:                       nu.Name,
		PasswordHash:               nu.PasswordHash,
		VerificationToken:          &nu.VerificationToken,
		VerificationTokenExpiresAt: &nu.VerificationTokenExpiresAt,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}

	if _, err := r.db.NewInsert().Model(row).Returning("*").Exec(ctx); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user %s: %w", row.Email, err)
	}
	return toUser(row), nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.find(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("email = ?", NormalizeEmail(email))
	})
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.find(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id = ?", id)
	})
}

// GetByVerificationToken only matches users that are still unverified.
func (r *Repository) GetByVerificationToken(ctx context.Context, token string) (*User, error) {
	return r.find(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("verification_token = ?", token).Where("email_verified = FALSE")
	})
}

// MarkEmailAsVerified flags the address as verified and drops the token so
// the verification link cannot be replayed.
func (r *Repository) MarkEmailAsVerified(ctx context.Context, userID uuid.UUID) error {
	return r.update(ctx, "mark email verified", userID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("email_verified = TRUE").
			Set("verification_token = NULL").
			Set("verification_token_expires_at = NULL")
	})
}

func (r *Repository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	return r.update(ctx, "update password", userID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("password_hash = ?", passwordHash)
	})
}

// UpdateVerificationToken reports ErrNotFound for verified users.
func (r *Repository) UpdateVerificationToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	return r.update(ctx, "update verification token", userID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("verification_token = ?", token).
			Set("verification_token_expires_at = ?", expiresAt.UTC()).
			Where("email_verified = FALSE")
	})
}

func (r *Repository) find(ctx context.Context, where func(*bun.SelectQuery) *bun.SelectQuery) (*User, error) {
	row := new(database.User)
	err := where(r.db.NewSelect().Model(row)).Limit(1).Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return toUser(row), nil
}

// update applies set to one user row, bumps updated_at and reports
// ErrNotFound when no row matched.
func (r *Repository) update(ctx context.Context, op string, userID uuid.UUID, set func(*bun.UpdateQuery) *bun.UpdateQuery) error {
	q := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("updated_at = ?", r.now().UTC()).
		Where("id = ?", userID)

	res, err := set(q).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func toUser(row *database.User) *User {
	return &User{
		ID:                         row.ID,
		Email:                      row.Email,
		Name:                       row.Name,
		PasswordHash:               row.PasswordHash,
		EmailVerified:              row.EmailVerified,
		VerificationToken:          row.VerificationToken,
		VerificationTokenExpiresAt: row.VerificationTokenExpiresAt,
		CreatedAt:                  row.CreatedAt,
		UpdatedAt:                  row.UpdatedAt,
	}
}
