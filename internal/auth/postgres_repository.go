package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/go-events-app/internal/database"
)

// revokedRetention is how long revoked rows are kept for auditing before
// CleanupExpiredTokens drops them.
const revokedRetention = 7 * 24 * time.Hour

// PostgresRepository keeps refresh tokens in the refresh_tokens table.
type PostgresRepository struct {
	db  *bun.DB
	now func() time.Time
}

func NewPostgresRepository(db *bun.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

func (r *PostgresRepository) StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	row := &database.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(token),
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: r.now().UTC(),
	}
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken returns revoked and expired rows as they are; callers
// decide what a stale token means.
func (r *PostgresRepository) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	row := new(database.RefreshToken)
	err := r.db.NewSelect().
		Model(row).
		Where("rt.token_hash = ?", hashToken(token)).
		Limit(1).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrRefreshTokenNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return &RefreshToken{
		ID:        row.ID,
		UserID:    row.UserID,
		TokenHash: row.TokenHash,
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
		RevokedAt: row.RevokedAt,
	}, nil
}

// RevokeRefreshToken stamps revoked_at once. A second revoke of the same
// token reports ErrRefreshTokenRevoked, so two concurrent rotations of one
// token cannot both succeed.
func (r *PostgresRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	tokenHash := hashToken(token)

	res, err := r.db.NewUpdate().
		Model((*database.RefreshToken)(nil)).
		Set("revoked_at = ?", r.now().UTC()).
		Where("token_hash = ?", tokenHash).
		Where("revoked_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	} else if n > 0 {
		return nil
	}

	exists, err := r.db.NewSelect().
		Model((*database.RefreshToken)(nil)).
		Where("token_hash = ?", tokenHash).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if exists {
		return ErrRefreshTokenRevoked
	}
	return ErrRefreshTokenNotFound
}

func (r *PostgresRepository) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.NewUpdate().
		Model((*database.RefreshToken)(nil)).
		Set("revoked_at = ?", r.now().UTC()).
		Where("user_id = ?", userID).
		Where("revoked_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to revoke tokens of user %s: %w", userID, err)
	}
	return nil
}

// CleanupExpiredTokens drops expired rows and rows revoked more than
// revokedRetention ago.
func (r *PostgresRepository) CleanupExpiredTokens(ctx context.Context) error {
	now := r.now().UTC()
	_, err := r.db.NewDelete().
		Model((*database.RefreshToken)(nil)).
		WhereOr("expires_at < ?", now).
		WhereOr("revoked_at < ?", now.Add(-revokedRetention)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean up refresh tokens: %w", err)
	}
	return nil
}
