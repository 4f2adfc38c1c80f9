package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const passwordResetTokenTTL = time.Hour

// PasswordResetRepository keeps at most one outstanding reset token per user.
// Token keys map a token hash to its user; a per-user key remembers the
// current hash so a newer request invalidates the older link.
type PasswordResetRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPasswordResetRepository(client *redis.Client) *PasswordResetRepository {
	return &PasswordResetRepository{client: client, ttl: passwordResetTokenTTL}
}

func (r *PasswordResetRepository) StorePasswordResetToken(ctx context.Context, userID uuid.UUID, token string) error {
	tokenHash := hashToken(token)

	previous, err := r.client.SetArgs(ctx, passwordResetUserKey(userID), tokenHash, redis.SetArgs{
		TTL: r.ttl,
		Get: true,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to store password reset token: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if previous != "" && previous != tokenHash {
			pipe.Del(ctx, "password_reset:"+previous)
		}
		pipe.Set(ctx, "password_reset:"+tokenHash, userID.String(), r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store password reset token: %w", err)
	}
	return nil
}

// ConsumePasswordResetToken atomically reads and deletes a token, so each
// link resets a password at most once.
func (r *PasswordResetRepository) ConsumePasswordResetToken(ctx context.Context, token string) (uuid.UUID, error) {
	raw, err := r.client.GetDel(ctx, passwordResetKey(token)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return uuid.Nil, ErrPasswordResetTokenNotFound
	case err != nil:
		return uuid.Nil, fmt.Errorf("failed to consume password reset token: %w", err)
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("password reset token holds bad user id %q: %w", raw, err)
	}
	return userID, nil
}

func passwordResetKey(token string) string {
	return "password_reset:" + hashToken(token)
}

func passwordResetUserKey(userID uuid.UUID) string {
	return "password_reset_user:" + userID.String()
}
