package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/go-events-app/internal/config"
)

// RefreshTokenRepository defines the interface for refresh token storage
type RefreshTokenRepository interface {
	StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string) error
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error
	CleanupExpiredTokens(ctx context.Context) error
}

// NewRefreshTokenRepository returns the store selected by REFRESH_TOKEN_STORE
func NewRefreshTokenRepository(store string, db *bun.DB, client *redis.Client) (RefreshTokenRepository, error) {
	switch store {
	case config.BackendRedis:
		return NewRedisRepository(client), nil
	case config.BackendPostgres:
		return NewPostgresRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown refresh token store %q", store)
	}
}

// hashToken returns the hex sha256 of token; raw tokens are never stored
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
