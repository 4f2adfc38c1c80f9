package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisTokenPrefix   = "refresh_token:"
	redisUserSetPrefix = "refresh_tokens_by_user:"
	redisCleanupBatch  = 100
)

// Revocation is a field on the token hash, so it expires with the token.
// HSETNX keeps the first revocation time and reports a repeat.
var revokeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
if redis.call('HSETNX', KEYS[1], 'revoked_at', ARGV[1]) == 0 then
	return 2
end
return 1
`)

// revokeUserScript revokes every live token in a user's set and drops the
// members whose token key has already expired.
var revokeUserScript = redis.NewScript(`
local revoked = 0
for _, hash in ipairs(redis.call('SMEMBERS', KEYS[1])) do
	local key = ARGV[2] .. hash
	if redis.call('EXISTS', key) == 1 then
		revoked = revoked + redis.call('HSETNX', key, 'revoked_at', ARGV[1])
	else
		redis.call('SREM', KEYS[1], hash)
	end
end
return revoked
`)

var pruneUserScript = redis.NewScript(`
local removed = 0
for _, hash in ipairs(redis.call('SMEMBERS', KEYS[1])) do
	if redis.call('EXISTS', ARGV[1] .. hash) == 0 then
		removed = removed + redis.call('SREM', KEYS[1], hash)
	end
end
return removed
`)

// RedisRepository stores each refresh token as a hash that expires with the
// token, plus a per-user set of token hashes for RevokeAllUserTokens.
type RedisRepository struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client, now: time.Now}
}

func (r *RedisRepository) StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	now := r.now()
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return fmt.Errorf("refresh token for user %s already expired at %s", userID, expiresAt.Format(time.RFC3339))
	}

	tokenHash := hashToken(token)
	setKey := redisUserSetPrefix + userID.String()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redisTokenPrefix+tokenHash,
			"user_id", userID.String(),
			"expires_at", expiresAt.UnixMilli(),
			"created_at", now.UnixMilli(),
		)
		pipe.PExpireAt(ctx, redisTokenPrefix+tokenHash, expiresAt)
		pipe.SAdd(ctx, setKey, tokenHash)
		// lifetimes are uniform, so the newest token decides how long the set lives
		pipe.PExpireAt(ctx, setKey, expiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken returns a revoked token with RevokedAt set rather than an error.
func (r *RedisRepository) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	tokenHash := hashToken(token)

	fields, err := r.client.HGetAll(ctx, redisTokenPrefix+tokenHash).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrRefreshTokenNotFound
	}

	userID, err := uuid.Parse(fields["user_id"])
	if err != nil {
		return nil, ErrInvalidToken
	}
	expiresAt, err := unixMilliField(fields, "expires_at")
	if err != nil {
		return nil, ErrInvalidToken
	}

	rt := &RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}
	if createdAt, err := unixMilliField(fields, "created_at"); err == nil {
		rt.CreatedAt = createdAt
	}
	if _, ok := fields["revoked_at"]; ok {
		revokedAt, err := unixMilliField(fields, "revoked_at")
		if err != nil {
			revokedAt = r.now()
		}
		rt.RevokedAt = &revokedAt
	}
	return rt, nil
}

func (r *RedisRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	keys := []string{redisTokenPrefix + hashToken(token)}
	res, err := revokeScript.Run(ctx, r.client, keys, r.now().UnixMilli()).Int()
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	switch res {
	case 0:
		return ErrRefreshTokenNotFound
	case 2:
		return ErrRefreshTokenRevoked
	}
	return nil
}

func (r *RedisRepository) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error {
	keys := []string{redisUserSetPrefix + userID.String()}
	if err := revokeUserScript.Run(ctx, r.client, keys, r.now().UnixMilli(), redisTokenPrefix).Err(); err != nil {
		return fmt.Errorf("failed to revoke tokens of user %s: %w", userID, err)
	}
	return nil
}

// CleanupExpiredTokens prunes per-user sets of hashes whose token key has
// expired. The token keys themselves go away through their TTL.
func (r *RedisRepository) CleanupExpiredTokens(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, redisUserSetPrefix+"*", redisCleanupBatch).Iterator()
	for iter.Next(ctx) {
		err := pruneUserScript.Run(ctx, r.client, []string{iter.Val()}, redisTokenPrefix).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to prune %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan refresh token sets: %w", err)
	}
	return nil
}

func unixMilliField(fields map[string]string, name string) (time.Time, error) {
	ms, err := strconv.ParseInt(fields[name], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %s: %w", name, err)
	}
	return time.UnixMilli(ms), nil
}
