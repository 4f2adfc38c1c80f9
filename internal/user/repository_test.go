package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/go-events-app/internal/testutil"
)

func newUser(email, token string) NewUser {
	return NewUser{
		Email:                      email,
		Name:                       "Jane",
		PasswordHash:               "hash",
		VerificationToken:          token,
		VerificationTokenExpiresAt: time.Now().Add(24 * time.Hour).UTC(),
	}
}

func TestRepository(t *testing.T) {
	repo := NewRepository(testutil.StartPostgres(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, newUser(" Jane@Example.com", "tok-1"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "jane@example.com", created.Email)
	assert.False(t, created.EmailVerified)
	require.NotNil(t, created.VerificationToken)
	assert.Equal(t, "tok-1", *created.VerificationToken)

	_, err = repo.Create(ctx, newUser("jane@example.com", "tok-2"))
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	byEmail, err := repo.GetByEmail(ctx, "JANE@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", byID.Name)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	byToken, err := repo.GetByVerificationToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byToken.ID)

	expires := time.Now().Add(time.Hour).UTC()
	require.NoError(t, repo.UpdateVerificationToken(ctx, created.ID, "tok-3", expires))
	_, err = repo.GetByVerificationToken(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.MarkEmailAsVerified(ctx, created.ID))
	verified, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, verified.EmailVerified)
	assert.Nil(t, verified.VerificationToken)
	assert.Nil(t, verified.VerificationTokenExpiresAt)

	_, err = repo.GetByVerificationToken(ctx, "tok-3")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.UpdateVerificationToken(ctx, created.ID, "tok-4", expires), ErrNotFound,
		"verified users keep no token")

	require.NoError(t, repo.UpdatePassword(ctx, created.ID, "new-hash"))
	updated, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", updated.PasswordHash)

	assert.ErrorIs(t, repo.UpdatePassword(ctx, uuid.New(), "x"), ErrNotFound)
	assert.ErrorIs(t, repo.MarkEmailAsVerified(ctx, uuid.New()), ErrNotFound)
}
