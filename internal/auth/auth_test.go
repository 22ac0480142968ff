package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/imagizer-autoscaler/pkg/database/queries"
)

func TestService_GenerateToken(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	token, err := svc.GenerateToken(1, "testuser")

	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestService_GenerateToken_EmptySecret(t *testing.T) {
	svc := NewService("", time.Hour)

	_, err := svc.GenerateToken(1, "testuser")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestService_ValidateToken_Valid(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	token, err := svc.GenerateToken(1, "testuser")
	require.NoError(t, err)
	claims, err := svc.ValidateToken(token)

	require.NoError(t, err)
	assert.Equal(t, 1, claims.UserID)
	assert.Equal(t, "testuser", claims.Username)
}

func TestService_ValidateToken_Invalid(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	_, err := svc.ValidateToken("invalid-token")
	assert.Equal(t, ErrInvalidToken, err)
}

func TestService_ValidateToken_WrongSecret(t *testing.T) {
	token, err := NewService("secret-a", time.Hour).GenerateToken(1, "testuser")
	require.NoError(t, err)

	_, err = NewService("secret-b", time.Hour).ValidateToken(token)
	assert.Equal(t, ErrInvalidToken, err)
}

func TestService_ValidateToken_Expired(t *testing.T) {
	svc := NewService("test-secret", -time.Hour)

	token, err := svc.GenerateToken(1, "testuser")
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)

	assert.Equal(t, ErrExpiredToken, err)
}

func TestCheckPassword(t *testing.T) {
	password := "mypassword123"
	hash, err := HashPassword(password)
	require.NoError(t, err)

	assert.True(t, CheckPassword(password, hash))
	assert.False(t, CheckPassword("wrongpassword", hash))
}

func TestStaticUsers(t *testing.T) {
	hash, err := HashPassword("secret")
	require.NoError(t, err)

	users := NewStaticUsers(map[string]string{"ops": hash, "admin": hash})
	ctx := context.Background()

	admin, err := users.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, admin.ID)
	assert.True(t, CheckPassword("secret", admin.PasswordHash))

	ops, err := users.GetByUsername(ctx, "ops")
	require.NoError(t, err)
	assert.Equal(t, 2, ops.ID)

	_, err = users.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, queries.ErrUserNotFound)
}
