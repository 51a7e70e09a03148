package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/anonto42/linkup/backend/pkg/apperror"
	"github.com/anonto42/linkup/backend/pkg/firebase"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupAndLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.clock.SetNow(time.Now())
	auth := services.NewAuthService(env.users, nil, env.clock, services.AuthConfig{JWTSecret: "test-secret"})

	req := &models.SignupRequest{
		Name:     gofakeit.Name(),
		Username: "jdoe" + gofakeit.DigitN(4),
		Email:    "JDoe@Example.com",
		Password: "s3cret-pass",
	}
	token, user, err := auth.Signup(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, "jdoe@example.com", user.Email)
	assert.NotEqual(t, req.Password, user.Password)

	_, _, err = auth.Signup(ctx, req)
	require.ErrorIs(t, err, apperror.ErrConflict)

	authenticated, err := auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, authenticated.ID)

	_, _, err = auth.Login(ctx, &models.LoginRequest{Email: "jdoe@example.com", Password: "wrong"})
	require.ErrorIs(t, err, apperror.ErrUnauthorized)

	token, _, err = auth.Login(ctx, &models.LoginRequest{Email: "jdoe@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = auth.Authenticate(ctx, "garbage")
	require.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestFirebaseLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.clock.SetNow(time.Now())
	existing := env.createUser(t)
	verifier := &fakeVerifier{identities: map[string]*firebase.Identity{
		"known":    {UID: "uid-known", Email: existing.Email},
		"new-user": {UID: "uid-new", Email: "ada.lovelace@example.com", Name: "Ada Lovelace"},
	}}
	auth := services.NewAuthService(env.users, verifier, env.clock, services.AuthConfig{JWTSecret: "test-secret"})

	_, user, err := auth.FirebaseLogin(ctx, "known")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)
	linked, err := env.users.GetUserByFirebaseUID(ctx, "uid-known")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, linked.ID)

	_, user, err = auth.FirebaseLogin(ctx, "new-user")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", user.Name)
	assert.Regexp(t, `^adalovelace[0-9a-f]{6}$`, user.Username)

	// Firebase ID tokens are also accepted as bearer tokens.
	authenticated, err := auth.Authenticate(ctx, "new-user")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authenticated.ID)

	_, _, err = auth.FirebaseLogin(ctx, "forged")
	require.ErrorIs(t, err, apperror.ErrUnauthorized)
}
