package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetActiveUsers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	now := env.clock.NowUtc()

	x := env.createUser(t)
	y := env.createUser(t)
	require.NoError(t, env.users.TouchLastActive(ctx, x.ID, now.Add(-10*time.Minute)))
	require.NoError(t, env.users.TouchLastActive(ctx, y.ID, now.Add(-20*time.Minute)))

	active, err := env.userService.GetActiveUsers(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, x.ID, active[0].ID)

	// Five more minutes push X out of the window too.
	env.clock.Advance(5*time.Minute + time.Second)
	active, err = env.userService.GetActiveUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestGetSuggestions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	me := env.createUser(t)
	friend := env.createUser(t)
	for range 12 {
		env.createUser(t)
	}
	require.NoError(t, env.users.AddConnection(ctx, me.ID, friend.ID))
	me, err := env.users.GetUserByID(ctx, me.ID)
	require.NoError(t, err)

	suggestions, err := env.userService.GetSuggestions(ctx, me)
	require.NoError(t, err)
	assert.Len(t, suggestions, 10)
	for _, s := range suggestions {
		assert.NotEqual(t, me.ID, s.ID)
		assert.NotEqual(t, friend.ID, s.ID)
	}
}

func TestGetPublicProfile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.createUser(t)
	friend := env.createUser(t)
	require.NoError(t, env.users.AddConnection(ctx, user.ID, friend.ID))

	profile, err := env.userService.GetPublicProfile(ctx, user.Username)
	require.NoError(t, err)
	assert.Equal(t, user.Email, profile.Email)
	require.Len(t, profile.Connections, 1)
	assert.Equal(t, friend.Username, profile.Connections[0].Username)

	_, err = env.userService.GetPublicProfile(ctx, "missing")
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("partial update keeps other fields", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)
		headline := "Staff Engineer at Linkup"

		updated, err := env.userService.UpdateProfile(ctx, user.ID, &models.UpdateProfileRequest{Headline: &headline})
		require.NoError(t, err)
		assert.Equal(t, headline, updated.Headline)
		assert.Equal(t, user.Name, updated.Name)
		assert.Equal(t, env.clock.NowUtc(), updated.UpdatedAt)
	})

	t.Run("names keep punctuation", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)
		name := "Siobhán O'Brien"
		headline := "R&D <lead>"

		updated, err := env.userService.UpdateProfile(ctx, user.ID, &models.UpdateProfileRequest{Name: &name, Headline: &headline})
		require.NoError(t, err)
		assert.Equal(t, "Siobhán O'Brien", updated.Name)
		assert.Equal(t, "R&D <lead>", updated.Headline)

		markup := "<b></b>"
		_, err = env.userService.UpdateProfile(ctx, user.ID, &models.UpdateProfileRequest{Name: &markup})
		require.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("empty request", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)

		_, err := env.userService.UpdateProfile(ctx, user.ID, &models.UpdateProfileRequest{})
		require.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("uploads new picture and drops old one", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)
		first := "data:image/png;base64,iVBORw0KGgo="

		updated, err := env.userService.UpdateProfile(ctx, user.ID, &models.UpdateProfileRequest{ProfilePicture: &first})
		require.NoError(t, err)
		oldURL := updated.ProfilePicture
		require.NotEmpty(t, oldURL)

		second := "data:image/png;base64,R0lGODlh"
		updated, err = env.userService.UpdateProfile(ctx, user.ID, &models.UpdateProfileRequest{ProfilePicture: &second})
		require.NoError(t, err)
		assert.NotEqual(t, oldURL, updated.ProfilePicture)
		assert.Equal(t, []string{oldURL}, env.media.Deleted())
	})

	t.Run("username taken", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)
		other := env.createUser(t)

		_, err := env.userService.UpdateProfile(ctx, user.ID, &models.UpdateProfileRequest{Username: &other.Username})
		require.ErrorIs(t, err, apperror.ErrConflict)
	})
}

func TestTouchActivity(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.createUser(t)

	require.NoError(t, env.userService.TouchActivity(ctx, user))
	first := user.LastActive
	assert.Equal(t, env.clock.NowUtc(), first)

	env.clock.Advance(30 * time.Second)
	require.NoError(t, env.userService.TouchActivity(ctx, user))
	assert.Equal(t, first, user.LastActive)

	env.clock.Advance(time.Minute)
	require.NoError(t, env.userService.TouchActivity(ctx, user))
	assert.Equal(t, env.clock.NowUtc(), user.LastActive)
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t)

	found, err := env.userService.Search(context.Background(), user.Username)
	require.NoError(t, err)
	require.NotEmpty(t, found)
	assert.Equal(t, user.ID, found[0].ID)

	_, err = env.userService.Search(context.Background(), "  ")
	require.ErrorIs(t, err, apperror.ErrValidation)
}
