package services_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.createUser(t)
	bob := env.createUser(t)

	req, err := env.connectionService.SendRequest(ctx, alice.ID, bob.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionPending, req.Status)

	_, err = env.connectionService.SendRequest(ctx, bob.ID, alice.ID.Hex())
	require.ErrorIs(t, err, apperror.ErrConflict)

	pending, err := env.connectionService.ListPending(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, alice.Username, pending[0].Sender.Username)

	requestID := strconv.FormatUint(uint64(req.ID), 10)
	err = env.connectionService.Accept(ctx, alice.ID, requestID)
	require.ErrorIs(t, err, apperror.ErrForbidden)

	require.NoError(t, env.connectionService.Accept(ctx, bob.ID, requestID))

	aliceConnections, err := env.connectionService.ListConnections(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceConnections, 1)
	assert.Equal(t, bob.ID, aliceConnections[0].ID)

	bobConnections, err := env.connectionService.ListConnections(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobConnections, 1)
	assert.Equal(t, alice.ID, bobConnections[0].ID)

	notifications := env.notifications.All()
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationConnectionAccepted, notifications[0].Type)
	assert.Equal(t, alice.ID, notifications[0].Recipient)
	assert.Equal(t, bob.ID, notifications[0].RelatedUser)
	assert.Nil(t, notifications[0].RelatedPost)

	err = env.connectionService.Accept(ctx, bob.ID, requestID)
	require.ErrorIs(t, err, apperror.ErrValidation)

	_, err = env.connectionService.SendRequest(ctx, alice.ID, bob.ID.Hex())
	require.ErrorIs(t, err, apperror.ErrConflict)

	require.NoError(t, env.connectionService.Remove(ctx, alice.ID, bob.ID.Hex()))
	bobConnections, err = env.connectionService.ListConnections(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobConnections)

	err = env.connectionService.Remove(ctx, alice.ID, bob.ID.Hex())
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestSendRequestValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.createUser(t)

	_, err := env.connectionService.SendRequest(ctx, alice.ID, alice.ID.Hex())
	require.ErrorIs(t, err, apperror.ErrValidation)

	_, err = env.connectionService.SendRequest(ctx, alice.ID, "64b000000000000000000000")
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRejectRequest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.createUser(t)
	bob := env.createUser(t)

	req, err := env.connectionService.SendRequest(ctx, alice.ID, bob.ID.Hex())
	require.NoError(t, err)
	require.NoError(t, env.connectionService.Reject(ctx, bob.ID, strconv.FormatUint(uint64(req.ID), 10)))

	pending, err := env.connectionService.ListPending(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, env.notifications.All())

	// A rejected request does not block a new one.
	_, err = env.connectionService.SendRequest(ctx, alice.ID, bob.ID.Hex())
	require.NoError(t, err)

	err = env.connectionService.Reject(ctx, bob.ID, "abc")
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestAcceptFailureLeavesRequestPending(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.createUser(t)
	bob := env.createUser(t)

	req, err := env.connectionService.SendRequest(ctx, alice.ID, bob.ID.Hex())
	require.NoError(t, err)
	requestID := strconv.FormatUint(uint64(req.ID), 10)

	env.users.ConnectErr = errors.New("mongo: connection reset")
	err = env.connectionService.Accept(ctx, bob.ID, requestID)
	require.Error(t, err)

	pending, err := env.connectionService.ListPending(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	aliceConnections, err := env.connectionService.ListConnections(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, aliceConnections)
	assert.Empty(t, env.notifications.All())

	env.users.ConnectErr = nil
	require.NoError(t, env.connectionService.Accept(ctx, bob.ID, requestID))

	aliceConnections, err = env.connectionService.ListConnections(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceConnections, 1)
	assert.Equal(t, bob.ID, aliceConnections[0].ID)
}

func TestConcurrentAcceptNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.createUser(t)
	bob := env.createUser(t)

	req, err := env.connectionService.SendRequest(ctx, alice.ID, bob.ID.Hex())
	require.NoError(t, err)
	requestID := strconv.FormatUint(uint64(req.ID), 10)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = env.connectionService.Accept(ctx, bob.ID, requestID)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperror.ErrValidation)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, env.notifications.All(), 1)

	aliceConnections, err := env.connectionService.ListConnections(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, aliceConnections, 1)
}
