package services_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/anonto42/linkup/backend/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages map[primitive.ObjectID][][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, recipient primitive.ObjectID, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = map[primitive.ObjectID][][]byte{}
	}
	p.messages[recipient] = append(p.messages[recipient], payload)
	return nil
}

func TestNotifyPersistsAndPublishes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	publisher := &recordingPublisher{}
	svc := services.NewNotificationService(env.notifications, env.users, env.posts, publisher, env.clock)

	author := env.createUser(t)
	liker := env.createUser(t)
	post := env.createPost(t, author.ID)

	require.NoError(t, svc.Notify(ctx, author.ID, liker.ID, models.NotificationLike, &post.ID))
	require.NoError(t, svc.Notify(ctx, author.ID, author.ID, models.NotificationLike, &post.ID))
	require.Error(t, svc.Notify(ctx, author.ID, liker.ID, "poke", nil))

	require.Len(t, env.notifications.All(), 1)
	require.Len(t, publisher.messages[author.ID], 1)

	var view models.NotificationView
	require.NoError(t, json.Unmarshal(publisher.messages[author.ID][0], &view))
	assert.Equal(t, models.NotificationLike, view.Type)
	require.NotNil(t, view.RelatedUser)
	assert.Equal(t, liker.Username, view.RelatedUser.Username)
	require.NotNil(t, view.RelatedPost)
	assert.Equal(t, post.Content, view.RelatedPost.Content)
}

func TestNotificationReadState(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := env.notificationService

	me := env.createUser(t)
	other := env.createUser(t)
	stranger := env.createUser(t)
	post := env.createPost(t, me.ID)

	require.NoError(t, svc.Notify(ctx, me.ID, other.ID, models.NotificationLike, &post.ID))
	env.clock.Advance(time.Minute)
	require.NoError(t, svc.Notify(ctx, me.ID, other.ID, models.NotificationComment, &post.ID))
	env.clock.Advance(time.Minute)
	require.NoError(t, svc.Notify(ctx, me.ID, other.ID, models.NotificationConnectionAccepted, nil))

	list, err := svc.GetNotifications(ctx, me.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, models.NotificationConnectionAccepted, list[0].Type)
	assert.Nil(t, list[0].RelatedPost)

	count, err := svc.UnreadCount(ctx, me.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	err = svc.MarkAsRead(ctx, stranger.ID, list[0].ID.Hex())
	require.ErrorIs(t, err, apperror.ErrNotFound)

	require.NoError(t, svc.MarkAsRead(ctx, me.ID, list[0].ID.Hex()))
	count, err = svc.UnreadCount(ctx, me.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	updated, err := svc.MarkAllAsRead(ctx, me.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)

	err = svc.Delete(ctx, stranger.ID, list[1].ID.Hex())
	require.ErrorIs(t, err, apperror.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, me.ID, list[1].ID.Hex()))

	list, err = svc.GetNotifications(ctx, me.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
