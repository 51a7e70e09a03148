package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func notification(kind models.NotificationType, read bool) models.NotificationView {
	return models.NotificationView{ID: primitive.NewObjectID(), Type: kind, Read: read, CreatedAt: time.Now()}
}

func TestFilterNotifications(t *testing.T) {
	list := []models.NotificationView{
		notification(models.NotificationLike, false),
		notification(models.NotificationComment, true),
		notification(models.NotificationLike, true),
		notification(models.NotificationConnectionAccepted, false),
		notification(models.NotificationLike, false),
	}

	tests := []struct {
		filter NotificationFilter
		want   []int
	}{
		{FilterAll, []int{0, 1, 2, 3, 4}},
		{FilterUnread, []int{0, 3, 4}},
		{FilterLike, []int{0, 2, 4}},
		{FilterComment, []int{1}},
		{FilterConnectionAccepted, []int{3}},
	}

	for _, tt := range tests {
		t.Run(string(tt.filter), func(t *testing.T) {
			got := FilterNotifications(list, tt.filter)
			require.Len(t, got, len(tt.want))
			for i, idx := range tt.want {
				assert.Equal(t, list[idx].ID, got[i].ID)
			}
		})
	}
}

func TestParseNotificationFilter(t *testing.T) {
	f, err := ParseNotificationFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)

	f, err = ParseNotificationFilter("connectionAccepted")
	require.NoError(t, err)
	assert.Equal(t, FilterConnectionAccepted, f)

	_, err = ParseNotificationFilter("mention")
	require.Error(t, err)
}

type markAPI struct {
	fail     map[string]error
	inFlight atomic.Int32
	peak     atomic.Int32

	mu     sync.Mutex
	called []string
}

func (a *markAPI) MarkNotificationRead(_ context.Context, id string) error {
	n := a.inFlight.Add(1)
	defer a.inFlight.Add(-1)
	for {
		peak := a.peak.Load()
		if n <= peak || a.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	a.mu.Lock()
	a.called = append(a.called, id)
	a.mu.Unlock()
	return a.fail[id]
}

func TestMarkAllAsReadReportsPerItem(t *testing.T) {
	list := []models.NotificationView{
		notification(models.NotificationLike, false),
		notification(models.NotificationComment, true),
		notification(models.NotificationLike, false),
		notification(models.NotificationConnectionAccepted, false),
	}
	boom := errors.New("503 from upstream")
	api := &markAPI{fail: map[string]error{list[2].ID.Hex(): boom}}

	result := MarkAllAsRead(context.Background(), api, list, 2)

	require.Len(t, result.Items, 3)
	assert.Len(t, api.called, 3)
	assert.LessOrEqual(t, api.peak.Load(), int32(2))
	assert.Equal(t, []string{list[0].ID.Hex(), list[3].ID.Hex()}, result.Succeeded())
	assert.Equal(t, []string{list[2].ID.Hex()}, result.Failed())
	require.ErrorIs(t, result.Err(), boom)
	assert.Contains(t, result.Err().Error(), list[2].ID.Hex())
}

func TestMarkAllAsReadNothingUnread(t *testing.T) {
	api := &markAPI{}
	result := MarkAllAsRead(context.Background(), api, []models.NotificationView{notification(models.NotificationLike, true)}, 0)
	assert.Empty(t, result.Items)
	assert.NoError(t, result.Err())
	assert.Empty(t, api.called)
}
