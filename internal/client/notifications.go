package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/linkup/backend/internal/models"
	"golang.org/x/sync/errgroup"
)

type NotificationFilter string

const (
	FilterAll                NotificationFilter = "all"
	FilterUnread             NotificationFilter = "unread"
	FilterLike               NotificationFilter = "like"
	FilterComment            NotificationFilter = "comment"
	FilterConnectionAccepted NotificationFilter = "connectionAccepted"
)

// ParseNotificationFilter accepts the filter names above; "" means all.
func ParseNotificationFilter(s string) (NotificationFilter, error) {
	switch f := NotificationFilter(s); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterUnread, FilterLike, FilterComment, FilterConnectionAccepted:
		return f, nil
	}
	return "", fmt.Errorf("unknown notification filter %q", s)
}

// FilterNotifications returns the notifications matching filter in input
// order. The input is not modified.
func FilterNotifications(list []models.NotificationView, filter NotificationFilter) []models.NotificationView {
	out := make([]models.NotificationView, 0, len(list))
	for _, n := range list {
		if matches(n, filter) {
			out = append(out, n)
		}
	}
	return out
}

func matches(n models.NotificationView, filter NotificationFilter) bool {
	switch filter {
	case FilterAll, "":
		return true
	case FilterUnread:
		return !n.Read
	default:
		return string(n.Type) == string(filter)
	}
}

// ItemResult is the outcome for one notification in a batch.
type ItemResult struct {
	ID  string
	Err error
}

// BatchResult reports every item of a fan-out, in input order.
type BatchResult struct {
	Items []ItemResult
}

func (r *BatchResult) Succeeded() []string {
	var ids []string
	for _, it := range r.Items {
		if it.Err == nil {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// Failed returns the ids to retry.
func (r *BatchResult) Failed() []string {
	var ids []string
	for _, it := range r.Items {
		if it.Err != nil {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// Err joins every item error, or returns nil when all succeeded.
func (r *BatchResult) Err() error {
	var errs []error
	for _, it := range r.Items {
		if it.Err != nil {
			errs = append(errs, fmt.Errorf("notification %s: %w", it.ID, it.Err))
		}
	}
	return errors.Join(errs...)
}

// NotificationAPI is the part of Client MarkAllAsRead calls.
type NotificationAPI interface {
	MarkNotificationRead(ctx context.Context, id string) error
}

const defaultMarkConcurrency = 8

// MarkAllAsRead marks every unread notification in list with one request per
// item, at most concurrency at a time, and waits for all of them. One failure
// does not cancel the others.
func MarkAllAsRead(ctx context.Context, api NotificationAPI, list []models.NotificationView, concurrency int) *BatchResult {
	if concurrency <= 0 {
		concurrency = defaultMarkConcurrency
	}
	unread := FilterNotifications(list, FilterUnread)
	result := &BatchResult{Items: make([]ItemResult, len(unread))}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, n := range unread {
		id := n.ID.Hex()
		g.Go(func() error {
			// Each goroutine owns result.Items[i].
			result.Items[i] = ItemResult{ID: id, Err: api.MarkNotificationRead(ctx, id)}
			return nil
		})
	}
	_ = g.Wait()
	return result
}
