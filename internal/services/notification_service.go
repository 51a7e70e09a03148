package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"github.com/anonto42/linkup/backend/pkg/apperror"
	"github.com/anonto42/linkup/backend/pkg/clock"
	"github.com/anonto42/linkup/backend/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationService interface {
	// Notify persists a notification for recipient before returning, then
	// publishes it for live delivery. Self-notifications are dropped.
	Notify(ctx context.Context, recipient, relatedUser primitive.ObjectID, kind models.NotificationType, relatedPost *primitive.ObjectID) error
	GetNotifications(ctx context.Context, recipient primitive.ObjectID) ([]models.NotificationView, error)
	UnreadCount(ctx context.Context, recipient primitive.ObjectID) (int64, error)
	MarkAsRead(ctx context.Context, recipient primitive.ObjectID, id string) error
	MarkAllAsRead(ctx context.Context, recipient primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, recipient primitive.ObjectID, id string) error
	DeleteForPost(ctx context.Context, postID primitive.ObjectID) (int64, error)
}

// Publisher pushes a serialized notification to a recipient's live channel.
type Publisher interface {
	Publish(ctx context.Context, recipient primitive.ObjectID, payload []byte) error
}

// NotificationChannel is the Redis pub/sub channel for a recipient.
func NotificationChannel(recipient string) string {
	return fmt.Sprintf("user_notifications:%s", recipient)
}

type redisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) Publisher {
	if rdb == nil {
		return nil
	}
	return &redisPublisher{rdb: rdb}
}

func (p *redisPublisher) Publish(ctx context.Context, recipient primitive.ObjectID, payload []byte) error {
	return p.rdb.Publish(ctx, NotificationChannel(recipient.Hex()), payload).Err()
}

type notificationService struct {
	repo      repositories.NotificationRepository
	users     repositories.UserRepository
	posts     repositories.PostRepository
	publisher Publisher
	clock     clock.Clock
}

func NewNotificationService(
	repo repositories.NotificationRepository,
	users repositories.UserRepository,
	posts repositories.PostRepository,
	publisher Publisher,
	clk clock.Clock,
) NotificationService {
	return &notificationService{
		repo:      repo,
		users:     users,
		posts:     posts,
		publisher: publisher,
		clock:     clk,
	}
}

func (s *notificationService) Notify(ctx context.Context, recipient, relatedUser primitive.ObjectID, kind models.NotificationType, relatedPost *primitive.ObjectID) error {
	if recipient == relatedUser {
		return nil
	}
	if !kind.Valid() {
		return fmt.Errorf("unknown notification type %q", kind)
	}

	n := &models.Notification{
		Recipient:   recipient,
		Type:        kind,
		RelatedUser: relatedUser,
		RelatedPost: relatedPost,
		CreatedAt:   s.clock.NowUtc(),
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	metrics.IncNotification(string(kind))

	if s.publisher != nil {
		views, err := s.expand(ctx, []models.Notification{*n})
		if err != nil {
			log.Printf("Failed to expand notification %s for publishing: %v", n.ID.Hex(), err)
			return nil
		}
		payload, err := json.Marshal(views[0])
		if err == nil {
			if err := s.publisher.Publish(ctx, recipient, payload); err != nil {
				log.Printf("Failed to publish notification %s: %v", n.ID.Hex(), err)
			}
		}
	}
	return nil
}

func (s *notificationService) GetNotifications(ctx context.Context, recipient primitive.ObjectID) ([]models.NotificationView, error) {
	notifications, err := s.repo.GetByRecipient(ctx, recipient)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, notifications)
}

func (s *notificationService) UnreadCount(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	return s.repo.GetUnreadCount(ctx, recipient)
}

func (s *notificationService) MarkAsRead(ctx context.Context, recipient primitive.ObjectID, id string) error {
	notificationID, err := parseID(id, "Notification")
	if err != nil {
		return err
	}
	return s.repo.MarkAsRead(ctx, recipient, notificationID)
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	return s.repo.MarkAllAsRead(ctx, recipient)
}

func (s *notificationService) Delete(ctx context.Context, recipient primitive.ObjectID, id string) error {
	notificationID, err := parseID(id, "Notification")
	if err != nil {
		return err
	}
	return s.repo.DeleteNotification(ctx, recipient, notificationID)
}

func (s *notificationService) DeleteForPost(ctx context.Context, postID primitive.ObjectID) (int64, error) {
	return s.repo.DeleteByPost(ctx, postID)
}

// expand resolves related users and posts with one query each.
func (s *notificationService) expand(ctx context.Context, notifications []models.Notification) ([]models.NotificationView, error) {
	userIDs := make([]primitive.ObjectID, 0, len(notifications))
	postIDs := make([]primitive.ObjectID, 0)
	for _, n := range notifications {
		userIDs = append(userIDs, n.RelatedUser)
		if n.RelatedPost != nil {
			postIDs = append(postIDs, *n.RelatedPost)
		}
	}

	users, err := s.users.GetUsersByIDs(ctx, uniqueIDs(userIDs))
	if err != nil {
		return nil, fmt.Errorf("load related users: %w", err)
	}
	userMap := make(map[primitive.ObjectID]models.UserCompact, len(users))
	for i := range users {
		userMap[users[i].ID] = users[i].ToCompact()
	}

	posts, err := s.posts.GetPostsByIDs(ctx, uniqueIDs(postIDs))
	if err != nil {
		return nil, fmt.Errorf("load related posts: %w", err)
	}
	postMap := make(map[primitive.ObjectID]models.PostPreview, len(posts))
	for _, p := range posts {
		postMap[p.ID] = models.PostPreview{ID: p.ID, Content: p.Content, Media: p.Media}
	}

	views := make([]models.NotificationView, len(notifications))
	for i, n := range notifications {
		views[i] = models.NotificationView{
			ID:        n.ID,
			Recipient: n.Recipient,
			Type:      n.Type,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		}
		if u, ok := userMap[n.RelatedUser]; ok {
			views[i].RelatedUser = &u
		}
		if n.RelatedPost != nil {
			if p, ok := postMap[*n.RelatedPost]; ok {
				views[i].RelatedPost = &p
			}
		}
	}
	return views, nil
}

// parseID converts a hex path parameter; malformed ids are reported as
// not found, the same as well-formed ids that match nothing.
func parseID(hex, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, apperror.NotFound("%s not found", what)
	}
	return id, nil
}

func uniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
