package services_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories/repotest"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/anonto42/linkup/backend/pkg/clock"
	"github.com/anonto42/linkup/backend/pkg/firebase"
	"github.com/anonto42/linkup/backend/pkg/storage"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type testEnv struct {
	users         *repotest.Users
	posts         *repotest.Posts
	notifications *repotest.Notifications
	connections   *repotest.Connections
	media         *fakeStorage
	clock         *clock.StubClock

	notificationService services.NotificationService
	postService         services.PostService
	userService         services.UserService
	connectionService   services.ConnectionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users:         repotest.NewUsers(),
		posts:         repotest.NewPosts(),
		notifications: repotest.NewNotifications(),
		connections:   repotest.NewConnections(),
		media:         &fakeStorage{},
		clock:         clock.NewStubClock(),
	}
	env.clock.SetNow(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	env.notificationService = services.NewNotificationService(env.notifications, env.users, env.posts, nil, env.clock)
	env.postService = services.NewPostService(env.posts, env.users, env.notificationService, env.media, nil, env.clock,
		services.PostServiceConfig{RateLimit: 10 * time.Second})
	env.userService = services.NewUserService(env.users, env.media, env.clock, 15*time.Minute)
	env.connectionService = services.NewConnectionService(env.connections, env.users, env.notificationService)
	return env
}

func (env *testEnv) createUser(t *testing.T) *models.User {
	t.Helper()
	now := env.clock.NowUtc()
	user := &models.User{
		Name:      gofakeit.Name(),
		Username:  strings.ToLower(gofakeit.Username()) + gofakeit.DigitN(4),
		Email:     gofakeit.Email(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, env.users.CreateUser(context.Background(), user))
	return user
}

func (env *testEnv) createPost(t *testing.T, author primitive.ObjectID) *models.PostView {
	t.Helper()
	post, err := env.postService.CreatePost(context.Background(), author, &models.CreatePostRequest{
		Content: gofakeit.Sentence(8),
	})
	require.NoError(t, err)
	return post
}

// fakeStorage records uploads and deletions in memory.
type fakeStorage struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
}

func (s *fakeStorage) Upload(_ context.Context, dataURL, resourceType string) (*storage.UploadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	url := "https://res.cloudinary.com/demo/" + resourceType + "/upload/v1/linkup/" + gofakeit.UUID()
	s.uploaded = append(s.uploaded, url)
	return &storage.UploadResult{URL: url, Width: 1200, Height: 800}, nil
}

func (s *fakeStorage) Delete(_ context.Context, fileURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, fileURL)
	return nil
}

func (s *fakeStorage) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// fakeVerifier accepts tokens listed in identities.
type fakeVerifier struct {
	identities map[string]*firebase.Identity
}

func (v *fakeVerifier) Verify(_ context.Context, idToken string) (*firebase.Identity, error) {
	if id, ok := v.identities[idToken]; ok {
		return id, nil
	}
	return nil, errInvalidToken
}

type tokenError string

func (e tokenError) Error() string { return string(e) }

const errInvalidToken = tokenError("invalid token")

// fakeLimiter allows the first call per user and action, then denies.
type fakeLimiter struct {
	mu       sync.Mutex
	seen     map[string]bool
	released int
}

func (l *fakeLimiter) Allow(_ context.Context, userID primitive.ObjectID, action string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen == nil {
		l.seen = map[string]bool{}
	}
	key := userID.Hex() + action
	if l.seen[key] {
		return false, nil
	}
	l.seen[key] = true
	return true, nil
}

func (l *fakeLimiter) TTL(context.Context, primitive.ObjectID, string) (time.Duration, error) {
	return 7 * time.Second, nil
}

func (l *fakeLimiter) Release(_ context.Context, userID primitive.ObjectID, action string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.seen, userID.Hex()+action)
	l.released++
	return nil
}
