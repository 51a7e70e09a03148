package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"github.com/anonto42/linkup/backend/pkg/apperror"
	"github.com/anonto42/linkup/backend/pkg/clock"
	"github.com/anonto42/linkup/backend/pkg/metrics"
	"github.com/anonto42/linkup/backend/pkg/storage"
	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

type PostService interface {
	CreatePost(ctx context.Context, author primitive.ObjectID, req *models.CreatePostRequest) (*models.PostView, error)
	GetPost(ctx context.Context, viewer primitive.ObjectID, postID string) (*models.PostView, error)
	// GetFeed returns the viewer's own posts and their connections' posts.
	GetFeed(ctx context.Context, viewer *models.User, page, limit int) ([]models.PostView, int64, error)
	GetPostsByUser(ctx context.Context, viewer primitive.ObjectID, username string, page, limit int) ([]models.PostView, error)
	Like(ctx context.Context, viewer primitive.ObjectID, postID string, action models.LikeAction) (*models.PostView, error)
	AddComment(ctx context.Context, viewer primitive.ObjectID, postID, content string) (*models.PostView, error)
	DeletePost(ctx context.Context, viewer primitive.ObjectID, postID string) error
}

type PostServiceConfig struct {
	// RateLimit is the minimum gap between two posts by the same user.
	RateLimit time.Duration
}

type postService struct {
	posts         repositories.PostRepository
	users         repositories.UserRepository
	notifications NotificationService
	media         storage.MediaStorage
	limiter       RateLimiter
	sanitizer     *bluemonday.Policy
	clock         clock.Clock
	cfg           PostServiceConfig
}

// NewPostService wires the post mutation service. media and limiter may be nil.
func NewPostService(
	posts repositories.PostRepository,
	users repositories.UserRepository,
	notifications NotificationService,
	media storage.MediaStorage,
	limiter RateLimiter,
	clk clock.Clock,
	cfg PostServiceConfig,
) PostService {
	return &postService{
		posts:         posts,
		users:         users,
		notifications: notifications,
		media:         media,
		limiter:       limiter,
		sanitizer:     bluemonday.StrictPolicy(),
		clock:         clk,
		cfg:           cfg,
	}
}

func (s *postService) CreatePost(ctx context.Context, author primitive.ObjectID, req *models.CreatePostRequest) (*models.PostView, error) {
	content := plainText(s.sanitizer, req.Content)
	if err := validateNewPost(content, req.Media); err != nil {
		return nil, err
	}

	release, err := s.takePostSlot(ctx, author)
	if err != nil {
		return nil, err
	}

	media, err := s.storeMedia(ctx, req.Media)
	if err != nil {
		release()
		return nil, err
	}

	now := s.clock.NowUtc()
	post := &models.Post{
		Author:    author,
		Content:   content,
		Media:     media,
		Likes:     []primitive.ObjectID{},
		Comments:  []models.Comment{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		s.discardMedia(media)
		release()
		return nil, fmt.Errorf("create post: %w", err)
	}
	metrics.IncPostMutation("create")

	return s.view(ctx, author, post)
}

// takePostSlot claims the author's create_post window. The returned func
// gives the window back when the post is not created after all.
func (s *postService) takePostSlot(ctx context.Context, author primitive.ObjectID) (func(), error) {
	noop := func() {}
	if s.limiter == nil || s.cfg.RateLimit <= 0 {
		return noop, nil
	}

	allowed, err := s.limiter.Allow(ctx, author, "create_post", s.cfg.RateLimit)
	if err != nil {
		log.Printf("Rate limit check failed, allowing post: %v", err)
		return noop, nil
	}
	if !allowed {
		wait, err := s.limiter.TTL(ctx, author, "create_post")
		if err != nil || wait <= 0 {
			if err != nil {
				log.Printf("Failed to read rate limit TTL for %s: %v", author.Hex(), err)
			}
			wait = s.cfg.RateLimit
		}
		return nil, apperror.New(http.StatusTooManyRequests,
			fmt.Sprintf("You are posting too fast, try again in %s", wait.Round(time.Second)),
			apperror.ErrRateLimitExceeded)
	}

	return func() {
		if err := s.limiter.Release(context.WithoutCancel(ctx), author, "create_post"); err != nil {
			log.Printf("Failed to release rate limit for %s: %v", author.Hex(), err)
		}
	}, nil
}

// plainText trims raw and returns "" when nothing but markup is left once
// tags are stripped. Text is stored unescaped; clients escape on render.
func plainText(policy *bluemonday.Policy, raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.TrimSpace(policy.Sanitize(raw)) == "" {
		return ""
	}
	return raw
}

// validateNewPost rejects a post with neither text nor media, more than
// MaxMediaPerPost attachments, or an unsupported media type.
func validateNewPost(content string, media []models.MediaUpload) error {
	if content == "" && len(media) == 0 {
		return apperror.Validation("Post must have content or media")
	}
	if len(media) > models.MaxMediaPerPost {
		return apperror.Validation("A post can have at most %d media items", models.MaxMediaPerPost)
	}
	for i, m := range media {
		if !m.Type.Valid() {
			return apperror.Validation("Media item %d has unsupported type %q", i+1, m.Type)
		}
		if strings.TrimSpace(m.File) == "" {
			return apperror.Validation("Media item %d is empty", i+1)
		}
	}
	return nil
}

func (s *postService) storeMedia(ctx context.Context, uploads []models.MediaUpload) ([]models.Media, error) {
	media := make([]models.Media, 0, len(uploads))
	for _, u := range uploads {
		item := models.Media{
			Type:      u.Type,
			Thumbnail: u.Thumbnail,
			Width:     u.Width,
			Height:    u.Height,
			Duration:  u.Duration,
		}

		switch {
		case storage.IsDataURL(u.File):
			if s.media == nil {
				s.discardMedia(media)
				return nil, apperror.Validation("Media uploads are not enabled")
			}
			res, err := s.media.Upload(ctx, u.File, string(u.Type))
			if err != nil {
				s.discardMedia(media)
				return nil, fmt.Errorf("upload media: %w", err)
			}
			item.URL = res.URL
			if item.Thumbnail == "" {
				item.Thumbnail = res.Thumbnail
			}
			if res.Width > 0 && res.Height > 0 {
				item.Width, item.Height = res.Width, res.Height
			}
		case strings.HasPrefix(u.File, "https://") || strings.HasPrefix(u.File, "http://"):
			item.URL = u.File
		default:
			s.discardMedia(media)
			return nil, apperror.Validation("Media must be a data URL or a link")
		}

		item.Orientation = models.Orientation(item.Width, item.Height)
		media = append(media, item)
	}
	return media, nil
}

// discardMedia removes already uploaded files after a failed create or delete.
func (s *postService) discardMedia(media []models.Media) {
	if s.media == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, m := range media {
		if err := s.media.Delete(ctx, m.URL); err != nil {
			log.Printf("Failed to delete media %s: %v", m.URL, err)
		}
	}
}

func (s *postService) GetPost(ctx context.Context, viewer primitive.ObjectID, postID string) (*models.PostView, error) {
	id, err := parseID(postID, "Post")
	if err != nil {
		return nil, err
	}
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, viewer, post)
}

func (s *postService) GetFeed(ctx context.Context, viewer *models.User, page, limit int) ([]models.PostView, int64, error) {
	page, limit = normalizePage(page, limit)
	authors := append([]primitive.ObjectID{viewer.ID}, viewer.Connections...)

	posts, total, err := s.posts.GetFeed(ctx, authors, int64((page-1)*limit), int64(limit))
	if err != nil {
		return nil, 0, fmt.Errorf("load feed: %w", err)
	}
	views, err := s.views(ctx, viewer.ID, posts)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (s *postService) GetPostsByUser(ctx context.Context, viewer primitive.ObjectID, username string, page, limit int) ([]models.PostView, error) {
	page, limit = normalizePage(page, limit)
	author, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.GetPostsByAuthor(ctx, author.ID, int64((page-1)*limit), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}
	return s.views(ctx, viewer, posts)
}

// Like changes the viewer's membership in the post's likes set. LikeAdd and
// LikeRemove are idempotent. A notification goes to the author only when the
// viewer actually moves from not-liked to liked.
func (s *postService) Like(ctx context.Context, viewer primitive.ObjectID, postID string, action models.LikeAction) (*models.PostView, error) {
	id, err := parseID(postID, "Post")
	if err != nil {
		return nil, err
	}

	now := s.clock.NowUtc()
	var (
		post       *models.Post
		newlyLiked bool
	)
	switch action {
	case models.LikeAdd:
		post, newlyLiked, err = s.posts.AddLike(ctx, id, viewer, now)
	case models.LikeRemove:
		post, _, err = s.posts.RemoveLike(ctx, id, viewer, now)
	default:
		post, newlyLiked, err = s.posts.ToggleLike(ctx, id, viewer, now)
	}
	if err != nil {
		return nil, err
	}
	metrics.IncPostMutation(action.String())

	if newlyLiked {
		s.notify(ctx, post.Author, viewer, models.NotificationLike, post.ID)
	}
	return s.view(ctx, viewer, post)
}

func (s *postService) AddComment(ctx context.Context, viewer primitive.ObjectID, postID, content string) (*models.PostView, error) {
	id, err := parseID(postID, "Post")
	if err != nil {
		return nil, err
	}
	content = plainText(s.sanitizer, content)
	if content == "" {
		return nil, apperror.Validation("Comment content is required")
	}

	comment := models.Comment{
		ID:        primitive.NewObjectID(),
		Content:   content,
		User:      viewer,
		CreatedAt: s.clock.NowUtc(),
	}
	post, err := s.posts.AddComment(ctx, id, comment)
	if err != nil {
		return nil, err
	}
	metrics.IncPostMutation("comment")

	s.notify(ctx, post.Author, viewer, models.NotificationComment, post.ID)
	return s.view(ctx, viewer, post)
}

// DeletePost removes a post owned by viewer, the notifications that point at
// it and its stored media.
func (s *postService) DeletePost(ctx context.Context, viewer primitive.ObjectID, postID string) error {
	id, err := parseID(postID, "Post")
	if err != nil {
		return err
	}
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return err
	}
	if post.Author != viewer {
		return apperror.Forbidden("You can only delete your own posts")
	}

	if err := s.posts.DeletePost(ctx, id); err != nil {
		return err
	}
	metrics.IncPostMutation("delete")

	if _, err := s.notifications.DeleteForPost(ctx, id); err != nil {
		log.Printf("Failed to delete notifications for post %s: %v", id.Hex(), err)
	}
	s.discardMedia(post.Media)
	return nil
}

// notify records a notification without failing the mutation that caused it.
func (s *postService) notify(ctx context.Context, recipient, actor primitive.ObjectID, kind models.NotificationType, postID primitive.ObjectID) {
	if s.notifications == nil {
		return
	}
	if err := s.notifications.Notify(ctx, recipient, actor, kind, &postID); err != nil {
		log.Printf("Failed to create %s notification for post %s: %v", kind, postID.Hex(), err)
	}
}

func (s *postService) view(ctx context.Context, viewer primitive.ObjectID, post *models.Post) (*models.PostView, error) {
	views, err := s.views(ctx, viewer, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// views expands authors and commenters with a single user lookup.
func (s *postService) views(ctx context.Context, viewer primitive.ObjectID, posts []models.Post) ([]models.PostView, error) {
	var ids []primitive.ObjectID
	for _, p := range posts {
		ids = append(ids, p.Author)
		for _, c := range p.Comments {
			ids = append(ids, c.User)
		}
	}
	users, err := s.users.GetUsersByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("load post authors: %w", err)
	}
	userMap := make(map[primitive.ObjectID]models.UserCompact, len(users))
	for i := range users {
		userMap[users[i].ID] = users[i].ToCompact()
	}
	compact := func(id primitive.ObjectID) models.UserCompact {
		if u, ok := userMap[id]; ok {
			return u
		}
		return models.UserCompact{ID: id}
	}

	views := make([]models.PostView, len(posts))
	for i, p := range posts {
		comments := make([]models.CommentView, len(p.Comments))
		for j, c := range p.Comments {
			comments[j] = models.CommentView{
				ID:        c.ID,
				Content:   c.Content,
				User:      compact(c.User),
				CreatedAt: c.CreatedAt,
			}
		}
		likes := p.Likes
		if likes == nil {
			likes = []primitive.ObjectID{}
		}
		media := p.Media
		if media == nil {
			media = []models.Media{}
		}
		views[i] = models.PostView{
			ID:            p.ID,
			Author:        compact(p.Author),
			Content:       p.Content,
			Media:         media,
			Likes:         likes,
			Comments:      comments,
			LikesCount:    len(likes),
			CommentsCount: len(comments),
			IsLiked:       p.IsLikedBy(viewer),
			CreatedAt:     p.CreatedAt,
			UpdatedAt:     p.UpdatedAt,
		}
	}
	return views, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return page, limit
}
