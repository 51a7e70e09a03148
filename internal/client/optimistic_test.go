package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/pkg/apperror"
	"github.com/anonto42/linkup/backend/pkg/clock"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// gatedAPI blocks each call until release is closed, then returns reply or err.
type gatedAPI struct {
	release chan struct{}
	err     error
	reply   *models.PostView

	mu    sync.Mutex
	likes []bool
}

func newGatedAPI(err error) *gatedAPI {
	return &gatedAPI{release: make(chan struct{}), err: err}
}

func (a *gatedAPI) SetLike(_ context.Context, _ string, liked bool) (*models.PostView, error) {
	a.mu.Lock()
	a.likes = append(a.likes, liked)
	a.mu.Unlock()
	<-a.release
	return a.result()
}

func (a *gatedAPI) Comment(context.Context, string, string) (*models.PostView, error) {
	<-a.release
	return a.result()
}

func (a *gatedAPI) result() (*models.PostView, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.reply, nil
}

type recordingCache struct {
	mu   sync.Mutex
	keys []string
}

func (c *recordingCache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, keys...)
}

func newPost(liked bool, likes int) *models.PostView {
	return &models.PostView{ID: primitive.NewObjectID(), IsLiked: liked, LikesCount: likes, Comments: []models.CommentView{}}
}

func viewer() models.UserCompact {
	return models.UserCompact{ID: primitive.NewObjectID(), Name: gofakeit.Name(), Username: gofakeit.Username()}
}

func TestOptimisticLikeCommits(t *testing.T) {
	ctx := context.Background()
	api := newGatedAPI(nil)
	cache := &recordingCache{}
	post := newPost(false, 3)
	p := NewOptimisticPost(api, cache, viewer(), post, clock.NewStubClock())

	m, err := p.ToggleLike(ctx)
	require.NoError(t, err)
	assert.Equal(t, Pending, m.State())
	assert.Equal(t, PostState{Liked: true, LikesCount: 4, Comments: []models.CommentView{}}, p.State())

	_, err = p.ToggleLike(ctx)
	require.ErrorIs(t, err, ErrMutationPending)

	// Others liked and commented meanwhile; the server copy wins.
	serverComment := models.CommentView{ID: primitive.NewObjectID(), Content: gofakeit.Sentence(5), User: viewer()}
	api.reply = &models.PostView{ID: post.ID, IsLiked: true, LikesCount: 6, Comments: []models.CommentView{serverComment}}
	close(api.release)
	require.NoError(t, m.Wait(ctx))

	assert.Equal(t, Committed, m.State())
	assert.Equal(t, []bool{true}, api.likes)
	assert.Equal(t, []string{PostsKey, PostKey(post.ID.Hex())}, cache.keys)
	assert.Equal(t, PostState{Liked: true, LikesCount: 6, Comments: []models.CommentView{serverComment}}, p.State())
}

func TestOptimisticLikeRollsBack(t *testing.T) {
	ctx := context.Background()
	api := newGatedAPI(apperror.Transient(errors.New("offline")))
	cache := &recordingCache{}
	p := NewOptimisticPost(api, cache, viewer(), newPost(true, 1), clock.NewStubClock())

	var states []PostState
	p.OnChange = func(s PostState) { states = append(states, s) }

	m, err := p.ToggleLike(ctx)
	require.NoError(t, err)
	assert.False(t, p.State().Liked)
	assert.Equal(t, 0, p.State().LikesCount)

	close(api.release)
	err = m.Wait(ctx)
	require.ErrorIs(t, err, apperror.ErrTransientConnection)
	assert.Equal(t, RolledBack, m.State())
	assert.Equal(t, PostState{Liked: true, LikesCount: 1, Comments: []models.CommentView{}}, p.State())
	assert.Empty(t, cache.keys)
	require.Len(t, states, 2)
	assert.True(t, states[1].Liked)

	// The post accepts a new mutation after rollback.
	api.release = make(chan struct{})
	close(api.release)
	api.err = nil
	m, err = p.ToggleLike(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Wait(ctx))
}

func TestOptimisticComment(t *testing.T) {
	ctx := context.Background()
	me := viewer()

	t.Run("whitespace rejected locally", func(t *testing.T) {
		p := NewOptimisticPost(newGatedAPI(nil), nil, me, newPost(false, 0), clock.NewStubClock())
		_, err := p.SubmitComment(ctx, "  \t ")
		require.ErrorIs(t, err, apperror.ErrValidation)
		assert.Empty(t, p.State().Comments)
	})

	t.Run("tentative comment replaced by server copy", func(t *testing.T) {
		api := newGatedAPI(nil)
		clk := clock.NewStubClock()
		post := newPost(false, 0)
		p := NewOptimisticPost(api, &recordingCache{}, me, post, clk)

		m, err := p.SubmitComment(ctx, "  Great read  ")
		require.NoError(t, err)
		comments := p.State().Comments
		require.Len(t, comments, 1)
		tentative := comments[0]
		assert.Equal(t, "Great read", tentative.Content)
		assert.Equal(t, me, tentative.User)
		assert.Equal(t, clk.NowUtc(), tentative.CreatedAt)

		stored := models.CommentView{
			ID:        primitive.NewObjectID(),
			Content:   "Great read",
			User:      me,
			CreatedAt: clk.NowUtc().Add(-2 * time.Second),
		}
		api.reply = &models.PostView{ID: post.ID, Comments: []models.CommentView{stored}, CommentsCount: 1}
		close(api.release)
		require.NoError(t, m.Wait(ctx))

		got := p.State().Comments
		require.Len(t, got, 1)
		assert.Equal(t, stored.ID, got[0].ID)
		assert.NotEqual(t, tentative.ID, got[0].ID)
		assert.Equal(t, stored.CreatedAt, got[0].CreatedAt)

		// With nothing pending, a later refetch applies directly.
		refetched := newPost(true, 2)
		refetched.Comments = []models.CommentView{stored}
		require.True(t, p.Reconcile(refetched))
		assert.Equal(t, PostState{Liked: true, LikesCount: 2, Comments: []models.CommentView{stored}}, p.State())
	})

	t.Run("failed comment is removed", func(t *testing.T) {
		api := newGatedAPI(errors.New("500"))
		p := NewOptimisticPost(api, nil, me, newPost(false, 0), clock.NewStubClock())

		m, err := p.SubmitComment(ctx, "Hello")
		require.NoError(t, err)
		require.False(t, p.Reconcile(newPost(true, 9)))

		close(api.release)
		require.Error(t, m.Wait(ctx))
		assert.Equal(t, RolledBack, m.State())
		assert.Empty(t, p.State().Comments)
	})
}

func TestOptimisticLikeThroughCachedClient(t *testing.T) {
	ctx := context.Background()
	postID := primitive.NewObjectID()
	var gets atomic.Int32
	var liked atomic.Bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet:
			gets.Add(1)
		case r.Method == http.MethodPut:
			liked.Store(true)
		}
		likes := 5
		if liked.Load() {
			likes = 9
		}
		_ = json.NewEncoder(w).Encode(models.PostView{ID: postID, IsLiked: liked.Load(), LikesCount: likes, Comments: []models.CommentView{}})
	}))
	defer srv.Close()

	cache := NewQueryCache()
	api := New(srv.URL, WithCache(cache))

	post, err := api.Post(ctx, postID.Hex())
	require.NoError(t, err)
	_, err = api.Post(ctx, postID.Hex())
	require.NoError(t, err)
	assert.Equal(t, int32(1), gets.Load(), "second read is served from cache")

	p := NewOptimisticPost(api, api.Cache(), viewer(), post, clock.NewStubClock())
	m, err := p.ToggleLike(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Wait(ctx))
	assert.Equal(t, PostState{Liked: true, LikesCount: 9, Comments: []models.CommentView{}}, p.State())

	_, cached := cache.Get(PostKey(postID.Hex()))
	assert.False(t, cached)

	fresh, err := api.Post(ctx, postID.Hex())
	require.NoError(t, err)
	assert.Equal(t, int32(2), gets.Load())
	assert.Equal(t, 9, fresh.LikesCount)
}
