package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestClientSetLikeUsesIdempotentVerbs(t *testing.T) {
	postID := primitive.NewObjectID()
	var seen []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.PostView{ID: postID, IsLiked: r.Method == http.MethodPut})
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/v1", WithToken("tok"))
	post, err := c.SetLike(context.Background(), postID.Hex(), true)
	require.NoError(t, err)
	assert.True(t, post.IsLiked)

	post, err = c.SetLike(context.Background(), postID.Hex(), false)
	require.NoError(t, err)
	assert.False(t, post.IsLiked)

	assert.Equal(t, []string{
		"PUT /api/v1/posts/" + postID.Hex() + "/like",
		"DELETE /api/v1/posts/" + postID.Hex() + "/like",
	}, seen)
}

func TestClientMapsErrorStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, apperror.ErrNotFound},
		{http.StatusForbidden, apperror.ErrForbidden},
		{http.StatusBadRequest, apperror.ErrValidation},
		{http.StatusServiceUnavailable, apperror.ErrTransientConnection},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			}))
			defer srv.Close()

			err := New(srv.URL).DeletePost(context.Background(), "abc")
			require.ErrorIs(t, err, tt.want)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, "nope", apiErr.Message)
		})
	}
}

func TestClientLoginStoresToken(t *testing.T) {
	var authHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			_, _ = w.Write([]byte(`{"token":"fresh","user":{"username":"ada"}}`))
		case "/users/me":
			authHeader = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"username":"ada"}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	user, err := c.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username)
	assert.Equal(t, "fresh", c.Token())

	_, err = c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh", authHeader)
}

func TestClientFeedCacheInvalidation(t *testing.T) {
	hits := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits[r.Method+" "+r.URL.Path]++
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode([]models.PostView{{ID: primitive.NewObjectID()}})
		case http.MethodPost:
			_ = json.NewEncoder(w).Encode(models.PostView{ID: primitive.NewObjectID()})
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	cache := NewQueryCache()
	c := New(srv.URL, WithCache(cache))

	first, err := c.Feed(ctx, 1, 10)
	require.NoError(t, err)
	again, err := c.Feed(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	_, err = c.Feed(ctx, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, hits["GET /posts"])

	_, err = c.CreatePost(ctx, &models.CreatePostRequest{Content: "hello"})
	require.NoError(t, err)
	_, ok := cache.Get(FeedKey(1, 10))
	assert.False(t, ok)
	_, ok = cache.Get(FeedKey(2, 10))
	assert.False(t, ok)

	_, err = c.Feed(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, hits["GET /posts"])

	cache.Set(PostKey("abc"), models.PostView{})
	require.NoError(t, c.DeletePost(ctx, "abc"))
	_, ok = cache.Get(PostKey("abc"))
	assert.False(t, ok)
	_, ok = cache.Get(FeedKey(1, 10))
	assert.False(t, ok)
}
