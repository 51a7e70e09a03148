// Package client is a Go consumer of the Linkup REST API. Besides plain calls
// it carries the optimistic like/comment flow and notification helpers that a
// UI builds on.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/pkg/apperror"
)

// APIError is a non-2xx response. It unwraps to the apperror sentinel for its
// status, so errors.Is(err, apperror.ErrNotFound) works on the client side too.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return apperror.ErrNotFound
	case http.StatusUnauthorized:
		return apperror.ErrUnauthorized
	case http.StatusForbidden:
		return apperror.ErrForbidden
	case http.StatusBadRequest:
		return apperror.ErrValidation
	case http.StatusConflict:
		return apperror.ErrConflict
	case http.StatusTooManyRequests:
		return apperror.ErrRateLimitExceeded
	case http.StatusServiceUnavailable:
		return apperror.ErrTransientConnection
	}
	return nil
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cache      *QueryCache
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithCache makes Feed and Post serve repeat reads from cache until the
// entries are invalidated.
func WithCache(cache *QueryCache) Option {
	return func(c *Client) { c.cache = cache }
}

// New creates a client for baseURL, e.g. "http://localhost:8080/api/v1".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) Token() string {
	return c.token
}

// Cache returns the client's query cache, or nil.
func (c *Client) Cache() *QueryCache {
	return c.cache
}

func (c *Client) invalidate(keys ...string) {
	if c.cache != nil {
		c.cache.Invalidate(keys...)
	}
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	var resp struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", models.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	c.token = resp.Token
	return resp.User, nil
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ActiveUsers(ctx context.Context) ([]models.UserCompact, error) {
	var users []models.UserCompact
	err := c.do(ctx, http.MethodGet, "/users/active", nil, &users)
	return users, err
}

func (c *Client) Suggestions(ctx context.Context) ([]models.UserCompact, error) {
	var users []models.UserCompact
	err := c.do(ctx, http.MethodGet, "/users/suggestions", nil, &users)
	return users, err
}

func (c *Client) Feed(ctx context.Context, page, limit int) ([]models.PostView, error) {
	key := FeedKey(page, limit)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			return slices.Clone(cached.([]models.PostView)), nil
		}
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	var posts []models.PostView
	if err := c.do(ctx, http.MethodGet, "/posts?"+q.Encode(), nil, &posts); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Set(key, slices.Clone(posts))
	}
	return posts, nil
}

func (c *Client) Post(ctx context.Context, id string) (*models.PostView, error) {
	key := PostKey(id)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			post := cached.(models.PostView)
			return &post, nil
		}
	}

	var post models.PostView
	if err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(id), nil, &post); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Set(key, post)
	}
	return &post, nil
}

func (c *Client) CreatePost(ctx context.Context, req *models.CreatePostRequest) (*models.PostView, error) {
	var post models.PostView
	if err := c.do(ctx, http.MethodPost, "/posts/create", req, &post); err != nil {
		return nil, err
	}
	c.invalidate(PostsKey)
	return &post, nil
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/posts/delete/"+url.PathEscape(id), nil, nil); err != nil {
		return err
	}
	c.invalidate(PostsKey, PostKey(id))
	return nil
}

// SetLike sets the caller's like on a post to liked. Unlike the toggle
// endpoint it is safe to repeat.
func (c *Client) SetLike(ctx context.Context, id string, liked bool) (*models.PostView, error) {
	method := http.MethodDelete
	if liked {
		method = http.MethodPut
	}
	var post models.PostView
	if err := c.do(ctx, method, "/posts/"+url.PathEscape(id)+"/like", nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) Comment(ctx context.Context, id, content string) (*models.PostView, error) {
	var post models.PostView
	err := c.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(id)+"/comment", models.CreateCommentRequest{Content: content}, &post)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) Notifications(ctx context.Context) ([]models.NotificationView, error) {
	var notifications []models.NotificationView
	err := c.do(ctx, http.MethodGet, "/notifications", nil, &notifications)
	return notifications, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notifications/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var payload struct {
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if json.Unmarshal(raw, &payload) != nil || payload.Message == "" {
			payload.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: payload.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
