package client

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/pkg/apperror"
	"github.com/anonto42/linkup/backend/pkg/clock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrMutationPending is returned when a post already has a mutation in flight.
var ErrMutationPending = errors.New("a change to this post is still being saved")

type MutationState int

const (
	Idle MutationState = iota
	Pending
	Committed
	RolledBack
)

func (s MutationState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	default:
		return "idle"
	}
}

// Mutation tracks one optimistic change from Pending to Committed or RolledBack.
type Mutation struct {
	mu    sync.Mutex
	state MutationState
	err   error
	done  chan struct{}
}

func newMutation() *Mutation {
	return &Mutation{state: Pending, done: make(chan struct{})}
}

func (m *Mutation) State() MutationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err is the server error that caused a rollback.
func (m *Mutation) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Done is closed once the mutation leaves Pending.
func (m *Mutation) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until the mutation settles and returns its error, if any.
func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mutation) settle(err error) {
	m.mu.Lock()
	if err != nil {
		m.state = RolledBack
		m.err = err
	} else {
		m.state = Committed
	}
	m.mu.Unlock()
	close(m.done)
}

// PostAPI is the part of Client an OptimisticPost calls.
type PostAPI interface {
	SetLike(ctx context.Context, id string, liked bool) (*models.PostView, error)
	Comment(ctx context.Context, id, content string) (*models.PostView, error)
}

// PostState is what a UI renders for one post.
type PostState struct {
	Liked      bool
	LikesCount int
	Comments   []models.CommentView
}

func (s PostState) clone() PostState {
	s.Comments = slices.Clone(s.Comments)
	return s
}

// OptimisticPost applies like and comment changes locally before the server
// confirms them. One mutation per post may be pending at a time.
type OptimisticPost struct {
	api    PostAPI
	cache  Invalidator
	viewer models.UserCompact
	clock  clock.Clock
	id     string

	mu      sync.Mutex
	state   PostState
	pending *Mutation

	// OnChange, when set, is called with the new state after every local change.
	OnChange func(PostState)
}

func NewOptimisticPost(api PostAPI, cache Invalidator, viewer models.UserCompact, post *models.PostView, clk clock.Clock) *OptimisticPost {
	return &OptimisticPost{
		api:    api,
		cache:  cache,
		viewer: viewer,
		clock:  clk,
		id:     post.ID.Hex(),
		state:  stateOf(post),
	}
}

func (p *OptimisticPost) State() PostState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.clone()
}

// ToggleLike flips the like immediately and asks the server for the new
// state with an idempotent call. On failure the previous state is restored.
func (p *OptimisticPost) ToggleLike(ctx context.Context) (*Mutation, error) {
	p.mu.Lock()
	if p.pending != nil {
		p.mu.Unlock()
		return nil, ErrMutationPending
	}
	snapshot := p.state.clone()
	p.state.Liked = !p.state.Liked
	if p.state.Liked {
		p.state.LikesCount++
	} else if p.state.LikesCount > 0 {
		p.state.LikesCount--
	}
	liked := p.state.Liked
	m := newMutation()
	p.pending = m
	p.mu.Unlock()
	p.changed()

	go p.run(m, snapshot, func() (*models.PostView, error) {
		return p.api.SetLike(ctx, p.id, liked)
	})
	return m, nil
}

// SubmitComment appends a tentative comment authored by the viewer and sends
// it. The tentative entry is removed again if the server rejects it.
func (p *OptimisticPost) SubmitComment(ctx context.Context, content string) (*Mutation, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.Validation("Comment content is required")
	}

	p.mu.Lock()
	if p.pending != nil {
		p.mu.Unlock()
		return nil, ErrMutationPending
	}
	snapshot := p.state.clone()
	tentative := models.CommentView{
		ID:        primitive.NewObjectID(),
		Content:   content,
		User:      p.viewer,
		CreatedAt: p.clock.NowUtc(),
	}
	p.state.Comments = append(p.state.Comments, tentative)
	m := newMutation()
	p.pending = m
	p.mu.Unlock()
	p.changed()

	go p.run(m, snapshot, func() (*models.PostView, error) {
		return p.api.Comment(ctx, p.id, content)
	})
	return m, nil
}

// run performs call and settles m. Reconcile is blocked while m is pending,
// so restoring snapshot undoes exactly the optimistic change. On success the
// server's copy replaces the local guess.
func (p *OptimisticPost) run(m *Mutation, snapshot PostState, call func() (*models.PostView, error)) {
	server, err := call()

	p.mu.Lock()
	switch {
	case err != nil:
		p.state = snapshot
	case server != nil:
		p.state = stateOf(server)
	}
	p.pending = nil
	p.mu.Unlock()

	if err == nil && p.cache != nil {
		p.cache.Invalidate(PostsKey, PostKey(p.id))
	}
	p.changed()
	m.settle(err)
}

// Reconcile replaces local state with a freshly fetched server copy. It is a
// no-op while a mutation is pending.
func (p *OptimisticPost) Reconcile(post *models.PostView) bool {
	p.mu.Lock()
	if p.pending != nil {
		p.mu.Unlock()
		return false
	}
	p.state = stateOf(post)
	p.mu.Unlock()
	p.changed()
	return true
}

func stateOf(post *models.PostView) PostState {
	return PostState{
		Liked:      post.IsLiked,
		LikesCount: post.LikesCount,
		Comments:   slices.Clone(post.Comments),
	}
}

func (p *OptimisticPost) changed() {
	if p.OnChange != nil {
		p.OnChange(p.State())
	}
}
