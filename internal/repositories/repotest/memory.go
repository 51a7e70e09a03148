// Package repotest provides in-memory repositories for tests. They follow the
// same set and scoping rules as the MongoDB and PostgreSQL implementations.
package repotest

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"github.com/anonto42/linkup/backend/pkg/apperror"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	_ repositories.UserRepository         = (*Users)(nil)
	_ repositories.PostRepository         = (*Posts)(nil)
	_ repositories.NotificationRepository = (*Notifications)(nil)
	_ repositories.ConnectionRepository   = (*Connections)(nil)
)

// Users is an in-memory repositories.UserRepository.
type Users struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User

	// ConnectErr, when set, fails AddConnection.
	ConnectErr error
}

func NewUsers() *Users {
	return &Users{users: map[primitive.ObjectID]*models.User{}}
}

func (r *Users) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return apperror.Conflict("Username or email already taken")
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Connections == nil {
		user.Connections = []primitive.ObjectID{}
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *Users) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, apperror.NotFound("User not found")
}

func (r *Users) GetUsersByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, *cloneUser(u))
		}
	}
	return out, nil
}

func (r *Users) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return r.first(func(u *models.User) bool { return u.Username == username })
}

func (r *Users) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return r.first(func(u *models.User) bool { return u.Email == email })
}

func (r *Users) GetUserByFirebaseUID(_ context.Context, firebaseUID string) (*models.User, error) {
	return r.first(func(u *models.User) bool { return firebaseUID != "" && u.FirebaseUID == firebaseUID })
}

func (r *Users) LinkFirebaseUID(_ context.Context, id primitive.ObjectID, firebaseUID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return apperror.NotFound("User not found")
	}
	u.FirebaseUID = firebaseUID
	return nil
}

func (r *Users) GetUsers(_ context.Context) ([]models.User, error) {
	out := r.filter(func(*models.User) bool { return true })
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Users) GetSuggestions(_ context.Context, user *models.User, limit int64) ([]models.User, error) {
	out := r.filter(func(u *models.User) bool {
		return u.ID != user.ID && !user.IsConnectedTo(u.ID)
	})
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Users) GetActiveSince(_ context.Context, since time.Time) ([]models.User, error) {
	out := r.filter(func(u *models.User) bool { return !u.LastActive.Before(since) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastActive.After(out[j].LastActive) })
	return out, nil
}

func (r *Users) SearchUsers(_ context.Context, query string, limit int64) ([]models.User, error) {
	q := strings.ToLower(query)
	out := r.filter(func(u *models.User) bool {
		return strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Username), q)
	})
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Users) UpdateProfile(_ context.Context, id primitive.ObjectID, req *models.UpdateProfileRequest, at time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperror.NotFound("User not found")
	}
	if req.Username != nil {
		for _, other := range r.users {
			if other.ID != id && other.Username == *req.Username {
				return nil, apperror.Conflict("Username already taken")
			}
		}
		u.Username = *req.Username
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.ProfilePicture != nil {
		u.ProfilePicture = *req.ProfilePicture
	}
	if req.BannerImg != nil {
		u.BannerImg = *req.BannerImg
	}
	if req.Headline != nil {
		u.Headline = *req.Headline
	}
	if req.Location != nil {
		u.Location = *req.Location
	}
	if req.About != nil {
		u.About = *req.About
	}
	if req.Skills != nil {
		u.Skills = slices.Clone(req.Skills)
	}
	u.UpdatedAt = at
	return cloneUser(u), nil
}

func (r *Users) TouchLastActive(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.LastActive = at
	}
	return nil
}

func (r *Users) AddConnection(_ context.Context, a, b primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ConnectErr != nil {
		return r.ConnectErr
	}
	ua, okA := r.users[a]
	ub, okB := r.users[b]
	if !okA || !okB {
		return apperror.NotFound("User not found")
	}
	if !slices.Contains(ua.Connections, b) {
		ua.Connections = append(ua.Connections, b)
	}
	if !slices.Contains(ub.Connections, a) {
		ub.Connections = append(ub.Connections, a)
	}
	return nil
}

func (r *Users) RemoveConnection(_ context.Context, a, b primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ua, okA := r.users[a]
	ub, okB := r.users[b]
	if !okA || !okB {
		return apperror.NotFound("User not found")
	}
	ua.Connections = slices.DeleteFunc(ua.Connections, func(id primitive.ObjectID) bool { return id == b })
	ub.Connections = slices.DeleteFunc(ub.Connections, func(id primitive.ObjectID) bool { return id == a })
	return nil
}

func (r *Users) first(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, apperror.NotFound("User not found")
}

func (r *Users) filter(match func(*models.User) bool) []models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.User{}
	for _, u := range r.users {
		if match(u) {
			out = append(out, *cloneUser(u))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Connections = slices.Clone(u.Connections)
	c.Skills = slices.Clone(u.Skills)
	return &c
}

// Posts is an in-memory repositories.PostRepository.
type Posts struct {
	mu    sync.Mutex
	posts map[primitive.ObjectID]*models.Post
	// Err, when set, is returned by every like and comment mutation.
	Err error
}

func NewPosts() *Posts {
	return &Posts{posts: map[primitive.ObjectID]*models.Post{}}
}

func (r *Posts) CreatePost(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	if post.Likes == nil {
		post.Likes = []primitive.ObjectID{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	if post.Media == nil {
		post.Media = []models.Media{}
	}
	r.posts[post.ID] = clonePost(post)
	return nil
}

func (r *Posts) GetPostByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[id]; ok {
		return clonePost(p), nil
	}
	return nil, apperror.NotFound("Post not found")
}

func (r *Posts) GetPostsByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Post, error) {
	return r.filter(func(p *models.Post) bool { return slices.Contains(ids, p.ID) }), nil
}

func (r *Posts) GetFeed(_ context.Context, authors []primitive.ObjectID, skip, limit int64) ([]models.Post, int64, error) {
	all := r.filter(func(p *models.Post) bool { return slices.Contains(authors, p.Author) })
	return page(all, skip, limit), int64(len(all)), nil
}

func (r *Posts) GetPostsByAuthor(_ context.Context, author primitive.ObjectID, skip, limit int64) ([]models.Post, error) {
	return page(r.filter(func(p *models.Post) bool { return p.Author == author }), skip, limit), nil
}

func (r *Posts) DeletePost(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return apperror.NotFound("Post not found")
	}
	delete(r.posts, id)
	return nil
}

func (r *Posts) AddLike(_ context.Context, postID, userID primitive.ObjectID, at time.Time) (*models.Post, bool, error) {
	return r.mutate(postID, func(p *models.Post) bool {
		if p.IsLikedBy(userID) {
			return false
		}
		p.Likes = append(p.Likes, userID)
		p.UpdatedAt = at
		return true
	})
}

func (r *Posts) RemoveLike(_ context.Context, postID, userID primitive.ObjectID, at time.Time) (*models.Post, bool, error) {
	return r.mutate(postID, func(p *models.Post) bool {
		if !p.IsLikedBy(userID) {
			return false
		}
		p.Likes = slices.DeleteFunc(p.Likes, func(id primitive.ObjectID) bool { return id == userID })
		p.UpdatedAt = at
		return true
	})
}

func (r *Posts) ToggleLike(_ context.Context, postID, userID primitive.ObjectID, at time.Time) (*models.Post, bool, error) {
	post, _, err := r.mutate(postID, func(p *models.Post) bool {
		if p.IsLikedBy(userID) {
			p.Likes = slices.DeleteFunc(p.Likes, func(id primitive.ObjectID) bool { return id == userID })
		} else {
			p.Likes = append(p.Likes, userID)
		}
		p.UpdatedAt = at
		return true
	})
	if err != nil {
		return nil, false, err
	}
	return post, post.IsLikedBy(userID), nil
}

func (r *Posts) AddComment(_ context.Context, postID primitive.ObjectID, comment models.Comment) (*models.Post, error) {
	post, _, err := r.mutate(postID, func(p *models.Post) bool {
		p.Comments = append(p.Comments, comment)
		p.UpdatedAt = comment.CreatedAt
		return true
	})
	return post, err
}

func (r *Posts) mutate(id primitive.ObjectID, fn func(*models.Post) bool) (*models.Post, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, false, r.Err
	}
	p, ok := r.posts[id]
	if !ok {
		return nil, false, apperror.NotFound("Post not found")
	}
	changed := fn(p)
	return clonePost(p), changed, nil
}

func (r *Posts) filter(match func(*models.Post) bool) []models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Post{}
	for _, p := range r.posts {
		if match(p) {
			out = append(out, *clonePost(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() > out[j].ID.Hex()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func page(posts []models.Post, skip, limit int64) []models.Post {
	if skip >= int64(len(posts)) {
		return []models.Post{}
	}
	end := skip + limit
	if end > int64(len(posts)) {
		end = int64(len(posts))
	}
	return posts[skip:end]
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.Likes = slices.Clone(p.Likes)
	c.Comments = slices.Clone(p.Comments)
	c.Media = slices.Clone(p.Media)
	return &c
}

// Notifications is an in-memory repositories.NotificationRepository.
type Notifications struct {
	mu    sync.Mutex
	items []models.Notification
	// FailMarkRead makes MarkAsRead fail for these ids.
	FailMarkRead map[primitive.ObjectID]error
	// CreateErr, when set, is returned by CreateNotification.
	CreateErr error
}

func NewNotifications() *Notifications {
	return &Notifications{FailMarkRead: map[primitive.ObjectID]error{}}
}

func (r *Notifications) CreateNotification(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	r.items = append(r.items, *n)
	return nil
}

func (r *Notifications) GetByRecipient(_ context.Context, recipient primitive.ObjectID) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Notification{}
	for _, n := range r.items {
		if n.Recipient == recipient {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Notifications) GetUnreadCount(_ context.Context, recipient primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.items {
		if n.Recipient == recipient && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *Notifications) MarkAsRead(_ context.Context, recipient, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailMarkRead[id]; err != nil {
		return err
	}
	for i := range r.items {
		if r.items[i].ID == id && r.items[i].Recipient == recipient {
			r.items[i].Read = true
			return nil
		}
	}
	return apperror.NotFound("Notification not found")
}

func (r *Notifications) MarkAllAsRead(_ context.Context, recipient primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.items {
		if r.items[i].Recipient == recipient && !r.items[i].Read {
			r.items[i].Read = true
			n++
		}
	}
	return n, nil
}

func (r *Notifications) DeleteNotification(_ context.Context, recipient, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id && r.items[i].Recipient == recipient {
			r.items = slices.Delete(r.items, i, i+1)
			return nil
		}
	}
	return apperror.NotFound("Notification not found")
}

func (r *Notifications) DeleteByPost(_ context.Context, postID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := len(r.items)
	r.items = slices.DeleteFunc(r.items, func(n models.Notification) bool {
		return n.RelatedPost != nil && *n.RelatedPost == postID
	})
	return int64(before - len(r.items)), nil
}

// All returns every stored notification in insertion order.
func (r *Notifications) All() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

// Connections is an in-memory repositories.ConnectionRepository.
type Connections struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]*models.ConnectionRequest
}

func NewConnections() *Connections {
	return &Connections{items: map[uint]*models.ConnectionRequest{}}
}

func (r *Connections) CreateRequest(_ context.Context, req *models.ConnectionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		samePair := (existing.SenderID == req.SenderID && existing.RecipientID == req.RecipientID) ||
			(existing.SenderID == req.RecipientID && existing.RecipientID == req.SenderID)
		if !samePair {
			continue
		}
		switch existing.Status {
		case models.ConnectionPending:
			return apperror.Conflict("A connection request is already pending between these users")
		case models.ConnectionAccepted:
			return apperror.Conflict("Users are already connected")
		}
	}
	r.nextID++
	req.ID = r.nextID
	req.Status = models.ConnectionPending
	c := *req
	r.items[req.ID] = &c
	return nil
}

func (r *Connections) GetRequestByID(_ context.Context, id uint) (*models.ConnectionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, ok := r.items[id]; ok {
		c := *req
		return &c, nil
	}
	return nil, apperror.NotFound("Connection request not found")
}

func (r *Connections) GetPendingForRecipient(_ context.Context, recipientID string) ([]models.ConnectionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.ConnectionRequest{}
	for _, req := range r.items {
		if req.RecipientID == recipientID && req.Status == models.ConnectionPending {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *Connections) ResolvePending(_ context.Context, id uint, status models.ConnectionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.items[id]
	if !ok {
		return apperror.NotFound("Connection request not found")
	}
	if req.Status != models.ConnectionPending {
		return apperror.Validation("This request has already been processed")
	}
	req.Status = status
	return nil
}

func (r *Connections) DeleteBetween(_ context.Context, a, b string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, req := range r.items {
		if (req.SenderID == a && req.RecipientID == b) || (req.SenderID == b && req.RecipientID == a) {
			delete(r.items, id)
		}
	}
	return nil
}
