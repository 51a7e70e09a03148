package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"

	MaxMediaPerPost = 4
)

func (t MediaType) Valid() bool {
	return t == MediaImage || t == MediaVideo
}

// Media is one attachment of a post.
type Media struct {
	URL         string    `json:"url" bson:"url"`
	Type        MediaType `json:"type" bson:"type"`
	Thumbnail   string    `json:"thumbnail,omitempty" bson:"thumbnail,omitempty"`
	Width       int       `json:"width,omitempty" bson:"width,omitempty"`
	Height      int       `json:"height,omitempty" bson:"height,omitempty"`
	Duration    float64   `json:"duration,omitempty" bson:"duration,omitempty"`
	Orientation string    `json:"orientation,omitempty" bson:"orientation,omitempty"` // landscape, portrait, square
}

// Post represents a post stored in MongoDB. Likes is a set: the repository
// only ever writes it with $addToSet and $pull.
type Post struct {
	ID        primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	Author    primitive.ObjectID   `json:"author" bson:"author"`
	Content   string               `json:"content" bson:"content"`
	Media     []Media              `json:"media" bson:"media"`
	Likes     []primitive.ObjectID `json:"likes" bson:"likes"`
	Comments  []Comment            `json:"comments" bson:"comments"`
	CreatedAt time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt" bson:"updatedAt"`
}

func (p *Post) IsLikedBy(userID primitive.ObjectID) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// MediaUpload is one attachment in a create request. File holds a data URL
// or an already hosted link.
type MediaUpload struct {
	File      string    `json:"file" validate:"required"`
	Type      MediaType `json:"type" validate:"required,oneof=image video"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Width     int       `json:"width,omitempty" validate:"omitempty,min=0"`
	Height    int       `json:"height,omitempty" validate:"omitempty,min=0"`
	Duration  float64   `json:"duration,omitempty" validate:"omitempty,min=0"`
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Content string        `json:"content" validate:"max=3000"`
	Media   []MediaUpload `json:"media,omitempty" validate:"max=4,dive"`
}

// PostView is a post as returned to clients: author and commenters expanded,
// with per-viewer flags.
type PostView struct {
	ID            primitive.ObjectID   `json:"_id"`
	Author        UserCompact          `json:"author"`
	Content       string               `json:"content"`
	Media         []Media              `json:"media"`
	Likes         []primitive.ObjectID `json:"likes"`
	Comments      []CommentView        `json:"comments"`
	LikesCount    int                  `json:"likesCount"`
	CommentsCount int                  `json:"commentsCount"`
	IsLiked       bool                 `json:"isLiked"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// Orientation classifies media by its dimensions.
func Orientation(width, height int) string {
	switch {
	case width <= 0 || height <= 0:
		return ""
	case width > height:
		return "landscape"
	case height > width:
		return "portrait"
	default:
		return "square"
	}
}
