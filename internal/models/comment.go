package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comment is embedded in Post.Comments, in insertion order.
type Comment struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id"`
	Content   string             `json:"content" bson:"content"`
	User      primitive.ObjectID `json:"user" bson:"user"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

type CommentView struct {
	ID        primitive.ObjectID `json:"_id"`
	Content   string             `json:"content"`
	User      UserCompact        `json:"user"`
	CreatedAt time.Time          `json:"createdAt"`
}
