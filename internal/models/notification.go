package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotificationLike               NotificationType = "like"
	NotificationComment            NotificationType = "comment"
	NotificationConnectionAccepted NotificationType = "connectionAccepted"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationConnectionAccepted:
		return true
	}
	return false
}

// Notification represents a user notification (MongoDB `notifications`)
type Notification struct {
	ID          primitive.ObjectID  `json:"_id" bson:"_id,omitempty"`
	Recipient   primitive.ObjectID  `json:"recipient" bson:"recipient"`
	Type        NotificationType    `json:"type" bson:"type"`
	RelatedUser primitive.ObjectID  `json:"relatedUser" bson:"relatedUser"`
	RelatedPost *primitive.ObjectID `json:"relatedPost,omitempty" bson:"relatedPost,omitempty"`
	Read        bool                `json:"read" bson:"read"`
	CreatedAt   time.Time           `json:"createdAt" bson:"createdAt"`
}

// PostPreview is the slice of a post shown next to a notification.
type PostPreview struct {
	ID      primitive.ObjectID `json:"_id"`
	Content string             `json:"content"`
	Media   []Media            `json:"media"`
}

// NotificationView is a notification with its related user and post expanded.
type NotificationView struct {
	ID          primitive.ObjectID `json:"_id"`
	Recipient   primitive.ObjectID `json:"recipient"`
	Type        NotificationType   `json:"type"`
	RelatedUser *UserCompact       `json:"relatedUser"`
	RelatedPost *PostPreview       `json:"relatedPost,omitempty"`
	Read        bool               `json:"read"`
	CreatedAt   time.Time          `json:"createdAt"`
}
