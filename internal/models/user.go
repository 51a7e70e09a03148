package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a member profile stored in the MongoDB `users` collection.
type User struct {
	ID             primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	Name           string               `json:"name" bson:"name"`
	Username       string               `json:"username" bson:"username"`
	Email          string               `json:"email" bson:"email"`
	Password       string               `json:"-" bson:"password,omitempty"` // bcrypt hash
	FirebaseUID    string               `json:"-" bson:"firebaseUid,omitempty"`
	ProfilePicture string               `json:"profilePicture" bson:"profilePicture"`
	BannerImg      string               `json:"bannerImg" bson:"bannerImg"`
	Headline       string               `json:"headline" bson:"headline"`
	Location       string               `json:"location" bson:"location"`
	About          string               `json:"about" bson:"about"`
	Skills         []string             `json:"skills" bson:"skills"`
	Connections    []primitive.ObjectID `json:"connections" bson:"connections"`
	LastActive     time.Time            `json:"lastActive" bson:"lastActive"`
	CreatedAt      time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// UserCompact is the author/actor snapshot embedded in posts and notifications.
type UserCompact struct {
	ID             primitive.ObjectID `json:"_id"`
	Name           string             `json:"name"`
	Username       string             `json:"username"`
	ProfilePicture string             `json:"profilePicture"`
	Headline       string             `json:"headline"`
}

func (u *User) ToCompact() UserCompact {
	return UserCompact{
		ID:             u.ID,
		Name:           u.Name,
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
		Headline:       u.Headline,
	}
}

func (u *User) IsConnectedTo(id primitive.ObjectID) bool {
	for _, c := range u.Connections {
		if c == id {
			return true
		}
	}
	return false
}

// PublicProfile is a user with connections expanded to compact users.
type PublicProfile struct {
	User
	Connections []UserCompact `json:"connections"`
}

type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Username string `json:"username" validate:"required,min=3,max=30,alphanum"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest carries the profile fields a user may change. Nil
// pointers are left untouched. Picture fields accept a data URL (uploaded) or
// an existing link.
type UpdateProfileRequest struct {
	Name           *string  `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	Username       *string  `json:"username,omitempty" validate:"omitempty,min=3,max=30,alphanum"`
	ProfilePicture *string  `json:"profilePicture,omitempty"`
	BannerImg      *string  `json:"bannerImg,omitempty"`
	Headline       *string  `json:"headline,omitempty" validate:"omitempty,max=120"`
	Location       *string  `json:"location,omitempty" validate:"omitempty,max=100"`
	About          *string  `json:"about,omitempty" validate:"omitempty,max=2000"`
	Skills         []string `json:"skills,omitempty" validate:"omitempty,max=50,dive,min=1,max=50"`
}

func (r *UpdateProfileRequest) IsEmpty() bool {
	return r.Name == nil && r.Username == nil && r.ProfilePicture == nil && r.BannerImg == nil &&
		r.Headline == nil && r.Location == nil && r.About == nil && r.Skills == nil
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
