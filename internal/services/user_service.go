package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"github.com/anonto42/linkup/backend/pkg/apperror"
	"github.com/anonto42/linkup/backend/pkg/clock"
	"github.com/anonto42/linkup/backend/pkg/storage"
	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	suggestionLimit  = 10
	searchLimit      = 20
	activityInterval = time.Minute
)

type UserService interface {
	GetCurrentUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetSuggestions(ctx context.Context, user *models.User) ([]models.UserCompact, error)
	GetPublicProfile(ctx context.Context, username string) (*models.PublicProfile, error)
	GetAllUsers(ctx context.Context) ([]models.User, error)
	// GetActiveUsers lists users whose lastActive falls inside the active window.
	GetActiveUsers(ctx context.Context) ([]models.UserCompact, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, req *models.UpdateProfileRequest) (*models.User, error)
	Search(ctx context.Context, query string) ([]models.UserCompact, error)
	// TouchActivity refreshes lastActive unless it was refreshed within the last minute.
	TouchActivity(ctx context.Context, user *models.User) error
}

type userService struct {
	users        repositories.UserRepository
	media        storage.MediaStorage
	sanitizer    *bluemonday.Policy
	clock        clock.Clock
	activeWindow time.Duration
}

func NewUserService(users repositories.UserRepository, media storage.MediaStorage, clk clock.Clock, activeWindow time.Duration) UserService {
	if activeWindow <= 0 {
		activeWindow = 15 * time.Minute
	}
	return &userService{
		users:        users,
		media:        media,
		sanitizer:    bluemonday.StrictPolicy(),
		clock:        clk,
		activeWindow: activeWindow,
	}
}

func (s *userService) GetCurrentUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.users.GetUserByID(ctx, id)
}

func (s *userService) GetSuggestions(ctx context.Context, user *models.User) ([]models.UserCompact, error) {
	users, err := s.users.GetSuggestions(ctx, user, suggestionLimit)
	if err != nil {
		return nil, fmt.Errorf("load suggestions: %w", err)
	}
	return compactUsers(users), nil
}

func (s *userService) GetPublicProfile(ctx context.Context, username string) (*models.PublicProfile, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	connections, err := s.users.GetUsersByIDs(ctx, user.Connections)
	if err != nil {
		return nil, fmt.Errorf("load connections: %w", err)
	}
	return &models.PublicProfile{User: *user, Connections: compactUsers(connections)}, nil
}

func (s *userService) GetAllUsers(ctx context.Context) ([]models.User, error) {
	return s.users.GetUsers(ctx)
}

func (s *userService) GetActiveUsers(ctx context.Context) ([]models.UserCompact, error) {
	since := s.clock.NowUtc().Add(-s.activeWindow)
	users, err := s.users.GetActiveSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load active users: %w", err)
	}
	return compactUsers(users), nil
}

func (s *userService) UpdateProfile(ctx context.Context, id primitive.ObjectID, req *models.UpdateProfileRequest) (*models.User, error) {
	if req.IsEmpty() {
		return nil, apperror.Validation("No profile fields to update")
	}

	for _, field := range []*string{req.Name, req.Headline, req.Location, req.About} {
		if field != nil {
			*field = plainText(s.sanitizer, *field)
		}
	}
	if req.Name != nil && *req.Name == "" {
		return nil, apperror.Validation("Name cannot be empty")
	}

	current, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.storePicture(ctx, req.ProfilePicture); err != nil {
		return nil, err
	}
	if err := s.storePicture(ctx, req.BannerImg); err != nil {
		return nil, err
	}

	updated, err := s.users.UpdateProfile(ctx, id, req, s.clock.NowUtc())
	if err != nil {
		return nil, err
	}

	if req.ProfilePicture != nil && current.ProfilePicture != "" && current.ProfilePicture != updated.ProfilePicture {
		s.deletePicture(ctx, current.ProfilePicture)
	}
	if req.BannerImg != nil && current.BannerImg != "" && current.BannerImg != updated.BannerImg {
		s.deletePicture(ctx, current.BannerImg)
	}
	return updated, nil
}

// storePicture replaces an inline data URL with the uploaded asset URL.
func (s *userService) storePicture(ctx context.Context, field *string) error {
	if field == nil || !storage.IsDataURL(*field) {
		return nil
	}
	if s.media == nil {
		return apperror.Validation("Media uploads are not enabled")
	}
	res, err := s.media.Upload(ctx, *field, "image")
	if err != nil {
		return fmt.Errorf("upload picture: %w", err)
	}
	*field = res.URL
	return nil
}

func (s *userService) deletePicture(ctx context.Context, url string) {
	if s.media == nil {
		return
	}
	if err := s.media.Delete(ctx, url); err != nil {
		log.Printf("Failed to delete old picture %s: %v", url, err)
	}
}

func (s *userService) Search(ctx context.Context, query string) ([]models.UserCompact, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.Validation("Search query 'q' is required")
	}
	users, err := s.users.SearchUsers(ctx, query, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return compactUsers(users), nil
}

func (s *userService) TouchActivity(ctx context.Context, user *models.User) error {
	now := s.clock.NowUtc()
	if now.Sub(user.LastActive) < activityInterval {
		return nil
	}
	if err := s.users.TouchLastActive(ctx, user.ID, now); err != nil {
		return err
	}
	user.LastActive = now
	return nil
}

func compactUsers(users []models.User) []models.UserCompact {
	out := make([]models.UserCompact, len(users))
	for i := range users {
		out[i] = users[i].ToCompact()
	}
	return out
}
