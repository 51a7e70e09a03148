package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/pkg/apperror"
	"gorm.io/gorm"
)

// ConnectionRepository defines the interface for connection request operations
type ConnectionRepository interface {
	CreateRequest(ctx context.Context, req *models.ConnectionRequest) error
	GetRequestByID(ctx context.Context, id uint) (*models.ConnectionRequest, error)
	GetPendingForRecipient(ctx context.Context, recipientID string) ([]models.ConnectionRequest, error)
	ResolvePending(ctx context.Context, id uint, status models.ConnectionStatus) error
	DeleteBetween(ctx context.Context, a, b string) error
}

// PostgresConnectionRepository implements ConnectionRepository for PostgreSQL
type PostgresConnectionRepository struct {
	db *gorm.DB
}

// NewPostgresConnectionRepository creates a new PostgresConnectionRepository
func NewPostgresConnectionRepository(db *gorm.DB) *PostgresConnectionRepository {
	return &PostgresConnectionRepository{db: db}
}

// CreateRequest stores a pending request unless one already links the pair.
func (r *PostgresConnectionRepository) CreateRequest(ctx context.Context, req *models.ConnectionRequest) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ConnectionRequest
		err := tx.Where("((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)) AND status IN ?",
			req.SenderID, req.RecipientID, req.RecipientID, req.SenderID,
			[]models.ConnectionStatus{models.ConnectionPending, models.ConnectionAccepted}).
			First(&existing).Error

		if err == nil {
			if existing.Status == models.ConnectionPending {
				return apperror.Conflict("A connection request is already pending between these users")
			}
			return apperror.Conflict("Users are already connected")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		req.Status = models.ConnectionPending
		return tx.Create(req).Error
	})
}

// GetRequestByID retrieves a connection request by ID
func (r *PostgresConnectionRepository) GetRequestByID(ctx context.Context, id uint) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Connection request not found")
		}
		return nil, err
	}
	return &req, nil
}

// GetPendingForRecipient retrieves all pending requests addressed to a user
func (r *PostgresConnectionRepository) GetPendingForRecipient(ctx context.Context, recipientID string) ([]models.ConnectionRequest, error) {
	var requests []models.ConnectionRequest
	if err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND status = ?", recipientID, models.ConnectionPending).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// ResolvePending moves a pending request to status. Only one caller can
// resolve a given request; the others get a validation error.
func (r *PostgresConnectionRepository) ResolvePending(ctx context.Context, id uint, status models.ConnectionStatus) error {
	res := r.db.WithContext(ctx).Model(&models.ConnectionRequest{}).
		Where("id = ? AND status = ?", id, models.ConnectionPending).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.Validation("This request has already been processed")
	}
	return nil
}

// DeleteBetween removes every request linking the pair, in either direction.
func (r *PostgresConnectionRepository) DeleteBetween(ctx context.Context, a, b string) error {
	return r.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", a, b, b, a).
		Delete(&models.ConnectionRequest{}).Error
}
