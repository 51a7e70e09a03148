package services

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"github.com/anonto42/linkup/backend/pkg/apperror"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ConnectionService interface {
	SendRequest(ctx context.Context, sender primitive.ObjectID, recipientID string) (*models.ConnectionRequest, error)
	Accept(ctx context.Context, recipient primitive.ObjectID, requestID string) error
	Reject(ctx context.Context, recipient primitive.ObjectID, requestID string) error
	ListPending(ctx context.Context, recipient primitive.ObjectID) ([]models.ConnectionRequestView, error)
	ListConnections(ctx context.Context, user primitive.ObjectID) ([]models.UserCompact, error)
	Remove(ctx context.Context, user primitive.ObjectID, otherID string) error
}

type connectionService struct {
	requests      repositories.ConnectionRepository
	users         repositories.UserRepository
	notifications NotificationService
}

func NewConnectionService(requests repositories.ConnectionRepository, users repositories.UserRepository, notifications NotificationService) ConnectionService {
	return &connectionService{requests: requests, users: users, notifications: notifications}
}

func (s *connectionService) SendRequest(ctx context.Context, sender primitive.ObjectID, recipientID string) (*models.ConnectionRequest, error) {
	recipient, err := parseID(recipientID, "User")
	if err != nil {
		return nil, err
	}
	if recipient == sender {
		return nil, apperror.Validation("You can't send a request to yourself")
	}

	senderUser, err := s.users.GetUserByID(ctx, sender)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetUserByID(ctx, recipient); err != nil {
		return nil, err
	}
	if senderUser.IsConnectedTo(recipient) {
		return nil, apperror.Conflict("You are already connected with this user")
	}

	req := &models.ConnectionRequest{
		SenderID:    sender.Hex(),
		RecipientID: recipient.Hex(),
		Status:      models.ConnectionPending,
	}
	if err := s.requests.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Accept connects both users and notifies the sender.
func (s *connectionService) Accept(ctx context.Context, recipient primitive.ObjectID, requestID string) error {
	req, err := s.pendingFor(ctx, recipient, requestID)
	if err != nil {
		return err
	}
	sender, err := primitive.ObjectIDFromHex(req.SenderID)
	if err != nil {
		return fmt.Errorf("connection request %d has malformed sender %q", req.ID, req.SenderID)
	}

	// Connect first: AddConnection is idempotent, so a failure here leaves the
	// request pending and the recipient can simply accept again.
	if err := s.users.AddConnection(ctx, sender, recipient); err != nil {
		return fmt.Errorf("add connection: %w", err)
	}
	if err := s.requests.ResolvePending(ctx, req.ID, models.ConnectionAccepted); err != nil {
		return err
	}

	if s.notifications != nil {
		if err := s.notifications.Notify(ctx, sender, recipient, models.NotificationConnectionAccepted, nil); err != nil {
			log.Printf("Failed to create connectionAccepted notification for %s: %v", sender.Hex(), err)
		}
	}
	return nil
}

func (s *connectionService) Reject(ctx context.Context, recipient primitive.ObjectID, requestID string) error {
	req, err := s.pendingFor(ctx, recipient, requestID)
	if err != nil {
		return err
	}
	return s.requests.ResolvePending(ctx, req.ID, models.ConnectionRejected)
}

// pendingFor loads a request that recipient is allowed to answer.
func (s *connectionService) pendingFor(ctx context.Context, recipient primitive.ObjectID, requestID string) (*models.ConnectionRequest, error) {
	id, err := strconv.ParseUint(requestID, 10, 32)
	if err != nil {
		return nil, apperror.NotFound("Connection request not found")
	}
	req, err := s.requests.GetRequestByID(ctx, uint(id))
	if err != nil {
		return nil, err
	}
	if req.RecipientID != recipient.Hex() {
		return nil, apperror.Forbidden("You are not authorized to answer this request")
	}
	if req.Status != models.ConnectionPending {
		return nil, apperror.Validation("This request has already been processed")
	}
	return req, nil
}

func (s *connectionService) ListPending(ctx context.Context, recipient primitive.ObjectID) ([]models.ConnectionRequestView, error) {
	requests, err := s.requests.GetPendingForRecipient(ctx, recipient.Hex())
	if err != nil {
		return nil, err
	}

	senderIDs := make([]primitive.ObjectID, 0, len(requests))
	for _, r := range requests {
		if id, err := primitive.ObjectIDFromHex(r.SenderID); err == nil {
			senderIDs = append(senderIDs, id)
		}
	}
	senders, err := s.users.GetUsersByIDs(ctx, uniqueIDs(senderIDs))
	if err != nil {
		return nil, fmt.Errorf("load senders: %w", err)
	}
	byHex := make(map[string]models.UserCompact, len(senders))
	for i := range senders {
		byHex[senders[i].ID.Hex()] = senders[i].ToCompact()
	}

	views := make([]models.ConnectionRequestView, 0, len(requests))
	for _, r := range requests {
		sender, ok := byHex[r.SenderID]
		if !ok {
			// Sender account no longer exists.
			continue
		}
		views = append(views, models.ConnectionRequestView{ID: r.ID, Sender: sender, Status: r.Status})
	}
	return views, nil
}

func (s *connectionService) ListConnections(ctx context.Context, user primitive.ObjectID) ([]models.UserCompact, error) {
	u, err := s.users.GetUserByID(ctx, user)
	if err != nil {
		return nil, err
	}
	connections, err := s.users.GetUsersByIDs(ctx, u.Connections)
	if err != nil {
		return nil, fmt.Errorf("load connections: %w", err)
	}
	return compactUsers(connections), nil
}

func (s *connectionService) Remove(ctx context.Context, user primitive.ObjectID, otherID string) error {
	other, err := parseID(otherID, "User")
	if err != nil {
		return err
	}
	u, err := s.users.GetUserByID(ctx, user)
	if err != nil {
		return err
	}
	if !u.IsConnectedTo(other) {
		return apperror.NotFound("Connection not found")
	}
	if err := s.users.RemoveConnection(ctx, user, other); err != nil {
		return fmt.Errorf("remove connection: %w", err)
	}
	return s.requests.DeleteBetween(ctx, user.Hex(), other.Hex())
}
