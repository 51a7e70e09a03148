package models

import "gorm.io/gorm"

type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
	ConnectionRejected ConnectionStatus = "rejected"
)

// ConnectionRequest is a connection invitation between two users (PostgreSQL).
// User ids are MongoDB ObjectID hex strings.
type ConnectionRequest struct {
	gorm.Model
	SenderID    string           `json:"sender_id" gorm:"size:24;index"`
	RecipientID string           `json:"recipient_id" gorm:"size:24;index"`
	Status      ConnectionStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
}

// ConnectionRequestView is a pending request with its sender expanded.
type ConnectionRequestView struct {
	ID     uint             `json:"id"`
	Sender UserCompact      `json:"sender"`
	Status ConnectionStatus `json:"status"`
}
