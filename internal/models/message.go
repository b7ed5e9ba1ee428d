package models

import "time"

// Message statuses. Transitions move forward only; "archived" is absorbing.
const (
	MessageStatusPending  = "pending"
	MessageStatusDrafted  = "drafted"
	MessageStatusSent     = "sent"
	MessageStatusArchived = "archived"
)

// Message represents an inbound customer message stored in the 'messages' table.
// Everything except Status is immutable once created.
type Message struct {
	ID         int64     `db:"id" json:"id"`
	Sender     string    `db:"sender" json:"sender"`
	Channel    string    `db:"channel" json:"channel"` // "line", "facebook", "web", ...
	Content    string    `db:"content" json:"content"`
	Status     string    `db:"status" json:"status"`
	ReceivedAt time.Time `db:"received_at" json:"received_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// CreateMessageInput is the intake payload for a normalized inbound message.
type CreateMessageInput struct {
	Sender  string `json:"sender" binding:"required"`
	Channel string `json:"channel" binding:"required"`
	Content string `json:"content" binding:"required"`
}
