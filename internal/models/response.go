package models

import "time"

// Response is the content actually sent to the customer for a message.
// IsModified is true when FinalContent differs from the AI content that was
// active when send was invoked (last refinement round, else the draft).
type Response struct {
	ID           int64     `db:"id" json:"id"`
	MessageID    int64     `db:"message_id" json:"message_id"`
	DraftID      int64     `db:"draft_id" json:"draft_id"`
	BasisRoundID *int64    `db:"basis_round_id" json:"basis_round_id,omitempty"`
	FinalContent string    `db:"final_content" json:"final_content"`
	IsModified   bool      `db:"is_modified" json:"is_modified"`
	SentAt       time.Time `db:"sent_at" json:"sent_at"`
}

// SendInput is the request payload for sending a reply.
type SendInput struct {
	Content string `json:"content"`
	DraftID *int64 `json:"draft_id"`
}
