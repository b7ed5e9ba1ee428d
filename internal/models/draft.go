package models

import "time"

// Draft represents the current AI-generated reply candidate for a message.
// A message has at most one live draft; regeneration replaces the row.
type Draft struct {
	ID        int64     `db:"id" json:"id"`
	MessageID int64     `db:"message_id" json:"message_id"`
	Content   string    `db:"content" json:"content"`
	Strategy  string    `db:"strategy" json:"strategy"` // model's stated reply rationale
	ModelTier string    `db:"model_tier" json:"model_tier"`
	Provider  string    `db:"provider" json:"provider"`
	ModelID   string    `db:"model_id" json:"model_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// Agent feedback. Nullable until submitted; later submissions only
	// touch the fields they carry.
	IsGood         *bool   `db:"is_good" json:"is_good,omitempty"`
	Rating         *int    `db:"rating" json:"rating,omitempty"` // 1-5
	FeedbackReason *string `db:"feedback_reason" json:"feedback_reason,omitempty"`
}

// FeedbackInput carries a partial feedback update. Absent fields leave the
// stored values untouched; present fields overwrite.
type FeedbackInput struct {
	IsGood         *bool   `json:"is_good"`
	Rating         *int    `json:"rating"`
	FeedbackReason *string `json:"feedback_reason"`
}

// FeedbackEvent is one append-only feedback submission against a draft.
// The drafts row holds the latest values; events keep the full history so
// exports can recover the rating in effect at a point in time.
type FeedbackEvent struct {
	ID             int64     `db:"id" json:"id"`
	DraftID        int64     `db:"draft_id" json:"draft_id"`
	IsGood         *bool     `db:"is_good" json:"is_good,omitempty"`
	Rating         *int      `db:"rating" json:"rating,omitempty"`
	FeedbackReason *string   `db:"feedback_reason" json:"feedback_reason,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
