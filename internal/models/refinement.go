package models

import "time"

// Refinement round acceptance states.
const (
	RoundPending  = "pending"
	RoundAccepted = "accepted"
	RoundRejected = "rejected"
)

// RefinementRound is one instruction -> revised-content step in a draft's
// append-only refinement history. round_number is gapless and strictly
// increasing per draft; rounds are never deleted.
type RefinementRound struct {
	ID          int64      `db:"id" json:"id"`
	DraftID     int64      `db:"draft_id" json:"draft_id"`
	RoundNumber int        `db:"round_number" json:"round_number"`
	Instruction string     `db:"instruction" json:"instruction"`
	Content     string     `db:"content" json:"content"`
	Status      string     `db:"status" json:"status"` // pending|accepted|rejected
	DecidedAt   *time.Time `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`

	// Advisory knowledge suggestion extracted from the exchange, if any.
	SuggestionContent  *string `db:"suggestion_content" json:"-"`
	SuggestionCategory *string `db:"suggestion_category" json:"-"`
}

// KnowledgeSuggestion is the wire form of an advisory suggestion.
type KnowledgeSuggestion struct {
	Content  string `json:"content"`
	Category string `json:"category"`
}

// Suggestion returns the round's knowledge suggestion, or nil.
func (r *RefinementRound) Suggestion() *KnowledgeSuggestion {
	if r.SuggestionContent == nil || *r.SuggestionContent == "" {
		return nil
	}
	s := &KnowledgeSuggestion{Content: *r.SuggestionContent}
	if r.SuggestionCategory != nil {
		s.Category = *r.SuggestionCategory
	}
	return s
}

// RefineInput is the request payload for a refinement instruction.
type RefineInput struct {
	Instruction string `json:"instruction"`
}
