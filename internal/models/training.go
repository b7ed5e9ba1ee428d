package models

import "time"

// Training export corpus types.
const (
	ExportTypeSFT  = "sft"
	ExportTypeRLHF = "rlhf"
	ExportTypeDPO  = "dpo"
)

// TrainingExport is a manifest row for one export run. The generated corpus
// itself is returned to the caller but not persisted; exports are history,
// not a cache.
type TrainingExport struct {
	ID            string    `db:"id" json:"export_id"`
	ExportType    string    `db:"export_type" json:"export_type"`
	RecordCount   int       `db:"record_count" json:"record_count"`
	ExcludedCount int       `db:"excluded_count" json:"excluded_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// SFTRecord is one supervised instruction/input/output example.
type SFTRecord struct {
	Instruction string `json:"instruction"`
	Input       string `json:"input"`
	Output      string `json:"output"`
	MessageID   int64  `json:"message_id"`
	DraftID     int64  `json:"draft_id"`
}

// PreferenceRecord is one chosen/rejected pair. Rating is only set for DPO
// exports and carries the preference strength (1-5).
type PreferenceRecord struct {
	Prompt    string `json:"prompt"`
	Chosen    string `json:"chosen"`
	Rejected  string `json:"rejected"`
	Rating    *int   `json:"rating,omitempty"`
	MessageID int64  `json:"message_id"`
	DraftID   int64  `json:"draft_id"`
	RoundID   *int64 `json:"round_id,omitempty"`
}

// ExportInput is the request payload for a training-data export. The
// include flags are pointers so an omitted flag means "include": a bare
// {"export_type": "rlhf"} consults both rounds and responses.
type ExportInput struct {
	ExportType         string `json:"export_type" binding:"required"`
	IncludeRefinements *bool  `json:"include_refinements"`
	IncludeResponses   *bool  `json:"include_responses"`
}

// IncludeRefinementsOrDefault resolves the flag, defaulting to true.
func (in ExportInput) IncludeRefinementsOrDefault() bool {
	return in.IncludeRefinements == nil || *in.IncludeRefinements
}

// IncludeResponsesOrDefault resolves the flag, defaulting to true.
func (in ExportInput) IncludeResponsesOrDefault() bool {
	return in.IncludeResponses == nil || *in.IncludeResponses
}

// ExportResult bundles a manifest with its generated corpus.
type ExportResult struct {
	ExportID      string      `json:"export_id"`
	ExportType    string      `json:"export_type"`
	RecordCount   int         `json:"record_count"`
	ExcludedCount int         `json:"excluded_count"`
	Data          interface{} `json:"data"`
}
