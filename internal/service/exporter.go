package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lgscvb/Brain-sub000/internal/errs"
	"github.com/lgscvb/Brain-sub000/internal/models"
	"github.com/lgscvb/Brain-sub000/internal/repository"
)

// sftInstruction is the task framing attached to every supervised record.
const sftInstruction = "你是物業租賃的客服助理，請根據客戶訊息撰寫一則合適的回覆。"

// Exporter turns the accumulated drafts, refinement rounds, feedback and
// sent responses into training corpora. Every export writes a manifest
// row; the corpus itself is returned to the caller, not persisted.
type Exporter struct {
	drafts    repository.DraftRepository
	rounds    repository.RefinementRepository
	responses repository.ResponseRepository
	exports   repository.ExportRepository
	logger    *zap.Logger
}

func NewExporter(
	drafts repository.DraftRepository,
	rounds repository.RefinementRepository,
	responses repository.ResponseRepository,
	exports repository.ExportRepository,
	logger *zap.Logger,
) *Exporter {
	return &Exporter{
		drafts:    drafts,
		rounds:    rounds,
		responses: responses,
		exports:   exports,
		logger:    logger,
	}
}

// Export builds the corpus for the requested type and records a manifest
// row, even when the corpus is empty. Excluded rows (rows in scope that
// could not form a valid record) are counted, never silently dropped.
func (e *Exporter) Export(in models.ExportInput) (*models.ExportResult, error) {
	data, count, excluded, err := e.Materialize(in.ExportType, in.IncludeRefinementsOrDefault(), in.IncludeResponsesOrDefault())
	if err != nil {
		return nil, err
	}

	manifest := &models.TrainingExport{
		ID:            uuid.NewString(),
		ExportType:    in.ExportType,
		RecordCount:   count,
		ExcludedCount: excluded,
	}
	if err := e.exports.SaveManifest(manifest); err != nil {
		return nil, err
	}

	if excluded > 0 {
		e.logger.Warn("export completed with excluded rows",
			zap.String("export_id", manifest.ID),
			zap.String("export_type", in.ExportType),
			zap.Int("excluded", excluded))
	} else {
		e.logger.Info("export completed",
			zap.String("export_id", manifest.ID),
			zap.String("export_type", in.ExportType),
			zap.Int("records", count))
	}

	return &models.ExportResult{
		ExportID:      manifest.ID,
		ExportType:    in.ExportType,
		RecordCount:   count,
		ExcludedCount: excluded,
		Data:          data,
	}, nil
}

// Materialize builds a corpus without recording a manifest. Exports are
// cheap and reproducible, so corpus downloads re-run the transform for a
// stored manifest's type instead of persisting payloads.
func (e *Exporter) Materialize(exportType string, includeRefinements, includeResponses bool) (interface{}, int, int, error) {
	switch exportType {
	case models.ExportTypeSFT:
		records, excluded, err := e.buildSFT()
		if err != nil {
			return nil, 0, 0, err
		}
		return records, len(records), excluded, nil
	case models.ExportTypeRLHF:
		records, excluded, err := e.buildPreferencePairs(false, includeRefinements, includeResponses)
		if err != nil {
			return nil, 0, 0, err
		}
		return records, len(records), excluded, nil
	case models.ExportTypeDPO:
		records, excluded, err := e.buildPreferencePairs(true, includeRefinements, includeResponses)
		if err != nil {
			return nil, 0, 0, err
		}
		return records, len(records), excluded, nil
	default:
		return nil, 0, 0, errs.New(errs.KindValidation, "export_type must be one of sft, rlhf, dpo")
	}
}

// Download re-materializes the corpus for a stored manifest.
func (e *Exporter) Download(exportID string) (*models.TrainingExport, interface{}, error) {
	manifest, err := e.exports.GetManifest(exportID)
	if err != nil {
		return nil, nil, err
	}
	data, _, _, err := e.Materialize(manifest.ExportType, true, true)
	if err != nil {
		return nil, nil, err
	}
	return manifest, data, nil
}

// buildSFT emits one instruction/input/output record per sent response.
// Responses whose final content is blank cannot be trained on and are
// counted as excluded.
func (e *Exporter) buildSFT() ([]models.SFTRecord, int, error) {
	rows, err := e.responses.ListWithMessages()
	if err != nil {
		return nil, 0, err
	}

	records := make([]models.SFTRecord, 0, len(rows))
	excluded := 0
	for _, row := range rows {
		if strings.TrimSpace(row.FinalContent) == "" {
			excluded++
			continue
		}
		records = append(records, models.SFTRecord{
			Instruction: sftInstruction,
			Input:       row.MessageContent,
			Output:      row.FinalContent,
			MessageID:   row.MessageID,
			DraftID:     row.DraftID,
		})
	}
	return records, excluded, nil
}

// buildPreferencePairs emits one chosen/rejected pair per distinct rejected
// artifact. A rejected artifact is a rejected refinement round, the draft
// content when the agent thumbed it down, or the content the operator
// rewrote before sending (a modified response is an implicit rejection of
// the text it was based on). The chosen side is the sent final content when
// one exists, otherwise the latest accepted round's content. Drafts that
// carry a rejected artifact but no chosen counterpart are counted as
// excluded.
//
// In DPO mode each pair additionally needs a preference strength: the
// rating in effect when the artifact was decided (recovered from the
// feedback event history), falling back to the draft's current rating.
// Artifacts with no recoverable rating are out of scope for DPO and are
// skipped without being counted.
func (e *Exporter) buildPreferencePairs(requireRating, includeRefinements, includeResponses bool) ([]models.PreferenceRecord, int, error) {
	drafts, err := e.drafts.ListAllWithMessage()
	if err != nil {
		return nil, 0, err
	}

	records := make([]models.PreferenceRecord, 0, len(drafts))
	excluded := 0
	for _, d := range drafts {
		var rounds []*models.RefinementRound
		if includeRefinements {
			rounds, err = e.rounds.ListByDraft(d.ID)
			if err != nil {
				return nil, 0, err
			}
		}

		chosen := ""
		var resp *models.Response
		if includeResponses {
			resp, err = e.responses.GetByDraft(d.ID)
			if err != nil {
				return nil, 0, err
			}
			if resp != nil && strings.TrimSpace(resp.FinalContent) != "" {
				chosen = resp.FinalContent
			}
		}
		if chosen == "" {
			for i := len(rounds) - 1; i >= 0; i-- {
				if rounds[i].Status == models.RoundAccepted {
					chosen = rounds[i].Content
					break
				}
			}
		}

		type artifact struct {
			content   string
			roundID   *int64
			decidedAt *time.Time
		}
		var artifacts []artifact
		for _, round := range rounds {
			if round.Status == models.RoundRejected {
				id := round.ID
				artifacts = append(artifacts, artifact{content: round.Content, roundID: &id, decidedAt: round.DecidedAt})
			}
		}
		if d.IsGood != nil && !*d.IsGood {
			artifacts = append(artifacts, artifact{content: d.Content})
		}
		if resp != nil && resp.IsModified {
			// An edited send rejects the content it was based on.
			base := d.Content
			var baseRoundID *int64
			if resp.BasisRoundID != nil {
				for _, round := range rounds {
					if round.ID == *resp.BasisRoundID {
						base = round.Content
						baseRoundID = resp.BasisRoundID
						break
					}
				}
			}
			dup := false
			for _, a := range artifacts {
				if a.content == base {
					dup = true
					break
				}
			}
			if !dup {
				sentAt := resp.SentAt
				artifacts = append(artifacts, artifact{content: base, roundID: baseRoundID, decidedAt: &sentAt})
			}
		}
		if len(artifacts) == 0 {
			continue
		}
		if chosen == "" {
			// flagged draft with nothing to prefer over it
			excluded += len(artifacts)
			continue
		}

		var events []*models.FeedbackEvent
		if requireRating {
			events, err = e.drafts.ListFeedbackEvents(d.ID)
			if err != nil {
				return nil, 0, err
			}
		}

		for _, a := range artifacts {
			rec := models.PreferenceRecord{
				Prompt:    d.MessageContent,
				Chosen:    chosen,
				Rejected:  a.content,
				MessageID: d.MessageID,
				DraftID:   d.ID,
				RoundID:   a.roundID,
			}
			if requireRating {
				rating := ratingInEffect(events, a.decidedAt)
				if rating == nil {
					rating = d.Rating
				}
				if rating == nil {
					continue
				}
				rec.Rating = rating
			}
			records = append(records, rec)
		}
	}
	return records, excluded, nil
}

// ratingInEffect returns the most recent rating submitted at or before the
// given time, or nil. A nil time means "now", i.e. the latest rating.
func ratingInEffect(events []*models.FeedbackEvent, at *time.Time) *int {
	var rating *int
	for _, ev := range events {
		if ev.Rating == nil {
			continue
		}
		if at != nil && ev.CreatedAt.After(*at) {
			break
		}
		rating = ev.Rating
	}
	return rating
}

// ExportStats is the aggregate view behind GET /training/stats.
type ExportStats struct {
	ExportsByType     map[string]int           `json:"exports_by_type"`
	RecentExports     []*models.TrainingExport `json:"recent_exports"`
	ResponsesTotal    int                      `json:"responses_total"`
	ResponsesModified int                      `json:"responses_modified"`
	AdoptionRate      float64                  `json:"adoption_rate"`
}

// Stats aggregates export history with the draft adoption rate (the share
// of responses sent without edits).
func (e *Exporter) Stats() (*ExportStats, error) {
	byType, err := e.exports.CountByType()
	if err != nil {
		return nil, err
	}
	recent, err := e.exports.ListRecent(20)
	if err != nil {
		return nil, err
	}
	total, modified, err := e.responses.AdoptionStats()
	if err != nil {
		return nil, err
	}

	stats := &ExportStats{
		ExportsByType:     byType,
		RecentExports:     recent,
		ResponsesTotal:    total,
		ResponsesModified: modified,
	}
	if total > 0 {
		stats.AdoptionRate = 1 - float64(modified)/float64(total)
	}
	return stats, nil
}
