package service

import (
	"go.uber.org/zap"

	"github.com/lgscvb/Brain-sub000/internal/errs"
	"github.com/lgscvb/Brain-sub000/internal/models"
	"github.com/lgscvb/Brain-sub000/internal/repository"
)

// FeedbackCollector validates and applies agent feedback on drafts.
type FeedbackCollector struct {
	drafts repository.DraftRepository
	logger *zap.Logger
}

func NewFeedbackCollector(drafts repository.DraftRepository, logger *zap.Logger) *FeedbackCollector {
	return &FeedbackCollector{drafts: drafts, logger: logger}
}

// Submit applies a partial feedback update to a draft. At least one field
// must be present; present fields overwrite, absent ones are left alone.
func (f *FeedbackCollector) Submit(draftID int64, in models.FeedbackInput) (*models.Draft, error) {
	if in.IsGood == nil && in.Rating == nil && in.FeedbackReason == nil {
		return nil, errs.New(errs.KindValidation, "feedback must carry at least one field")
	}
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return nil, errs.New(errs.KindValidation, "rating must be between 1 and 5")
	}

	draft, err := f.drafts.UpdateFeedback(draftID, in)
	if err != nil {
		return nil, err
	}

	f.logger.Info("feedback recorded", zap.Int64("draft_id", draftID))
	return draft, nil
}

// History returns every feedback submission for a draft, oldest first.
func (f *FeedbackCollector) History(draftID int64) ([]*models.FeedbackEvent, error) {
	if _, err := f.drafts.GetByID(draftID); err != nil {
		return nil, err
	}
	return f.drafts.ListFeedbackEvents(draftID)
}
