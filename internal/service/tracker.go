package service

import (
	"strings"

	"go.uber.org/zap"

	"github.com/lgscvb/Brain-sub000/internal/errs"
	"github.com/lgscvb/Brain-sub000/internal/models"
	"github.com/lgscvb/Brain-sub000/internal/repository"
)

// Tracker records the reply an operator actually sent and compares it
// against the draft it was based on.
type Tracker struct {
	messages  repository.MessageRepository
	drafts    repository.DraftRepository
	rounds    repository.RefinementRepository
	responses repository.ResponseRepository
	logger    *zap.Logger
}

func NewTracker(
	messages repository.MessageRepository,
	drafts repository.DraftRepository,
	rounds repository.RefinementRepository,
	responses repository.ResponseRepository,
	logger *zap.Logger,
) *Tracker {
	return &Tracker{
		messages:  messages,
		drafts:    drafts,
		rounds:    rounds,
		responses: responses,
		logger:    logger,
	}
}

// RecordSend persists the final reply for a message. The baseline for the
// modification check is the latest refinement round when one exists,
// otherwise the draft content itself.
func (t *Tracker) RecordSend(messageID int64, input models.SendInput) (*models.Response, error) {
	if strings.TrimSpace(input.Content) == "" {
		return nil, errs.New(errs.KindValidation, "content is required")
	}

	msg, err := t.messages.GetByID(messageID)
	if err != nil {
		return nil, err
	}
	if msg.Status == models.MessageStatusArchived {
		return nil, errs.New(errs.KindConflict, "message is archived")
	}
	if existing, err := t.responses.GetByMessage(messageID); err == nil && existing != nil {
		return nil, errs.New(errs.KindConflict, "message already has a sent response")
	} else if err != nil && errs.KindOf(err) != errs.KindNotFound {
		return nil, err
	}

	var draft *models.Draft
	if input.DraftID != nil {
		draft, err = t.drafts.GetByID(*input.DraftID)
		if err != nil {
			return nil, err
		}
		if draft.MessageID != messageID {
			return nil, errs.New(errs.KindValidation, "draft does not belong to this message")
		}
	} else {
		draft, err = t.drafts.GetCurrentByMessage(messageID)
		if err != nil {
			return nil, err
		}
		if draft == nil {
			return nil, errs.New(errs.KindNotFound, "message has no draft")
		}
	}

	baseline := draft.Content
	var basisRoundID *int64
	last, err := t.rounds.LastByDraft(draft.ID)
	if err != nil {
		return nil, err
	}
	if last != nil {
		baseline = last.Content
		basisRoundID = &last.ID
	}

	modified := normalizeContent(input.Content) != normalizeContent(baseline)

	resp := &models.Response{
		MessageID:    messageID,
		DraftID:      draft.ID,
		BasisRoundID: basisRoundID,
		FinalContent: input.Content,
		IsModified:   modified,
	}
	if err := t.responses.Save(resp); err != nil {
		return nil, err
	}

	t.logger.Info("response recorded",
		zap.Int64("message_id", messageID),
		zap.Int64("draft_id", draft.ID),
		zap.Bool("is_modified", modified))
	return resp, nil
}

// AdoptionStats reports how often drafts were sent as-is versus edited.
func (t *Tracker) AdoptionStats() (total, modified int, err error) {
	return t.responses.AdoptionStats()
}

// normalizeContent strips formatting noise that does not change the reply:
// CRLF line endings, trailing whitespace on each line, and trailing blank
// lines. Two replies that differ only in these are treated as identical.
func normalizeContent(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := strings.Join(lines, "\n")
	return strings.TrimRight(out, "\n")
}
