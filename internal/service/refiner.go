package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lgscvb/Brain-sub000/internal/errs"
	"github.com/lgscvb/Brain-sub000/internal/llm"
	"github.com/lgscvb/Brain-sub000/internal/models"
	"github.com/lgscvb/Brain-sub000/internal/repository"
)

// Refiner applies natural-language instructions to a draft, keeping an
// append-only, gapless round history per draft.
type Refiner struct {
	messages repository.MessageRepository
	drafts   repository.DraftRepository
	rounds   repository.RefinementRepository
	invokers InvokerSource
	timeout  time.Duration
	logger   *zap.Logger
}

func NewRefiner(
	messages repository.MessageRepository,
	drafts repository.DraftRepository,
	rounds repository.RefinementRepository,
	invokers InvokerSource,
	timeout time.Duration,
	logger *zap.Logger,
) *Refiner {
	return &Refiner{
		messages: messages,
		drafts:   drafts,
		rounds:   rounds,
		invokers: invokers,
		timeout:  timeout,
		logger:   logger,
	}
}

// Refine runs one instruction against the draft's current content and
// appends the result as a new round. Nothing is persisted when the model
// invocation fails or is cancelled.
func (r *Refiner) Refine(ctx context.Context, draftID int64, instruction string) (*models.RefinementRound, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, errs.New(errs.KindValidation, "instruction must not be empty")
	}

	draft, err := r.drafts.GetByID(draftID)
	if err != nil {
		return nil, err
	}

	msg, err := r.messages.GetByID(draft.MessageID)
	if err != nil {
		return nil, err
	}
	if msg.Status == models.MessageStatusArchived {
		return nil, errs.New(errs.KindConflict, "message is archived")
	}

	last, err := r.rounds.LastByDraft(draftID)
	if err != nil {
		return nil, err
	}
	current := draft.Content
	if last != nil {
		current = last.Content
	}

	invoker, err := r.invokers.Invoker(draft.ModelTier)
	if err != nil {
		return nil, errs.Wrap(errs.KindRefinementFailed, "no model available", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	revised, err := invoker.Complete(callCtx, RefineSystemInstruction,
		BuildRefinePrompt(msg.Content, current, instruction))
	if err != nil {
		r.logger.Error("Refinement failed",
			zap.Int64("draft_id", draftID),
			zap.Error(err))
		return nil, errs.Wrap(errs.KindRefinementFailed, "model invocation failed", err)
	}

	revised = normalizeContent(revised)
	if revised == "" {
		return nil, errs.New(errs.KindRefinementFailed, "model returned empty content")
	}

	suggestion := r.detectSuggestion(ctx, invoker, instruction, revised)

	round, err := r.rounds.Append(draftID, instruction, revised, suggestion)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Refinement round appended",
		zap.Int64("draft_id", draftID),
		zap.Int("round_number", round.RoundNumber),
		zap.Bool("has_suggestion", suggestion != nil))

	return round, nil
}

// detectSuggestion runs the advisory knowledge-suggestion detector. It is
// best effort: any failure yields no suggestion and never fails the refine.
func (r *Refiner) detectSuggestion(ctx context.Context, invoker llm.Invoker, instruction, revised string) *models.KnowledgeSuggestion {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := invoker.Complete(callCtx, SuggestionSystemInstruction,
		BuildSuggestionPrompt(instruction, revised))
	if err != nil {
		r.logger.Debug("Knowledge suggestion detection failed", zap.Error(err))
		return nil
	}

	payload, err := parseSuggestion(raw)
	if err != nil {
		r.logger.Debug("Knowledge suggestion parse failed", zap.Error(err))
		return nil
	}
	if !payload.HasSuggestion || strings.TrimSpace(payload.Content) == "" {
		return nil
	}

	return &models.KnowledgeSuggestion{
		Content:  payload.Content,
		Category: payload.Category,
	}
}

// Mark records the agent's accept/reject decision on a round. Re-marking a
// decided round is allowed; history and ordering are untouched.
func (r *Refiner) Mark(draftID, roundID int64, status string) (*models.RefinementRound, error) {
	round, err := r.rounds.GetByID(roundID)
	if err != nil {
		return nil, err
	}
	if round.DraftID != draftID {
		return nil, errs.New(errs.KindValidation, "round does not belong to draft")
	}
	return r.rounds.Mark(roundID, status)
}

// History returns the draft's rounds in order.
func (r *Refiner) History(draftID int64) ([]*models.RefinementRound, error) {
	if _, err := r.drafts.GetByID(draftID); err != nil {
		return nil, err
	}
	return r.rounds.ListByDraft(draftID)
}

// WorkingContent is the pure "use this version" read: it returns the
// content the agent's working buffer should show, without mutating any
// history. With no round selected it returns the latest content.
func (r *Refiner) WorkingContent(draftID int64, roundID *int64) (string, error) {
	draft, err := r.drafts.GetByID(draftID)
	if err != nil {
		return "", err
	}

	if roundID != nil {
		round, err := r.rounds.GetByID(*roundID)
		if err != nil {
			return "", err
		}
		if round.DraftID != draftID {
			return "", errs.New(errs.KindValidation, "round does not belong to draft")
		}
		return round.Content, nil
	}

	last, err := r.rounds.LastByDraft(draftID)
	if err != nil {
		return "", err
	}
	if last != nil {
		return last.Content, nil
	}
	return draft.Content, nil
}
