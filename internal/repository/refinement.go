package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/lgscvb/Brain-sub000/internal/errs"
	"github.com/lgscvb/Brain-sub000/internal/models"
)

type RefinementRepository interface {
	// Append inserts the next round for a draft. Round numbering is
	// serialized on the draft row, so concurrent calls cannot produce
	// duplicate or out-of-order numbers.
	Append(draftID int64, instruction, content string, suggestion *models.KnowledgeSuggestion) (*models.RefinementRound, error)
	// Mark sets a round's acceptance state. Re-marking a decided round is
	// allowed; ordering and history are never affected.
	Mark(roundID int64, status string) (*models.RefinementRound, error)
	GetByID(roundID int64) (*models.RefinementRound, error)
	ListByDraft(draftID int64) ([]*models.RefinementRound, error)
	CountByDraft(draftID int64) (int, error)
	// LastByDraft returns the highest-numbered round, or nil when the
	// draft has no rounds yet.
	LastByDraft(draftID int64) (*models.RefinementRound, error)
}

type refinementRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewRefinementRepository(db *sqlx.DB, logger *zap.Logger) RefinementRepository {
	return &refinementRepository{db: db, logger: logger}
}

const roundColumns = `id, draft_id, round_number, instruction, content, status,
	       suggestion_content, suggestion_category, decided_at, created_at`

func (r *refinementRepository) Append(draftID int64, instruction, content string, suggestion *models.KnowledgeSuggestion) (*models.RefinementRound, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Lock the draft row: the max+1 computation and the insert must be
	// atomic per draft. The unique (draft_id, round_number) constraint is
	// the backstop.
	var exists int64
	err = tx.QueryRowx(`SELECT id FROM drafts WHERE id = $1 FOR UPDATE`, draftID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.New(errs.KindNotFound, "draft not found")
		}
		return nil, err
	}

	var next int
	if err := tx.QueryRowx(
		`SELECT COALESCE(MAX(round_number), 0) + 1 FROM refinement_rounds WHERE draft_id = $1`,
		draftID,
	).Scan(&next); err != nil {
		return nil, err
	}

	var suggestionContent, suggestionCategory *string
	if suggestion != nil {
		suggestionContent = &suggestion.Content
		suggestionCategory = &suggestion.Category
	}

	round := &models.RefinementRound{
		DraftID:            draftID,
		RoundNumber:        next,
		Instruction:        instruction,
		Content:            content,
		Status:             models.RoundPending,
		SuggestionContent:  suggestionContent,
		SuggestionCategory: suggestionCategory,
	}

	err = tx.QueryRowx(
		`INSERT INTO refinement_rounds (draft_id, round_number, instruction, content, status, suggestion_content, suggestion_category)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		draftID, next, instruction, content, round.Status, suggestionContent, suggestionCategory,
	).Scan(&round.ID, &round.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append refinement round: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return round, nil
}

func (r *refinementRepository) Mark(roundID int64, status string) (*models.RefinementRound, error) {
	if status != models.RoundAccepted && status != models.RoundRejected {
		return nil, errs.New(errs.KindValidation, "status must be accepted or rejected")
	}

	var round models.RefinementRound
	err := r.db.QueryRowx(
		`UPDATE refinement_rounds
		 SET status = $1, decided_at = CURRENT_TIMESTAMP
		 WHERE id = $2
		 RETURNING `+roundColumns,
		status, roundID,
	).StructScan(&round)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.New(errs.KindNotFound, "refinement round not found")
		}
		return nil, err
	}
	return &round, nil
}

func (r *refinementRepository) GetByID(roundID int64) (*models.RefinementRound, error) {
	var round models.RefinementRound
	query := `SELECT ` + roundColumns + ` FROM refinement_rounds WHERE id = $1`
	err := r.db.Get(&round, query, roundID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.New(errs.KindNotFound, "refinement round not found")
		}
		return nil, err
	}
	return &round, nil
}

func (r *refinementRepository) ListByDraft(draftID int64) ([]*models.RefinementRound, error) {
	var rounds []*models.RefinementRound
	query := `SELECT ` + roundColumns + ` FROM refinement_rounds
	          WHERE draft_id = $1 ORDER BY round_number ASC`
	if err := r.db.Select(&rounds, query, draftID); err != nil {
		return nil, err
	}
	return rounds, nil
}

func (r *refinementRepository) CountByDraft(draftID int64) (int, error) {
	var count int
	err := r.db.QueryRowx(`SELECT COUNT(*) FROM refinement_rounds WHERE draft_id = $1`, draftID).Scan(&count)
	return count, err
}

func (r *refinementRepository) LastByDraft(draftID int64) (*models.RefinementRound, error) {
	var round models.RefinementRound
	query := `SELECT ` + roundColumns + ` FROM refinement_rounds
	          WHERE draft_id = $1 ORDER BY round_number DESC LIMIT 1`
	err := r.db.Get(&round, query, draftID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &round, nil
}
