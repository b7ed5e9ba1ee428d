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

// DraftWithMessage is a draft joined with its owning message, used by the
// training exporter.
type DraftWithMessage struct {
	models.Draft
	MessageContent string `db:"message_content"`
	MessageStatus  string `db:"message_status"`
}

type DraftRepository interface {
	GetByID(id int64) (*models.Draft, error)
	// GetCurrentByMessage returns the live draft for a message, or nil
	// when the message has none.
	GetCurrentByMessage(messageID int64) (*models.Draft, error)
	// ReplaceCurrent atomically installs draft as the message's live draft.
	// It fails with a conflict when the existing draft has refinement
	// history, and moves the message from pending to drafted.
	ReplaceCurrent(draft *models.Draft) error
	// UpdateFeedback applies a partial feedback update: present fields
	// overwrite, absent fields are untouched. Every call is also recorded
	// as an append-only feedback event.
	UpdateFeedback(draftID int64, in models.FeedbackInput) (*models.Draft, error)
	ListFeedbackEvents(draftID int64) ([]*models.FeedbackEvent, error)
	ListAllWithMessage() ([]*DraftWithMessage, error)
}

type draftRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewDraftRepository(db *sqlx.DB, logger *zap.Logger) DraftRepository {
	return &draftRepository{db: db, logger: logger}
}

const draftColumns = `id, message_id, content, strategy, model_tier, provider, model_id,
	       is_good, rating, feedback_reason, created_at`

func (r *draftRepository) GetByID(id int64) (*models.Draft, error) {
	var draft models.Draft
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE id = $1`
	err := r.db.Get(&draft, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.New(errs.KindNotFound, "draft not found")
		}
		return nil, err
	}
	return &draft, nil
}

func (r *draftRepository) GetCurrentByMessage(messageID int64) (*models.Draft, error) {
	var draft models.Draft
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE message_id = $1`
	err := r.db.Get(&draft, query, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &draft, nil
}

func (r *draftRepository) ReplaceCurrent(draft *models.Draft) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Lock the message row so a concurrent regenerate or send serializes here.
	var status string
	err = tx.QueryRowx(`SELECT status FROM messages WHERE id = $1 FOR UPDATE`, draft.MessageID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.New(errs.KindNotFound, "message not found")
		}
		return err
	}
	if status == models.MessageStatusArchived {
		return errs.New(errs.KindConflict, "message is archived")
	}
	if status == models.MessageStatusSent {
		return errs.New(errs.KindConflict, "message already has a sent response")
	}

	var existingID sql.NullInt64
	err = tx.QueryRowx(`SELECT id FROM drafts WHERE message_id = $1 FOR UPDATE`, draft.MessageID).Scan(&existingID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if existingID.Valid {
		var rounds int
		if err := tx.QueryRowx(`SELECT COUNT(*) FROM refinement_rounds WHERE draft_id = $1`, existingID.Int64).Scan(&rounds); err != nil {
			return err
		}
		if rounds > 0 {
			return errs.New(errs.KindConflict, "draft has refinement history; archive the message before regenerating")
		}
		if _, err := tx.Exec(`DELETE FROM drafts WHERE id = $1`, existingID.Int64); err != nil {
			return err
		}
	}

	err = tx.QueryRowx(
		`INSERT INTO drafts (message_id, content, strategy, model_tier, provider, model_id)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		draft.MessageID, draft.Content, draft.Strategy, draft.ModelTier, draft.Provider, draft.ModelID,
	).Scan(&draft.ID, &draft.CreatedAt)
	if err != nil {
		return err
	}

	if status == models.MessageStatusPending {
		if _, err := tx.Exec(`UPDATE messages SET status = 'drafted' WHERE id = $1`, draft.MessageID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *draftRepository) UpdateFeedback(draftID int64, in models.FeedbackInput) (*models.Draft, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var messageStatus string
	err = tx.QueryRowx(
		`SELECT m.status FROM drafts d JOIN messages m ON d.message_id = m.id WHERE d.id = $1 FOR UPDATE OF d`,
		draftID,
	).Scan(&messageStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.New(errs.KindNotFound, "draft not found")
		}
		return nil, err
	}
	if messageStatus == models.MessageStatusArchived {
		return nil, errs.New(errs.KindConflict, "cannot submit feedback on an archived message")
	}

	var draft models.Draft
	err = tx.QueryRowx(
		`UPDATE drafts SET
		     is_good = COALESCE($1, is_good),
		     rating = COALESCE($2, rating),
		     feedback_reason = COALESCE($3, feedback_reason)
		 WHERE id = $4
		 RETURNING `+draftColumns,
		in.IsGood, in.Rating, in.FeedbackReason, draftID,
	).StructScan(&draft)
	if err != nil {
		return nil, fmt.Errorf("failed to update draft feedback: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO feedback_events (draft_id, is_good, rating, feedback_reason)
		 VALUES ($1, $2, $3, $4)`,
		draftID, in.IsGood, in.Rating, in.FeedbackReason,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record feedback event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (r *draftRepository) ListFeedbackEvents(draftID int64) ([]*models.FeedbackEvent, error) {
	var events []*models.FeedbackEvent
	query := `SELECT id, draft_id, is_good, rating, feedback_reason, created_at
	          FROM feedback_events WHERE draft_id = $1 ORDER BY created_at ASC, id ASC`
	if err := r.db.Select(&events, query, draftID); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *draftRepository) ListAllWithMessage() ([]*DraftWithMessage, error) {
	var rows []*DraftWithMessage
	query := `SELECT d.id, d.message_id, d.content, d.strategy, d.model_tier,
	                 d.provider, d.model_id, d.is_good, d.rating, d.feedback_reason,
	                 d.created_at,
	                 m.content AS message_content, m.status AS message_status
	          FROM drafts d
	          JOIN messages m ON d.message_id = m.id
	          ORDER BY d.id ASC`
	if err := r.db.Select(&rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}
