package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/lgscvb/Brain-sub000/internal/errs"
	"github.com/lgscvb/Brain-sub000/internal/models"
)

// ResponseWithMessage is a sent response joined with its message, used by
// the training exporter.
type ResponseWithMessage struct {
	models.Response
	MessageContent string `db:"message_content"`
}

type ResponseRepository interface {
	// Save persists the response and moves the message to sent, atomically.
	Save(resp *models.Response) error
	GetByMessage(messageID int64) (*models.Response, error)
	// GetByDraft returns the response based on a draft, or nil when the
	// message has not been sent yet.
	GetByDraft(draftID int64) (*models.Response, error)
	ListWithMessages() ([]*ResponseWithMessage, error)
	// AdoptionStats returns total sent responses and how many were
	// modified by the agent before sending.
	AdoptionStats() (total int, modified int, err error)
}

type responseRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewResponseRepository(db *sqlx.DB, logger *zap.Logger) ResponseRepository {
	return &responseRepository{db: db, logger: logger}
}

func (r *responseRepository) Save(resp *models.Response) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowx(
		`INSERT INTO responses (message_id, draft_id, basis_round_id, final_content, is_modified)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, sent_at`,
		resp.MessageID, resp.DraftID, resp.BasisRoundID, resp.FinalContent, resp.IsModified,
	).Scan(&resp.ID, &resp.SentAt)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`UPDATE messages SET status = 'sent' WHERE id = $1 AND status != 'archived'`, resp.MessageID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *responseRepository) GetByMessage(messageID int64) (*models.Response, error) {
	var resp models.Response
	query := `SELECT id, message_id, draft_id, basis_round_id, final_content, is_modified, sent_at
	          FROM responses WHERE message_id = $1`
	err := r.db.Get(&resp, query, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.New(errs.KindNotFound, "response not found")
		}
		return nil, err
	}
	return &resp, nil
}

func (r *responseRepository) GetByDraft(draftID int64) (*models.Response, error) {
	var resp models.Response
	query := `SELECT id, message_id, draft_id, basis_round_id, final_content, is_modified, sent_at
	          FROM responses WHERE draft_id = $1`
	err := r.db.Get(&resp, query, draftID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &resp, nil
}

func (r *responseRepository) ListWithMessages() ([]*ResponseWithMessage, error) {
	var rows []*ResponseWithMessage
	query := `SELECT r.id, r.message_id, r.draft_id, r.basis_round_id,
	                 r.final_content, r.is_modified, r.sent_at,
	                 m.content AS message_content
	          FROM responses r
	          JOIN messages m ON r.message_id = m.id
	          ORDER BY r.id ASC`
	if err := r.db.Select(&rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *responseRepository) AdoptionStats() (int, int, error) {
	var total, modified int
	err := r.db.QueryRowx(
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_modified) FROM responses`,
	).Scan(&total, &modified)
	if err != nil {
		return 0, 0, err
	}
	return total, modified, nil
}
