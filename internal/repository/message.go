package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/lgscvb/Brain-sub000/internal/errs"
	"github.com/lgscvb/Brain-sub000/internal/models"
)

type MessageRepository interface {
	Save(msg *models.Message) error
	GetByID(id int64) (*models.Message, error)
	List(status string) ([]*models.Message, error)
	// CountBySender returns how many messages this sender has, the router's
	// conversation-length signal.
	CountBySender(sender string) (int, error)
	Archive(id int64) error
}

type messageRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMessageRepository(db *sqlx.DB, logger *zap.Logger) MessageRepository {
	return &messageRepository{db: db, logger: logger}
}

func (r *messageRepository) Save(msg *models.Message) error {
	query := `INSERT INTO messages (sender, channel, content, status, received_at)
	          VALUES ($1, $2, $3, 'pending', CURRENT_TIMESTAMP)
	          RETURNING id, status, received_at, created_at`
	return r.db.QueryRowx(query, msg.Sender, msg.Channel, msg.Content).
		Scan(&msg.ID, &msg.Status, &msg.ReceivedAt, &msg.CreatedAt)
}

func (r *messageRepository) GetByID(id int64) (*models.Message, error) {
	var msg models.Message
	query := `SELECT id, sender, channel, content, status, received_at, created_at
	          FROM messages WHERE id = $1`
	err := r.db.Get(&msg, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.New(errs.KindNotFound, "message not found")
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) List(status string) ([]*models.Message, error) {
	var msgs []*models.Message
	if status == "" {
		query := `SELECT id, sender, channel, content, status, received_at, created_at
		          FROM messages ORDER BY received_at DESC`
		if err := r.db.Select(&msgs, query); err != nil {
			return nil, err
		}
		return msgs, nil
	}
	query := `SELECT id, sender, channel, content, status, received_at, created_at
	          FROM messages WHERE status = $1 ORDER BY received_at DESC`
	if err := r.db.Select(&msgs, query, status); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) CountBySender(sender string) (int, error) {
	var count int
	if err := r.db.Get(&count, `SELECT COUNT(*) FROM messages WHERE sender = $1`, sender); err != nil {
		return 0, err
	}
	return count, nil
}

// Archive moves a message into the absorbing archived state.
func (r *messageRepository) Archive(id int64) error {
	result, err := r.db.Exec(`UPDATE messages SET status = 'archived' WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.New(errs.KindNotFound, "message not found")
	}
	return nil
}
