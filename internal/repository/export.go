package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/lgscvb/Brain-sub000/internal/errs"
	"github.com/lgscvb/Brain-sub000/internal/models"
)

type ExportRepository interface {
	SaveManifest(m *models.TrainingExport) error
	GetManifest(id string) (*models.TrainingExport, error)
	ListRecent(limit int) ([]*models.TrainingExport, error)
	CountByType() (map[string]int, error)
}

type exportRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewExportRepository(db *sqlx.DB, logger *zap.Logger) ExportRepository {
	return &exportRepository{db: db, logger: logger}
}

func (r *exportRepository) SaveManifest(m *models.TrainingExport) error {
	query := `INSERT INTO training_exports (id, export_type, record_count, excluded_count)
	          VALUES ($1, $2, $3, $4) RETURNING created_at`
	return r.db.QueryRowx(query, m.ID, m.ExportType, m.RecordCount, m.ExcludedCount).Scan(&m.CreatedAt)
}

func (r *exportRepository) GetManifest(id string) (*models.TrainingExport, error) {
	var m models.TrainingExport
	query := `SELECT id, export_type, record_count, excluded_count, created_at
	          FROM training_exports WHERE id = $1`
	err := r.db.Get(&m, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.New(errs.KindNotFound, "export not found")
		}
		return nil, err
	}
	return &m, nil
}

func (r *exportRepository) ListRecent(limit int) ([]*models.TrainingExport, error) {
	if limit <= 0 {
		limit = 20
	}
	var manifests []*models.TrainingExport
	query := `SELECT id, export_type, record_count, excluded_count, created_at
	          FROM training_exports ORDER BY created_at DESC LIMIT $1`
	if err := r.db.Select(&manifests, query, limit); err != nil {
		return nil, err
	}
	return manifests, nil
}

func (r *exportRepository) CountByType() (map[string]int, error) {
	rows, err := r.db.Queryx(`SELECT export_type, COUNT(*) FROM training_exports GROUP BY export_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var exportType string
		var count int
		if err := rows.Scan(&exportType, &count); err != nil {
			return nil, err
		}
		counts[exportType] = count
	}
	return counts, rows.Err()
}
