package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-engine/internal/models"
)

var ErrJobNotFound = errors.New("job not found")

// JobRepository — интерфейс движка к подсистеме заказов: читать назначение
// и отмечать заказ как in_progress/completed при фондировании и выплате.
type JobRepository struct {
	db *sqlx.DB
}

func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// GetAssignment возвращает назначение заказа.
func (r *JobRepository) GetAssignment(ctx context.Context, jobID uuid.UUID) (*models.JobAssignment, error) {
	var a models.JobAssignment
	err := r.db.GetContext(ctx, &a, `
		SELECT id, client_id, freelancer_id, status, assigned_at
		FROM jobs WHERE id = $1
	`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("job repository: get assignment %w", err)
	}
	return &a, nil
}

// SetStatus выставляет статус заказа.
func (r *JobRepository) SetStatus(ctx context.Context, jobID uuid.UUID, status models.JobStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = $2, updated_at = NOW() WHERE id = $1
	`, jobID, status)
	if err != nil {
		return fmt.Errorf("job repository: set status %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("job repository: set status rows affected %w", err)
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}
