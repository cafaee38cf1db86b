package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/escrow-engine/internal/models"
)

var (
	ErrEscrowNotFound = errors.New("escrow not found")
	ErrEscrowExists   = errors.New("escrow already exists for this job")
	// ErrVersionConflict возвращается, когда строка была изменена другим
	// запросом между чтением и записью. Вызывающий может повторить операцию.
	ErrVersionConflict = errors.New("escrow version conflict")
)

const escrowColumns = `
	id, reference, job_id, client_id, freelancer_id, status,
	total_amount, freelancer_amount, platform_fee, currency, version,
	funded_at, started_at, completed_at, released_at, cancelled_at, refunded_at, disputed_at,
	client_review_status, client_rating, client_review, client_reviewed_at, client_review_data,
	freelancer_review_status, freelancer_rating, freelancer_review, freelancer_reviewed_at, freelancer_review_data,
	milestones, deliverables, payment_history, dispute_data,
	created_at, updated_at
`

type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// Create сохраняет новую сделку. На job_id стоит уникальный индекс:
// один заказ — максимум одна сделка.
func (r *EscrowRepository) Create(ctx context.Context, e *models.Escrow) error {
	query := `
		INSERT INTO escrows (
			reference, job_id, client_id, freelancer_id, status,
			total_amount, freelancer_amount, platform_fee, currency,
			client_review_status, freelancer_review_status,
			milestones, deliverables, payment_history
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, version, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		e.Reference, e.JobID, e.ClientID, e.FreelancerID, e.Status,
		e.TotalAmount, e.FreelancerAmount, e.PlatformFee, e.Currency,
		e.ClientReviewStatus, e.FreelancerReviewStatus,
		e.Milestones, e.Deliverables, e.PaymentHistory,
	).Scan(&e.ID, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEscrowExists
		}
		return fmt.Errorf("escrow repository: create %w", err)
	}
	return nil
}

// GetByID возвращает сделку по идентификатору.
func (r *EscrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	var e models.Escrow
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE id = $1`
	if err := r.db.GetContext(ctx, &e, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: get by id %w", err)
	}
	return &e, nil
}

// GetByJobID возвращает сделку по заказу.
func (r *EscrowRepository) GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Escrow, error) {
	var e models.Escrow
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE job_id = $1`
	if err := r.db.GetContext(ctx, &e, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: get by job %w", err)
	}
	return &e, nil
}

// GetByReference возвращает сделку по человекочитаемой ссылке
// (используется поддержкой и аудитом).
func (r *EscrowRepository) GetByReference(ctx context.Context, reference string) (*models.Escrow, error) {
	var e models.Escrow
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE reference = $1`
	if err := r.db.GetContext(ctx, &e, query, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: get by reference %w", err)
	}
	return &e, nil
}

// Update записывает изменённое состояние сделки целиком: статус, отметки
// времени, ревью и вложенные JSONB структуры обновляются одним оператором,
// поэтому добавление записи в историю платежей и смена статуса атомарны.
// Сравнение version защищает от конкурентной записи.
func (r *EscrowRepository) Update(ctx context.Context, e *models.Escrow) error {
	query := `
		UPDATE escrows SET
			status = $3,
			funded_at = $4, started_at = $5, completed_at = $6, released_at = $7,
			cancelled_at = $8, refunded_at = $9, disputed_at = $10,
			client_review_status = $11, client_rating = $12, client_review = $13,
			client_reviewed_at = $14, client_review_data = $15,
			freelancer_review_status = $16, freelancer_rating = $17, freelancer_review = $18,
			freelancer_reviewed_at = $19, freelancer_review_data = $20,
			milestones = $21, deliverables = $22, payment_history = $23, dispute_data = $24,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $2
	`
	res, err := r.db.ExecContext(ctx, query,
		e.ID, e.Version, e.Status,
		e.FundedAt, e.StartedAt, e.CompletedAt, e.ReleasedAt,
		e.CancelledAt, e.RefundedAt, e.DisputedAt,
		e.ClientReviewStatus, e.ClientRating, e.ClientReview,
		e.ClientReviewedAt, e.ClientReviewData,
		e.FreelancerReviewStatus, e.FreelancerRating, e.FreelancerReview,
		e.FreelancerReviewedAt, e.FreelancerReviewData,
		e.Milestones, e.Deliverables, e.PaymentHistory, e.Dispute,
	)
	if err != nil {
		return fmt.Errorf("escrow repository: update %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("escrow repository: update rows affected %w", err)
	}
	if affected == 0 {
		// Либо строка удалена, либо версия устарела.
		if _, getErr := r.GetByID(ctx, e.ID); getErr != nil {
			return getErr
		}
		return ErrVersionConflict
	}

	e.Version++
	return nil
}

// ListByUser возвращает сделки пользователя в указанной роли.
func (r *EscrowRepository) ListByUser(ctx context.Context, userID uuid.UUID, role string, limit, offset int) ([]models.Escrow, error) {
	column := "client_id"
	if role == models.RoleFreelancer {
		column = "freelancer_id"
	}

	var escrows []models.Escrow
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE ` + column + ` = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &escrows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("escrow repository: list by user %w", err)
	}
	return escrows, nil
}

// Stats возвращает агрегированную статистику по всем сделкам.
func (r *EscrowRepository) Stats(ctx context.Context) (*models.EscrowStats, error) {
	var stats models.EscrowStats
	query := `
		SELECT
			COUNT(*) AS total_escrows,
			COUNT(*) FILTER (WHERE status = 'funded') AS funded_escrows,
			COUNT(*) FILTER (WHERE status = 'in_progress') AS in_progress_escrows,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed_escrows,
			COUNT(*) FILTER (WHERE status = 'disputed') AS disputed_escrows,
			COALESCE(SUM(total_amount) FILTER (WHERE status = 'completed'), 0) AS completed_volume,
			COALESCE(SUM(platform_fee) FILTER (WHERE status = 'completed'), 0) AS platform_fees
		FROM escrows
	`
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("escrow repository: stats %w", err)
	}
	return &stats, nil
}
