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
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentExists возвращается при попытке создать платёж с уже
	// занятой ссылкой. Для расчётов по сделке ссылка детерминирована,
	// поэтому конфликт означает, что запись уже создана прошлой попыткой.
	ErrPaymentExists = errors.New("payment already exists")
)

type PaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create сохраняет платёжную запись (выплата фрилансеру или возврат клиенту).
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (user_id, escrow_id, purpose, status, amount, currency, reference, description, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		p.UserID, p.EscrowID, p.Purpose, p.Status, p.Amount, p.Currency,
		p.Reference, p.Description, p.CompletedAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrPaymentExists
		}
		return fmt.Errorf("payment repository: create %w", err)
	}
	return nil
}

// GetByReference возвращает платёж по ссылке.
func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.GetContext(ctx, &p, `
		SELECT id, user_id, escrow_id, purpose, status, amount, currency, reference, description, created_at, completed_at
		FROM payments WHERE reference = $1
	`, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment repository: get by reference %w", err)
	}
	return &p, nil
}

// GetByID возвращает платёж по идентификатору.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	err := r.db.GetContext(ctx, &p, `
		SELECT id, user_id, escrow_id, purpose, status, amount, currency, reference, description, created_at, completed_at
		FROM payments WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment repository: get by id %w", err)
	}
	return &p, nil
}

// ListByEscrow возвращает платёжные записи по сделке.
func (r *PaymentRepository) ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.SelectContext(ctx, &payments, `
		SELECT id, user_id, escrow_id, purpose, status, amount, currency, reference, description, created_at, completed_at
		FROM payments WHERE escrow_id = $1 ORDER BY created_at
	`, escrowID)
	if err != nil {
		return nil, fmt.Errorf("payment repository: list by escrow %w", err)
	}
	return payments, nil
}
