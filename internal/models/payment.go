package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы платежа. Платёж считается основанием для фондирования
// только в статусе completed.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// Назначения платёжных записей, создаваемых движком.
type PaymentPurpose string

const (
	PaymentPurposeEscrowFunding PaymentPurpose = "escrow_funding"
	PaymentPurposePayout        PaymentPurpose = "payout"
	PaymentPurposeRefund        PaymentPurpose = "refund"
)

// Payment — запись о движении денег, принадлежит платёжной подсистеме.
// Движок escrow не ходит в платёжный шлюз напрямую: он потребляет
// подтверждённые платежи и создаёт записи на выплату/возврат.
type Payment struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	UserID      uuid.UUID      `db:"user_id" json:"user_id"`
	EscrowID    *uuid.UUID     `db:"escrow_id" json:"escrow_id,omitempty"`
	Purpose     PaymentPurpose `db:"purpose" json:"purpose"`
	Status      PaymentStatus  `db:"status" json:"status"`
	Amount      int64          `db:"amount" json:"amount"`
	Currency    string         `db:"currency" json:"currency"`
	Reference   string         `db:"reference" json:"reference"`
	Description *string        `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	CompletedAt *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}
