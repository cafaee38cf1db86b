package models

import (
	"time"

	"github.com/google/uuid"
)

// EscrowStatus — статус защищённой сделки.
type EscrowStatus string

const (
	EscrowStatusPending          EscrowStatus = "pending"
	EscrowStatusFunded           EscrowStatus = "funded"
	EscrowStatusInProgress       EscrowStatus = "in_progress"
	EscrowStatusClientReview     EscrowStatus = "client_review"
	EscrowStatusFreelancerReview EscrowStatus = "freelancer_review"
	EscrowStatusDisputed         EscrowStatus = "disputed"
	EscrowStatusCompleted        EscrowStatus = "completed"
	EscrowStatusCancelled        EscrowStatus = "cancelled"
	EscrowStatusRefunded         EscrowStatus = "refunded"
)

func (s EscrowStatus) IsValid() bool {
	switch s {
	case EscrowStatusPending, EscrowStatusFunded, EscrowStatusInProgress,
		EscrowStatusClientReview, EscrowStatusFreelancerReview,
		EscrowStatusDisputed, EscrowStatusCompleted, EscrowStatusCancelled,
		EscrowStatusRefunded:
		return true
	}
	return false
}

// IsTerminal сообщает, является ли статус конечным.
// Из конечного статуса переходы запрещены.
func (s EscrowStatus) IsTerminal() bool {
	switch s {
	case EscrowStatusCompleted, EscrowStatusCancelled, EscrowStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo проверяет допустимость перехода по графу статусов.
// Спор доступен из любого неконечного статуса, отмена — только из pending.
func (s EscrowStatus) CanTransitionTo(newStatus EscrowStatus) bool {
	transitions := map[EscrowStatus][]EscrowStatus{
		EscrowStatusPending:          {EscrowStatusFunded, EscrowStatusCancelled, EscrowStatusDisputed},
		EscrowStatusFunded:           {EscrowStatusInProgress, EscrowStatusDisputed},
		EscrowStatusInProgress:       {EscrowStatusClientReview, EscrowStatusDisputed},
		EscrowStatusClientReview:     {EscrowStatusFreelancerReview, EscrowStatusCompleted, EscrowStatusDisputed},
		EscrowStatusFreelancerReview: {EscrowStatusCompleted, EscrowStatusDisputed},
		EscrowStatusDisputed:         {EscrowStatusCompleted, EscrowStatusRefunded},
		EscrowStatusCompleted:        {},
		EscrowStatusCancelled:        {},
		EscrowStatusRefunded:         {},
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

// ReviewStatus — состояние слота двустороннего ревью.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
	ReviewStatusDisputed ReviewStatus = "disputed"
)

// Роли участников сделки.
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
	RoleAdmin      = "admin"
)

// Escrow представляет защищённую сделку между клиентом и фрилансером.
// Все суммы хранятся в минорных единицах валюты (копейки, kobo, центы),
// поэтому инвариант freelancer_amount + platform_fee == total_amount точный.
type Escrow struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	Reference    string       `db:"reference" json:"reference"`
	JobID        uuid.UUID    `db:"job_id" json:"job_id"`
	ClientID     uuid.UUID    `db:"client_id" json:"client_id"`
	FreelancerID uuid.UUID    `db:"freelancer_id" json:"freelancer_id"`
	Status       EscrowStatus `db:"status" json:"status"`

	TotalAmount      int64  `db:"total_amount" json:"total_amount"`
	FreelancerAmount int64  `db:"freelancer_amount" json:"freelancer_amount"`
	PlatformFee      int64  `db:"platform_fee" json:"platform_fee"`
	Currency         string `db:"currency" json:"currency"`

	// Version используется для оптимистичной блокировки при обновлении.
	Version int64 `db:"version" json:"-"`

	FundedAt    *time.Time `db:"funded_at" json:"funded_at,omitempty"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	ReleasedAt  *time.Time `db:"released_at" json:"released_at,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	RefundedAt  *time.Time `db:"refunded_at" json:"refunded_at,omitempty"`
	DisputedAt  *time.Time `db:"disputed_at" json:"disputed_at,omitempty"`

	ClientReviewStatus ReviewStatus      `db:"client_review_status" json:"client_review_status"`
	ClientRating       *int              `db:"client_rating" json:"client_rating,omitempty"`
	ClientReview       *string           `db:"client_review" json:"client_review,omitempty"`
	ClientReviewedAt   *time.Time        `db:"client_reviewed_at" json:"client_reviewed_at,omitempty"`
	ClientReviewData   *ClientReviewData `db:"client_review_data" json:"client_review_data,omitempty"`

	FreelancerReviewStatus ReviewStatus          `db:"freelancer_review_status" json:"freelancer_review_status"`
	FreelancerRating       *int                  `db:"freelancer_rating" json:"freelancer_rating,omitempty"`
	FreelancerReview       *string               `db:"freelancer_review" json:"freelancer_review,omitempty"`
	FreelancerReviewedAt   *time.Time            `db:"freelancer_reviewed_at" json:"freelancer_reviewed_at,omitempty"`
	FreelancerReviewData   *FreelancerReviewData `db:"freelancer_review_data" json:"freelancer_review_data,omitempty"`

	Milestones     MilestoneList   `db:"milestones" json:"milestones"`
	Deliverables   DeliverableList `db:"deliverables" json:"deliverables"`
	PaymentHistory LedgerEntryList `db:"payment_history" json:"payment_history"`
	Dispute        *DisputeData    `db:"dispute_data" json:"dispute_data,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsParticipant проверяет, является ли пользователь стороной сделки.
func (e *Escrow) IsParticipant(userID uuid.UUID) bool {
	return e.ClientID == userID || e.FreelancerID == userID
}

// ParticipantRole возвращает роль пользователя в сделке.
func (e *Escrow) ParticipantRole(userID uuid.UUID) string {
	switch userID {
	case e.ClientID:
		return RoleClient
	case e.FreelancerID:
		return RoleFreelancer
	}
	return ""
}

// BothPartiesReviewed сообщает, заполнены ли оба слота ревью.
func (e *Escrow) BothPartiesReviewed() bool {
	return e.ClientReviewStatus != ReviewStatusPending &&
		e.FreelancerReviewStatus != ReviewStatusPending
}

// BothPartiesApproved — предикат release gate: обе стороны одобрили работу.
func (e *Escrow) BothPartiesApproved() bool {
	return e.ClientReviewStatus == ReviewStatusApproved &&
		e.FreelancerReviewStatus == ReviewStatusApproved
}

// EscrowStats — агрегированная статистика по сделкам.
type EscrowStats struct {
	TotalEscrows      int64 `db:"total_escrows" json:"total_escrows"`
	FundedEscrows     int64 `db:"funded_escrows" json:"funded_escrows"`
	InProgressEscrows int64 `db:"in_progress_escrows" json:"in_progress_escrows"`
	CompletedEscrows  int64 `db:"completed_escrows" json:"completed_escrows"`
	DisputedEscrows   int64 `db:"disputed_escrows" json:"disputed_escrows"`
	CompletedVolume   int64 `db:"completed_volume" json:"completed_volume"`
	PlatformFees      int64 `db:"platform_fees" json:"platform_fees"`
}
