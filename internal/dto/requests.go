package dto

import "time"

// CreateEscrowRequest — запрос на создание сделки по назначенному заказу.
// Сумма указывается в минорных единицах валюты (копейки, кобо, центы).
type CreateEscrowRequest struct {
	JobID        string `json:"job_id" binding:"required,uuid"`
	FreelancerID string `json:"freelancer_id" binding:"required,uuid"`
	Amount       int64  `json:"amount" binding:"required,gt=0"`
	Currency     string `json:"currency"`
}

// FundEscrowRequest — запрос на фондирование сделки подтверждённым платежом.
type FundEscrowRequest struct {
	PaymentID string `json:"payment_id" binding:"required,uuid"`
}

// DeliverableRequest — один результат работы при сдаче на проверку.
type DeliverableRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	ArtifactURL string `json:"artifact_url"`
}

// SubmitForReviewRequest — запрос на сдачу работы с результатами.
type SubmitForReviewRequest struct {
	Deliverables []DeliverableRequest `json:"deliverables"`
}

// ClientReviewRequest — ревью клиента о работе фрилансера.
type ClientReviewRequest struct {
	Approve         bool   `json:"approve"`
	Rating          int    `json:"rating" binding:"required,min=1,max=5"`
	Review          string `json:"review"`
	Quality         int    `json:"quality" binding:"omitempty,min=1,max=5"`
	Communication   int    `json:"communication" binding:"omitempty,min=1,max=5"`
	Timeliness      int    `json:"timeliness" binding:"omitempty,min=1,max=5"`
	Professionalism int    `json:"professionalism" binding:"omitempty,min=1,max=5"`
	WouldRecommend  bool   `json:"would_recommend"`
}

// FreelancerReviewRequest — ревью фрилансера о клиенте.
type FreelancerReviewRequest struct {
	Approve        bool   `json:"approve"`
	Rating         int    `json:"rating" binding:"required,min=1,max=5"`
	Review         string `json:"review"`
	Payment        int    `json:"payment" binding:"omitempty,min=1,max=5"`
	Communication  int    `json:"communication" binding:"omitempty,min=1,max=5"`
	Clarity        int    `json:"clarity" binding:"omitempty,min=1,max=5"`
	Fairness       int    `json:"fairness" binding:"omitempty,min=1,max=5"`
	WouldWorkAgain bool   `json:"would_work_again"`
}

// DisputeRequest — запрос на открытие спора.
type DisputeRequest struct {
	Reason   string   `json:"reason" binding:"required"`
	Evidence []string `json:"evidence"`
}

// ResolveDisputeRequest — администраторское разрешение спора.
// Для action=partial обязательны client_amount и freelancer_amount.
type ResolveDisputeRequest struct {
	Action           string `json:"action" binding:"required,oneof=release refund partial"`
	Resolution       string `json:"resolution" binding:"required"`
	ClientAmount     *int64 `json:"client_amount"`
	FreelancerAmount *int64 `json:"freelancer_amount"`
}

// MilestoneRequest — запрос на добавление этапа работы.
type MilestoneRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Amount      int64      `json:"amount" binding:"omitempty,gte=0"`
	DueDate     *time.Time `json:"due_date"`
}
