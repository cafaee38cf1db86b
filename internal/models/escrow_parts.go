package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Статусы этапов работы.
type MilestoneStatus string

const (
	MilestoneStatusPending    MilestoneStatus = "pending"
	MilestoneStatusInProgress MilestoneStatus = "in_progress"
	MilestoneStatusCompleted  MilestoneStatus = "completed"
	MilestoneStatusApproved   MilestoneStatus = "approved"
)

// Milestone — запланированный этап работы. Сумма этапа информационная,
// она не обязана складываться в общую сумму сделки.
type Milestone struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Amount      int64           `json:"amount"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	Status      MilestoneStatus `json:"status"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	ApprovedAt  *time.Time      `json:"approved_at,omitempty"`
}

// Deliverable — сданный результат работы с опциональным артефактом.
type Deliverable struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ArtifactURL     string     `json:"artifact_url,omitempty"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
}

// Виды записей в истории платежей.
type LedgerKind string

const (
	LedgerKindFunded            LedgerKind = "funded"
	LedgerKindMilestoneReleased LedgerKind = "milestone_released"
	LedgerKindFinalPayment      LedgerKind = "final_payment"
	LedgerKindRefund            LedgerKind = "refund"
)

// LedgerEntry — запись о движении денег. История только дополняется,
// записи никогда не изменяются и не удаляются.
type LedgerEntry struct {
	ID             uuid.UUID  `json:"id"`
	Kind           LedgerKind `json:"kind"`
	Amount         int64      `json:"amount"`
	Description    string     `json:"description"`
	ProcessedAt    time.Time  `json:"processed_at"`
	TransactionRef string     `json:"transaction_ref"`
}

// DisputeData — данные спора и его разрешения.
type DisputeData struct {
	Initiator  string     `json:"initiator"`
	Reason     string     `json:"reason"`
	Evidence   []string   `json:"evidence,omitempty"`
	Resolution string     `json:"resolution,omitempty"`
	ResolvedBy *uuid.UUID `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// ClientReviewData — развёрнутая оценка работы фрилансера клиентом.
type ClientReviewData struct {
	Quality         int    `json:"quality"`
	Communication   int    `json:"communication"`
	Timeliness      int    `json:"timeliness"`
	Professionalism int    `json:"professionalism"`
	Overall         int    `json:"overall"`
	Comments        string `json:"comments"`
	WouldRecommend  bool   `json:"would_recommend"`
}

// FreelancerReviewData — развёрнутая оценка клиента фрилансером.
type FreelancerReviewData struct {
	Payment        int    `json:"payment"`
	Communication  int    `json:"communication"`
	Clarity        int    `json:"clarity"`
	Fairness       int    `json:"fairness"`
	Overall        int    `json:"overall"`
	Comments       string `json:"comments"`
	WouldWorkAgain bool   `json:"would_work_again"`
}

// Списки и вложенные структуры хранятся в JSONB колонках,
// поэтому реализуют driver.Valuer и sql.Scanner.

type MilestoneList []Milestone

func (l MilestoneList) Value() (driver.Value, error) { return marshalJSONB(l) }

func (l *MilestoneList) Scan(src interface{}) error { return scanJSONB(src, l) }

type DeliverableList []Deliverable

func (l DeliverableList) Value() (driver.Value, error) { return marshalJSONB(l) }

func (l *DeliverableList) Scan(src interface{}) error { return scanJSONB(src, l) }

type LedgerEntryList []LedgerEntry

func (l LedgerEntryList) Value() (driver.Value, error) { return marshalJSONB(l) }

func (l *LedgerEntryList) Scan(src interface{}) error { return scanJSONB(src, l) }

func (d DisputeData) Value() (driver.Value, error) { return marshalJSONB(d) }

func (d *DisputeData) Scan(src interface{}) error { return scanJSONB(src, d) }

func (d ClientReviewData) Value() (driver.Value, error) { return marshalJSONB(d) }

func (d *ClientReviewData) Scan(src interface{}) error { return scanJSONB(src, d) }

func (d FreelancerReviewData) Value() (driver.Value, error) { return marshalJSONB(d) }

func (d *FreelancerReviewData) Scan(src interface{}) error { return scanJSONB(src, d) }

func marshalJSONB(v interface{}) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("models: не удалось сериализовать JSONB: %w", err)
	}
	return data, nil
}

func scanJSONB(src, dst interface{}) error {
	if src == nil {
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("models: неожиданный тип JSONB колонки %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
