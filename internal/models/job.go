package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы заказа, которые движок читает и выставляет.
// Заказы принадлежат подсистеме заказов, движок видит только назначение.
type JobStatus string

const (
	JobStatusOpen       JobStatus = "open"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// JobAssignment — срез назначения заказа: кто клиент, кто исполнитель.
type JobAssignment struct {
	JobID        uuid.UUID `db:"id" json:"job_id"`
	ClientID     uuid.UUID `db:"client_id" json:"client_id"`
	FreelancerID uuid.UUID `db:"freelancer_id" json:"freelancer_id"`
	Status       JobStatus `db:"status" json:"status"`
	AssignedAt   time.Time `db:"assigned_at" json:"assigned_at"`
}
