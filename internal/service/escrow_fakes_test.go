package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-engine/internal/models"
	"github.com/ignatzorin/escrow-engine/internal/repository"
)

// Стейтфул заглушки репозиториев. Повторяют контракт настоящих:
// возвращают копии, сравнивают версию при записи.

type fakeEscrowRepo struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]models.Escrow
	byJob map[uuid.UUID]uuid.UUID
	byRef map[string]uuid.UUID

	// failUpdates заставляет следующие N вызовов Update вернуть
	// конфликт версий, имитируя конкурентную запись другого инстанса.
	failUpdates int
}

// cloneEscrow копирует сделку вместе с JSONB-списками и вложенными
// структурами, чтобы вызывающий не делил память с хранилищем.
func cloneEscrow(e models.Escrow) models.Escrow {
	out := e
	if e.Milestones != nil {
		out.Milestones = append(models.MilestoneList{}, e.Milestones...)
	}
	if e.Deliverables != nil {
		out.Deliverables = append(models.DeliverableList{}, e.Deliverables...)
	}
	if e.PaymentHistory != nil {
		out.PaymentHistory = append(models.LedgerEntryList{}, e.PaymentHistory...)
	}
	if e.Dispute != nil {
		d := *e.Dispute
		if e.Dispute.Evidence != nil {
			d.Evidence = append([]string{}, e.Dispute.Evidence...)
		}
		out.Dispute = &d
	}
	if e.ClientReviewData != nil {
		rd := *e.ClientReviewData
		out.ClientReviewData = &rd
	}
	if e.FreelancerReviewData != nil {
		rd := *e.FreelancerReviewData
		out.FreelancerReviewData = &rd
	}
	return out
}

func newFakeEscrowRepo() *fakeEscrowRepo {
	return &fakeEscrowRepo{
		byID:  make(map[uuid.UUID]models.Escrow),
		byJob: make(map[uuid.UUID]uuid.UUID),
		byRef: make(map[string]uuid.UUID),
	}
}

func (r *fakeEscrowRepo) Create(ctx context.Context, e *models.Escrow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byJob[e.JobID]; exists {
		return repository.ErrEscrowExists
	}

	e.ID = uuid.New()
	e.Version = 1
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt

	r.byID[e.ID] = cloneEscrow(*e)
	r.byJob[e.JobID] = e.ID
	r.byRef[e.Reference] = e.ID
	return nil
}

func (r *fakeEscrowRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrEscrowNotFound
	}
	out := cloneEscrow(e)
	return &out, nil
}

func (r *fakeEscrowRepo) GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Escrow, error) {
	r.mu.Lock()
	id, ok := r.byJob[jobID]
	r.mu.Unlock()
	if !ok {
		return nil, repository.ErrEscrowNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *fakeEscrowRepo) GetByReference(ctx context.Context, reference string) (*models.Escrow, error) {
	r.mu.Lock()
	id, ok := r.byRef[reference]
	r.mu.Unlock()
	if !ok {
		return nil, repository.ErrEscrowNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *fakeEscrowRepo) Update(ctx context.Context, e *models.Escrow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[e.ID]
	if !ok {
		return repository.ErrEscrowNotFound
	}
	if r.failUpdates > 0 {
		r.failUpdates--
		return repository.ErrVersionConflict
	}
	if stored.Version != e.Version {
		return repository.ErrVersionConflict
	}

	e.Version++
	e.UpdatedAt = time.Now()
	r.byID[e.ID] = cloneEscrow(*e)
	return nil
}

func (r *fakeEscrowRepo) ListByUser(ctx context.Context, userID uuid.UUID, role string, limit, offset int) ([]models.Escrow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Escrow
	for _, e := range r.byID {
		if role == models.RoleClient && e.ClientID == userID {
			out = append(out, e)
		}
		if role == models.RoleFreelancer && e.FreelancerID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEscrowRepo) Stats(ctx context.Context) (*models.EscrowStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &models.EscrowStats{}
	for _, e := range r.byID {
		stats.TotalEscrows++
		switch e.Status {
		case models.EscrowStatusFunded:
			stats.FundedEscrows++
		case models.EscrowStatusInProgress:
			stats.InProgressEscrows++
		case models.EscrowStatusCompleted:
			stats.CompletedEscrows++
			stats.CompletedVolume += e.TotalAmount
			stats.PlatformFees += e.PlatformFee
		case models.EscrowStatusDisputed:
			stats.DisputedEscrows++
		}
	}
	return stats, nil
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]models.Payment
	byRef    map[string]uuid.UUID
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		payments: make(map[uuid.UUID]models.Payment),
		byRef:    make(map[string]uuid.UUID),
	}
}

func (r *fakePaymentRepo) Create(ctx context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byRef[p.Reference]; exists {
		return repository.ErrPaymentExists
	}

	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	r.payments[p.ID] = *p
	r.byRef[p.Reference] = p.ID
	return nil
}

func (r *fakePaymentRepo) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byRef[reference]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	p := r.payments[id]
	return &p, nil
}

func (r *fakePaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	return &p, nil
}

func (r *fakePaymentRepo) ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Payment
	for _, p := range r.payments {
		if p.EscrowID != nil && *p.EscrowID == escrowID {
			out = append(out, p)
		}
	}
	return out, nil
}

// byPurpose возвращает платежи с указанным назначением.
func (r *fakePaymentRepo) byPurpose(purpose models.PaymentPurpose) []models.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Payment
	for _, p := range r.payments {
		if p.Purpose == purpose {
			out = append(out, p)
		}
	}
	return out
}

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]models.JobAssignment
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[uuid.UUID]models.JobAssignment)}
}

func (r *fakeJobRepo) GetAssignment(ctx context.Context, jobID uuid.UUID) (*models.JobAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[jobID]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	return &j, nil
}

func (r *fakeJobRepo) SetStatus(ctx context.Context, jobID uuid.UUID, status models.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[jobID]
	if !ok {
		return repository.ErrJobNotFound
	}
	j.Status = status
	r.jobs[jobID] = j
	return nil
}
