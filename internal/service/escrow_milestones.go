package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-engine/internal/models"
	"github.com/ignatzorin/escrow-engine/internal/pkg/apperror"
)

// Этапы работы информационные: они структурируют ход работы, но не
// двигают статус сделки и не дробят выплату.

// AddMilestone добавляет запланированный этап. Доступно фрилансеру,
// пока работа не сдана на проверку.
func (s *EscrowService) AddMilestone(ctx context.Context, escrowID, callerID uuid.UUID, in MilestoneInput) (*models.Escrow, error) {
	if in.Title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "название этапа обязательно")
	}
	if in.Amount < 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма этапа не может быть отрицательной")
	}

	release, err := s.lock(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	defer release()

	escrow, err := s.getEscrow(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if escrow.FreelancerID != callerID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "добавлять этапы может только назначенный фрилансер")
	}
	if escrow.Status != models.EscrowStatusFunded && escrow.Status != models.EscrowStatusInProgress {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "этапы добавляются до сдачи работы на проверку")
	}

	escrow.Milestones = append(escrow.Milestones, models.Milestone{
		ID:          uuid.New(),
		Title:       in.Title,
		Description: in.Description,
		Amount:      in.Amount,
		Status:      models.MilestoneStatusPending,
		DueDate:     in.DueDate,
	})

	if err := s.update(ctx, escrow); err != nil {
		return nil, err
	}
	return escrow, nil
}

// CompleteMilestone отмечает этап выполненным со стороны фрилансера.
func (s *EscrowService) CompleteMilestone(ctx context.Context, escrowID, callerID, milestoneID uuid.UUID) (*models.Escrow, error) {
	release, err := s.lock(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	defer release()

	escrow, err := s.getEscrow(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if escrow.FreelancerID != callerID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "завершать этапы может только назначенный фрилансер")
	}
	if escrow.Status != models.EscrowStatusInProgress {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "этапы завершаются только у работы в процессе")
	}

	m := findMilestone(escrow, milestoneID)
	if m == nil {
		return nil, apperror.New(apperror.ErrCodeNotFound, "этап не найден")
	}
	if m.Status != models.MilestoneStatusPending && m.Status != models.MilestoneStatusInProgress {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "этап уже завершён")
	}

	now := time.Now()
	m.Status = models.MilestoneStatusCompleted
	m.CompletedAt = &now

	if err := s.update(ctx, escrow); err != nil {
		return nil, err
	}
	return escrow, nil
}

// ApproveMilestone подтверждает завершённый этап со стороны клиента.
func (s *EscrowService) ApproveMilestone(ctx context.Context, escrowID, callerID, milestoneID uuid.UUID) (*models.Escrow, error) {
	release, err := s.lock(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	defer release()

	escrow, err := s.getEscrow(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if escrow.ClientID != callerID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "подтверждать этапы может только клиент")
	}
	if escrow.Status != models.EscrowStatusInProgress && escrow.Status != models.EscrowStatusClientReview {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "этапы подтверждаются во время работы или проверки")
	}

	m := findMilestone(escrow, milestoneID)
	if m == nil {
		return nil, apperror.New(apperror.ErrCodeNotFound, "этап не найден")
	}
	if m.Status != models.MilestoneStatusCompleted {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "подтвердить можно только завершённый этап")
	}

	now := time.Now()
	m.Status = models.MilestoneStatusApproved
	m.ApprovedAt = &now

	if err := s.update(ctx, escrow); err != nil {
		return nil, err
	}
	return escrow, nil
}

func findMilestone(e *models.Escrow, id uuid.UUID) *models.Milestone {
	for i := range e.Milestones {
		if e.Milestones[i].ID == id {
			return &e.Milestones[i]
		}
	}
	return nil
}
