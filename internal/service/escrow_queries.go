package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-engine/internal/models"
	"github.com/ignatzorin/escrow-engine/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-engine/internal/repository"
)

// GetEscrow возвращает сделку. Доступно её сторонам и администратору.
func (s *EscrowService) GetEscrow(ctx context.Context, escrowID, callerID uuid.UUID, callerRole string) (*models.Escrow, error) {
	escrow, err := s.getEscrow(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if callerRole != models.RoleAdmin && !escrow.IsParticipant(callerID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "доступ только для сторон сделки")
	}
	return escrow, nil
}

// GetEscrowByJob возвращает сделку по заказу.
func (s *EscrowService) GetEscrowByJob(ctx context.Context, jobID, callerID uuid.UUID, callerRole string) (*models.Escrow, error) {
	escrow, err := s.escrows.GetByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить эскроу по заказу")
	}
	if callerRole != models.RoleAdmin && !escrow.IsParticipant(callerID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "доступ только для сторон сделки")
	}
	return escrow, nil
}

// GetEscrowByReference возвращает сделку по человекочитаемой ссылке.
func (s *EscrowService) GetEscrowByReference(ctx context.Context, reference string, callerID uuid.UUID, callerRole string) (*models.Escrow, error) {
	if reference == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "ссылка обязательна")
	}
	escrow, err := s.escrows.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить эскроу по ссылке")
	}
	if callerRole != models.RoleAdmin && !escrow.IsParticipant(callerID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "доступ только для сторон сделки")
	}
	return escrow, nil
}

// ListUserEscrows возвращает сделки пользователя в указанной роли.
func (s *EscrowService) ListUserEscrows(ctx context.Context, userID uuid.UUID, role string, limit, offset int) ([]models.Escrow, error) {
	if role != models.RoleClient && role != models.RoleFreelancer {
		return nil, apperror.New(apperror.ErrCodeValidation, "роль должна быть client или freelancer")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	escrows, err := s.escrows.ListByUser(ctx, userID, role, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить список эскроу")
	}
	return escrows, nil
}

// GetEscrowPayments возвращает платёжные записи по сделке.
func (s *EscrowService) GetEscrowPayments(ctx context.Context, escrowID, callerID uuid.UUID, callerRole string) ([]models.Payment, error) {
	escrow, err := s.getEscrow(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if callerRole != models.RoleAdmin && !escrow.IsParticipant(callerID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "доступ только для сторон сделки")
	}
	payments, err := s.payments.ListByEscrow(ctx, escrow.ID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить платежи по эскроу")
	}
	return payments, nil
}

// GetStats возвращает агрегированную статистику платформы. Только для
// администратора.
func (s *EscrowService) GetStats(ctx context.Context, callerRole string) (*models.EscrowStats, error) {
	if callerRole != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "статистика доступна только администратору")
	}
	stats, err := s.escrows.Stats(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить статистику")
	}
	return stats, nil
}
