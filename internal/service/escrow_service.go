package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-engine/internal/fee"
	"github.com/ignatzorin/escrow-engine/internal/logger"
	"github.com/ignatzorin/escrow-engine/internal/models"
	"github.com/ignatzorin/escrow-engine/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-engine/internal/repository"
)

// DefaultCurrency используется, когда валюта не указана при создании сделки.
const DefaultCurrency = "NGN"

type EscrowRepository interface {
	Create(ctx context.Context, e *models.Escrow) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Escrow, error)
	GetByReference(ctx context.Context, reference string) (*models.Escrow, error)
	Update(ctx context.Context, e *models.Escrow) error
	ListByUser(ctx context.Context, userID uuid.UUID, role string, limit, offset int) ([]models.Escrow, error)
	Stats(ctx context.Context) (*models.EscrowStats, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByReference(ctx context.Context, reference string) (*models.Payment, error)
	ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]models.Payment, error)
}

type JobRepository interface {
	GetAssignment(ctx context.Context, jobID uuid.UUID) (*models.JobAssignment, error)
	SetStatus(ctx context.Context, jobID uuid.UUID, status models.JobStatus) error
}

// EscrowService — оркестратор сделки: владеет статусом, историей платежей
// и ведёт сделку по графу переходов. Все мутации одной сделки
// сериализуются блокировкой с ограниченным ожиданием.
type EscrowService struct {
	escrows  EscrowRepository
	payments PaymentRepository
	jobs     JobRepository
	locks    *lockTable
	lockWait time.Duration
	currency string
}

func NewEscrowService(escrows EscrowRepository, payments PaymentRepository, jobs JobRepository, lockWait time.Duration, defaultCurrency string) *EscrowService {
	if lockWait <= 0 {
		lockWait = 3 * time.Second
	}
	if defaultCurrency == "" {
		defaultCurrency = DefaultCurrency
	}
	return &EscrowService{
		escrows:  escrows,
		payments: payments,
		jobs:     jobs,
		locks:    newLockTable(),
		lockWait: lockWait,
		currency: defaultCurrency,
	}
}

// DeliverableInput — сдаваемый результат работы.
type DeliverableInput struct {
	Title       string
	Description string
	ArtifactURL string
}

// ClientReviewInput — ревью клиента о работе фрилансера.
type ClientReviewInput struct {
	Approve         bool
	Rating          int
	Review          string
	Quality         int
	Communication   int
	Timeliness      int
	Professionalism int
	WouldRecommend  bool
}

// FreelancerReviewInput — ревью фрилансера о клиенте.
type FreelancerReviewInput struct {
	Approve        bool
	Rating         int
	Review         string
	Payment        int
	Communication  int
	Clarity        int
	Fairness       int
	WouldWorkAgain bool
}

// MilestoneInput — запланированный этап работы.
type MilestoneInput struct {
	Title       string
	Description string
	Amount      int64
	DueDate     *time.Time
}

// ResolveAction — действие администратора при разрешении спора.
type ResolveAction string

const (
	ResolveActionRelease ResolveAction = "release"
	ResolveActionRefund  ResolveAction = "refund"
	ResolveActionPartial ResolveAction = "partial"
)

// PartialAmounts — явное разделение суммы при частичном разрешении спора.
// Движок не выводит разделение сам, его задаёт администратор.
type PartialAmounts struct {
	Client     int64
	Freelancer int64
}

// CreateEscrow создаёт сделку по назначенному заказу. Разделение суммы
// фиксируется в момент создания и больше не меняется.
func (s *EscrowService) CreateEscrow(ctx context.Context, clientID, jobID, freelancerID uuid.UUID, amount int64, currency string) (*models.Escrow, error) {
	if currency == "" {
		currency = s.currency
	}

	split, err := fee.CalculateSplit(amount)
	if err != nil {
		return nil, err
	}

	job, err := s.jobs.GetAssignment(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить назначение заказа")
	}
	if job.ClientID != clientID || job.FreelancerID != freelancerID {
		return nil, apperror.ErrJobNotFound
	}
	if job.Status != models.JobStatusOpen {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "заказ недоступен для эскроу")
	}

	if _, err := s.escrows.GetByJobID(ctx, jobID); err == nil {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "по заказу уже существует эскроу")
	} else if !errors.Is(err, repository.ErrEscrowNotFound) {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить существующий эскроу")
	}

	escrow := &models.Escrow{
		Reference:              generateReference("ESCROW"),
		JobID:                  jobID,
		ClientID:               clientID,
		FreelancerID:           freelancerID,
		Status:                 models.EscrowStatusPending,
		TotalAmount:            amount,
		FreelancerAmount:       split.FreelancerAmount,
		PlatformFee:            split.PlatformFee,
		Currency:               currency,
		ClientReviewStatus:     models.ReviewStatusPending,
		FreelancerReviewStatus: models.ReviewStatusPending,
		Milestones:             models.MilestoneList{},
		Deliverables:           models.DeliverableList{},
		PaymentHistory:         models.LedgerEntryList{},
	}

	if err := s.escrows.Create(ctx, escrow); err != nil {
		if errors.Is(err, repository.ErrEscrowExists) {
			return nil, apperror.New(apperror.ErrCodePreconditionFailed, "по заказу уже существует эскроу")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать эскроу")
	}

	return escrow, nil
}

// Fund фондирует сделку подтверждённым платежом. Вызывается платёжной
// подсистемой после верификации платежа, не конечным пользователем.
func (s *EscrowService) Fund(ctx context.Context, escrowID, paymentID uuid.UUID) (*models.Escrow, error) {
	release, err := s.lock(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	defer release()

	escrow, err := s.getEscrow(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if escrow.Status != models.EscrowStatusPending {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "эскроу не в статусе ожидания фондирования")
	}

	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil, apperror.ErrPaymentNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить платёж")
	}
	if payment.Status != models.PaymentStatusCompleted {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "платёж не завершён")
	}
	if payment.Amount != escrow.TotalAmount {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "сумма платежа не совпадает с суммой эскроу")
	}

	now := time.Now()
	if err := s.setStatus(escrow, models.EscrowStatusFunded); err != nil {
		return nil, err
	}
	escrow.FundedAt = &now
	escrow.PaymentHistory = append(escrow.PaymentHistory, models.LedgerEntry{
		ID:             uuid.New(),
		Kind:           models.LedgerKindFunded,
		Amount:         escrow.TotalAmount,
		Description:    "Эскроу пополнен клиентом",
		ProcessedAt:    now,
		TransactionRef: payment.Reference,
	})

	if err := s.update(ctx, escrow); err != nil {
		return nil, err
	}

	s.markJob(ctx, escrow.JobID, models.JobStatusInProgress)
	return escrow, nil
}

// StartWork переводит сделку в работу. Доступно только назначенному фрилансеру.
func (s *EscrowService) StartWork(ctx context.Context, escrowID, callerID uuid.UUID) (*models.Escrow, error) {
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
		return nil, apperror.New(apperror.ErrCodeForbidden, "начать работу может только назначенный фрилансер")
	}
	if escrow.Status != models.EscrowStatusFunded {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "эскроу должен быть профондирован до начала работы")
	}

	now := time.Now()
	if err := s.setStatus(escrow, models.EscrowStatusInProgress); err != nil {
		return nil, err
	}
	escrow.StartedAt = &now

	if err := s.update(ctx, escrow); err != nil {
		return nil, err
	}
	return escrow, nil
}

// SubmitForReview сдаёт работу на проверку клиенту вместе с результатами.
func (s *EscrowService) SubmitForReview(ctx context.Context, escrowID, callerID uuid.UUID, deliverables []DeliverableInput) (*models.Escrow, error) {
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
		return nil, apperror.New(apperror.ErrCodeForbidden, "сдать работу может только назначенный фрилансер")
	}
	if escrow.Status != models.EscrowStatusInProgress {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "сдать на проверку можно только работу в процессе")
	}

	now := time.Now()
	for _, d := range deliverables {
		escrow.Deliverables = append(escrow.Deliverables, models.Deliverable{
			ID:          uuid.New(),
			Title:       d.Title,
			Description: d.Description,
			ArtifactURL: d.ArtifactURL,
			SubmittedAt: now,
		})
	}
	if err := s.setStatus(escrow, models.EscrowStatusClientReview); err != nil {
		return nil, err
	}

	if err := s.update(ctx, escrow); err != nil {
		return nil, err
	}
	return escrow, nil
}

// ClientReview заполняет слот ревью клиента. Повторное одобрение уже
// одобренного слота — no-op, а не ошибка. Если фрилансер уже одобрил,
// сделка завершается и средства выплачиваются.
func (s *EscrowService) ClientReview(ctx context.Context, escrowID, callerID uuid.UUID, in ClientReviewInput) (*models.Escrow, error) {
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
		return nil, apperror.New(apperror.ErrCodeForbidden, "оценить работу может только клиент")
	}
	if in.Approve && escrow.ClientReviewStatus == models.ReviewStatusApproved {
		return escrow, nil
	}
	if escrow.Status != models.EscrowStatusClientReview && escrow.Status != models.EscrowStatusFreelancerReview {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "работа не находится на проверке")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperror.New(apperror.ErrCodeValidation, "рейтинг должен быть от 1 до 5")
	}

	now := time.Now()
	if in.Approve {
		escrow.ClientReviewStatus = models.ReviewStatusApproved
	} else {
		escrow.ClientReviewStatus = models.ReviewStatusRejected
	}
	escrow.ClientRating = &in.Rating
	escrow.ClientReview = &in.Review
	if escrow.ClientReviewedAt == nil {
		escrow.ClientReviewedAt = &now
	}
	escrow.ClientReviewData = &models.ClientReviewData{
		Quality:         in.Quality,
		Communication:   in.Communication,
		Timeliness:      in.Timeliness,
		Professionalism: in.Professionalism,
		Overall:         in.Rating,
		Comments:        in.Review,
		WouldRecommend:  in.WouldRecommend,
	}

	if escrow.BothPartiesApproved() {
		return s.releaseFunds(ctx, escrow)
	}
	if escrow.Status == models.EscrowStatusClientReview {
		if err := s.setStatus(escrow, models.EscrowStatusFreelancerReview); err != nil {
			return nil, err
		}
	}

	if err := s.update(ctx, escrow); err != nil {
		return nil, err
	}
	return escrow, nil
}

// FreelancerReview заполняет слот ревью фрилансера, симметрично ClientReview.
func (s *EscrowService) FreelancerReview(ctx context.Context, escrowID, callerID uuid.UUID, in FreelancerReviewInput) (*models.Escrow, error) {
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
		return nil, apperror.New(apperror.ErrCodeForbidden, "оценить клиента может только фрилансер")
	}
	if in.Approve && escrow.FreelancerReviewStatus == models.ReviewStatusApproved {
		return escrow, nil
	}
	if escrow.Status != models.EscrowStatusClientReview && escrow.Status != models.EscrowStatusFreelancerReview {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "работа не находится на проверке")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperror.New(apperror.ErrCodeValidation, "рейтинг должен быть от 1 до 5")
	}

	now := time.Now()
	if in.Approve {
		escrow.FreelancerReviewStatus = models.ReviewStatusApproved
	} else {
		escrow.FreelancerReviewStatus = models.ReviewStatusRejected
	}
	escrow.FreelancerRating = &in.Rating
	escrow.FreelancerReview = &in.Review
	if escrow.FreelancerReviewedAt == nil {
		escrow.FreelancerReviewedAt = &now
	}
	escrow.FreelancerReviewData = &models.FreelancerReviewData{
		Payment:        in.Payment,
		Communication:  in.Communication,
		Clarity:        in.Clarity,
		Fairness:       in.Fairness,
		Overall:        in.Rating,
		Comments:       in.Review,
		WouldWorkAgain: in.WouldWorkAgain,
	}

	if escrow.BothPartiesApproved() {
		return s.releaseFunds(ctx, escrow)
	}

	if err := s.update(ctx, escrow); err != nil {
		return nil, err
	}
	return escrow, nil
}

// Dispute открывает спор и замораживает остальные переходы до разрешения.
// Доступен сторонам сделки из любого неконечного статуса.
func (s *EscrowService) Dispute(ctx context.Context, escrowID, callerID uuid.UUID, reason string, evidence []string) (*models.Escrow, error) {
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "причина спора обязательна")
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
	if !escrow.IsParticipant(callerID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "открыть спор могут только стороны сделки")
	}
	if escrow.Status == models.EscrowStatusDisputed {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "спор по сделке уже открыт")
	}
	if escrow.Status.IsTerminal() {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "нельзя оспорить завершённую сделку")
	}

	now := time.Now()
	initiator := escrow.ParticipantRole(callerID)

	// Спор из состояния проверки — эскалация вместо одобрения:
	// слот инициатора помечается как disputed.
	if escrow.Status == models.EscrowStatusClientReview || escrow.Status == models.EscrowStatusFreelancerReview {
		if initiator == models.RoleClient {
			escrow.ClientReviewStatus = models.ReviewStatusDisputed
		} else {
			escrow.FreelancerReviewStatus = models.ReviewStatusDisputed
		}
	}

	if err := s.setStatus(escrow, models.EscrowStatusDisputed); err != nil {
		return nil, err
	}
	escrow.DisputedAt = &now
	escrow.Dispute = &models.DisputeData{
		Initiator: initiator,
		Reason:    reason,
		Evidence:  evidence,
	}

	if err := s.update(ctx, escrow); err != nil {
		return nil, err
	}
	return escrow, nil
}

// ResolveDispute — единственное администраторское действие, способное
// обойти двустороннее одобрение. Фиксирует кто, когда, почему и какое
// разделение суммы применил.
func (s *EscrowService) ResolveDispute(ctx context.Context, escrowID, resolverID uuid.UUID, resolverRole, resolution string, action ResolveAction, amounts *PartialAmounts) (*models.Escrow, error) {
	if resolverRole != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "разрешать споры может только администратор")
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
	if escrow.Status != models.EscrowStatusDisputed {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "сделка не находится в споре")
	}
	if escrow.Dispute == nil {
		escrow.Dispute = &models.DisputeData{}
	}

	now := time.Now()
	switch action {
	case ResolveActionRelease:
		if err := s.payout(ctx, escrow, escrow.FreelancerAmount, now); err != nil {
			return nil, err
		}
		if err := s.setStatus(escrow, models.EscrowStatusCompleted); err != nil {
			return nil, err
		}
		escrow.ReleasedAt = &now
		if escrow.CompletedAt == nil {
			escrow.CompletedAt = &now
		}

	case ResolveActionRefund:
		if err := s.refund(ctx, escrow, escrow.TotalAmount, now); err != nil {
			return nil, err
		}
		if err := s.setStatus(escrow, models.EscrowStatusRefunded); err != nil {
			return nil, err
		}
		escrow.RefundedAt = &now

	case ResolveActionPartial:
		if amounts == nil {
			return nil, apperror.New(apperror.ErrCodeValidation, "для частичного разрешения нужно явное разделение суммы")
		}
		if amounts.Client < 0 || amounts.Freelancer < 0 || amounts.Client+amounts.Freelancer > escrow.TotalAmount {
			return nil, apperror.New(apperror.ErrCodeInvariantViolation, "суммы частичного разрешения выходят за пределы суммы сделки")
		}
		if amounts.Freelancer > 0 {
			if err := s.payout(ctx, escrow, amounts.Freelancer, now); err != nil {
				return nil, err
			}
		}
		if amounts.Client > 0 {
			if err := s.refund(ctx, escrow, amounts.Client, now); err != nil {
				return nil, err
			}
		}
		if err := s.setStatus(escrow, models.EscrowStatusCompleted); err != nil {
			return nil, err
		}
		escrow.ReleasedAt = &now
		if escrow.CompletedAt == nil {
			escrow.CompletedAt = &now
		}

	default:
		return nil, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("неизвестное действие разрешения спора: %s", action))
	}

	escrow.Dispute.Resolution = resolution
	escrow.Dispute.ResolvedBy = &resolverID
	escrow.Dispute.ResolvedAt = &now

	if err := s.update(ctx, escrow); err != nil {
		return nil, err
	}

	if escrow.Status == models.EscrowStatusCompleted {
		s.markJob(ctx, escrow.JobID, models.JobStatusCompleted)
	}

	if logger.Log != nil {
		logger.Log.WithFields(logrus.Fields{
			"escrow_id": escrow.ID,
			"reference": escrow.Reference,
			"action":    action,
			"resolver":  resolverID,
		}).Info("dispute resolved")
	}
	return escrow, nil
}

// Cancel отменяет сделку. Доступно клиенту только до фондирования.
func (s *EscrowService) Cancel(ctx context.Context, escrowID, callerID uuid.UUID) (*models.Escrow, error) {
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
		return nil, apperror.New(apperror.ErrCodeForbidden, "отменить сделку может только клиент")
	}
	if escrow.Status != models.EscrowStatusPending {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "после фондирования отмена невозможна")
	}

	now := time.Now()
	if err := s.setStatus(escrow, models.EscrowStatusCancelled); err != nil {
		return nil, err
	}
	escrow.CancelledAt = &now

	if err := s.update(ctx, escrow); err != nil {
		return nil, err
	}
	return escrow, nil
}

// releaseFunds выплачивает средства фрилансеру после двустороннего
// одобрения. Идемпотентна: на конечном статусе возвращает текущее
// состояние без новой выплаты.
func (s *EscrowService) releaseFunds(ctx context.Context, escrow *models.Escrow) (*models.Escrow, error) {
	if escrow.Status.IsTerminal() {
		return escrow, nil
	}

	now := time.Now()
	if err := s.payout(ctx, escrow, escrow.FreelancerAmount, now); err != nil {
		return nil, err
	}

	if err := s.setStatus(escrow, models.EscrowStatusCompleted); err != nil {
		return nil, err
	}
	escrow.CompletedAt = &now
	escrow.ReleasedAt = &now

	if err := s.update(ctx, escrow); err != nil {
		return nil, err
	}

	s.markJob(ctx, escrow.JobID, models.JobStatusCompleted)

	if logger.Log != nil {
		logger.Log.WithFields(logrus.Fields{
			"escrow_id": escrow.ID,
			"reference": escrow.Reference,
			"amount":    escrow.FreelancerAmount,
			"currency":  escrow.Currency,
		}).Info("escrow funds released")
	}
	return escrow, nil
}

// payout создаёт платёжную запись на выплату фрилансеру и добавляет
// запись в историю платежей сделки.
func (s *EscrowService) payout(ctx context.Context, escrow *models.Escrow, amount int64, now time.Time) error {
	return s.settle(ctx, escrow, escrow.FreelancerID, models.PaymentPurposePayout,
		models.LedgerKindFinalPayment, amount, "Финальная выплата фрилансеру", "PAYOUT", now)
}

// refund создаёт платёжную запись на возврат клиенту и добавляет
// запись в историю платежей сделки.
func (s *EscrowService) refund(ctx context.Context, escrow *models.Escrow, amount int64, now time.Time) error {
	return s.settle(ctx, escrow, escrow.ClientID, models.PaymentPurposeRefund,
		models.LedgerKindRefund, amount, "Возврат средств клиенту", "REFUND", now)
}

// settle записывает расчёт по сделке: платёжную запись и запись в истории.
// Ссылка платежа детерминирована для пары (сделка, вид расчёта), поэтому
// повтор после сбоя между созданием платежа и сохранением сделки находит
// уже созданную запись вместо того, чтобы платить второй раз.
func (s *EscrowService) settle(ctx context.Context, escrow *models.Escrow, userID uuid.UUID,
	purpose models.PaymentPurpose, kind models.LedgerKind, amount int64, description, suffix string, now time.Time) error {
	payment := &models.Payment{
		UserID:      userID,
		EscrowID:    &escrow.ID,
		Purpose:     purpose,
		Status:      models.PaymentStatusCompleted,
		Amount:      amount,
		Currency:    escrow.Currency,
		Reference:   settlementReference(escrow.Reference, suffix),
		Description: strPtr(description),
		CompletedAt: &now,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		if !errors.Is(err, repository.ErrPaymentExists) {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать платёжную запись")
		}
		existing, getErr := s.payments.GetByReference(ctx, payment.Reference)
		if getErr != nil {
			return apperror.Wrap(getErr, apperror.ErrCodeDatabaseError, "не удалось получить платёжную запись")
		}
		payment = existing
	}

	escrow.PaymentHistory = append(escrow.PaymentHistory, models.LedgerEntry{
		ID:             uuid.New(),
		Kind:           kind,
		Amount:         payment.Amount,
		Description:    description,
		ProcessedAt:    now,
		TransactionRef: payment.Reference,
	})
	return nil
}

// setStatus переводит сделку в новый статус, сверяясь с графом переходов.
// Предусловия операций проверяются раньше и дают доменные ошибки, здесь
// последний рубеж против перехода, которого нет в графе.
func (s *EscrowService) setStatus(e *models.Escrow, to models.EscrowStatus) error {
	if !e.Status.CanTransitionTo(to) {
		return apperror.New(apperror.ErrCodeInvariantViolation,
			fmt.Sprintf("недопустимый переход статуса %s -> %s", e.Status, to))
	}
	e.Status = to
	return nil
}

// lock берёт блокировку сделки с ограниченным ожиданием.
func (s *EscrowService) lock(ctx context.Context, escrowID uuid.UUID) (func(), error) {
	release, err := s.locks.acquire(ctx, escrowID, s.lockWait)
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			return nil, apperror.Wrap(err, apperror.ErrCodeConflict, "сделка занята другой операцией, повторите запрос")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeConflict, "операция прервана")
	}
	return release, nil
}

// getEscrow загружает сделку и переводит ошибки репозитория в типизированные.
func (s *EscrowService) getEscrow(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.escrows.GetByID(ctx, escrowID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить эскроу")
	}
	return escrow, nil
}

// update сохраняет сделку и переводит конфликт версий в retry-сигнал.
func (s *EscrowService) update(ctx context.Context, escrow *models.Escrow) error {
	if err := s.escrows.Update(ctx, escrow); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return apperror.Wrap(err, apperror.ErrCodeConflict, "сделка изменена конкурентно, повторите запрос")
		}
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return apperror.ErrEscrowNotFound
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить эскроу")
	}
	return nil
}

// markJob best-effort выставляет статус заказа: сделка уже сохранена,
// расхождение статуса заказа чинится повторной синхронизацией.
func (s *EscrowService) markJob(ctx context.Context, jobID uuid.UUID, status models.JobStatus) {
	if err := s.jobs.SetStatus(ctx, jobID, status); err != nil {
		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"job_id": jobID,
				"status": status,
			}).WithError(err).Warn("failed to mark job status")
		}
	}
}

// settlementReference строит детерминированную ссылку расчёта из ссылки
// сделки: у сделки бывает максимум одна выплата и один возврат.
func settlementReference(escrowRef, suffix string) string {
	return fmt.Sprintf("PAY-%s-%s", strings.TrimPrefix(escrowRef, "ESCROW-"), suffix)
}

// generateReference формирует человекочитаемую ссылку вида PREFIX-<ms>-<RAND>.
func generateReference(prefix string) string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), uuid.NewString()[:6])
	}
	return fmt.Sprintf("%s-%d-%X", prefix, time.Now().UnixMilli(), buf)
}

func strPtr(s string) *string {
	return &s
}
