package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-engine/internal/dto"
	"github.com/ignatzorin/escrow-engine/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-engine/internal/service"
)

// EscrowHandler обрабатывает HTTP запросы к сделкам эскроу.
// Ошибки сервиса уходят в централизованный обработчик через c.Error.
type EscrowHandler struct {
	svc *service.EscrowService
}

func NewEscrowHandler(s *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{svc: s}
}

// CreateEscrow POST /escrows
func (h *EscrowHandler) CreateEscrow(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}

	var req dto.CreateEscrowRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	jobID, _ := uuid.Parse(req.JobID)
	freelancerID, _ := uuid.Parse(req.FreelancerID)

	escrow, err := h.svc.CreateEscrow(c.Request.Context(), userID, jobID, freelancerID, req.Amount, req.Currency)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, escrow)
}

// FundEscrow POST /escrows/:id/fund
func (h *EscrowHandler) FundEscrow(c *gin.Context) {
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.FundEscrowRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	paymentID, _ := uuid.Parse(req.PaymentID)

	escrow, err := h.svc.Fund(c.Request.Context(), escrowID, paymentID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// StartWork POST /escrows/:id/start
func (h *EscrowHandler) StartWork(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.svc.StartWork(c.Request.Context(), escrowID, userID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// SubmitForReview POST /escrows/:id/submit
func (h *EscrowHandler) SubmitForReview(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.SubmitForReviewRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	deliverables := make([]service.DeliverableInput, 0, len(req.Deliverables))
	for _, d := range req.Deliverables {
		deliverables = append(deliverables, service.DeliverableInput{
			Title:       d.Title,
			Description: d.Description,
			ArtifactURL: d.ArtifactURL,
		})
	}

	escrow, err := h.svc.SubmitForReview(c.Request.Context(), escrowID, userID, deliverables)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// ClientReview POST /escrows/:id/review/client
func (h *EscrowHandler) ClientReview(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ClientReviewRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.svc.ClientReview(c.Request.Context(), escrowID, userID, service.ClientReviewInput{
		Approve:         req.Approve,
		Rating:          req.Rating,
		Review:          req.Review,
		Quality:         req.Quality,
		Communication:   req.Communication,
		Timeliness:      req.Timeliness,
		Professionalism: req.Professionalism,
		WouldRecommend:  req.WouldRecommend,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// FreelancerReview POST /escrows/:id/review/freelancer
func (h *EscrowHandler) FreelancerReview(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.FreelancerReviewRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.svc.FreelancerReview(c.Request.Context(), escrowID, userID, service.FreelancerReviewInput{
		Approve:        req.Approve,
		Rating:         req.Rating,
		Review:         req.Review,
		Payment:        req.Payment,
		Communication:  req.Communication,
		Clarity:        req.Clarity,
		Fairness:       req.Fairness,
		WouldWorkAgain: req.WouldWorkAgain,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// Dispute POST /escrows/:id/dispute
func (h *EscrowHandler) Dispute(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.DisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.svc.Dispute(c.Request.Context(), escrowID, userID, req.Reason, req.Evidence)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// ResolveDispute POST /escrows/:id/dispute/resolve
func (h *EscrowHandler) ResolveDispute(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}
	role, err := common.CurrentUserRole(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ResolveDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var amounts *service.PartialAmounts
	if req.ClientAmount != nil || req.FreelancerAmount != nil {
		amounts = &service.PartialAmounts{}
		if req.ClientAmount != nil {
			amounts.Client = *req.ClientAmount
		}
		if req.FreelancerAmount != nil {
			amounts.Freelancer = *req.FreelancerAmount
		}
	}

	escrow, err := h.svc.ResolveDispute(c.Request.Context(), escrowID, userID, role,
		req.Resolution, service.ResolveAction(req.Action), amounts)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// Cancel POST /escrows/:id/cancel
func (h *EscrowHandler) Cancel(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.svc.Cancel(c.Request.Context(), escrowID, userID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// AddMilestone POST /escrows/:id/milestones
func (h *EscrowHandler) AddMilestone(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.MilestoneRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.svc.AddMilestone(c.Request.Context(), escrowID, userID, service.MilestoneInput{
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		DueDate:     req.DueDate,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, escrow)
}

// CompleteMilestone POST /escrows/:id/milestones/:milestoneId/complete
func (h *EscrowHandler) CompleteMilestone(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	milestoneID, err := common.ParseUUIDParam(c, "milestoneId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.svc.CompleteMilestone(c.Request.Context(), escrowID, userID, milestoneID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// ApproveMilestone POST /escrows/:id/milestones/:milestoneId/approve
func (h *EscrowHandler) ApproveMilestone(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	milestoneID, err := common.ParseUUIDParam(c, "milestoneId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.svc.ApproveMilestone(c.Request.Context(), escrowID, userID, milestoneID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// GetEscrow GET /escrows/:id
func (h *EscrowHandler) GetEscrow(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.svc.GetEscrow(c.Request.Context(), escrowID, userID, role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// GetEscrowByJob GET /jobs/:jobId/escrow
func (h *EscrowHandler) GetEscrowByJob(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)
	jobID, err := common.ParseUUIDParam(c, "jobId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.svc.GetEscrowByJob(c.Request.Context(), jobID, userID, role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// GetEscrowByReference GET /escrows/reference/:reference
func (h *EscrowHandler) GetEscrowByReference(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	escrow, err := h.svc.GetEscrowByReference(c.Request.Context(), c.Param("reference"), userID, role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// ListMyEscrows GET /escrows?role=client|freelancer
func (h *EscrowHandler) ListMyEscrows(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}

	role := c.DefaultQuery("role", "client")
	limit, offset := common.GetPagination(c)

	escrows, err := h.svc.ListUserEscrows(c.Request.Context(), userID, role, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, escrows)
}

// GetEscrowPayments GET /escrows/:id/payments
func (h *EscrowHandler) GetEscrowPayments(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payments, err := h.svc.GetEscrowPayments(c.Request.Context(), escrowID, userID, role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

// GetStats GET /admin/escrows/stats
func (h *EscrowHandler) GetStats(c *gin.Context) {
	role, err := common.CurrentUserRole(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}

	stats, err := h.svc.GetStats(c.Request.Context(), role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
