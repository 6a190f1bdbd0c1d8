package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/justthetip/treasury_service/internal/domain/entities"
	"github.com/justthetip/treasury_service/internal/domain/services"
	"github.com/justthetip/treasury_service/pkg/logger"
)

// WithdrawalHandlers exposes the withdrawal queue over HTTP.
type WithdrawalHandlers struct {
	service *services.WithdrawalService
	logger  *logger.Logger
}

// NewWithdrawalHandlers creates withdrawal handlers.
func NewWithdrawalHandlers(service *services.WithdrawalService, log *logger.Logger) *WithdrawalHandlers {
	return &WithdrawalHandlers{service: service, logger: log}
}

// RequestWithdrawal handles POST /withdrawals.
func (h *WithdrawalHandlers) RequestWithdrawal(c *gin.Context) {
	var input entities.RequestWithdrawalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if input.UserID == "" {
		input.UserID = getActorID(c)
	}
	if input.UserID == "" {
		respondBadRequest(c, "user_id is required")
		return
	}

	request, err := h.service.RequestWithdrawal(c.Request.Context(), &input)
	if err != nil {
		// A failed auto-approved execution still yields a terminal record.
		if request != nil {
			c.JSON(http.StatusBadGateway, gin.H{"withdrawal": request, "error": err.Error()})
			return
		}
		respondDomainError(c, err)
		return
	}

	respondCreated(c, request)
}

// PreviewPolicy handles GET /withdrawals/policy. It lets callers route a
// prospective payout before creating anything. The amount is given either in
// minor units ("amount") or as a decimal string ("amount_decimal").
func (h *WithdrawalHandlers) PreviewPolicy(c *gin.Context) {
	currency := entities.Currency(c.Query("currency"))
	if !currency.IsSupported() {
		respondBadRequest(c, "unsupported currency")
		return
	}

	var amount int64
	if raw := c.Query("amount_decimal"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			respondBadRequest(c, "amount must be a decimal number")
			return
		}
		amount = currency.MinorUnits(parsed)
	} else {
		parsed, err := strconv.ParseInt(c.Query("amount"), 10, 64)
		if err != nil {
			respondBadRequest(c, "amount must be an integer in minor units")
			return
		}
		amount = parsed
	}
	if amount <= 0 {
		respondBadRequest(c, "amount must be positive")
		return
	}

	decision, requiresMultiSig := h.service.PreviewPolicy(amount, currency)
	respondSuccess(c, gin.H{
		"decision":          decision,
		"requires_multisig": requiresMultiSig,
	})
}

// GetWithdrawal handles GET /withdrawals/:id.
func (h *WithdrawalHandlers) GetWithdrawal(c *gin.Context) {
	id, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid withdrawal id")
		return
	}

	request, err := h.service.GetWithdrawal(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, request)
}

// ListPending handles GET /withdrawals/pending.
func (h *WithdrawalHandlers) ListPending(c *gin.Context) {
	requests, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list pending withdrawals", "error", err, "request_id", getRequestID(c))
		respondInternalError(c, "failed to list pending withdrawals")
		return
	}

	respondSuccess(c, gin.H{"withdrawals": requests, "count": len(requests)})
}

// GetUserWithdrawals handles GET /users/:user_id/withdrawals.
func (h *WithdrawalHandlers) GetUserWithdrawals(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		respondBadRequest(c, "user_id is required")
		return
	}
	limit := parseIntParam(c, "limit", 10)

	requests, err := h.service.GetUserWithdrawals(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("Failed to get user withdrawals", "error", err, "user_id", userID)
		respondInternalError(c, "failed to get user withdrawals")
		return
	}

	respondSuccess(c, gin.H{"withdrawals": requests, "count": len(requests)})
}

// ApproveWithdrawal handles POST /withdrawals/:id/approve.
func (h *WithdrawalHandlers) ApproveWithdrawal(c *gin.Context) {
	id, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid withdrawal id")
		return
	}

	request, err := h.service.ApproveWithdrawal(c.Request.Context(), id, getActorID(c))
	if err != nil {
		if request != nil {
			c.JSON(http.StatusBadGateway, gin.H{"withdrawal": request, "error": err.Error()})
			return
		}
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, request)
}

// RejectWithdrawal handles POST /withdrawals/:id/reject.
func (h *WithdrawalHandlers) RejectWithdrawal(c *gin.Context) {
	id, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid withdrawal id")
		return
	}

	var input entities.RejectWithdrawalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "reason is required")
		return
	}

	request, err := h.service.RejectWithdrawal(c.Request.Context(), id, getActorID(c), input.Reason)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, request)
}
