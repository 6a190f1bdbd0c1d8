package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/justthetip/treasury_service/internal/domain/entities"
	domainerrors "github.com/justthetip/treasury_service/internal/domain/errors"
	"github.com/justthetip/treasury_service/pkg/circuitbreaker"
	"github.com/justthetip/treasury_service/pkg/logger"
	"github.com/justthetip/treasury_service/pkg/metrics"
)

// WithdrawalRepository is the durable store of withdrawal requests. All state
// transitions are compare-and-set on the expected prior status; the bool
// result reports whether this caller won the transition.
type WithdrawalRepository interface {
	Create(ctx context.Context, request *entities.WithdrawalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.WithdrawalRequest, error)
	GetByUserID(ctx context.Context, userID string, limit int) ([]*entities.WithdrawalRequest, error)
	ListByStatus(ctx context.Context, status entities.WithdrawalStatus) ([]*entities.WithdrawalRequest, error)
	MarkApproved(ctx context.Context, id uuid.UUID, adminID string) (bool, error)
	MarkRejected(ctx context.Context, id uuid.UUID, adminID, reason string) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, from entities.WithdrawalStatus, txSignature string) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, from entities.WithdrawalStatus, reason string) (bool, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
	ExpireStale(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// TransferExecutor is the external collaborator that moves single-owner funds
// on chain. It is not idempotency-safe: calling it twice for the same intent
// may double-pay, so it must only run after the authorizing transition commits.
type TransferExecutor interface {
	ExecuteTransfer(ctx context.Context, toAddress string, amount int64, currency entities.Currency) (string, error)
}

// AuditLogger records append-only audit trail entries. Audit failures are
// logged but never fail the underlying operation.
type AuditLogger interface {
	Log(ctx context.Context, entry *entities.AuditEntry) error
}

// WithdrawalService gates movement of pooled user funds behind either the
// auto-approval policy or an explicit admin decision.
type WithdrawalService struct {
	repo      WithdrawalRepository
	executor  TransferExecutor
	policy    *ApprovalPolicy
	authority AdminAuthority
	audit     AuditLogger
	ttl       time.Duration
	logger    *logger.Logger
	breaker   *circuitbreaker.CircuitBreaker
}

// NewWithdrawalService creates a new withdrawal service.
func NewWithdrawalService(
	repo WithdrawalRepository,
	executor TransferExecutor,
	policy *ApprovalPolicy,
	authority AdminAuthority,
	audit AuditLogger,
	ttl time.Duration,
	log *logger.Logger,
) *WithdrawalService {
	return &WithdrawalService{
		repo:      repo,
		executor:  executor,
		policy:    policy,
		authority: authority,
		audit:     audit,
		ttl:       ttl,
		logger:    log,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:             "transfer-executor",
			MaxRequests:      10,
			Interval:         60 * time.Second,
			Timeout:          60 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
		}),
	}
}

// RequestWithdrawal creates a new withdrawal request. Amounts at or below the
// currency's auto-approval threshold are executed synchronously; anything
// larger is parked as PENDING for admin review until the TTL elapses. The
// amount may arrive as a decimal string, which is converted to minor units
// before the policy runs.
//
// On a failed auto-approved execution the returned request is in status FAILED
// and the executor error is returned alongside it; funds are not considered
// moved.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, input *entities.RequestWithdrawalInput) (*entities.WithdrawalRequest, error) {
	if !input.Currency.IsSupported() {
		return nil, domainerrors.InvalidInputError("currency", "unsupported currency")
	}
	if input.AmountDecimal != "" {
		parsed, err := decimal.NewFromString(input.AmountDecimal)
		if err != nil {
			return nil, domainerrors.InvalidInputError("amount_decimal", "amount must be a decimal number")
		}
		input.Amount = input.Currency.MinorUnits(parsed)
	}
	if input.Amount <= 0 {
		return nil, domainerrors.InvalidInputError("amount", "amount must be positive")
	}
	if input.ToAddress == "" {
		return nil, domainerrors.InvalidInputError("to_address", "destination address is required")
	}

	now := time.Now()
	request := &entities.WithdrawalRequest{
		ID:          uuid.New(),
		UserID:      input.UserID,
		Username:    input.Username,
		ToAddress:   input.ToAddress,
		Amount:      input.Amount,
		Currency:    input.Currency,
		Status:      entities.WithdrawalStatusPending,
		RequestedAt: now,
		ExpiresAt:   now.Add(s.ttl),
	}

	decision := s.policy.Decide(input.Amount, input.Currency)
	if decision == DecisionAutoApprove {
		decidedBy := entities.DecidedBySystem
		request.Status = entities.WithdrawalStatusAutoApproved
		request.DecidedBy = &decidedBy
		request.DecidedAt = &now
	}

	if err := s.repo.Create(ctx, request); err != nil {
		s.logger.Error("Failed to create withdrawal request", "error", err, "user_id", input.UserID)
		return nil, domainerrors.InternalError("failed to create withdrawal request", err)
	}
	metrics.WithdrawalRequests.WithLabelValues(string(input.Currency), string(decision)).Inc()

	s.logAudit(ctx, entities.AuditWithdrawalRequested, input.UserID, request)

	s.logger.Info("Withdrawal requested",
		"withdrawal_id", request.ID.String(),
		"user_id", input.UserID,
		"amount", input.Amount,
		"currency", input.Currency,
		"status", request.Status)

	if decision == DecisionAutoApprove {
		return s.execute(ctx, request, entities.WithdrawalStatusAutoApproved)
	}

	return request, nil
}

// ApproveWithdrawal transitions a pending request to APPROVED and invokes the
// executor. The PENDING -> APPROVED compare-and-set makes concurrent approvals
// mutually exclusive: the loser observes the request already decided.
func (s *WithdrawalService) ApproveWithdrawal(ctx context.Context, requestID uuid.UUID, adminID string) (*entities.WithdrawalRequest, error) {
	if !s.authority.IsAdmin(adminID) {
		return nil, domainerrors.UnauthorizedError("admin privileges required")
	}

	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if request.Status != entities.WithdrawalStatusPending {
		return nil, domainerrors.InvalidStateError("withdrawal", string(request.Status))
	}

	if request.IsExpired(time.Now()) {
		s.expireLazily(ctx, requestID)
		return nil, domainerrors.ExpiredError("withdrawal request")
	}

	swapped, err := s.repo.MarkApproved(ctx, requestID, adminID)
	if err != nil {
		return nil, domainerrors.InternalError("failed to approve withdrawal", err)
	}
	if !swapped {
		// A concurrent admin decision or the sweeper won the transition. The
		// UPDATE also refuses rows past their deadline, so a PENDING reload
		// means the TTL elapsed between the check above and the UPDATE.
		current, err := s.repo.GetByID(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if current.Status == entities.WithdrawalStatusPending && current.IsExpired(time.Now()) {
			s.expireLazily(ctx, requestID)
			return nil, domainerrors.ExpiredError("withdrawal request")
		}
		return nil, domainerrors.InvalidStateError("withdrawal", string(current.Status))
	}

	now := time.Now()
	request.Status = entities.WithdrawalStatusApproved
	request.DecidedBy = &adminID
	request.DecidedAt = &now

	s.logAudit(ctx, entities.AuditWithdrawalApproved, adminID, request)

	return s.execute(ctx, request, entities.WithdrawalStatusApproved)
}

// RejectWithdrawal transitions a pending request to the terminal REJECTED
// status. A rejected request is guaranteed never to be executed afterward;
// returning the funds to the user's balance is the ledger's responsibility.
func (s *WithdrawalService) RejectWithdrawal(ctx context.Context, requestID uuid.UUID, adminID, reason string) (*entities.WithdrawalRequest, error) {
	if !s.authority.IsAdmin(adminID) {
		return nil, domainerrors.UnauthorizedError("admin privileges required")
	}
	if reason == "" {
		return nil, domainerrors.InvalidInputError("reason", "rejection reason is required")
	}

	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if request.Status != entities.WithdrawalStatusPending {
		return nil, domainerrors.InvalidStateError("withdrawal", string(request.Status))
	}

	if request.IsExpired(time.Now()) {
		s.expireLazily(ctx, requestID)
		return nil, domainerrors.ExpiredError("withdrawal request")
	}

	swapped, err := s.repo.MarkRejected(ctx, requestID, adminID, reason)
	if err != nil {
		return nil, domainerrors.InternalError("failed to reject withdrawal", err)
	}
	if !swapped {
		current, err := s.repo.GetByID(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if current.Status == entities.WithdrawalStatusPending && current.IsExpired(time.Now()) {
			s.expireLazily(ctx, requestID)
			return nil, domainerrors.ExpiredError("withdrawal request")
		}
		return nil, domainerrors.InvalidStateError("withdrawal", string(current.Status))
	}

	now := time.Now()
	request.Status = entities.WithdrawalStatusRejected
	request.DecidedBy = &adminID
	request.DecidedAt = &now
	request.Reason = &reason

	s.logAudit(ctx, entities.AuditWithdrawalRejected, adminID, request)

	s.logger.Info("Withdrawal rejected",
		"withdrawal_id", requestID.String(),
		"admin_id", adminID,
		"reason", reason)

	return request, nil
}

// ListPending returns all pending requests, sweeping any whose TTL elapsed to
// EXPIRED first so stale records never reach a reviewer.
func (s *WithdrawalService) ListPending(ctx context.Context) ([]*entities.WithdrawalRequest, error) {
	if _, err := s.SweepExpired(ctx); err != nil {
		s.logger.Warn("Expiry sweep failed during listing", "error", err)
	}
	return s.repo.ListByStatus(ctx, entities.WithdrawalStatusPending)
}

// GetWithdrawal retrieves a withdrawal request by ID.
func (s *WithdrawalService) GetWithdrawal(ctx context.Context, requestID uuid.UUID) (*entities.WithdrawalRequest, error) {
	return s.repo.GetByID(ctx, requestID)
}

// GetUserWithdrawals retrieves a user's withdrawal history, newest first.
func (s *WithdrawalService) GetUserWithdrawals(ctx context.Context, userID string, limit int) ([]*entities.WithdrawalRequest, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.repo.GetByUserID(ctx, userID, limit)
}

// PreviewPolicy reports how a prospective withdrawal would be routed: the
// auto-approve decision and whether the amount belongs in a multi-sig proposal
// instead of the single-owner queue.
func (s *WithdrawalService) PreviewPolicy(amount int64, currency entities.Currency) (Decision, bool) {
	return s.policy.Decide(amount, currency), s.policy.RequiresMultiSig(amount)
}

// SweepExpired transitions all pending requests past their deadline to
// EXPIRED. The transition is the same compare-and-set used by approvals, so
// the sweep can never race a concurrent admin decision.
func (s *WithdrawalService) SweepExpired(ctx context.Context) (int64, error) {
	ids, err := s.repo.ExpireStale(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.logExpiredAudit(ctx, id)
	}
	count := int64(len(ids))
	if count > 0 {
		metrics.ExpiredRecords.WithLabelValues("withdrawal").Add(float64(count))
		s.logger.Info("Expired stale withdrawal requests", "count", count)
	}
	return count, nil
}

// execute invokes the executor for an already-authorized request and records
// the terminal outcome. The authorizing transition has committed by the time
// this runs, so a slow or failed send cannot let a second execution through.
func (s *WithdrawalService) execute(ctx context.Context, request *entities.WithdrawalRequest, from entities.WithdrawalStatus) (*entities.WithdrawalRequest, error) {
	var txSignature string
	err := s.breaker.Execute(ctx, func() error {
		var execErr error
		txSignature, execErr = s.executor.ExecuteTransfer(ctx, request.ToAddress, request.Amount, request.Currency)
		return execErr
	})
	if err != nil {
		metrics.WithdrawalExecutions.WithLabelValues(string(request.Currency), "failure").Inc()
		s.logger.Error("Withdrawal execution failed",
			"withdrawal_id", request.ID.String(),
			"error", err)

		reason := err.Error()
		if _, markErr := s.repo.MarkFailed(ctx, request.ID, from, reason); markErr != nil {
			s.logger.Error("Failed to mark withdrawal failed", "error", markErr, "withdrawal_id", request.ID.String())
		}
		request.Status = entities.WithdrawalStatusFailed
		request.Reason = &reason
		s.logAudit(ctx, entities.AuditWithdrawalFailed, entities.DecidedBySystem, request)
		return request, domainerrors.ExecutorFailureError(err)
	}

	if _, err := s.repo.MarkCompleted(ctx, request.ID, from, txSignature); err != nil {
		s.logger.Error("Failed to mark withdrawal completed", "error", err, "withdrawal_id", request.ID.String())
	}
	request.Status = entities.WithdrawalStatusCompleted
	request.TxSignature = &txSignature

	s.logAudit(ctx, entities.AuditWithdrawalCompleted, entities.DecidedBySystem, request)
	metrics.WithdrawalExecutions.WithLabelValues(string(request.Currency), "success").Inc()
	s.logger.Info("Withdrawal completed",
		"withdrawal_id", request.ID.String(),
		"tx_signature", txSignature)

	return request, nil
}

// expireLazily moves a request whose deadline was observed in the read path to
// EXPIRED without waiting for the sweeper.
func (s *WithdrawalService) expireLazily(ctx context.Context, requestID uuid.UUID) {
	swapped, err := s.repo.MarkExpired(ctx, requestID)
	if err != nil || !swapped {
		return
	}
	metrics.ExpiredRecords.WithLabelValues("withdrawal").Inc()
	s.logExpiredAudit(ctx, requestID)
}

func (s *WithdrawalService) logExpiredAudit(ctx context.Context, requestID uuid.UUID) {
	if s.audit == nil {
		return
	}
	entry := &entities.AuditEntry{
		ID:        uuid.New(),
		Action:    entities.AuditWithdrawalExpired,
		ActorID:   entities.DecidedBySystem,
		SubjectID: requestID.String(),
		Status:    string(entities.WithdrawalStatusExpired),
		CreatedAt: time.Now(),
	}
	if err := s.audit.Log(ctx, entry); err != nil {
		s.logger.Warn("Failed to write audit entry", "error", err, "action", entities.AuditWithdrawalExpired)
	}
}

func (s *WithdrawalService) logAudit(ctx context.Context, action entities.AuditAction, actorID string, request *entities.WithdrawalRequest) {
	if s.audit == nil {
		return
	}
	amount := request.Amount
	currency := request.Currency
	entry := &entities.AuditEntry{
		ID:        uuid.New(),
		Action:    action,
		ActorID:   actorID,
		SubjectID: request.ID.String(),
		Amount:    &amount,
		Currency:  &currency,
		Status:    string(request.Status),
		CreatedAt: time.Now(),
	}
	if err := s.audit.Log(ctx, entry); err != nil {
		s.logger.Warn("Failed to write audit entry", "error", err, "action", action)
	}
}
