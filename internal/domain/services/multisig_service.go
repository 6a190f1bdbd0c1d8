package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/justthetip/treasury_service/internal/domain/entities"
	domainerrors "github.com/justthetip/treasury_service/internal/domain/errors"
	"github.com/justthetip/treasury_service/internal/infrastructure/cache"
	"github.com/justthetip/treasury_service/pkg/circuitbreaker"
	"github.com/justthetip/treasury_service/pkg/logger"
	"github.com/justthetip/treasury_service/pkg/metrics"
)

// MultiSigRepository stores treasury wallet definitions.
type MultiSigRepository interface {
	Create(ctx context.Context, wallet *entities.MultiSigWallet) error
	GetByAddress(ctx context.Context, address string) (*entities.MultiSigWallet, error)
}

// ProposalRepository stores proposals and their approvals. AddApproval must
// enforce one approval per signer per proposal; TryBeginExecution is the
// exactly-once gate from OPEN to EXECUTING and only succeeds when quorum is
// already recorded.
type ProposalRepository interface {
	Create(ctx context.Context, proposal *entities.Proposal) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Proposal, error)
	AddApproval(ctx context.Context, proposalID uuid.UUID, approval *entities.Approval) error
	TryBeginExecution(ctx context.Context, proposalID uuid.UUID) (bool, error)
	MarkExecuted(ctx context.Context, id uuid.UUID, txSignature string) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
	ExpireStale(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ListOpen(ctx context.Context, multisigAddress string) ([]*entities.Proposal, error)
}

// MultiSigExecutor provisions on-chain vaults and moves their funds. Like the
// single-owner executor it must only be invoked after the authorizing
// transition commits.
type MultiSigExecutor interface {
	CreateMultiSigAccount(ctx context.Context, signers []string, threshold int) (string, error)
	ExecuteMultiSigTransfer(ctx context.Context, wallet *entities.MultiSigWallet, data entities.TransactionData) (string, error)
}

// MultiSigService manages M-of-N treasury wallets and the approval lifecycle
// of payout proposals against them.
type MultiSigService struct {
	wallets     MultiSigRepository
	proposals   ProposalRepository
	executor    MultiSigExecutor
	audit       AuditLogger
	cache       cache.RedisClient
	proposalTTL time.Duration
	walletTTL   time.Duration
	validator   *validator.Validate
	logger      *logger.Logger
	breaker     *circuitbreaker.CircuitBreaker
}

// NewMultiSigService creates a new multi-sig service.
func NewMultiSigService(
	wallets MultiSigRepository,
	proposals ProposalRepository,
	executor MultiSigExecutor,
	audit AuditLogger,
	cacheClient cache.RedisClient,
	proposalTTL time.Duration,
	walletCacheTTL time.Duration,
	log *logger.Logger,
) *MultiSigService {
	return &MultiSigService{
		wallets:     wallets,
		proposals:   proposals,
		executor:    executor,
		audit:       audit,
		cache:       cacheClient,
		proposalTTL: proposalTTL,
		walletTTL:   walletCacheTTL,
		validator:   validator.New(),
		logger:      log,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:             "multisig-executor",
			MaxRequests:      10,
			Interval:         60 * time.Second,
			Timeout:          60 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
		}),
	}
}

// CreateMultiSigWallet provisions a new M-of-N treasury wallet. The signer set
// and threshold are immutable once created.
func (s *MultiSigService) CreateMultiSigWallet(ctx context.Context, input *entities.CreateMultiSigWalletInput, creatorID string) (*entities.MultiSigWallet, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, domainerrors.InvalidInputError("signers", err.Error())
	}
	if input.Threshold > len(input.Signers) {
		return nil, domainerrors.InvalidInputError("threshold",
			fmt.Sprintf("threshold %d exceeds signer count %d", input.Threshold, len(input.Signers)))
	}

	var address string
	err := s.breaker.Execute(ctx, func() error {
		var execErr error
		address, execErr = s.executor.CreateMultiSigAccount(ctx, input.Signers, input.Threshold)
		return execErr
	})
	if err != nil {
		s.logger.Error("Failed to provision multi-sig account", "error", err)
		return nil, domainerrors.ExecutorFailureError(err)
	}

	wallet := &entities.MultiSigWallet{
		Address:   address,
		Signers:   input.Signers,
		Threshold: input.Threshold,
		CreatedAt: time.Now(),
	}

	if err := s.wallets.Create(ctx, wallet); err != nil {
		return nil, domainerrors.InternalError("failed to store multi-sig wallet", err)
	}
	s.cacheWallet(ctx, wallet)

	s.logAudit(ctx, entities.AuditMultiSigCreated, creatorID, wallet.Address, "", nil)

	s.logger.Info("Multi-sig wallet created",
		"address", wallet.Address,
		"signers", len(wallet.Signers),
		"threshold", wallet.Threshold)

	return wallet, nil
}

// GetMultiSigWallet retrieves a wallet definition, reading through the cache.
// Wallet definitions are immutable so a cached hit is always current.
func (s *MultiSigService) GetMultiSigWallet(ctx context.Context, address string) (*entities.MultiSigWallet, error) {
	if s.cache != nil {
		var cached entities.MultiSigWallet
		if err := s.cache.Get(ctx, walletCacheKey(address), &cached); err == nil {
			return &cached, nil
		}
	}

	wallet, err := s.wallets.GetByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	s.cacheWallet(ctx, wallet)
	return wallet, nil
}

// CreateProposal opens a payout proposal against a treasury wallet. The
// proposer must be a wallet signer and their approval is recorded immediately,
// so a 1-of-N wallet executes on proposal creation.
func (s *MultiSigService) CreateProposal(ctx context.Context, input *entities.CreateProposalInput) (*entities.Proposal, error) {
	if input.TransactionData.Amount <= 0 {
		return nil, domainerrors.InvalidInputError("transaction_data.amount", "amount must be positive")
	}
	if !input.TransactionData.Currency.IsSupported() {
		return nil, domainerrors.InvalidInputError("transaction_data.currency", "unsupported currency")
	}
	if input.TransactionData.Recipient == "" {
		return nil, domainerrors.InvalidInputError("transaction_data.recipient", "recipient is required")
	}

	wallet, err := s.GetMultiSigWallet(ctx, input.MultiSigAddress)
	if err != nil {
		return nil, err
	}
	if !wallet.HasSigner(input.ProposerID) {
		return nil, domainerrors.UnauthorizedError("proposer is not a signer of this wallet")
	}

	now := time.Now()
	proposal := &entities.Proposal{
		ID:              uuid.New(),
		MultiSigAddress: wallet.Address,
		TransactionData: input.TransactionData,
		ProposerID:      input.ProposerID,
		Approvals: []entities.Approval{{
			SignerID:            input.ProposerID,
			SignerWalletAddress: input.ProposerWalletAddress,
			ApprovedAt:          now,
		}},
		RequiredApprovals: wallet.Threshold,
		Status:            entities.ProposalStatusOpen,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.proposalTTL),
	}

	if err := s.proposals.Create(ctx, proposal); err != nil {
		return nil, domainerrors.InternalError("failed to create proposal", err)
	}

	s.logAudit(ctx, entities.AuditProposalCreated, input.ProposerID, proposal.ID.String(), string(proposal.Status), &proposal.TransactionData)

	s.logger.Info("Proposal created",
		"proposal_id", proposal.ID.String(),
		"multisig_address", wallet.Address,
		"proposer_id", input.ProposerID,
		"required_approvals", proposal.RequiredApprovals)

	if len(proposal.Approvals) >= proposal.RequiredApprovals {
		return s.tryExecute(ctx, proposal, wallet)
	}

	return proposal, nil
}

// ApproveProposal records one signer's approval. The approval that reaches
// quorum also triggers execution; the OPEN -> EXECUTING compare-and-set
// guarantees exactly one execution even when the final approvals land
// concurrently.
func (s *MultiSigService) ApproveProposal(ctx context.Context, proposalID uuid.UUID, input *entities.ApproveProposalInput) (*entities.Proposal, error) {
	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	if proposal.Status != entities.ProposalStatusOpen {
		return nil, domainerrors.InvalidStateError("proposal", string(proposal.Status))
	}

	if proposal.IsExpired(time.Now()) {
		if swapped, err := s.proposals.MarkExpired(ctx, proposalID); err == nil && swapped {
			metrics.ExpiredRecords.WithLabelValues("proposal").Inc()
			s.logAudit(ctx, entities.AuditProposalExpired, entities.DecidedBySystem,
				proposalID.String(), string(entities.ProposalStatusExpired), nil)
		}
		return nil, domainerrors.ExpiredError("proposal")
	}

	wallet, err := s.GetMultiSigWallet(ctx, proposal.MultiSigAddress)
	if err != nil {
		return nil, err
	}
	if !wallet.HasSigner(input.SignerID) {
		return nil, domainerrors.UnauthorizedError("approver is not a signer of this wallet")
	}
	if proposal.HasApprovalFrom(input.SignerID) {
		return nil, domainerrors.DuplicateApprovalError(input.SignerID)
	}

	approval := &entities.Approval{
		SignerID:            input.SignerID,
		SignerWalletAddress: input.SignerWalletAddress,
		ApprovedAt:          time.Now(),
	}
	if err := s.proposals.AddApproval(ctx, proposalID, approval); err != nil {
		if domainerrors.IsDuplicateApproval(err) {
			return nil, err
		}
		return nil, domainerrors.InternalError("failed to record approval", err)
	}
	proposal.Approvals = append(proposal.Approvals, *approval)

	s.logAudit(ctx, entities.AuditProposalApproved, input.SignerID, proposal.ID.String(), string(proposal.Status), nil)

	s.logger.Info("Proposal approved",
		"proposal_id", proposal.ID.String(),
		"signer_id", input.SignerID,
		"approvals", len(proposal.Approvals),
		"required", proposal.RequiredApprovals)

	if len(proposal.Approvals) >= proposal.RequiredApprovals {
		return s.tryExecute(ctx, proposal, wallet)
	}

	return proposal, nil
}

// GetProposal retrieves a proposal with its approvals.
func (s *MultiSigService) GetProposal(ctx context.Context, proposalID uuid.UUID) (*entities.Proposal, error) {
	return s.proposals.GetByID(ctx, proposalID)
}

// ListOpenProposals returns open proposals, sweeping expired ones first. An
// empty multisigAddress lists proposals across all wallets.
func (s *MultiSigService) ListOpenProposals(ctx context.Context, multisigAddress string) ([]*entities.Proposal, error) {
	if _, err := s.SweepExpired(ctx); err != nil {
		s.logger.Warn("Expiry sweep failed during listing", "error", err)
	}
	return s.proposals.ListOpen(ctx, multisigAddress)
}

// SweepExpired transitions all open proposals past their deadline to EXPIRED.
func (s *MultiSigService) SweepExpired(ctx context.Context) (int64, error) {
	ids, err := s.proposals.ExpireStale(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.logAudit(ctx, entities.AuditProposalExpired, entities.DecidedBySystem,
			id.String(), string(entities.ProposalStatusExpired), nil)
	}
	count := int64(len(ids))
	if count > 0 {
		metrics.ExpiredRecords.WithLabelValues("proposal").Add(float64(count))
		s.logger.Info("Expired stale proposals", "count", count)
	}
	return count, nil
}

// tryExecute races for the OPEN -> EXECUTING transition and, if it wins, runs
// the transfer and records the terminal outcome. Losing the race is not an
// error: the winner is already executing and the caller gets the proposal as
// it stands.
func (s *MultiSigService) tryExecute(ctx context.Context, proposal *entities.Proposal, wallet *entities.MultiSigWallet) (*entities.Proposal, error) {
	won, err := s.proposals.TryBeginExecution(ctx, proposal.ID)
	if err != nil {
		return nil, domainerrors.InternalError("failed to begin execution", err)
	}
	if !won {
		return s.proposals.GetByID(ctx, proposal.ID)
	}

	proposal.Status = entities.ProposalStatusExecuting

	var txSignature string
	execErr := s.breaker.Execute(ctx, func() error {
		var err error
		txSignature, err = s.executor.ExecuteMultiSigTransfer(ctx, wallet, proposal.TransactionData)
		return err
	})
	if execErr != nil {
		metrics.ProposalExecutions.WithLabelValues("failure").Inc()
		s.logger.Error("Proposal execution failed",
			"proposal_id", proposal.ID.String(),
			"error", execErr)

		reason := execErr.Error()
		if _, markErr := s.proposals.MarkFailed(ctx, proposal.ID, reason); markErr != nil {
			s.logger.Error("Failed to mark proposal failed", "error", markErr, "proposal_id", proposal.ID.String())
		}
		proposal.Status = entities.ProposalStatusFailed
		proposal.FailureReason = &reason
		s.logAudit(ctx, entities.AuditProposalFailed, entities.DecidedBySystem,
			proposal.ID.String(), string(proposal.Status), &proposal.TransactionData)
		return proposal, domainerrors.ExecutorFailureError(execErr)
	}

	if _, err := s.proposals.MarkExecuted(ctx, proposal.ID, txSignature); err != nil {
		s.logger.Error("Failed to mark proposal executed", "error", err, "proposal_id", proposal.ID.String())
	}
	now := time.Now()
	proposal.Status = entities.ProposalStatusExecuted
	proposal.ExecutedAt = &now
	proposal.TxSignature = &txSignature

	metrics.ProposalExecutions.WithLabelValues("success").Inc()
	s.logAudit(ctx, entities.AuditProposalExecuted, entities.DecidedBySystem, proposal.ID.String(), string(proposal.Status), &proposal.TransactionData)
	s.logger.Info("Proposal executed",
		"proposal_id", proposal.ID.String(),
		"tx_signature", txSignature)

	return proposal, nil
}

func (s *MultiSigService) cacheWallet(ctx context.Context, wallet *entities.MultiSigWallet) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, walletCacheKey(wallet.Address), wallet, s.walletTTL); err != nil {
		s.logger.Warn("Failed to cache wallet", "error", err, "address", wallet.Address)
	}
}

func (s *MultiSigService) logAudit(ctx context.Context, action entities.AuditAction, actorID, subjectID, status string, data *entities.TransactionData) {
	if s.audit == nil {
		return
	}
	entry := &entities.AuditEntry{
		ID:        uuid.New(),
		Action:    action,
		ActorID:   actorID,
		SubjectID: subjectID,
		Status:    status,
		CreatedAt: time.Now(),
	}
	if data != nil {
		amount := data.Amount
		currency := data.Currency
		entry.Amount = &amount
		entry.Currency = &currency
	}
	if err := s.audit.Log(ctx, entry); err != nil {
		s.logger.Warn("Failed to write audit entry", "error", err, "action", action)
	}
}

func walletCacheKey(address string) string {
	return "multisig:wallet:" + address
}
