package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/justthetip/treasury_service/internal/domain/entities"
	domainerrors "github.com/justthetip/treasury_service/internal/domain/errors"
	"github.com/justthetip/treasury_service/internal/domain/services"
	"github.com/justthetip/treasury_service/pkg/logger"
)

type MockWithdrawalRepository struct {
	mock.Mock
}

func (m *MockWithdrawalRepository) Create(ctx context.Context, request *entities.WithdrawalRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.WithdrawalRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalRepository) GetByUserID(ctx context.Context, userID string, limit int) ([]*entities.WithdrawalRequest, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalRepository) ListByStatus(ctx context.Context, status entities.WithdrawalStatus) ([]*entities.WithdrawalRequest, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalRepository) MarkApproved(ctx context.Context, id uuid.UUID, adminID string) (bool, error) {
	args := m.Called(ctx, id, adminID)
	return args.Bool(0), args.Error(1)
}

func (m *MockWithdrawalRepository) MarkRejected(ctx context.Context, id uuid.UUID, adminID, reason string) (bool, error) {
	args := m.Called(ctx, id, adminID, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockWithdrawalRepository) MarkCompleted(ctx context.Context, id uuid.UUID, from entities.WithdrawalStatus, txSignature string) (bool, error) {
	args := m.Called(ctx, id, from, txSignature)
	return args.Bool(0), args.Error(1)
}

func (m *MockWithdrawalRepository) MarkFailed(ctx context.Context, id uuid.UUID, from entities.WithdrawalStatus, reason string) (bool, error) {
	args := m.Called(ctx, id, from, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockWithdrawalRepository) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockWithdrawalRepository) ExpireStale(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) Log(ctx context.Context, entry *entities.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type MockTransferExecutor struct {
	mock.Mock
}

func (m *MockTransferExecutor) ExecuteTransfer(ctx context.Context, toAddress string, amount int64, currency entities.Currency) (string, error) {
	args := m.Called(ctx, toAddress, amount, currency)
	return args.String(0), args.Error(1)
}

func newWithdrawalService(repo *MockWithdrawalRepository, executor *MockTransferExecutor) *services.WithdrawalService {
	return newAuditedWithdrawalService(repo, executor, nil)
}

func newAuditedWithdrawalService(repo *MockWithdrawalRepository, executor *MockTransferExecutor, audit *MockAuditLogger) *services.WithdrawalService {
	policy := services.NewApprovalPolicy(map[string]int64{
		"SOL":  100_000_000,
		"USDC": 100_000_000,
	}, 1_000_000_000)
	authority := services.NewStaticAdminAuthority([]string{"admin-1"})

	var auditLogger services.AuditLogger
	if audit != nil {
		auditLogger = audit
	}

	return services.NewWithdrawalService(
		repo, executor, policy, authority, auditLogger,
		24*time.Hour, logger.New("error", "test"),
	)
}

func pendingRequest(expiresAt time.Time) *entities.WithdrawalRequest {
	return &entities.WithdrawalRequest{
		ID:          uuid.New(),
		UserID:      "user-1",
		ToAddress:   "So11111111111111111111111111111111111111112",
		Amount:      500_000_000,
		Currency:    entities.CurrencySOL,
		Status:      entities.WithdrawalStatusPending,
		RequestedAt: time.Now().Add(-time.Hour),
		ExpiresAt:   expiresAt,
	}
}

func TestRequestWithdrawal_AutoApproveExecutes(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	executor := new(MockTransferExecutor)
	service := newWithdrawalService(repo, executor)

	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	executor.On("ExecuteTransfer", mock.Anything, "dest-addr", int64(50_000_000), entities.CurrencySOL).
		Return("sig-123", nil)
	repo.On("MarkCompleted", mock.Anything, mock.Anything, entities.WithdrawalStatusAutoApproved, "sig-123").
		Return(true, nil)

	request, err := service.RequestWithdrawal(context.Background(), &entities.RequestWithdrawalInput{
		UserID:    "user-1",
		ToAddress: "dest-addr",
		Amount:    50_000_000,
		Currency:  entities.CurrencySOL,
	})

	assert.NoError(t, err)
	assert.Equal(t, entities.WithdrawalStatusCompleted, request.Status)
	assert.NotNil(t, request.TxSignature)
	assert.Equal(t, "sig-123", *request.TxSignature)
	assert.NotNil(t, request.DecidedBy)
	assert.Equal(t, entities.DecidedBySystem, *request.DecidedBy)
	executor.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestRequestWithdrawal_AtThresholdAutoApproves(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	executor := new(MockTransferExecutor)
	service := newWithdrawalService(repo, executor)

	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	executor.On("ExecuteTransfer", mock.Anything, mock.Anything, int64(100_000_000), entities.CurrencySOL).
		Return("sig-edge", nil)
	repo.On("MarkCompleted", mock.Anything, mock.Anything, entities.WithdrawalStatusAutoApproved, "sig-edge").
		Return(true, nil)

	request, err := service.RequestWithdrawal(context.Background(), &entities.RequestWithdrawalInput{
		UserID:    "user-1",
		ToAddress: "dest-addr",
		Amount:    100_000_000,
		Currency:  entities.CurrencySOL,
	})

	assert.NoError(t, err)
	assert.Equal(t, entities.WithdrawalStatusCompleted, request.Status)
}

func TestRequestWithdrawal_AboveThresholdParksPending(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	executor := new(MockTransferExecutor)
	service := newWithdrawalService(repo, executor)

	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	request, err := service.RequestWithdrawal(context.Background(), &entities.RequestWithdrawalInput{
		UserID:    "user-1",
		ToAddress: "dest-addr",
		Amount:    100_000_001,
		Currency:  entities.CurrencySOL,
	})

	assert.NoError(t, err)
	assert.Equal(t, entities.WithdrawalStatusPending, request.Status)
	assert.Nil(t, request.DecidedBy)
	assert.True(t, request.ExpiresAt.After(request.RequestedAt))
	executor.AssertNotCalled(t, "ExecuteTransfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestWithdrawal_MultiSigSizedAmountParksPending(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	executor := new(MockTransferExecutor)
	service := newWithdrawalService(repo, executor)

	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	request, err := service.RequestWithdrawal(context.Background(), &entities.RequestWithdrawalInput{
		UserID:    "user-1",
		Username:  "alice",
		ToAddress: "dest-addr",
		Amount:    5_000_000_000,
		Currency:  entities.CurrencySOL,
	})

	assert.NoError(t, err)
	assert.Equal(t, entities.WithdrawalStatusPending, request.Status)
	executor.AssertNotCalled(t, "ExecuteTransfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestRequestWithdrawal_AcceptsDecimalAmount(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	executor := new(MockTransferExecutor)
	service := newWithdrawalService(repo, executor)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(r *entities.WithdrawalRequest) bool {
		return r.Amount == 50_000_000
	})).Return(nil)
	executor.On("ExecuteTransfer", mock.Anything, "dest-addr", int64(50_000_000), entities.CurrencySOL).
		Return("sig-dec", nil)
	repo.On("MarkCompleted", mock.Anything, mock.Anything, entities.WithdrawalStatusAutoApproved, "sig-dec").
		Return(true, nil)

	request, err := service.RequestWithdrawal(context.Background(), &entities.RequestWithdrawalInput{
		UserID:        "user-1",
		ToAddress:     "dest-addr",
		AmountDecimal: "0.05",
		Currency:      entities.CurrencySOL,
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(50_000_000), request.Amount)
	assert.Equal(t, entities.WithdrawalStatusCompleted, request.Status)
	repo.AssertExpectations(t)
	executor.AssertExpectations(t)
}

func TestRequestWithdrawal_RejectsInvalidInput(t *testing.T) {
	service := newWithdrawalService(new(MockWithdrawalRepository), new(MockTransferExecutor))

	cases := []struct {
		name  string
		input entities.RequestWithdrawalInput
	}{
		{"zero amount", entities.RequestWithdrawalInput{UserID: "u", ToAddress: "a", Amount: 0, Currency: entities.CurrencySOL}},
		{"negative amount", entities.RequestWithdrawalInput{UserID: "u", ToAddress: "a", Amount: -5, Currency: entities.CurrencySOL}},
		{"unsupported currency", entities.RequestWithdrawalInput{UserID: "u", ToAddress: "a", Amount: 10, Currency: "DOGE"}},
		{"missing address", entities.RequestWithdrawalInput{UserID: "u", Amount: 10, Currency: entities.CurrencySOL}},
		{"malformed decimal amount", entities.RequestWithdrawalInput{UserID: "u", ToAddress: "a", AmountDecimal: "0.5.1", Currency: entities.CurrencySOL}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			request, err := service.RequestWithdrawal(context.Background(), &tc.input)
			assert.Nil(t, request)
			assert.True(t, domainerrors.IsInvalidInput(err))
		})
	}
}

func TestRequestWithdrawal_AutoApproveExecutorFailure(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	executor := new(MockTransferExecutor)
	service := newWithdrawalService(repo, executor)

	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	executor.On("ExecuteTransfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("rpc unavailable"))
	repo.On("MarkFailed", mock.Anything, mock.Anything, entities.WithdrawalStatusAutoApproved, mock.Anything).
		Return(true, nil)

	request, err := service.RequestWithdrawal(context.Background(), &entities.RequestWithdrawalInput{
		UserID:    "user-1",
		ToAddress: "dest-addr",
		Amount:    10_000_000,
		Currency:  entities.CurrencyUSDC,
	})

	assert.True(t, domainerrors.IsExecutorFailure(err))
	assert.NotNil(t, request)
	assert.Equal(t, entities.WithdrawalStatusFailed, request.Status)
	repo.AssertExpectations(t)
}

func TestApproveWithdrawal_RequiresAdmin(t *testing.T) {
	service := newWithdrawalService(new(MockWithdrawalRepository), new(MockTransferExecutor))

	request, err := service.ApproveWithdrawal(context.Background(), uuid.New(), "random-user")

	assert.Nil(t, request)
	assert.True(t, domainerrors.IsUnauthorized(err))
}

func TestApproveWithdrawal_NotFound(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	service := newWithdrawalService(repo, new(MockTransferExecutor))

	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(nil, domainerrors.NotFoundError("withdrawal"))

	request, err := service.ApproveWithdrawal(context.Background(), id, "admin-1")

	assert.Nil(t, request)
	assert.True(t, domainerrors.IsNotFound(err))
}

func TestApproveWithdrawal_AlreadyDecided(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	service := newWithdrawalService(repo, new(MockTransferExecutor))

	decided := pendingRequest(time.Now().Add(time.Hour))
	decided.Status = entities.WithdrawalStatusRejected
	repo.On("GetByID", mock.Anything, decided.ID).Return(decided, nil)

	request, err := service.ApproveWithdrawal(context.Background(), decided.ID, "admin-1")

	assert.Nil(t, request)
	assert.True(t, domainerrors.IsInvalidState(err))
}

func TestApproveWithdrawal_ExpiredLazilyTransitions(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	executor := new(MockTransferExecutor)
	service := newWithdrawalService(repo, executor)

	stale := pendingRequest(time.Now().Add(-time.Minute))
	repo.On("GetByID", mock.Anything, stale.ID).Return(stale, nil)
	repo.On("MarkExpired", mock.Anything, stale.ID).Return(true, nil)

	request, err := service.ApproveWithdrawal(context.Background(), stale.ID, "admin-1")

	assert.Nil(t, request)
	assert.True(t, domainerrors.IsExpired(err))
	repo.AssertExpectations(t)
	executor.AssertNotCalled(t, "ExecuteTransfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApproveWithdrawal_LosesRaceToConcurrentDecision(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	executor := new(MockTransferExecutor)
	service := newWithdrawalService(repo, executor)

	open := pendingRequest(time.Now().Add(time.Hour))
	decided := *open
	decided.Status = entities.WithdrawalStatusRejected

	repo.On("GetByID", mock.Anything, open.ID).Return(open, nil).Once()
	repo.On("MarkApproved", mock.Anything, open.ID, "admin-1").Return(false, nil)
	repo.On("GetByID", mock.Anything, open.ID).Return(&decided, nil).Once()

	request, err := service.ApproveWithdrawal(context.Background(), open.ID, "admin-1")

	assert.Nil(t, request)
	assert.True(t, domainerrors.IsInvalidState(err))
	executor.AssertNotCalled(t, "ExecuteTransfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApproveWithdrawal_DeadlineElapsesBeforeDecisionCommits(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	executor := new(MockTransferExecutor)
	service := newWithdrawalService(repo, executor)

	// Alive at the first read, but the conditional UPDATE refuses the row
	// because the TTL elapsed before it ran.
	open := pendingRequest(time.Now().Add(time.Hour))
	stale := *open
	stale.ExpiresAt = time.Now().Add(-time.Millisecond)

	repo.On("GetByID", mock.Anything, open.ID).Return(open, nil).Once()
	repo.On("MarkApproved", mock.Anything, open.ID, "admin-1").Return(false, nil)
	repo.On("GetByID", mock.Anything, open.ID).Return(&stale, nil).Once()
	repo.On("MarkExpired", mock.Anything, open.ID).Return(true, nil)

	request, err := service.ApproveWithdrawal(context.Background(), open.ID, "admin-1")

	assert.Nil(t, request)
	assert.True(t, domainerrors.IsExpired(err))
	repo.AssertExpectations(t)
	executor.AssertNotCalled(t, "ExecuteTransfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApproveWithdrawal_ExecutesAfterWinningTransition(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	executor := new(MockTransferExecutor)
	service := newWithdrawalService(repo, executor)

	open := pendingRequest(time.Now().Add(time.Hour))
	repo.On("GetByID", mock.Anything, open.ID).Return(open, nil)
	repo.On("MarkApproved", mock.Anything, open.ID, "admin-1").Return(true, nil)
	executor.On("ExecuteTransfer", mock.Anything, open.ToAddress, open.Amount, open.Currency).
		Return("sig-approved", nil)
	repo.On("MarkCompleted", mock.Anything, open.ID, entities.WithdrawalStatusApproved, "sig-approved").
		Return(true, nil)

	request, err := service.ApproveWithdrawal(context.Background(), open.ID, "admin-1")

	assert.NoError(t, err)
	assert.Equal(t, entities.WithdrawalStatusCompleted, request.Status)
	assert.Equal(t, "admin-1", *request.DecidedBy)
	repo.AssertExpectations(t)
}

func TestApproveWithdrawal_ExecutorFailureIsTerminal(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	executor := new(MockTransferExecutor)
	service := newWithdrawalService(repo, executor)

	open := pendingRequest(time.Now().Add(time.Hour))
	repo.On("GetByID", mock.Anything, open.ID).Return(open, nil)
	repo.On("MarkApproved", mock.Anything, open.ID, "admin-1").Return(true, nil)
	executor.On("ExecuteTransfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("send failed"))
	repo.On("MarkFailed", mock.Anything, open.ID, entities.WithdrawalStatusApproved, "send failed").
		Return(true, nil)

	request, err := service.ApproveWithdrawal(context.Background(), open.ID, "admin-1")

	assert.True(t, domainerrors.IsExecutorFailure(err))
	assert.Equal(t, entities.WithdrawalStatusFailed, request.Status)
	repo.AssertExpectations(t)
}

func TestRejectWithdrawal_RequiresReason(t *testing.T) {
	service := newWithdrawalService(new(MockWithdrawalRepository), new(MockTransferExecutor))

	request, err := service.RejectWithdrawal(context.Background(), uuid.New(), "admin-1", "")

	assert.Nil(t, request)
	assert.True(t, domainerrors.IsInvalidInput(err))
}

func TestRejectWithdrawal_NeverExecutes(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	executor := new(MockTransferExecutor)
	service := newWithdrawalService(repo, executor)

	open := pendingRequest(time.Now().Add(time.Hour))
	repo.On("GetByID", mock.Anything, open.ID).Return(open, nil)
	repo.On("MarkRejected", mock.Anything, open.ID, "admin-1", "suspicious destination").Return(true, nil)

	request, err := service.RejectWithdrawal(context.Background(), open.ID, "admin-1", "suspicious destination")

	assert.NoError(t, err)
	assert.Equal(t, entities.WithdrawalStatusRejected, request.Status)
	assert.Equal(t, "suspicious destination", *request.Reason)
	executor.AssertNotCalled(t, "ExecuteTransfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListPending_SweepsBeforeListing(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	service := newWithdrawalService(repo, new(MockTransferExecutor))

	fresh := pendingRequest(time.Now().Add(time.Hour))
	repo.On("ExpireStale", mock.Anything, mock.Anything).Return([]uuid.UUID{uuid.New(), uuid.New()}, nil)
	repo.On("ListByStatus", mock.Anything, entities.WithdrawalStatusPending).
		Return([]*entities.WithdrawalRequest{fresh}, nil)

	requests, err := service.ListPending(context.Background())

	assert.NoError(t, err)
	assert.Len(t, requests, 1)
	repo.AssertExpectations(t)
}

func TestSweepExpired_ReturnsCount(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	service := newWithdrawalService(repo, new(MockTransferExecutor))

	repo.On("ExpireStale", mock.Anything, mock.Anything).
		Return([]uuid.UUID{uuid.New(), uuid.New(), uuid.New()}, nil)

	count, err := service.SweepExpired(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestSweepExpired_WritesAuditTrail(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	audit := new(MockAuditLogger)
	service := newAuditedWithdrawalService(repo, new(MockTransferExecutor), audit)

	swept := []uuid.UUID{uuid.New(), uuid.New()}
	repo.On("ExpireStale", mock.Anything, mock.Anything).Return(swept, nil)
	audit.On("Log", mock.Anything, mock.MatchedBy(func(e *entities.AuditEntry) bool {
		return e.Action == entities.AuditWithdrawalExpired && e.ActorID == entities.DecidedBySystem
	})).Return(nil).Twice()

	count, err := service.SweepExpired(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)
	audit.AssertExpectations(t)
}

func TestGetUserWithdrawals_DefaultsLimit(t *testing.T) {
	repo := new(MockWithdrawalRepository)
	service := newWithdrawalService(repo, new(MockTransferExecutor))

	repo.On("GetByUserID", mock.Anything, "user-1", 10).
		Return([]*entities.WithdrawalRequest{}, nil)

	_, err := service.GetUserWithdrawals(context.Background(), "user-1", 0)

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}
