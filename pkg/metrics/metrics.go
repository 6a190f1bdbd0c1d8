// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WithdrawalRequests counts withdrawal requests by the status they were
	// created in (PENDING or AUTO_APPROVED outcome).
	WithdrawalRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treasury_withdrawal_requests_total",
		Help: "Withdrawal requests received, labeled by initial decision",
	}, []string{"currency", "decision"})

	// WithdrawalExecutions counts executor invocations for single-owner payouts.
	WithdrawalExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treasury_withdrawal_executions_total",
		Help: "Executor calls for withdrawals, labeled by result",
	}, []string{"currency", "result"})

	// ProposalExecutions counts executor invocations for multi-sig payouts.
	ProposalExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treasury_proposal_executions_total",
		Help: "Executor calls for multi-sig proposals, labeled by result",
	}, []string{"result"})

	// ExpiredRecords counts records swept to EXPIRED.
	ExpiredRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treasury_expired_records_total",
		Help: "Pending withdrawals and open proposals expired by the sweeper",
	}, []string{"kind"})

	// HTTPRequests counts API requests by route and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treasury_http_requests_total",
		Help: "HTTP requests, labeled by method, path and status",
	}, []string{"method", "path", "status"})
)
