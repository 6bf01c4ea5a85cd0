package response_models

import "clubhouse/internal/repositories"

type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type PaymentStatsResponse struct {
	ByStatus       []repositories.StatusCount       `json:"by_status"`
	FailureReasons []repositories.FailureReasonStat `json:"failure_reasons"`
	TotalAccounts  int64                            `json:"total_accounts"`
	WithFailures   int64                            `json:"with_failures"`
}
