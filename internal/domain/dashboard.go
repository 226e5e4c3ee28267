package domain

// ============================================================
// Dashboard: aggregates computed by backend RPCs
// ============================================================

// NoStatusLabel replaces a null status in the per-status aggregate.
const NoStatusLabel = "Sem status"

// DashboardFilter parameterizes rpc_status_sum and rpc_monthly_growth.
// Empty From/To and a nil Statuses slice are sent as SQL NULL.
type DashboardFilter struct {
	From     string   `json:"from,omitempty"`
	To       string   `json:"to,omitempty"`
	Statuses []string `json:"statuses,omitempty"`
}

// StatusSum is the balance total of one status.
type StatusSum struct {
	Status   string  `json:"status"`
	SaldoSum float64 `json:"saldo_sum"`
}

// MonthlyGrowth is the month-over-month balance and paid totals.
type MonthlyGrowth struct {
	Mes        string  `json:"mes"`
	TotalSaldo float64 `json:"total_saldo"`
	TotalPago  float64 `json:"total_pago"`
}

// DashboardSummary is returned by GET /api/dashboard/summary.
type DashboardSummary struct {
	Filter     DashboardFilter `json:"filter"`
	StatusSums []StatusSum     `json:"status_sums"`
	Monthly    []MonthlyGrowth `json:"monthly"`
	PaidTotal  float64         `json:"paid_total"`
}
