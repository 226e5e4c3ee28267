package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
)

// ============================================================
// DashboardStore implementation (aggregate RPCs, as the caller)
// ============================================================

// dashboardArgs builds the shared RPC arguments. Empty values are SQL NULL.
func dashboardArgs(f domain.DashboardFilter) map[string]any {
	args := map[string]any{"_from": nil, "_to": nil, "_statuses": nil}
	if f.From != "" {
		args["_from"] = f.From
	}
	if f.To != "" {
		args["_to"] = f.To
	}
	if len(f.Statuses) > 0 {
		args["_statuses"] = f.Statuses
	}
	return args
}

// StatusSums runs rpc_status_sum. Null statuses are returned as NoStatusLabel.
func (c *Client) StatusSums(ctx context.Context, accessToken string, f domain.DashboardFilter) ([]domain.StatusSum, error) {
	ctx, span := tracer.Start(ctx, "Supabase.StatusSums")
	defer span.End()

	res, err := c.read(ctx, "rpc_status_sum", rpc("rpc_status_sum", dashboardArgs(f), accessToken))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var rows []struct {
		Status   *string   `json:"status"`
		SaldoSum flexFloat `json:"saldo_sum"`
	}
	if err := json.Unmarshal(res.body, &rows); err != nil {
		return nil, fmt.Errorf("decode rpc_status_sum: %w", err)
	}

	out := make([]domain.StatusSum, 0, len(rows))
	for _, r := range rows {
		status := domain.NoStatusLabel
		if r.Status != nil && *r.Status != "" {
			status = *r.Status
		}
		out = append(out, domain.StatusSum{Status: status, SaldoSum: float64(r.SaldoSum)})
	}
	return out, nil
}

// MonthlyGrowth runs rpc_monthly_growth.
func (c *Client) MonthlyGrowth(ctx context.Context, accessToken string, f domain.DashboardFilter) ([]domain.MonthlyGrowth, error) {
	ctx, span := tracer.Start(ctx, "Supabase.MonthlyGrowth")
	defer span.End()

	res, err := c.read(ctx, "rpc_monthly_growth", rpc("rpc_monthly_growth", dashboardArgs(f), accessToken))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var rows []struct {
		Mes        flexString `json:"mes"`
		TotalSaldo flexFloat  `json:"total_saldo"`
		TotalPago  flexFloat  `json:"total_pago"`
	}
	if err := json.Unmarshal(res.body, &rows); err != nil {
		return nil, fmt.Errorf("decode rpc_monthly_growth: %w", err)
	}

	out := make([]domain.MonthlyGrowth, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.MonthlyGrowth{
			Mes:        string(r.Mes),
			TotalSaldo: float64(r.TotalSaldo),
			TotalPago:  float64(r.TotalPago),
		})
	}
	return out, nil
}

// PaidTotal reads the single-row farol_paid_sum view. No row means zero.
func (c *Client) PaidTotal(ctx context.Context, accessToken string) (float64, error) {
	ctx, span := tracer.Start(ctx, "Supabase.PaidTotal")
	defer span.End()

	q := url.Values{}
	q.Set("select", "total")
	q.Set("limit", "1")

	res, err := c.read(ctx, "farol_paid_sum", call{
		method: http.MethodGet,
		path:   "/rest/v1/farol_paid_sum",
		query:  q,
		bearer: accessToken,
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	var rows []struct {
		Total flexFloat `json:"total"`
	}
	if err := json.Unmarshal(res.body, &rows); err != nil {
		return 0, fmt.Errorf("decode farol_paid_sum: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return float64(rows[0].Total), nil
}
