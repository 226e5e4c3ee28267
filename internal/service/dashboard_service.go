package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/observability"
	"github.com/boddenberg/crm-farol-bfa/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// statusScanLimit bounds the rows scanned for the status filter options.
const statusScanLimit = 2000

// DashboardService computes the dashboard aggregates as the caller.
type DashboardService struct {
	store   port.DashboardStore
	clients port.ClienteStore
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewDashboardService creates the dashboard service.
func NewDashboardService(store port.DashboardStore, clients port.ClienteStore, metrics *observability.Metrics, logger *zap.Logger) *DashboardService {
	return &DashboardService{store: store, clients: clients, metrics: metrics, logger: logger, now: time.Now}
}

// WithClock replaces the time source used for the default range.
func (s *DashboardService) WithClock(now func() time.Time) *DashboardService {
	s.now = now
	return s
}

// DefaultDashboardRange returns the first day of the month five months
// before now and now itself, as YYYY-MM-DD.
func DefaultDashboardRange(now time.Time) (from, to string) {
	first := time.Date(now.Year(), now.Month()-5, 1, 0, 0, 0, 0, now.Location())
	return first.Format(dateLayout), now.Format(dateLayout)
}

// normalize fills the default range when no bound is given and validates
// explicit bounds. Blank statuses are dropped.
func (s *DashboardService) normalize(f domain.DashboardFilter) (domain.DashboardFilter, error) {
	f.From = strings.TrimSpace(f.From)
	f.To = strings.TrimSpace(f.To)
	if f.From == "" && f.To == "" {
		f.From, f.To = DefaultDashboardRange(s.now())
	}
	for _, b := range [...]struct{ field, value string }{{"from", f.From}, {"to", f.To}} {
		if b.value == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, b.value); err != nil {
			return f, &domain.ErrValidation{Field: b.field, Message: fmt.Sprintf("%s inválida: use AAAA-MM-DD", b.field)}
		}
	}
	if f.From != "" && f.To != "" && f.To < f.From {
		return f, &domain.ErrValidation{Field: "to", Message: "to anterior a from"}
	}

	statuses := make([]string, 0, len(f.Statuses))
	for _, st := range f.Statuses {
		if st = strings.TrimSpace(st); st != "" {
			statuses = append(statuses, st)
		}
	}
	f.Statuses = nil
	if len(statuses) > 0 {
		f.Statuses = statuses
	}
	return f, nil
}

// Summary runs the per-status, monthly and paid-total reads concurrently.
// The paid total is informative: its failure is logged and reported as zero.
func (s *DashboardService) Summary(ctx context.Context, user *domain.AuthUser, filter domain.DashboardFilter) (*domain.DashboardSummary, error) {
	ctx, span := tracer.Start(ctx, "DashboardService.Summary")
	defer span.End()

	f, err := s.normalize(filter)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("from", f.From),
		attribute.String("to", f.To),
		attribute.Int("statuses", len(f.Statuses)),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordDuration("dashboard.summary", time.Since(start))
	}()

	summary := &domain.DashboardSummary{Filter: f}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sums, err := s.store.StatusSums(gCtx, user.AccessToken, f)
		if err != nil {
			s.metrics.IncrBackendError("rpc_status_sum")
			return fmt.Errorf("status sums: %w", err)
		}
		for i := range sums {
			if sums[i].Status == "" {
				sums[i].Status = domain.NoStatusLabel
			}
		}
		summary.StatusSums = sums
		return nil
	})

	g.Go(func() error {
		monthly, err := s.store.MonthlyGrowth(gCtx, user.AccessToken, f)
		if err != nil {
			s.metrics.IncrBackendError("rpc_monthly_growth")
			return fmt.Errorf("monthly growth: %w", err)
		}
		summary.Monthly = monthly
		return nil
	})

	g.Go(func() error {
		total, err := s.store.PaidTotal(gCtx, user.AccessToken)
		if err != nil {
			s.metrics.IncrBackendError("farol_paid_sum")
			s.logger.Warn("paid total unavailable", zap.String("user_id", user.ID), zap.Error(err))
			return nil
		}
		summary.PaidTotal = total
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if summary.StatusSums == nil {
		summary.StatusSums = []domain.StatusSum{}
	}
	if summary.Monthly == nil {
		summary.Monthly = []domain.MonthlyGrowth{}
	}
	return summary, nil
}

// Statuses returns the sorted distinct statuses visible to the caller.
func (s *DashboardService) Statuses(ctx context.Context, user *domain.AuthUser) ([]string, error) {
	ctx, span := tracer.Start(ctx, "DashboardService.Statuses")
	defer span.End()

	statuses, err := s.clients.DistinctStatuses(ctx, user.AccessToken, statusScanLimit)
	if err != nil {
		s.metrics.IncrBackendError("farol_view.statuses")
		return nil, err
	}
	sort.Strings(statuses)
	return statuses, nil
}
