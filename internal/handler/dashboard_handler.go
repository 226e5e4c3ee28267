package handler

import (
	"net/http"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Dashboard Handlers
// ============================================================

func dashboardSummaryHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/dashboard/summary")
		defer span.End()

		filter := domain.DashboardFilter{
			From:     r.URL.Query().Get("from"),
			To:       r.URL.Query().Get("to"),
			Statuses: queryList(r, "statuses"),
		}
		summary, err := svc.Summary(ctx, UserFromContext(ctx), filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeOK(w, summary)
	}
}

func dashboardStatusesHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/dashboard/statuses")
		defer span.End()

		statuses, err := svc.Statuses(ctx, UserFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeOK(w, statuses)
	}
}
