package handler

import (
	"net/http"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Caller Profile Handlers
// ============================================================

func getMeHandler(svc *service.ProfileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/me")
		defer span.End()

		profile, err := svc.GetMe(ctx, UserFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeOK(w, profile)
	}
}

func setDefaultTableHandler(svc *service.ProfileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /api/me")
		defer span.End()

		// A malformed body is treated like a missing defaultTable.
		var req domain.SetDefaultTableRequest
		if err := decodeBody(r, &req); err != nil {
			req = domain.SetDefaultTableRequest{}
		}

		if err := svc.SetDefaultTable(ctx, UserFromContext(ctx), req.DefaultTable); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeOK(w, map[string]string{"default_table": req.DefaultTable})
	}
}

func grantTablesHandler(svc *service.ProfileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /api/me/allowed-tables")
		defer span.End()

		var req domain.GrantTablesRequest
		if err := decodeBody(r, &req); err != nil {
			req = domain.GrantTablesRequest{}
		}

		resp, err := svc.GrantTables(ctx, UserFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeOK(w, resp)
	}
}
