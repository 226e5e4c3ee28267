package handler

import (
	"net/http"

	"github.com/boddenberg/crm-farol-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Dataset Handlers
// ============================================================

func listTablesHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/tables")
		defer span.End()

		tables, err := svc.ListTables(ctx, UserFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeOK(w, tables)
	}
}

func distinctClientesHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/tables/{table}/clientes")
		defer span.End()

		names, err := svc.DistinctClientes(ctx, UserFromContext(ctx), chi.URLParam(r, "table"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeOK(w, names)
	}
}
