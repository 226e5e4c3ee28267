package handler

import (
	"net/http"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/observability"
	"github.com/boddenberg/crm-farol-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ============================================================
// Admin Handlers (superadmin only; checked by the service)
// ============================================================

func createUserHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/admin/create-user")
		defer span.End()

		var req domain.CreateUserRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "JSON inválido")
			return
		}

		resp, err := svc.CreateUser(ctx, UserFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeOK(w, resp)
	}
}

func listUsersHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/admin/users")
		defer span.End()

		users, err := svc.ListUsers(ctx, UserFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeOK(w, users)
	}
}

// targetUserID validates the {userId} path parameter.
func targetUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "userId")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "userId inválido")
		return "", false
	}
	return id, true
}

func setUserActiveHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /api/admin/users/{userId}/active")
		defer span.End()

		userID, ok := targetUserID(w, r)
		if !ok {
			return
		}
		var req domain.SetActiveRequest
		if err := decodeBody(r, &req); err != nil || req.IsActive == nil {
			writeError(w, http.StatusBadRequest, "Informe is_active: boolean")
			return
		}

		if err := svc.SetUserActive(ctx, UserFromContext(ctx), userID, *req.IsActive); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeOK(w, map[string]any{"user_id": userID, "is_active": *req.IsActive})
	}
}

func grantUserTablesHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /api/admin/users/{userId}/allowed-tables")
		defer span.End()

		userID, ok := targetUserID(w, r)
		if !ok {
			return
		}
		var req domain.GrantTablesRequest
		if err := decodeBody(r, &req); err != nil {
			req = domain.GrantTablesRequest{}
		}

		resp, err := svc.GrantTablesTo(ctx, UserFromContext(ctx), userID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeOK(w, resp)
	}
}

func statsHandler(svc *service.AdminService, backend Backend, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/admin/stats")
		defer span.End()

		if _, err := svc.RequireSuperadmin(ctx, UserFromContext(ctx)); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		state := "unknown"
		if backend != nil {
			state = backend.BreakerState()
		}
		writeOK(w, metrics.Snapshot(state))
	}
}
