package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Clientes Handlers
// ============================================================

func clienteFilterFromQuery(r *http.Request) domain.ClienteFilter {
	q := r.URL.Query()
	pageSize := queryInt(r, "page_size")
	if pageSize == 0 {
		pageSize = queryInt(r, "pageSize")
	}
	return domain.ClienteFilter{
		Q:         strings.TrimSpace(q.Get("q")),
		Status:    q.Get("status"),
		UF:        q.Get("uf"),
		Cidade:    q.Get("cidade"),
		Instancia: q.Get("instancia"),
		Banco:     q.Get("banco"),
		DataDe:    q.Get("data_de"),
		DataAte:   q.Get("data_ate"),
		Page:      queryInt(r, "page"),
		PageSize:  pageSize,
	}
}

func listClientesHandler(svc *service.ClienteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/clientes")
		defer span.End()

		page, err := svc.List(ctx, UserFromContext(ctx), clienteFilterFromQuery(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeOK(w, page)
	}
}

// csvResponse defers the CSV headers until the first byte is written, so a
// failure before any row still gets a JSON error response.
type csvResponse struct {
	w        http.ResponseWriter
	filename string
	started  bool
}

func (c *csvResponse) Write(p []byte) (int, error) {
	if !c.started {
		c.started = true
		c.w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		c.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", c.filename))
		c.w.WriteHeader(http.StatusOK)
	}
	return c.w.Write(p)
}

func exportClientesHandler(svc *service.ClienteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/clientes/export.csv")
		defer span.End()

		out := &csvResponse{
			w:        w,
			filename: "clientes-" + time.Now().Format("20060102-150405") + ".csv",
		}
		n, err := svc.Export(ctx, UserFromContext(ctx), clienteFilterFromQuery(r), out)
		span.SetAttributes(attribute.Int("rows", n))
		if err != nil {
			if !out.started {
				handleServiceError(w, err, logger)
				return
			}
			// Headers are gone; the truncated body is all the client gets.
			logger.Error("export interrupted", zap.Int("rows", n), zap.Error(err))
		}
	}
}
