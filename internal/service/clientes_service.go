package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/observability"
	"github.com/boddenberg/crm-farol-bfa/internal/port"

	"github.com/jszwec/csvutil"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// ClienteService lists farol_view rows as the caller.
type ClienteService struct {
	store         port.ClienteStore
	exportMaxRows int
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewClienteService creates the clientes service. exportMaxRows caps the CSV
// export; a non-positive value means 20000.
func NewClienteService(store port.ClienteStore, exportMaxRows int, metrics *observability.Metrics, logger *zap.Logger) *ClienteService {
	if exportMaxRows <= 0 {
		exportMaxRows = 20000
	}
	return &ClienteService{store: store, exportMaxRows: exportMaxRows, metrics: metrics, logger: logger}
}

// NormalizeClienteFilter applies the paging defaults and validates dates.
// A date-only data_ate covers the whole day.
func NormalizeClienteFilter(f domain.ClienteFilter) (domain.ClienteFilter, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.PageSize <= 0:
		f.PageSize = domain.DefaultClientePageSize
	case f.PageSize > domain.MaxClientePageSize:
		f.PageSize = domain.MaxClientePageSize
	}

	f.DataDe = strings.TrimSpace(f.DataDe)
	f.DataAte = strings.TrimSpace(f.DataAte)
	if f.DataDe != "" {
		if _, err := time.Parse(dateLayout, f.DataDe); err != nil {
			return f, &domain.ErrValidation{Field: "data_de", Message: "data_de inválida: use AAAA-MM-DD"}
		}
	}
	if f.DataAte != "" {
		if _, err := time.Parse(dateLayout, f.DataAte); err != nil {
			return f, &domain.ErrValidation{Field: "data_ate", Message: "data_ate inválida: use AAAA-MM-DD"}
		}
		if f.DataDe != "" && f.DataAte < f.DataDe {
			return f, &domain.ErrValidation{Field: "data_ate", Message: "data_ate anterior a data_de"}
		}
		f.DataAte += "T23:59:59.999999"
	}
	return f, nil
}

// List returns one page of clientes and the exact filtered count.
func (s *ClienteService) List(ctx context.Context, user *domain.AuthUser, filter domain.ClienteFilter) (*domain.ClientePage, error) {
	ctx, span := tracer.Start(ctx, "ClienteService.List")
	defer span.End()

	f, err := NormalizeClienteFilter(filter)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("page", f.Page), attribute.Int("page_size", f.PageSize))

	start := time.Now()
	rows, total, err := s.store.ListClientes(ctx, user.AccessToken, f)
	s.metrics.RecordDuration("clientes.list", time.Since(start))
	if err != nil {
		s.metrics.IncrBackendError("clientes.list")
		return nil, err
	}

	return &domain.ClientePage{
		Rows:       rows,
		Total:      total,
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalPages: domain.TotalPagesFor(total, f.PageSize),
	}, nil
}

// Export writes every row matching filter to w as CSV, fetching page by page
// up to the configured cap. Nothing is written when the first page fails.
// Returns the number of rows written.
func (s *ClienteService) Export(ctx context.Context, user *domain.AuthUser, filter domain.ClienteFilter, w io.Writer) (int, error) {
	ctx, span := tracer.Start(ctx, "ClienteService.Export")
	defer span.End()

	f, err := NormalizeClienteFilter(filter)
	if err != nil {
		return 0, err
	}
	f.Page = 1
	f.PageSize = domain.MaxClientePageSize

	start := time.Now()
	defer func() {
		s.metrics.RecordDuration("clientes.export", time.Since(start))
	}()

	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	written := 0
	for written < s.exportMaxRows {
		rows, total, err := s.store.ListClientes(ctx, user.AccessToken, f)
		if err != nil {
			s.metrics.IncrBackendError("clientes.export")
			if written > 0 {
				cw.Flush()
				s.logger.Error("clientes export interrupted",
					zap.String("user_id", user.ID),
					zap.Int("rows_written", written),
					zap.Error(err),
				)
			}
			return written, err
		}

		if room := s.exportMaxRows - written; len(rows) > room {
			rows = rows[:room]
		}
		if len(rows) == 0 {
			if written == 0 {
				if err := enc.EncodeHeader(domain.ClienteRow{}); err != nil {
					return 0, fmt.Errorf("encode csv header: %w", err)
				}
			}
			break
		}
		if err := enc.Encode(rows); err != nil {
			return written, fmt.Errorf("encode csv: %w", err)
		}
		written += len(rows)

		if len(rows) < f.PageSize || (total >= 0 && written >= total) {
			break
		}
		f.Page++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return written, fmt.Errorf("flush csv: %w", err)
	}

	span.SetAttributes(attribute.Int("rows", written))
	s.logger.Info("clientes exported", zap.String("user_id", user.ID), zap.Int("rows", written))
	return written, nil
}
