package service_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"testing"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/observability"
	"github.com/boddenberg/crm-farol-bfa/internal/service"

	"go.uber.org/zap"
)

func makeRows(n int) []domain.ClienteRow {
	rows := make([]domain.ClienteRow, n)
	for i := range rows {
		rows[i] = domain.ClienteRow{ID: fmt.Sprintf("%d", i+1), Nome: strPtr(fmt.Sprintf("Cliente %d", i+1))}
	}
	return rows
}

func TestNormalizeClienteFilter(t *testing.T) {
	tests := []struct {
		name     string
		in       domain.ClienteFilter
		page     int
		pageSize int
		dataAte  string
		wantErr  bool
	}{
		{"defaults", domain.ClienteFilter{}, 1, 50, "", false},
		{"cap", domain.ClienteFilter{Page: 3, PageSize: 1000}, 3, 200, "", false},
		{"inclusive end", domain.ClienteFilter{DataDe: "2024-01-01", DataAte: "2024-01-31"}, 1, 50, "2024-01-31T23:59:59.999999", false},
		{"bad date", domain.ClienteFilter{DataDe: "01/02/2024"}, 0, 0, "", true},
		{"inverted range", domain.ClienteFilter{DataDe: "2024-02-01", DataAte: "2024-01-01"}, 0, 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := service.NormalizeClienteFilter(tt.in)
			if tt.wantErr {
				var ve *domain.ErrValidation
				if !errors.As(err, &ve) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Page != tt.page || f.PageSize != tt.pageSize || f.DataAte != tt.dataAte {
				t.Errorf("got page=%d size=%d ate=%q", f.Page, f.PageSize, f.DataAte)
			}
		})
	}
}

func TestClienteList_ForwardsTokenAndPages(t *testing.T) {
	store := &mockClientes{rows: makeRows(120)}
	svc := service.NewClienteService(store, 0, observability.NewMetrics(), zap.NewNop())

	page, err := svc.List(context.Background(), caller("u1"), domain.ClienteFilter{Page: 3})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if page.Total != 120 || page.TotalPages != 3 || len(page.Rows) != 20 {
		t.Errorf("unexpected page: total=%d pages=%d rows=%d", page.Total, page.TotalPages, len(page.Rows))
	}
	if store.tokens[0] != "token-u1" {
		t.Errorf("expected caller token to be forwarded, got %q", store.tokens[0])
	}
}

func TestClienteList_EmptyResultHasOnePage(t *testing.T) {
	svc := service.NewClienteService(&mockClientes{}, 0, observability.NewMetrics(), zap.NewNop())

	page, err := svc.List(context.Background(), caller("u1"), domain.ClienteFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalPages != 1 || page.Total != 0 || len(page.Rows) != 0 {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestClienteExport_AllPages(t *testing.T) {
	store := &mockClientes{rows: makeRows(450)}
	svc := service.NewClienteService(store, 0, observability.NewMetrics(), zap.NewNop())

	var buf bytes.Buffer
	n, err := svc.Export(context.Background(), caller("u1"), domain.ClienteFilter{Page: 7, PageSize: 10}, &buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 450 {
		t.Errorf("expected 450 rows, got %d", n)
	}
	if len(store.filters) != 3 {
		t.Errorf("expected 3 pages of 200, got %d calls", len(store.filters))
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 451 {
		t.Fatalf("expected header + 450 records, got %d", len(records))
	}
	if records[0][0] != "id" || records[0][1] != "nome" {
		t.Errorf("unexpected header %v", records[0])
	}
	if records[1][1] != "Cliente 1" {
		t.Errorf("unexpected first record %v", records[1])
	}
}

func TestClienteExport_Cap(t *testing.T) {
	store := &mockClientes{rows: makeRows(450)}
	svc := service.NewClienteService(store, 250, observability.NewMetrics(), zap.NewNop())

	var buf bytes.Buffer
	n, err := svc.Export(context.Background(), caller("u1"), domain.ClienteFilter{}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 250 {
		t.Errorf("expected export capped at 250, got %d", n)
	}
}

func TestClienteExport_EmptyWritesHeader(t *testing.T) {
	svc := service.NewClienteService(&mockClientes{}, 0, observability.NewMetrics(), zap.NewNop())

	var buf bytes.Buffer
	n, err := svc.Export(context.Background(), caller("u1"), domain.ClienteFilter{}, &buf)
	if err != nil || n != 0 {
		t.Fatalf("expected empty export, got %d (%v)", n, err)
	}
	records, _ := csv.NewReader(&buf).ReadAll()
	if len(records) != 1 || records[0][0] != "id" {
		t.Errorf("expected a header-only CSV, got %v", records)
	}
}

func TestClienteExport_FirstPageErrorWritesNothing(t *testing.T) {
	store := &mockClientes{err: &domain.ErrBackend{Status: 400, Message: "bad filter"}}
	svc := service.NewClienteService(store, 0, observability.NewMetrics(), zap.NewNop())

	var buf bytes.Buffer
	_, err := svc.Export(context.Background(), caller("u1"), domain.ClienteFilter{}, &buf)
	if err == nil {
		t.Fatal("expected error")
	}
	if buf.Len() != 0 {
		t.Errorf("expected nothing written, got %q", buf.String())
	}
}
