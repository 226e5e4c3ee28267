package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// TableCatalog implementation (CRM dataset RPCs)
// ============================================================

// ListCRMTables returns the backend whitelist of CRM datasets.
func (c *Client) ListCRMTables(ctx context.Context, accessToken string) ([]domain.TableOption, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCRMTables")
	defer span.End()

	res, err := c.read(ctx, "rpc_list_crm_tables", rpc("rpc_list_crm_tables", nil, accessToken))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var rows []domain.TableOption
	if err := json.Unmarshal(res.body, &rows); err != nil {
		return nil, fmt.Errorf("decode rpc_list_crm_tables: %w", err)
	}

	out := make([]domain.TableOption, 0, len(rows))
	for _, r := range rows {
		if r.TableName == "" {
			continue
		}
		if r.DisplayName == "" {
			r.DisplayName = r.TableName
		}
		out = append(out, r)
	}
	span.SetAttributes(attribute.Int("tables", len(out)))
	return out, nil
}

// DistinctClientes returns the tenant names present in a dataset.
func (c *Client) DistinctClientes(ctx context.Context, accessToken, table string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.DistinctClientes")
	defer span.End()
	span.SetAttributes(attribute.String("table", table))

	res, err := c.read(ctx, "rpc_distinct_clientes_for",
		rpc("rpc_distinct_clientes_for", map[string]any{"_table": table}, accessToken))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var rows []struct {
		Cliente *string `json:"cliente"`
	}
	if err := json.Unmarshal(res.body, &rows); err != nil {
		return nil, fmt.Errorf("decode rpc_distinct_clientes_for: %w", err)
	}

	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.Cliente != nil && *r.Cliente != "" {
			out = append(out, *r.Cliente)
		}
	}
	return out, nil
}
