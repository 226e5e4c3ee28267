package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

const (
	clienteColumns = "id,nome,telefone,cpf,status,saldo,pago,horario_da_ultima_resposta,instancia,banco_simulado,uf,cidade"
	clienteOrder   = "horario_da_ultima_resposta.desc"
)

// Columns matched by the free-text search.
var clienteSearchColumns = []string{
	"nome", "cpf", "telefone", "status", "cidade", "uf", "instancia", "banco_simulado",
}

// clienteWire is a farol_view row as PostgREST returns it.
type clienteWire struct {
	ID                      flexString  `json:"id"`
	Nome                    *string     `json:"nome"`
	Telefone                *string     `json:"telefone"`
	CPF                     *string     `json:"cpf"`
	Status                  *string     `json:"status"`
	Saldo                   *flexFloat  `json:"saldo"`
	Pago                    *flexString `json:"pago"`
	HorarioDaUltimaResposta *string     `json:"horario_da_ultima_resposta"`
	Instancia               *string     `json:"instancia"`
	BancoSimulado           *string     `json:"banco_simulado"`
	UF                      *string     `json:"uf"`
	Cidade                  *string     `json:"cidade"`
}

func (w clienteWire) toDomain() domain.ClienteRow {
	row := domain.ClienteRow{
		ID:                      string(w.ID),
		Nome:                    w.Nome,
		Telefone:                w.Telefone,
		CPF:                     w.CPF,
		Status:                  w.Status,
		HorarioDaUltimaResposta: w.HorarioDaUltimaResposta,
		Instancia:               w.Instancia,
		BancoSimulado:           w.BancoSimulado,
		UF:                      w.UF,
		Cidade:                  w.Cidade,
	}
	if w.Saldo != nil {
		v := float64(*w.Saldo)
		row.Saldo = &v
	}
	if w.Pago != nil {
		v := string(*w.Pago)
		row.Pago = &v
	}
	return row
}

// ============================================================
// ClienteStore implementation (farol_view, as the caller)
// ============================================================

// ListClientes returns one page of farol_view and the exact filtered count.
func (c *Client) ListClientes(ctx context.Context, accessToken string, f domain.ClienteFilter) ([]domain.ClienteRow, int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListClientes")
	defer span.End()
	span.SetAttributes(
		attribute.Int("page", f.Page),
		attribute.Int("page_size", f.PageSize),
	)

	q := clienteQuery(f)
	q.Set("select", clienteColumns)
	q.Set("order", clienteOrder)
	q.Set("offset", strconv.Itoa(f.Offset()))
	q.Set("limit", strconv.Itoa(f.PageSize))

	res, err := c.read(ctx, "farol_view.list", call{
		method:     http.MethodGet,
		path:       "/rest/v1/farol_view",
		query:      q,
		bearer:     accessToken,
		countExact: true,
	})
	if err != nil {
		span.RecordError(err)
		return nil, 0, err
	}

	var wire []clienteWire
	if err := json.Unmarshal(res.body, &wire); err != nil {
		return nil, 0, fmt.Errorf("decode farol_view: %w", err)
	}

	rows := make([]domain.ClienteRow, 0, len(wire))
	for _, w := range wire {
		rows = append(rows, w.toDomain())
	}

	total := res.total
	if total < 0 {
		total = f.Offset() + len(rows)
	}
	span.SetAttributes(attribute.Int("total", total))
	return rows, total, nil
}

// DistinctStatuses returns the distinct non-null statuses among the first
// limit rows visible to the caller, sorted.
func (c *Client) DistinctStatuses(ctx context.Context, accessToken string, limit int) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.DistinctStatuses")
	defer span.End()

	q := url.Values{}
	q.Set("select", "status")
	q.Set("status", "not.is.null")
	q.Set("limit", strconv.Itoa(limit))

	res, err := c.read(ctx, "farol_view.statuses", call{
		method: http.MethodGet,
		path:   "/rest/v1/farol_view",
		query:  q,
		bearer: accessToken,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var rows []struct {
		Status *string `json:"status"`
	}
	if err := json.Unmarshal(res.body, &rows); err != nil {
		return nil, fmt.Errorf("decode statuses: %w", err)
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0)
	for _, r := range rows {
		if r.Status == nil || *r.Status == "" {
			continue
		}
		if _, ok := seen[*r.Status]; ok {
			continue
		}
		seen[*r.Status] = struct{}{}
		out = append(out, *r.Status)
	}
	sort.Strings(out)
	return out, nil
}

// clienteQuery translates the listing filters into PostgREST parameters.
func clienteQuery(f domain.ClienteFilter) url.Values {
	q := url.Values{}

	if term := strings.TrimSpace(f.Q); term != "" {
		pattern := quoteFilterValue("*" + term + "*")
		conds := make([]string, 0, len(clienteSearchColumns))
		for _, col := range clienteSearchColumns {
			conds = append(conds, col+".ilike."+pattern)
		}
		q.Set("or", "("+strings.Join(conds, ",")+")")
	}
	if v := strings.TrimSpace(f.Status); v != "" {
		q.Set("status", "eq."+v)
	}
	if v := strings.TrimSpace(f.UF); v != "" {
		q.Set("uf", "eq."+v)
	}
	if v := strings.TrimSpace(f.Cidade); v != "" {
		q.Set("cidade", "ilike.*"+v+"*")
	}
	if v := strings.TrimSpace(f.Instancia); v != "" {
		q.Set("instancia", "ilike.*"+v+"*")
	}
	if v := strings.TrimSpace(f.Banco); v != "" {
		q.Set("banco_simulado", "ilike.*"+v+"*")
	}
	if f.DataDe != "" {
		q.Add("horario_da_ultima_resposta", "gte."+f.DataDe)
	}
	if f.DataAte != "" {
		q.Add("horario_da_ultima_resposta", "lte."+f.DataAte)
	}
	return q
}

// quoteFilterValue double-quotes a value used inside a PostgREST logical
// filter so commas and parentheses in user input stay literal.
func quoteFilterValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}
