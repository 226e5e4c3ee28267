package handler_test

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/handler"
)

func TestGetMe(t *testing.T) {
	router := handler.NewRouter(newFixture().deps())

	rec := serve(router, http.MethodGet, "/api/me", "token-u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	ok, data, _ := decodeEnvelope(t, rec)
	var p domain.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatal(err)
	}
	if !ok || p.UserID != "u1" || p.Role != domain.RoleCliente {
		t.Errorf("unexpected profile %+v", p)
	}
}

func TestGetMe_MissingProfile(t *testing.T) {
	router := handler.NewRouter(newFixture().deps())

	rec := serve(router, http.MethodGet, "/api/me", "token-ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if _, _, msg := decodeEnvelope(t, rec); msg != "Perfil não encontrado: ghost" {
		t.Errorf("unexpected error %q", msg)
	}
}

func TestSetDefaultTable(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"allowed", `{"defaultTable":"Farol"}`, http.StatusOK, ""},
		{"not allowed", `{"defaultTable":"Vendas"}`, http.StatusForbidden, "Tabela não permitida para este usuário"},
		{"missing", `{}`, http.StatusBadRequest, "defaultTable ausente ou inválido"},
		{"malformed", `{"defaultTable":`, http.StatusBadRequest, "defaultTable ausente ou inválido"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			router := handler.NewRouter(f.deps())

			rec := serve(router, http.MethodPatch, "/api/me", "token-u1", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if _, _, msg := decodeEnvelope(t, rec); msg != tt.msg {
				t.Errorf("expected error %q, got %q", tt.msg, msg)
			}
			_, patched := f.profiles.updates["u1"]
			if patched != (tt.status == http.StatusOK) {
				t.Errorf("unexpected patch state %v", f.profiles.updates)
			}
		})
	}
}

func TestGrantTables_NonSuperadmin(t *testing.T) {
	router := handler.NewRouter(newFixture().deps())

	rec := serve(router, http.MethodPatch, "/api/me/allowed-tables", "token-u1", `{"add":["Vendas"]}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if _, _, msg := decodeEnvelope(t, rec); msg != "Acesso negado: requer superadmin" {
		t.Errorf("unexpected error %q", msg)
	}
}

func TestGrantTables_Superadmin(t *testing.T) {
	f := newFixture()
	router := handler.NewRouter(f.deps())

	rec := serve(router, http.MethodPatch, "/api/me/allowed-tables", "token-"+adminID, `{"add":["Vendas","Secreta"],"defaultTable":"Vendas"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	_, data, _ := decodeEnvelope(t, rec)
	var resp domain.GrantTablesResponse
	json.Unmarshal(data, &resp)
	if len(resp.AllowedTables) != 2 || resp.DefaultTable == nil || *resp.DefaultTable != "Vendas" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestListTablesAndClientes(t *testing.T) {
	router := handler.NewRouter(newFixture().deps())

	rec := serve(router, http.MethodGet, "/api/tables", "token-u1", "")
	_, data, _ := decodeEnvelope(t, rec)
	var tables []domain.TableOption
	json.Unmarshal(data, &tables)
	if rec.Code != http.StatusOK || len(tables) != 2 {
		t.Fatalf("unexpected tables %d %s", rec.Code, data)
	}

	rec = serve(router, http.MethodGet, "/api/tables/Farol/clientes", "token-u1", "")
	_, data, _ = decodeEnvelope(t, rec)
	var names []string
	json.Unmarshal(data, &names)
	if len(names) != 1 || names[0] != "acme-Farol" {
		t.Errorf("unexpected clientes %v", names)
	}
}

func TestTables_ForwardCallerToken(t *testing.T) {
	f := newFixture()
	router := handler.NewRouter(f.deps())

	// u1 is a cliente; the catalog must see its own token, never the service role.
	serve(router, http.MethodGet, "/api/tables", "token-u1", "")
	serve(router, http.MethodGet, "/api/tables/OutroCliente/clientes", "token-u1", "")

	if len(f.catalog.tokens) != 2 {
		t.Fatalf("expected 2 catalog calls, got %v", f.catalog.tokens)
	}
	for _, tok := range f.catalog.tokens {
		if tok != "token-u1" {
			t.Errorf("expected caller token, got %q", tok)
		}
	}
}

func TestListClientes_QueryFilters(t *testing.T) {
	f := newFixture()
	f.clientes.rows = []domain.ClienteRow{{ID: "1", Nome: strPtr("Ana")}, {ID: "2"}, {ID: "3"}}
	router := handler.NewRouter(f.deps())

	rec := serve(router, http.MethodGet, "/api/clientes?q=ana&status=Pago&uf=SP&data_ate=2024-01-31&page=1&page_size=2", "token-u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	_, data, _ := decodeEnvelope(t, rec)
	var page domain.ClientePage
	json.Unmarshal(data, &page)
	if page.Total != 3 || page.TotalPages != 2 || len(page.Rows) != 2 {
		t.Errorf("unexpected page %+v", page)
	}
	got := f.clientes.filter
	if got.Q != "ana" || got.Status != "Pago" || got.UF != "SP" || got.DataAte != "2024-01-31T23:59:59.999999" {
		t.Errorf("unexpected filter %+v", got)
	}
	if f.clientes.token != "token-u1" {
		t.Errorf("expected the caller token to reach the store, got %q", f.clientes.token)
	}
}

func TestListClientes_BadDate(t *testing.T) {
	router := handler.NewRouter(newFixture().deps())

	rec := serve(router, http.MethodGet, "/api/clientes?data_de=31/01/2024", "token-u1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestExportClientes(t *testing.T) {
	f := newFixture()
	f.clientes.rows = []domain.ClienteRow{{ID: "1", Nome: strPtr("Ana")}, {ID: "2", Nome: strPtr("Bia")}}
	router := handler.NewRouter(f.deps())

	rec := serve(router, http.MethodGet, "/api/clientes/export.csv?status=Pago", "token-u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Errorf("unexpected content type %q", ct)
	}
	if rec.Header().Get("Content-Disposition") == "" {
		t.Error("expected an attachment disposition")
	}
	records, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 || records[2][1] != "Bia" {
		t.Errorf("unexpected CSV %v", records)
	}
}

func TestExportClientes_BackendErrorIsJSON(t *testing.T) {
	f := newFixture()
	f.clientes.err = &domain.ErrBackend{Status: 400, Message: "column farol_view.x does not exist"}
	router := handler.NewRouter(f.deps())

	rec := serve(router, http.MethodGet, "/api/clientes/export.csv", "token-u1", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if _, _, msg := decodeEnvelope(t, rec); msg != "column farol_view.x does not exist" {
		t.Errorf("expected verbatim backend message, got %q", msg)
	}
}

func TestDashboardSummary(t *testing.T) {
	f := newFixture()
	router := handler.NewRouter(f.deps())

	rec := serve(router, http.MethodGet, "/api/dashboard/summary?from=2024-01-01&to=2024-03-31&statuses=Pago,Aberto", "token-u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	_, data, _ := decodeEnvelope(t, rec)
	var summary domain.DashboardSummary
	json.Unmarshal(data, &summary)
	if summary.PaidTotal != 10 || len(summary.StatusSums) != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if got := f.dashboard.filter; got.From != "2024-01-01" || len(got.Statuses) != 2 {
		t.Errorf("unexpected filter %+v", got)
	}
}

func TestDashboardStatuses(t *testing.T) {
	router := handler.NewRouter(newFixture().deps())

	rec := serve(router, http.MethodGet, "/api/dashboard/statuses", "token-u1", "")
	_, data, _ := decodeEnvelope(t, rec)
	var statuses []string
	json.Unmarshal(data, &statuses)
	if len(statuses) != 2 || statuses[0] != "Aberto" {
		t.Errorf("unexpected statuses %v", statuses)
	}
}

func TestCreateUser(t *testing.T) {
	f := newFixture()
	router := handler.NewRouter(f.deps())

	rec := serve(router, http.MethodPost, "/api/admin/create-user", "token-"+adminID,
		`{"email":"novo@empresa.com","role":"gestor","orgs":["acme"],"allowedTables":["Vendas"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.identity.emails) != 1 || len(f.profiles.upserts) != 1 {
		t.Fatalf("expected one invitation and one upsert, got %d/%d", len(f.identity.emails), len(f.profiles.upserts))
	}
	if f.profiles.upserts[0].DefaultTable != "Vendas" {
		t.Errorf("unexpected upsert %+v", f.profiles.upserts[0])
	}
}

func TestCreateUser_Errors(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		body   string
		status int
		msg    string
	}{
		{"invalid json", "token-" + adminID, `{"email":`, http.StatusBadRequest, "JSON inválido"},
		{"missing fields", "token-" + adminID, `{"email":"a@b.com"}`, http.StatusBadRequest, "Campos obrigatórios: email, role"},
		{"not superadmin", "token-u1", `{"email":"a@b.com","role":"cliente"}`, http.StatusForbidden, "Acesso negado: requer superadmin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			router := handler.NewRouter(f.deps())

			rec := serve(router, http.MethodPost, "/api/admin/create-user", tt.token, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if _, _, msg := decodeEnvelope(t, rec); msg != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, msg)
			}
			if len(f.identity.emails) != 0 {
				t.Error("no invitation may be sent")
			}
		})
	}
}

func TestSetUserActive(t *testing.T) {
	f := newFixture()
	router := handler.NewRouter(f.deps())
	target := "11111111-2222-3333-4444-555555555555"

	rec := serve(router, http.MethodPatch, "/api/admin/users/not-a-uuid/active", "token-"+adminID, `{"is_active":false}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad id, got %d", rec.Code)
	}

	rec = serve(router, http.MethodPatch, "/api/admin/users/"+target+"/active", "token-"+adminID, `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without is_active, got %d", rec.Code)
	}

	rec = serve(router, http.MethodPatch, "/api/admin/users/"+target+"/active", "token-"+adminID, `{"is_active":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if v, ok := f.profiles.updates[target]["is_active"]; !ok || v != false {
		t.Errorf("unexpected patch %v", f.profiles.updates[target])
	}
}

func TestStats(t *testing.T) {
	router := handler.NewRouter(newFixture().deps())

	if rec := serve(router, http.MethodGet, "/api/admin/stats", "token-u1", ""); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a cliente, got %d", rec.Code)
	}

	rec := serve(router, http.MethodGet, "/api/admin/stats", "token-"+adminID, "")
	_, data, _ := decodeEnvelope(t, rec)
	var stats domain.OpsStats
	json.Unmarshal(data, &stats)
	if rec.Code != http.StatusOK || stats.CircuitBreaker != "closed" {
		t.Errorf("unexpected stats %d %+v", rec.Code, stats)
	}
}
