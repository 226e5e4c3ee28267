package handler_test

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/handler"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/cache"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/observability"
	"github.com/boddenberg/crm-farol-bfa/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

// mockVerifier accepts "token-<id>" and rejects everything else.
type mockVerifier struct{}

func (mockVerifier) VerifyAccessToken(_ context.Context, token string) (*domain.AuthUser, error) {
	if len(token) > 6 && token[:6] == "token-" {
		return &domain.AuthUser{ID: token[6:], AccessToken: token}, nil
	}
	return nil, &domain.ErrUnauthorized{}
}

type mockProfiles struct {
	mu       sync.Mutex
	profiles map[string]*domain.Profile
	updates  map[string]map[string]any
	upserts  []domain.ProfileUpsert
}

func (m *mockProfiles) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "Perfil", ID: userID}
	}
	cp := *p
	return &cp, nil
}

func (m *mockProfiles) ListProfiles(_ context.Context, _ int) ([]domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockProfiles) UpsertProfile(_ context.Context, p *domain.ProfileUpsert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, *p)
	return nil
}

func (m *mockProfiles) UpdateProfile(_ context.Context, userID string, updates map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates[userID] = updates
	return nil
}

type mockCatalog struct {
	mu     sync.Mutex
	tables []domain.TableOption
	tokens []string
}

func (m *mockCatalog) record(token string) {
	m.mu.Lock()
	m.tokens = append(m.tokens, token)
	m.mu.Unlock()
}

func (m *mockCatalog) ListCRMTables(_ context.Context, token string) ([]domain.TableOption, error) {
	m.record(token)
	return m.tables, nil
}

func (m *mockCatalog) DistinctClientes(_ context.Context, token, table string) ([]string, error) {
	m.record(token)
	return []string{"acme-" + table}, nil
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{tables: []domain.TableOption{
		{TableName: "Farol", DisplayName: "Farol"},
		{TableName: "Vendas", DisplayName: "Vendas"},
	}}
}

type mockIdentity struct{ emails []string }

func (m *mockIdentity) InviteUserByEmail(_ context.Context, email string) (string, error) {
	m.emails = append(m.emails, email)
	return "11111111-2222-3333-4444-555555555555", nil
}

type mockClientes struct {
	rows   []domain.ClienteRow
	err    error
	filter domain.ClienteFilter
	token  string
}

func (m *mockClientes) ListClientes(_ context.Context, token string, f domain.ClienteFilter) ([]domain.ClienteRow, int, error) {
	m.filter, m.token = f, token
	if m.err != nil {
		return nil, 0, m.err
	}
	start := f.Offset()
	if start > len(m.rows) {
		start = len(m.rows)
	}
	end := start + f.PageSize
	if end > len(m.rows) {
		end = len(m.rows)
	}
	return m.rows[start:end], len(m.rows), nil
}

func (m *mockClientes) DistinctStatuses(_ context.Context, _ string, _ int) ([]string, error) {
	return []string{"Pago", "Aberto"}, nil
}

type mockDashboard struct {
	mu     sync.Mutex
	filter domain.DashboardFilter
}

func (m *mockDashboard) StatusSums(_ context.Context, _ string, f domain.DashboardFilter) ([]domain.StatusSum, error) {
	m.mu.Lock()
	m.filter = f
	m.mu.Unlock()
	return []domain.StatusSum{{Status: "Pago", SaldoSum: 10}}, nil
}

func (m *mockDashboard) MonthlyGrowth(_ context.Context, _ string, _ domain.DashboardFilter) ([]domain.MonthlyGrowth, error) {
	return nil, nil
}

func (m *mockDashboard) PaidTotal(_ context.Context, _ string) (float64, error) {
	return 10, nil
}

type mockBackend struct{ err error }

func (m mockBackend) Ping(_ context.Context) error { return m.err }
func (m mockBackend) BreakerState() string         { return "closed" }

// --- Helpers ---

const adminID = "aaaaaaaa-0000-0000-0000-000000000001"

type fixture struct {
	profiles  *mockProfiles
	clientes  *mockClientes
	dashboard *mockDashboard
	identity  *mockIdentity
	catalog   *mockCatalog
	metrics   *observability.Metrics
}

func newFixture() *fixture {
	return &fixture{
		profiles: &mockProfiles{
			profiles: map[string]*domain.Profile{
				adminID: {UserID: adminID, Role: domain.RoleSuperadmin, IsActive: true, AllowedTables: []string{"Farol"}},
				"u1":    {UserID: "u1", Role: domain.RoleCliente, IsActive: true, AllowedTables: []string{"Farol"}},
			},
			updates: map[string]map[string]any{},
		},
		clientes:  &mockClientes{},
		dashboard: &mockDashboard{},
		identity:  &mockIdentity{},
		catalog:   newMockCatalog(),
		metrics:   observability.NewMetrics(),
	}
}

func (f *fixture) deps() handler.Deps {
	logger := zap.NewNop()
	catalog := f.catalog
	profileCache := cache.New[*domain.Profile](time.Minute)

	return handler.Deps{
		Profiles:       service.NewProfileService(f.profiles, catalog, profileCache, f.metrics, logger),
		Admin:          service.NewAdminService(f.profiles, catalog, f.identity, profileCache, "", f.metrics, logger),
		Clientes:       service.NewClienteService(f.clientes, 0, f.metrics, logger),
		Dashboard:      service.NewDashboardService(f.dashboard, f.clientes, f.metrics, logger),
		Verifier:       mockVerifier{},
		Backend:        mockBackend{},
		Configured:     true,
		Metrics:        f.metrics,
		Logger:         logger,
		SessionCookie:  "sb-access-token",
		AdminRateLimit: 100,
		AdminRateBurst: 100,
	}
}

func strPtr(s string) *string { return &s }
