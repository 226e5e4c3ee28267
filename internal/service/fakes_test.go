package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/cache"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/observability"
	"github.com/boddenberg/crm-farol-bfa/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockProfiles struct {
	mu       sync.Mutex
	profiles map[string]*domain.Profile
	getErr   error
	updErr   error
	gets     int
	updates  map[string]map[string]any
	upserts  []domain.ProfileUpsert
}

func newMockProfiles(ps ...*domain.Profile) *mockProfiles {
	m := &mockProfiles{profiles: map[string]*domain.Profile{}, updates: map[string]map[string]any{}}
	for _, p := range ps {
		m.profiles[p.UserID] = p
	}
	return m
}

func (m *mockProfiles) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "Perfil", ID: userID}
	}
	cp := *p
	return &cp, nil
}

func (m *mockProfiles) ListProfiles(_ context.Context, limit int) ([]domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, *p)
	}
	if len(out) > limit {
		out = out[:limit]
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
	if m.updErr != nil {
		return m.updErr
	}
	m.updates[userID] = updates
	return nil
}

type mockCatalog struct {
	tables   []domain.TableOption
	err      error
	clientes []string
	tokens   []string
}

func (m *mockCatalog) ListCRMTables(_ context.Context, token string) ([]domain.TableOption, error) {
	m.tokens = append(m.tokens, token)
	return m.tables, m.err
}

func (m *mockCatalog) DistinctClientes(_ context.Context, token, _ string) ([]string, error) {
	m.tokens = append(m.tokens, token)
	return m.clientes, m.err
}

type mockIdentity struct {
	id     string
	err    error
	emails []string
}

func (m *mockIdentity) InviteUserByEmail(_ context.Context, email string) (string, error) {
	m.emails = append(m.emails, email)
	return m.id, m.err
}

// mockClientes serves rows page by page from a fixed slice.
type mockClientes struct {
	rows     []domain.ClienteRow
	err      error
	failPage int
	filters  []domain.ClienteFilter
	tokens   []string
	statuses []string
}

func (m *mockClientes) ListClientes(_ context.Context, token string, f domain.ClienteFilter) ([]domain.ClienteRow, int, error) {
	m.filters = append(m.filters, f)
	m.tokens = append(m.tokens, token)
	if m.err != nil && (m.failPage == 0 || m.failPage == f.Page) {
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

func (m *mockClientes) DistinctStatuses(_ context.Context, token string, _ int) ([]string, error) {
	m.tokens = append(m.tokens, token)
	return m.statuses, m.err
}

type mockDashboard struct {
	sums    []domain.StatusSum
	monthly []domain.MonthlyGrowth
	paid    float64
	sumErr  error
	paidErr error

	mu      sync.Mutex
	filters []domain.DashboardFilter
}

func (m *mockDashboard) StatusSums(_ context.Context, _ string, f domain.DashboardFilter) ([]domain.StatusSum, error) {
	m.mu.Lock()
	m.filters = append(m.filters, f)
	m.mu.Unlock()
	return m.sums, m.sumErr
}

func (m *mockDashboard) MonthlyGrowth(_ context.Context, _ string, _ domain.DashboardFilter) ([]domain.MonthlyGrowth, error) {
	return m.monthly, nil
}

func (m *mockDashboard) PaidTotal(_ context.Context, _ string) (float64, error) {
	return m.paid, m.paidErr
}

// --- Helpers ---

func strPtr(s string) *string { return &s }

func caller(id string) *domain.AuthUser {
	return &domain.AuthUser{ID: id, Email: id + "@example.com", AccessToken: "token-" + id}
}

func superadmin(id string) *domain.Profile {
	return &domain.Profile{UserID: id, Role: domain.RoleSuperadmin, IsActive: true}
}

func whitelist(names ...string) *mockCatalog {
	opts := make([]domain.TableOption, 0, len(names))
	for _, n := range names {
		opts = append(opts, domain.TableOption{TableName: n, DisplayName: n})
	}
	return &mockCatalog{tables: opts}
}

func newProfileService(p *mockProfiles, c *mockCatalog) (*service.ProfileService, *observability.Metrics) {
	m := observability.NewMetrics()
	return service.NewProfileService(p, c, cache.New[*domain.Profile](time.Minute), m, zap.NewNop()), m
}

func newAdminService(p *mockProfiles, c *mockCatalog, id *mockIdentity) (*service.AdminService, *observability.Metrics) {
	m := observability.NewMetrics()
	return service.NewAdminService(p, c, id, cache.New[*domain.Profile](time.Minute), "", m, zap.NewNop()), m
}
