// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
)

// ProfileStore reads and patches rows of the `profiles` table.
// Implementations use the service-role key; callers enforce authorization.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	ListProfiles(ctx context.Context, limit int) ([]domain.Profile, error)
	UpsertProfile(ctx context.Context, p *domain.ProfileUpsert) error
	UpdateProfile(ctx context.Context, userID string, updates map[string]any) error
}

// TableCatalog exposes the backend whitelist of CRM datasets.
// Calls run as the owner of accessToken; an empty token runs them with the
// service role.
type TableCatalog interface {
	ListCRMTables(ctx context.Context, accessToken string) ([]domain.TableOption, error)
	DistinctClientes(ctx context.Context, accessToken, table string) ([]string, error)
}

// ClienteStore lists farol_view rows as the caller (row-level security applies).
type ClienteStore interface {
	ListClientes(ctx context.Context, accessToken string, f domain.ClienteFilter) ([]domain.ClienteRow, int, error)
	DistinctStatuses(ctx context.Context, accessToken string, limit int) ([]string, error)
}

// DashboardStore runs the aggregate RPCs as the caller.
type DashboardStore interface {
	StatusSums(ctx context.Context, accessToken string, f domain.DashboardFilter) ([]domain.StatusSum, error)
	MonthlyGrowth(ctx context.Context, accessToken string, f domain.DashboardFilter) ([]domain.MonthlyGrowth, error)
	PaidTotal(ctx context.Context, accessToken string) (float64, error)
}

// IdentityAdmin provisions backend identities.
type IdentityAdmin interface {
	InviteUserByEmail(ctx context.Context, email string) (userID string, err error)
}

// TokenVerifier resolves an access token into the user behind it.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*domain.AuthUser, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
