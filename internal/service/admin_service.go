package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/observability"
	"github.com/boddenberg/crm-farol-bfa/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	msgRequesterLookupFailed = "Falha ao verificar perfil do solicitante"
	msgCreateUserMissing     = "Campos obrigatórios: email, role"
	msgInvalidRole           = "role inválido: use superadmin, gestor, admin ou cliente"

	// ListUsersLimit caps the admin user listing.
	ListUsersLimit = 500
)

// AdminService holds the superadmin-only operations and the dataset catalog.
type AdminService struct {
	profiles      port.ProfileStore
	catalog       port.TableCatalog
	identity      port.IdentityAdmin
	cache         port.Cache[*domain.Profile]
	fallbackTable string
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewAdminService creates the admin service. fallbackTable is granted when
// the backend whitelist is empty; "" means domain.FallbackTable.
func NewAdminService(
	profiles port.ProfileStore,
	catalog port.TableCatalog,
	identity port.IdentityAdmin,
	cache port.Cache[*domain.Profile],
	fallbackTable string,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AdminService {
	if fallbackTable == "" {
		fallbackTable = domain.FallbackTable
	}
	return &AdminService{
		profiles:      profiles,
		catalog:       catalog,
		identity:      identity,
		cache:         cache,
		fallbackTable: fallbackTable,
		metrics:       metrics,
		logger:        logger,
	}
}

// RequireSuperadmin loads the caller's profile, bypassing the cache, and
// rejects anyone who is not a superadmin.
func (s *AdminService) RequireSuperadmin(ctx context.Context, user *domain.AuthUser) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "AdminService.RequireSuperadmin")
	defer span.End()

	p, err := s.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		s.logger.Warn("requester profile lookup failed", zap.String("user_id", user.ID), zap.Error(err))
		s.metrics.IncrAccessDenied("requester_lookup")
		return nil, &domain.ErrForbidden{Message: msgRequesterLookupFailed}
	}
	if !p.IsSuperadmin() {
		s.metrics.IncrAccessDenied("not_superadmin")
		return nil, &domain.ErrForbidden{Message: msgRequiresSuperadmin}
	}
	return p, nil
}

// CreateUser authorizes the caller and provisions a new user.
func (s *AdminService) CreateUser(ctx context.Context, user *domain.AuthUser, req *domain.CreateUserRequest) (*domain.CreateUserResponse, error) {
	if _, err := s.RequireSuperadmin(ctx, user); err != nil {
		return nil, err
	}
	return s.ProvisionUser(ctx, req)
}

// ProvisionUser invites a user by e-mail and writes its profile. Requested
// tables are restricted to the backend whitelist; a whitelist failure aborts.
func (s *AdminService) ProvisionUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.CreateUserResponse, error) {
	ctx, span := tracer.Start(ctx, "AdminService.ProvisionUser")
	defer span.End()

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Role == "" {
		return nil, &domain.ErrValidation{Field: "email", Message: msgCreateUserMissing}
	}
	if !req.Role.Valid() {
		return nil, &domain.ErrValidation{Field: "role", Message: msgInvalidRole}
	}
	span.SetAttributes(attribute.String("role", string(req.Role)))

	requested := req.AllowedTables
	if requested == nil {
		requested = []string{s.fallbackTable}
	}
	desiredDefault := req.DefaultTable
	if desiredDefault == "" {
		desiredDefault = s.fallbackTable
	}

	opts, err := s.catalog.ListCRMTables(ctx, "")
	if err != nil {
		s.metrics.IncrBackendError("tables.list")
		return nil, fmt.Errorf("list crm tables: %w", err)
	}
	permitted := domain.TableNames(opts)
	allowed := domain.SanitizeAllowedTables(requested, permitted)
	if len(permitted) == 0 {
		allowed = []string{s.fallbackTable}
	}
	defaultTable := domain.ResolveDefaultTable(desiredDefault, allowed)

	userID, err := s.identity.InviteUserByEmail(ctx, email)
	if err != nil {
		s.metrics.IncrBackendError("auth.invite")
		return nil, err
	}

	var org *string
	if len(req.Orgs) > 0 {
		first := req.Orgs[0]
		org = &first
	}
	orgs := req.Orgs
	if orgs == nil {
		orgs = []string{}
	}

	if err := s.profiles.UpsertProfile(ctx, &domain.ProfileUpsert{
		UserID:        userID,
		Email:         email,
		Nome:          req.Nome,
		Telefone:      req.Telefone,
		Role:          req.Role,
		Org:           org,
		Orgs:          orgs,
		AllowedTables: allowed,
		DefaultTable:  defaultTable,
		IsActive:      true,
	}); err != nil {
		s.metrics.IncrBackendError("profile.upsert")
		s.logger.Error("invited user has no profile",
			zap.String("user_id", userID),
			zap.String("email", email),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.IncrUsersInvited()
	s.logger.Info("user provisioned",
		zap.String("user_id", userID),
		zap.String("role", string(req.Role)),
		zap.Strings("allowed_tables", allowed),
		zap.String("default_table", defaultTable),
	)

	return &domain.CreateUserResponse{
		UserID:        userID,
		Email:         email,
		AllowedTables: allowed,
		DefaultTable:  defaultTable,
	}, nil
}

// ListUsers returns the most recent profiles.
func (s *AdminService) ListUsers(ctx context.Context, user *domain.AuthUser) ([]domain.Profile, error) {
	if _, err := s.RequireSuperadmin(ctx, user); err != nil {
		return nil, err
	}
	return s.AllUsers(ctx)
}

// AllUsers lists profiles without an authorization check (operator CLI).
func (s *AdminService) AllUsers(ctx context.Context) ([]domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "AdminService.AllUsers")
	defer span.End()

	users, err := s.profiles.ListProfiles(ctx, ListUsersLimit)
	if err != nil {
		s.metrics.IncrBackendError("profiles.list")
		return nil, err
	}
	return users, nil
}

// SetUserActive enables or disables a user.
func (s *AdminService) SetUserActive(ctx context.Context, user *domain.AuthUser, userID string, active bool) error {
	if _, err := s.RequireSuperadmin(ctx, user); err != nil {
		return err
	}
	return s.UpdateActive(ctx, userID, active)
}

// UpdateActive writes is_active without an authorization check (operator CLI).
func (s *AdminService) UpdateActive(ctx context.Context, userID string, active bool) error {
	ctx, span := tracer.Start(ctx, "AdminService.UpdateActive")
	defer span.End()
	span.SetAttributes(attribute.String("target.id", userID), attribute.Bool("active", active))

	if err := s.profiles.UpdateProfile(ctx, userID, map[string]any{"is_active": active}); err != nil {
		s.metrics.IncrBackendError("profile.update")
		return err
	}
	s.cache.Delete(profileCacheKey(userID))

	s.logger.Info("user activation changed", zap.String("user_id", userID), zap.Bool("is_active", active))
	return nil
}

// GrantTablesTo adds whitelisted datasets to another user's allowed list.
func (s *AdminService) GrantTablesTo(ctx context.Context, user *domain.AuthUser, userID string, req *domain.GrantTablesRequest) (*domain.GrantTablesResponse, error) {
	ctx, span := tracer.Start(ctx, "AdminService.GrantTablesTo")
	defer span.End()
	span.SetAttributes(attribute.String("target.id", userID))

	add := req.Names()
	if len(add) == 0 {
		return nil, &domain.ErrValidation{Field: "add", Message: msgGrantTablesMissing}
	}
	if _, err := s.RequireSuperadmin(ctx, user); err != nil {
		return nil, err
	}

	target, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		s.metrics.IncrBackendError("profile.get")
		return nil, err
	}
	return grantTables(ctx, s.profiles, s.catalog, target, add, req.DefaultTable, s.metrics, s.logger, s.cache)
}

// ListTables returns the datasets visible to the caller. The backend
// decides visibility from the caller's own session.
func (s *AdminService) ListTables(ctx context.Context, user *domain.AuthUser) ([]domain.TableOption, error) {
	ctx, span := tracer.Start(ctx, "AdminService.ListTables")
	defer span.End()

	return s.listTables(ctx, user.AccessToken)
}

// AllTables returns the whole backend whitelist using the service role.
// Operator tooling only.
func (s *AdminService) AllTables(ctx context.Context) ([]domain.TableOption, error) {
	ctx, span := tracer.Start(ctx, "AdminService.AllTables")
	defer span.End()

	return s.listTables(ctx, "")
}

func (s *AdminService) listTables(ctx context.Context, accessToken string) ([]domain.TableOption, error) {
	opts, err := s.catalog.ListCRMTables(ctx, accessToken)
	if err != nil {
		s.metrics.IncrBackendError("tables.list")
		return nil, err
	}
	return opts, nil
}

// DistinctClientes returns the tenant names of a dataset as seen by the caller.
func (s *AdminService) DistinctClientes(ctx context.Context, user *domain.AuthUser, table string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "AdminService.DistinctClientes")
	defer span.End()
	span.SetAttributes(attribute.String("table", table))

	return s.distinctClientes(ctx, user.AccessToken, table)
}

// AllClientes returns the tenant names of a dataset using the service role.
// Operator tooling only.
func (s *AdminService) AllClientes(ctx context.Context, table string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "AdminService.AllClientes")
	defer span.End()
	span.SetAttributes(attribute.String("table", table))

	return s.distinctClientes(ctx, "", table)
}

func (s *AdminService) distinctClientes(ctx context.Context, accessToken, table string) ([]string, error) {
	if table == "" {
		return nil, &domain.ErrValidation{Field: "table", Message: "tabela ausente"}
	}

	names, err := s.catalog.DistinctClientes(ctx, accessToken, table)
	if err != nil {
		s.metrics.IncrBackendError("tables.clientes")
		return nil, err
	}
	return names, nil
}
