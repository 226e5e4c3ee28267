// Package service provides the business logic layer (use cases).
// The services authorize the caller against its profile and delegate every
// read and write to the Supabase ports.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/observability"
	"github.com/boddenberg/crm-farol-bfa/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/crm")

const (
	msgDefaultTableInvalid = "defaultTable ausente ou inválido"
	msgTableNotAllowed     = "Tabela não permitida para este usuário"
	msgRequiresSuperadmin  = "Acesso negado: requer superadmin"
	msgGrantTablesMissing  = "Informe add: string[] com as tabelas a adicionar"
)

func profileCacheKey(userID string) string {
	return "profile:" + userID
}

// ProfileService serves the caller's own profile.
type ProfileService struct {
	profiles port.ProfileStore
	catalog  port.TableCatalog
	cache    port.Cache[*domain.Profile]
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewProfileService creates the profile service.
func NewProfileService(
	profiles port.ProfileStore,
	catalog port.TableCatalog,
	cache port.Cache[*domain.Profile],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		catalog:  catalog,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
	}
}

// GetMe returns the caller's profile.
func (s *ProfileService) GetMe(ctx context.Context, user *domain.AuthUser) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "ProfileService.GetMe")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", user.ID))

	key := profileCacheKey(user.ID)
	if p, ok := s.cache.Get(key); ok && p != nil {
		s.metrics.IncrCacheHit("profile")
		return p, nil
	}
	s.metrics.IncrCacheMiss("profile")

	start := time.Now()
	p, err := s.profiles.GetProfile(ctx, user.ID)
	s.metrics.RecordDuration("profile.get", time.Since(start))
	if err != nil {
		s.metrics.IncrBackendError("profile.get")
		return nil, err
	}
	s.cache.Set(key, p)
	return p, nil
}

// SetDefaultTable changes the caller's default dataset. A non-empty stored
// allowed list restricts the choice.
func (s *ProfileService) SetDefaultTable(ctx context.Context, user *domain.AuthUser, table string) error {
	ctx, span := tracer.Start(ctx, "ProfileService.SetDefaultTable")
	defer span.End()
	span.SetAttributes(attribute.String("table", table))

	if table == "" {
		return &domain.ErrValidation{Field: "defaultTable", Message: msgDefaultTableInvalid}
	}

	p, err := s.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		s.metrics.IncrBackendError("profile.get")
		return err
	}
	if !domain.CanUseTable(p.AllowedTables, table) {
		s.metrics.IncrAccessDenied("table_not_allowed")
		return &domain.ErrForbidden{Message: msgTableNotAllowed}
	}

	if err := s.profiles.UpdateProfile(ctx, user.ID, map[string]any{"default_table": table}); err != nil {
		s.metrics.IncrBackendError("profile.update")
		return err
	}
	s.cache.Delete(profileCacheKey(user.ID))

	s.logger.Info("default table changed",
		zap.String("user_id", user.ID),
		zap.String("table", table),
	)
	return nil
}

// GrantTables adds whitelisted datasets to the caller's own allowed list.
// Only a superadmin may do it.
func (s *ProfileService) GrantTables(ctx context.Context, user *domain.AuthUser, req *domain.GrantTablesRequest) (*domain.GrantTablesResponse, error) {
	ctx, span := tracer.Start(ctx, "ProfileService.GrantTables")
	defer span.End()

	add := req.Names()
	if len(add) == 0 {
		return nil, &domain.ErrValidation{Field: "add", Message: msgGrantTablesMissing}
	}

	p, err := s.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		s.metrics.IncrBackendError("profile.get")
		return nil, err
	}
	if !p.IsSuperadmin() {
		s.metrics.IncrAccessDenied("not_superadmin")
		return nil, &domain.ErrForbidden{Message: msgRequiresSuperadmin}
	}

	return grantTables(ctx, s.profiles, s.catalog, p, add, req.DefaultTable, s.metrics, s.logger, s.cache)
}

// grantTables merges add into p's allowed list and persists the result.
// Shared by the self-service and admin grant operations.
func grantTables(
	ctx context.Context,
	profiles port.ProfileStore,
	catalog port.TableCatalog,
	p *domain.Profile,
	add []string,
	desiredDefault string,
	metrics *observability.Metrics,
	logger *zap.Logger,
	cache port.Cache[*domain.Profile],
) (*domain.GrantTablesResponse, error) {
	opts, err := catalog.ListCRMTables(ctx, "")
	if err != nil {
		metrics.IncrBackendError("tables.list")
		return nil, fmt.Errorf("list crm tables: %w", err)
	}

	merged := domain.MergeAllowedTables(p.AllowedTables, add, domain.TableNames(opts))

	current := ""
	if p.DefaultTable != nil {
		current = *p.DefaultTable
	}
	updates := map[string]any{"allowed_tables": merged}
	resp := &domain.GrantTablesResponse{AllowedTables: merged, DefaultTable: p.DefaultTable}
	if next := domain.NextDefaultTable(current, desiredDefault, merged); next != "" {
		updates["default_table"] = next
		resp.DefaultTable = &next
	}

	if err := profiles.UpdateProfile(ctx, p.UserID, updates); err != nil {
		metrics.IncrBackendError("profile.update")
		return nil, err
	}
	cache.Delete(profileCacheKey(p.UserID))

	logger.Info("tables granted",
		zap.String("user_id", p.UserID),
		zap.Strings("allowed_tables", merged),
	)
	return resp, nil
}
