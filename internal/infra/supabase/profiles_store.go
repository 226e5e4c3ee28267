package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const profileColumns = "user_id,email,nome,telefone,role,org,orgs,default_table,allowed_tables,is_active,created_at"

// ============================================================
// ProfileStore implementation
// ============================================================

// GetProfile fetches the profile row of userID.
func (c *Client) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	q := url.Values{}
	q.Set("select", profileColumns)
	q.Set("user_id", "eq."+userID)
	q.Set("limit", "1")

	res, err := c.read(ctx, "profiles.get", call{method: http.MethodGet, path: "/rest/v1/profiles", query: q})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var rows []domain.Profile
	if err := json.Unmarshal(res.body, &rows); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "Perfil", ID: userID}
	}

	c.logger.Debug("profile loaded", zap.String("user_id", userID), zap.String("role", string(rows[0].Role)))
	return &rows[0], nil
}

// ListProfiles returns the most recently created profiles first.
func (c *Client) ListProfiles(ctx context.Context, limit int) ([]domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListProfiles")
	defer span.End()

	q := url.Values{}
	q.Set("select", profileColumns)
	q.Set("order", "created_at.desc")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	res, err := c.read(ctx, "profiles.list", call{method: http.MethodGet, path: "/rest/v1/profiles", query: q})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	rows := []domain.Profile{}
	if err := json.Unmarshal(res.body, &rows); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	span.SetAttributes(attribute.Int("rows", len(rows)))
	return rows, nil
}

// UpsertProfile inserts or merges a profile keyed by user_id.
func (c *Client) UpsertProfile(ctx context.Context, p *domain.ProfileUpsert) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", p.UserID))

	q := url.Values{}
	q.Set("on_conflict", "user_id")

	_, err := c.write(ctx, "profiles.upsert", call{
		method: http.MethodPost,
		path:   "/rest/v1/profiles",
		query:  q,
		body:   p,
		prefer: "resolution=merge-duplicates,return=minimal",
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	c.logger.Info("profile upserted",
		zap.String("user_id", p.UserID),
		zap.String("role", string(p.Role)),
		zap.Strings("allowed_tables", p.AllowedTables),
	)
	return nil
}

// UpdateProfile patches the given columns of userID's profile.
func (c *Client) UpdateProfile(ctx context.Context, userID string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	q := url.Values{}
	q.Set("user_id", "eq."+userID)

	_, err := c.write(ctx, "profiles.update", call{
		method: http.MethodPatch,
		path:   "/rest/v1/profiles",
		query:  q,
		body:   updates,
		prefer: "return=minimal",
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	c.logger.Info("profile updated", zap.String("user_id", userID), zap.Int("fields", len(updates)))
	return nil
}
