package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// GoTrue: invitations and access-token verification
// ============================================================

// InviteUserByEmail creates a backend identity and sends the invitation
// e-mail. Returns the new user id.
func (c *Client) InviteUserByEmail(ctx context.Context, email string) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.InviteUserByEmail")
	defer span.End()

	var q url.Values
	if c.opts.InviteRedirectURL != "" {
		q = url.Values{}
		q.Set("redirect_to", c.opts.InviteRedirectURL)
	}

	res, err := c.write(ctx, "auth.invite", call{
		method: http.MethodPost,
		path:   "/auth/v1/invite",
		query:  q,
		body:   map[string]string{"email": email},
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(res.body, &user); err != nil {
		return "", fmt.Errorf("decode invite response: %w", err)
	}
	if user.ID == "" {
		return "", &domain.ErrBackend{Status: res.status, Message: "Convite não retornou o id do usuário"}
	}

	span.SetAttributes(attribute.String("user_id", user.ID))
	c.logger.Info("user invited", zap.String("user_id", user.ID), zap.String("email", email))
	return user.ID, nil
}

// supabaseClaims are the claims of a Supabase access token.
type supabaseClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// VerifyAccessToken resolves an access token into its user. With a JWT
// secret configured the token is verified locally (HS256); otherwise the
// Auth API is asked.
func (c *Client) VerifyAccessToken(ctx context.Context, token string) (*domain.AuthUser, error) {
	if token == "" {
		return nil, &domain.ErrUnauthorized{}
	}
	if c.opts.JWTSecret != "" {
		return c.verifyLocal(token)
	}
	return c.verifyRemote(ctx, token)
}

func (c *Client) verifyLocal(token string) (*domain.AuthUser, error) {
	parsed, err := jwt.ParseWithClaims(token, &supabaseClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(c.opts.JWTSecret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		c.logger.Debug("access token rejected", zap.Error(err))
		return nil, &domain.ErrUnauthorized{}
	}

	claims, ok := parsed.Claims.(*supabaseClaims)
	if !ok || !parsed.Valid || claims.Subject == "" || claims.Role == "anon" {
		return nil, &domain.ErrUnauthorized{}
	}
	return &domain.AuthUser{ID: claims.Subject, Email: claims.Email, AccessToken: token}, nil
}

func (c *Client) verifyRemote(ctx context.Context, token string) (*domain.AuthUser, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUser")
	defer span.End()

	res, err := c.read(ctx, "auth.user", call{
		method: http.MethodGet,
		path:   "/auth/v1/user",
		bearer: token,
	})
	if err != nil {
		var backend *domain.ErrBackend
		var unauthorized *domain.ErrUnauthorized
		if errors.As(err, &unauthorized) || (errors.As(err, &backend) && backend.Status == http.StatusForbidden) {
			return nil, &domain.ErrUnauthorized{}
		}
		span.RecordError(err)
		return nil, err
	}

	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(res.body, &user); err != nil {
		return nil, fmt.Errorf("decode auth user: %w", err)
	}
	if user.ID == "" {
		return nil, &domain.ErrUnauthorized{}
	}
	return &domain.AuthUser{ID: user.ID, Email: user.Email, AccessToken: token}, nil
}
