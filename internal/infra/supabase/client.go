// Package supabase provides a client for Supabase (PostgREST + GoTrue).
// It is the only boundary between the BFA and the system of record: profile
// reads and patches, the CRM RPCs, farol_view listings and invitations.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Options carries the project settings of the Supabase client.
type Options struct {
	BaseURL           string
	AnonKey           string
	ServiceRoleKey    string
	JWTSecret         string
	InviteRedirectURL string
}

// Client wraps HTTP calls to the Supabase REST and Auth APIs.
type Client struct {
	httpClient *http.Client
	opts       Options
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
	logger     *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, opts Options, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		opts:       opts,
		cb:         cb,
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		logger:     logger,
	}
}

// BreakerState reports the circuit breaker state ("closed", "open", "half-open").
func (c *Client) BreakerState() string {
	return c.cb.State().String()
}

// IsCallerError reports whether err was caused by the request rather than by
// the backend being unhealthy. Such errors do not trip the circuit breaker.
func IsCallerError(err error) bool {
	if err == nil {
		return true
	}
	var backend *domain.ErrBackend
	if errors.As(err, &backend) {
		return backend.Status < 500
	}
	var unauthorized *domain.ErrUnauthorized
	var notFound *domain.ErrNotFound
	return errors.As(err, &unauthorized) || errors.As(err, &notFound)
}

// call describes one HTTP request to Supabase.
type call struct {
	method     string
	path       string // e.g. "/rest/v1/profiles"
	query      url.Values
	body       any
	bearer     string // caller access token; empty → service role
	prefer     string
	countExact bool
}

// result is a successful (2xx) response.
type result struct {
	status int
	body   []byte
	total  int // exact row count when requested, -1 otherwise
}

// doRequest executes a single authenticated request to Supabase.
func (c *Client) doRequest(ctx context.Context, in call) (*result, error) {
	u := c.opts.BaseURL + in.path
	if len(in.query) > 0 {
		u += "?" + in.query.Encode()
	}

	var reader *bytes.Reader
	if in.body != nil {
		raw, err := json.Marshal(in.body)
		if err != nil {
			return nil, resilience.Permanent(fmt.Errorf("encode request body: %w", err))
		}
		reader = bytes.NewReader(raw)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, in.method, u, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, in.method, u, nil)
	}
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", in.method),
			zap.String("path", in.path),
			zap.Error(err),
		)
		return nil, resilience.Permanent(err)
	}

	apiKey := c.opts.AnonKey
	if apiKey == "" || in.bearer == "" {
		apiKey = c.opts.ServiceRoleKey
	}
	bearer := in.bearer
	if bearer == "" {
		bearer = c.opts.ServiceRoleKey
	}
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	prefer := in.prefer
	if in.countExact {
		if prefer != "" {
			prefer += ","
		}
		prefer += "count=exact"
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", in.method),
			zap.String("path", in.path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", in.method),
			zap.String("path", in.path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", in.method),
			zap.String("path", in.path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(body), 512)),
		)
		backendErr := parseBackendError(resp.StatusCode, body)
		if IsCallerError(backendErr) {
			return nil, resilience.Permanent(backendErr)
		}
		return nil, backendErr
	}

	total := -1
	if in.countExact {
		total = parseContentRange(resp.Header.Get("Content-Range"))
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", in.method),
		zap.String("path", in.path),
		zap.Int("status", resp.StatusCode),
	)

	return &result{status: resp.StatusCode, body: body, total: total}, nil
}

// read executes an idempotent call with retry + backoff under the breaker.
func (c *Client) read(ctx context.Context, op string, in call) (*result, error) {
	return c.execute(ctx, op, in, true)
}

// write executes a mutating call once under the breaker.
func (c *Client) write(ctx context.Context, op string, in call) (*result, error) {
	return c.execute(ctx, op, in, false)
}

func (c *Client) execute(ctx context.Context, op string, in call, retry bool) (*result, error) {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrTimeout{Operation: op}
	}
	defer c.bulkhead.Release()

	var res *result
	_, err := c.cb.Execute(func() (any, error) {
		attempt := func() error {
			r, err := c.doRequest(ctx, in)
			if err != nil {
				return err
			}
			res = r
			return nil
		}
		if !retry {
			return nil, attempt()
		}
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, attempt)
	})
	if err == nil {
		return res, nil
	}
	return nil, c.classify(ctx, op, err)
}

// classify turns a raw call error into a domain error.
func (c *Client) classify(ctx context.Context, op string, err error) error {
	var backend *domain.ErrBackend
	if errors.As(err, &backend) {
		return backend
	}
	var unauthorized *domain.ErrUnauthorized
	if errors.As(err, &unauthorized) {
		return unauthorized
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: "supabase"}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: op}
	}
	return &domain.ErrExternalService{Service: "supabase/" + op, Err: err}
}

// Ping checks that the Auth API answers.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	_, err := c.doRequest(ctx, call{method: http.MethodGet, path: "/auth/v1/health"})
	return err
}

// rpc builds a call to a PostgREST stored procedure.
func rpc(name string, args map[string]any, bearer string) call {
	if args == nil {
		args = map[string]any{}
	}
	return call{
		method: http.MethodPost,
		path:   "/rest/v1/rpc/" + name,
		body:   args,
		bearer: bearer,
	}
}
