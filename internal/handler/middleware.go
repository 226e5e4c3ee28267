package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/observability"
	"github.com/boddenberg/crm-farol-bfa/internal/port"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type contextKey string

const authUserKey contextKey = "authUser"

// AuthMiddleware resolves the caller from a Bearer token or the session
// cookie and injects it into the context. Anything else is a 401.
func AuthMiddleware(verifier port.TokenVerifier, cookieName string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := accessToken(r, cookieName)
			if token == "" {
				logger.Debug("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "not_authenticated")
				return
			}

			user, err := verifier.VerifyAccessToken(r.Context(), token)
			if err != nil {
				var unauthorized *domain.ErrUnauthorized
				if !errors.As(err, &unauthorized) {
					handleServiceError(w, err, logger)
					return
				}
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "not_authenticated")
				return
			}

			ctx := context.WithValue(r.Context(), authUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated caller, or nil.
func UserFromContext(ctx context.Context) *domain.AuthUser {
	u, _ := ctx.Value(authUserKey).(*domain.AuthUser)
	return u
}

// accessToken reads "Authorization: Bearer <token>" or the session cookie.
func accessToken(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookieName == "" {
		return ""
	}
	return tokenFromCookie(sessionCookie(r, cookieName))
}

// sessionCookie returns the cookie value, joining the "<name>.0",
// "<name>.1", ... chunks the auth helpers write for large sessions.
func sessionCookie(r *http.Request, name string) string {
	if c, err := r.Cookie(name); err == nil {
		return c.Value
	}
	var b strings.Builder
	for i := 0; ; i++ {
		c, err := r.Cookie(name + "." + strconv.Itoa(i))
		if err != nil {
			break
		}
		b.WriteString(c.Value)
	}
	return b.String()
}

// tokenFromCookie accepts the cookie formats written by the Supabase
// helpers: a bare JWT, a JSON array whose first item is the access token,
// or a JSON session object, optionally URL-encoded or "base64-" prefixed.
func tokenFromCookie(v string) string {
	if dec, err := url.QueryUnescape(v); err == nil {
		v = dec
	}
	if rest, ok := strings.CutPrefix(v, "base64-"); ok {
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(rest, "="))
		if err != nil {
			return ""
		}
		v = string(raw)
	}
	v = strings.TrimSpace(v)

	switch {
	case strings.HasPrefix(v, "["):
		var parts []*string
		if err := json.Unmarshal([]byte(v), &parts); err != nil || len(parts) == 0 || parts[0] == nil {
			return ""
		}
		return *parts[0]
	case strings.HasPrefix(v, "{"):
		var session struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal([]byte(v), &session); err != nil {
			return ""
		}
		return session.AccessToken
	}
	return v
}

// ============================================================
// Per-client rate limiting (admin routes)
// ============================================================

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewIPRateLimiter allows limit requests per second with the given burst.
func NewIPRateLimiter(limit rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors:  make(map[string]*visitor),
		limit:     limit,
		burst:     burst,
		idle:      10 * time.Minute,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Allow consumes a token for ip.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	// Idle buckets are swept at most once per idle period.
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	return v.limiter.Allow()
}

func (l *IPRateLimiter) sweep(now time.Time) {
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idle {
			delete(l.visitors, k)
		}
	}
	l.lastSweep = now
}

// Middleware rejects requests over the limit with 429.
func (l *IPRateLimiter) Middleware(metrics *observability.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !l.Allow(ip) {
				metrics.IncrAccessDenied("rate_limited")
				logger.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", r.URL.Path))
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "Muitas requisições, tente novamente em instantes")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the host part of RemoteAddr (already rewritten by
// middleware.RealIP when behind a proxy).
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
