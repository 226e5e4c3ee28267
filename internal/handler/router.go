package handler

import (
	"context"
	"net/http"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/observability"
	"github.com/boddenberg/crm-farol-bfa/internal/port"
	"github.com/boddenberg/crm-farol-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("handler")

// MisconfiguredMessage is returned by every /api route (except ping) when
// the backend URL or service-role key is missing.
const MisconfiguredMessage = "Missing SUPABASE_SERVICE_ROLE_KEY or URL"

// Backend is the operational view of the Supabase client.
type Backend interface {
	Ping(ctx context.Context) error
	BreakerState() string
}

// Deps groups everything the router needs.
type Deps struct {
	Profiles  *service.ProfileService
	Admin     *service.AdminService
	Clientes  *service.ClienteService
	Dashboard *service.DashboardService
	Verifier  port.TokenVerifier
	Backend   Backend

	// Configured is false when the Supabase URL or service key is missing.
	Configured bool

	Metrics *observability.Metrics
	Logger  *zap.Logger

	SessionCookie  string
	AdminRateLimit float64
	AdminRateBurst int
	CORSOrigins    []string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := d.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(metrics.HTTPMiddleware)
	r.Use(middleware.Recoverer)
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Backend, d.Configured))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", pingHandler())

		r.Group(func(r chi.Router) {
			r.Use(requireConfigured(d.Configured, logger))
			r.Use(AuthMiddleware(d.Verifier, d.SessionCookie, logger))

			// =============================================
			// Caller profile
			// =============================================
			r.Get("/me", getMeHandler(d.Profiles, logger))
			r.Patch("/me", setDefaultTableHandler(d.Profiles, logger))
			r.Patch("/me/allowed-tables", grantTablesHandler(d.Profiles, logger))

			// =============================================
			// Datasets
			// =============================================
			r.Get("/tables", listTablesHandler(d.Admin, logger))
			r.Get("/tables/{table}/clientes", distinctClientesHandler(d.Admin, logger))

			// =============================================
			// Clientes (row-level security applies)
			// =============================================
			r.Get("/clientes", listClientesHandler(d.Clientes, logger))
			r.Get("/clientes/export.csv", exportClientesHandler(d.Clientes, logger))

			// =============================================
			// Dashboard
			// =============================================
			r.Get("/dashboard/summary", dashboardSummaryHandler(d.Dashboard, logger))
			r.Get("/dashboard/statuses", dashboardStatusesHandler(d.Dashboard, logger))

			// =============================================
			// Admin (superadmin only)
			// =============================================
			r.Route("/admin", func(r chi.Router) {
				limit, burst := d.AdminRateLimit, d.AdminRateBurst
				if limit <= 0 {
					limit = 2
				}
				if burst <= 0 {
					burst = 10
				}
				r.Use(NewIPRateLimiter(rate.Limit(limit), burst).Middleware(metrics, logger))

				r.Post("/create-user", createUserHandler(d.Admin, logger))
				r.Get("/users", listUsersHandler(d.Admin, logger))
				r.Patch("/users/{userId}/active", setUserActiveHandler(d.Admin, logger))
				r.Patch("/users/{userId}/allowed-tables", grantUserTablesHandler(d.Admin, logger))
				r.Get("/stats", statsHandler(d.Admin, d.Backend, metrics, logger))
			})
		})
	})

	return r
}

// requireConfigured short-circuits with 500 when the backend is not set up.
func requireConfigured(configured bool, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !configured {
				handleServiceError(w, &domain.ErrMisconfigured{Message: MisconfiguredMessage}, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
