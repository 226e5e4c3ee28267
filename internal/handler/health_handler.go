package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
)

// ============================================================
// Operational Handlers
// ============================================================

func pingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ping": "pong"})
	}
}

func healthzHandler(backend Backend, configured bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "crm-bfa", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		switch {
		case !configured:
			services = append(services, domain.ServiceHealth{
				Name: "supabase", Status: "unhealthy", LastChecked: now,
			})
		case backend != nil:
			start := time.Now()
			err := backend.Ping(r.Context())
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "supabase", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
