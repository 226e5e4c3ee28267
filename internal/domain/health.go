package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual service.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// OpsStats is returned by GET /api/admin/stats.
type OpsStats struct {
	UsersInvited   int64   `json:"usersInvited"`
	AccessDenied   int64   `json:"accessDenied"`
	BackendErrors  int64   `json:"backendErrors"`
	CacheHitRate   float64 `json:"cacheHitRate"`
	CircuitBreaker string  `json:"circuitBreaker"`
	Period         string  `json:"period"`
}

// ============================================================
// Generic API envelope
// ============================================================

// Envelope wraps every /api response.
type Envelope struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}
