package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// LedgerMetrics is returned by GET /v1/metrics/ledger.
type LedgerMetrics struct {
	MovementsByKind   map[string]int64 `json:"movementsByKind"`
	RejectedByReason  map[string]int64 `json:"rejectedByReason"`
	CascadesTotal     int64            `json:"cascadesTotal"`
	EventsPublished   int64            `json:"eventsPublished"`
	EventsFailed      int64            `json:"eventsFailed"`
	IdempotentReplays int64            `json:"idempotentReplays"`
	Period            string           `json:"period"`
}

// SuccessResponse wraps a successful command without a body.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id,omitempty"`
}
