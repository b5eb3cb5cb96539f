package health

import (
	"campusbot/internal/providers"
	"time"
)

// HealthStatus represents the health state of a provider
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusCooldown  HealthStatus = "cooldown"
	StatusUnknown   HealthStatus = "unknown"
)

// ProviderHealth tracks the observed health of one provider kind
type ProviderHealth struct {
	Provider      providers.Kind `json:"provider"`
	Status        HealthStatus   `json:"status"`
	LastChecked   time.Time      `json:"last_checked,omitempty"`
	LastSuccessAt time.Time      `json:"last_success_at,omitempty"`
	FailureCount  int            `json:"failure_count"`
	LastError     string         `json:"last_error,omitempty"`
	CooldownUntil time.Time      `json:"cooldown_until,omitempty"`
	LastLatencyMs int64          `json:"last_latency_ms"`
}

// effectiveStatus treats an expired cooldown as unknown.
func (h *ProviderHealth) effectiveStatus(now time.Time) HealthStatus {
	if h.Status == StatusCooldown && now.After(h.CooldownUntil) {
		return StatusUnknown
	}
	return h.Status
}
