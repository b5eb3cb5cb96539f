package health

import (
	"campusbot/internal/providers"
	"log"
	"sync"
	"time"
)

const (
	defaultFailureThreshold = 3
	defaultCooldownDuration = 1 * time.Hour
)

// Service records attempt outcomes per provider kind. It is observational:
// callers read it for reporting, never to reorder or skip candidates.
type Service struct {
	mu               sync.RWMutex
	entries          map[providers.Kind]*ProviderHealth
	failureThreshold int
	cooldownDuration time.Duration
	now              func() time.Time
}

// NewService creates a new health service with every known kind registered as unknown
func NewService(failureThreshold int, cooldownDuration time.Duration) *Service {
	if failureThreshold <= 0 {
		failureThreshold = defaultFailureThreshold
	}
	if cooldownDuration <= 0 {
		cooldownDuration = defaultCooldownDuration
	}

	s := &Service{
		entries:          make(map[providers.Kind]*ProviderHealth),
		failureThreshold: failureThreshold,
		cooldownDuration: cooldownDuration,
		now:              time.Now,
	}
	for _, k := range providers.AllKinds() {
		s.entries[k] = &ProviderHealth{Provider: k, Status: StatusUnknown}
	}
	return s
}

func (s *Service) entry(kind providers.Kind) *ProviderHealth {
	h, ok := s.entries[kind]
	if !ok {
		h = &ProviderHealth{Provider: kind, Status: StatusUnknown}
		s.entries[kind] = h
	}
	return h
}

// Record classifies the outcome of one adapter call and updates the entry
func (s *Service) Record(kind providers.Kind, err error, elapsed time.Duration) {
	if err == nil {
		s.MarkHealthy(kind, elapsed)
		return
	}
	if IsQuotaError(err) {
		ue, _ := providers.AsUpstream(err)
		s.MarkUnhealthy(kind, err.Error())
		s.SetCooldown(kind, ParseCooldownDuration(ue.StatusCode, ue.Detail))
		return
	}
	s.MarkUnhealthy(kind, err.Error())
}

// MarkHealthy marks a provider as healthy after a successful request
func (s *Service) MarkHealthy(kind providers.Kind, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.entry(kind)
	now := s.now()
	wasUnhealthy := h.Status == StatusUnhealthy || h.Status == StatusCooldown
	h.Status = StatusHealthy
	h.FailureCount = 0
	h.LastError = ""
	h.LastSuccessAt = now
	h.LastChecked = now
	h.CooldownUntil = time.Time{}
	h.LastLatencyMs = elapsed.Milliseconds()

	if wasUnhealthy {
		log.Printf("✅ [HEALTH] %s recovered - now healthy", kind)
	}
}

// MarkUnhealthy records a failure. After reaching the threshold, the provider is marked unhealthy.
func (s *Service) MarkUnhealthy(kind providers.Kind, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.entry(kind)
	h.FailureCount++
	h.LastError = truncateStr(errMsg, 200)
	h.LastChecked = s.now()

	if h.FailureCount >= s.failureThreshold && h.Status != StatusCooldown {
		h.Status = StatusUnhealthy
		log.Printf("⚠️  [HEALTH] %s marked UNHEALTHY after %d failures: %s", kind, h.FailureCount, h.LastError)
	} else {
		log.Printf("⚠️  [HEALTH] %s failure %d/%d: %s", kind, h.FailureCount, s.failureThreshold, h.LastError)
	}
}

// SetCooldown puts a provider into cooldown (typically after a quota error)
func (s *Service) SetCooldown(kind providers.Kind, duration time.Duration) {
	if duration <= 0 {
		duration = s.cooldownDuration
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.entry(kind)
	h.Status = StatusCooldown
	h.CooldownUntil = s.now().Add(duration)
	h.LastChecked = s.now()

	log.Printf("⏸️  [HEALTH] %s in COOLDOWN until %s", kind, h.CooldownUntil.Format(time.RFC3339))
}

// IsInCooldown checks if a provider is currently in cooldown
func (s *Service) IsInCooldown(kind providers.Kind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.entries[kind]
	if !ok {
		return false
	}
	return h.Status == StatusCooldown && s.now().Before(h.CooldownUntil)
}

// Get returns a copy of the entry for kind
func (s *Service) Get(kind providers.Kind) ProviderHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.entries[kind]
	if !ok {
		return ProviderHealth{Provider: kind, Status: StatusUnknown}
	}
	c := *h
	c.Status = h.effectiveStatus(s.now())
	return c
}

// Snapshot returns every entry in stable kind order
func (s *Service) Snapshot() []ProviderHealth {
	kinds := providers.AllKinds()
	out := make([]ProviderHealth, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, s.Get(k))
	}
	return out
}

// GetStatus returns a health summary for the /health endpoint
func (s *Service) GetStatus() map[string]interface{} {
	counts := map[string]int{"healthy": 0, "unhealthy": 0, "cooldown": 0, "unknown": 0}
	snap := s.Snapshot()
	for _, h := range snap {
		counts[string(h.Status)]++
	}

	return map[string]interface{}{
		"total":     len(snap),
		"counts":    counts,
		"providers": snap,
	}
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
