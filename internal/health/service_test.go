package health

import (
	"campusbot/internal/providers"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestRecordSuccessMarksHealthy(t *testing.T) {
	s := NewService(3, time.Hour)

	s.Record(providers.KindOllama, nil, 120*time.Millisecond)

	h := s.Get(providers.KindOllama)
	if h.Status != StatusHealthy {
		t.Errorf("Expected healthy, got %s", h.Status)
	}
	if h.LastLatencyMs != 120 {
		t.Errorf("Expected latency 120ms, got %d", h.LastLatencyMs)
	}
}

func TestRecordFailuresReachThreshold(t *testing.T) {
	s := NewService(2, time.Hour)
	err := &providers.UpstreamError{Provider: providers.KindOpenAI, Kind: providers.ErrUnreachable}

	s.Record(providers.KindOpenAI, err, 0)
	if got := s.Get(providers.KindOpenAI).Status; got != StatusUnknown {
		t.Errorf("Expected unknown after one failure, got %s", got)
	}

	s.Record(providers.KindOpenAI, err, 0)
	if got := s.Get(providers.KindOpenAI).Status; got != StatusUnhealthy {
		t.Errorf("Expected unhealthy after threshold, got %s", got)
	}

	s.Record(providers.KindOpenAI, nil, 0)
	h := s.Get(providers.KindOpenAI)
	if h.Status != StatusHealthy || h.FailureCount != 0 {
		t.Errorf("Expected recovery to reset state, got %+v", h)
	}
}

func TestRecordRateLimitStartsCooldown(t *testing.T) {
	s := NewService(3, time.Hour)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	err := &providers.UpstreamError{
		Provider:   providers.KindGemini,
		Kind:       providers.ErrRateLimited,
		StatusCode: http.StatusTooManyRequests,
	}
	s.Record(providers.KindGemini, err, 0)

	if !s.IsInCooldown(providers.KindGemini) {
		t.Fatal("Expected cooldown after rate limit")
	}
	if got := s.Get(providers.KindGemini).CooldownUntil; !got.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("Expected 5 minute cooldown, got %s", got)
	}

	now = now.Add(6 * time.Minute)
	if s.IsInCooldown(providers.KindGemini) {
		t.Error("Expected cooldown to expire")
	}
	if got := s.Get(providers.KindGemini).Status; got != StatusUnknown {
		t.Errorf("Expected expired cooldown to report unknown, got %s", got)
	}
}

func TestIsQuotaErrorIgnoresPlainErrors(t *testing.T) {
	if IsQuotaError(errors.New("rate limit")) {
		t.Error("Only classified upstream errors count as quota errors")
	}
}

func TestParseCooldownDuration(t *testing.T) {
	if d := ParseCooldownDuration(429, `{"error":{"code":"insufficient_quota"}}`); d != 24*time.Hour {
		t.Errorf("Expected 24h for billing quota, got %s", d)
	}
	if d := ParseCooldownDuration(429, ""); d != 5*time.Minute {
		t.Errorf("Expected 5m for rate limit, got %s", d)
	}
	if d := ParseCooldownDuration(0, "unknown"); d != time.Hour {
		t.Errorf("Expected 1h default, got %s", d)
	}
}

func TestSnapshotOrder(t *testing.T) {
	snap := NewService(0, 0).Snapshot()
	if len(snap) != 3 || snap[0].Provider != providers.KindOllama {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
}
