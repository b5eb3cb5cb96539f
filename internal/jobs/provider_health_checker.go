package jobs

import (
	"campusbot/internal/config"
	"campusbot/internal/health"
	"campusbot/internal/models"
	"campusbot/internal/providers"
	"campusbot/internal/services"
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"
)

// systemPrincipal lets the probe use server-held keys
var systemPrincipal = services.Principal{UserID: "system", Role: models.RoleAdmin}

// ProbeResult is the outcome of probing one provider
type ProbeResult struct {
	Provider providers.Kind
	Result   *providers.TestResult
	Elapsed  time.Duration
}

// ProviderHealthChecker probes every provider configured with server
// defaults and feeds the outcome into the health service
type ProviderHealthChecker struct {
	tester        *services.ConnectionTester
	defaults      *config.DefaultsStore
	healthService *health.Service
	limiter       *rate.Limiter
}

// NewProviderHealthChecker creates a new provider health checker job.
// Probes are spaced by at least gap. healthService may be nil.
func NewProviderHealthChecker(tester *services.ConnectionTester, defaults *config.DefaultsStore, healthService *health.Service, gap time.Duration) *ProviderHealthChecker {
	limit := rate.Inf
	if gap > 0 {
		limit = rate.Every(gap)
	}
	return &ProviderHealthChecker{
		tester:        tester,
		defaults:      defaults,
		healthService: healthService,
		limiter:       rate.NewLimiter(limit, 1),
	}
}

// configured lists the kinds the server can probe on its own
func (p *ProviderHealthChecker) configured() []providers.Kind {
	d := p.defaults.Load()
	var kinds []providers.Kind
	for _, k := range providers.AllKinds() {
		if k.Hosted() && !d.HasServerKey(k) {
			continue
		}
		if !k.Hosted() && providers.ValidateBaseURL(d.Ollama.BaseURL) != nil {
			continue
		}
		kinds = append(kinds, k)
	}
	return kinds
}

// Probe tests each configured provider once and returns the results
func (p *ProviderHealthChecker) Probe(ctx context.Context) ([]ProbeResult, error) {
	var results []ProbeResult
	for _, kind := range p.configured() {
		if err := p.limiter.Wait(ctx); err != nil {
			return results, err
		}

		start := time.Now()
		res := p.tester.Test(ctx, models.TestConnectionRequest{Provider: string(kind)}, systemPrincipal)
		elapsed := time.Since(start)

		if p.healthService != nil {
			if res.Success {
				p.healthService.MarkHealthy(kind, elapsed)
			} else {
				p.healthService.MarkUnhealthy(kind, res.Message)
			}
		}
		results = append(results, ProbeResult{Provider: kind, Result: res, Elapsed: elapsed})
	}
	return results, nil
}

// Run executes one round of probes
func (p *ProviderHealthChecker) Run(ctx context.Context) error {
	log.Println("🩺 [HEALTH-JOB] Starting provider health checks...")

	results, err := p.Probe(ctx)
	healthy := 0
	for _, r := range results {
		if r.Result.Success {
			healthy++
			continue
		}
		log.Printf("⚠️  [HEALTH-JOB] %s: FAILED (%s)", r.Provider, r.Result.Message)
	}

	log.Printf("🩺 [HEALTH-JOB] Health checks complete: %d checked, %d healthy", len(results), healthy)
	return err
}
