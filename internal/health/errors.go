package health

import (
	"campusbot/internal/providers"
	"net/http"
	"strings"
	"time"
)

// IsQuotaError detects if an upstream failure is related to quota exhaustion or rate limiting
func IsQuotaError(err error) bool {
	ue, ok := providers.AsUpstream(err)
	if !ok {
		return false
	}
	return ue.Kind == providers.ErrRateLimited || ue.StatusCode == http.StatusTooManyRequests
}

// ParseCooldownDuration determines the appropriate cooldown based on the upstream response
func ParseCooldownDuration(statusCode int, responseBody string) time.Duration {
	lowerBody := strings.ToLower(responseBody)

	// Daily limit or billing issues - cool down for a long time
	if strings.Contains(lowerBody, "daily limit") ||
		strings.Contains(lowerBody, "billing") ||
		strings.Contains(lowerBody, "insufficient_quota") {
		return 24 * time.Hour
	}

	// Rate limit (per-minute) - short cooldown
	if statusCode == http.StatusTooManyRequests ||
		strings.Contains(lowerBody, "tokens per minute") ||
		strings.Contains(lowerBody, "requests per minute") {
		return 5 * time.Minute
	}

	return 1 * time.Hour
}
