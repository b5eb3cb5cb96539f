package middleware

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP)
	GlobalAPIMax        int
	GlobalAPIExpiration time.Duration

	// Public endpoint limits (per IP)
	PublicReadMax        int
	PublicReadExpiration time.Duration

	// Authenticated endpoint limits (per user ID)
	AuthenticatedMax        int
	AuthenticatedExpiration time.Duration

	// Login and registration attempts (per IP)
	LoginMax        int
	LoginExpiration time.Duration

	// Chat generation (per user ID, or IP for anonymous callers)
	ChatMax        int
	ChatExpiration time.Duration

	// Storage shares counters between instances. Nil keeps them in memory.
	Storage fiber.Storage
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		GlobalAPIMax:        200,
		GlobalAPIExpiration: 1 * time.Minute,

		PublicReadMax:        120,
		PublicReadExpiration: 1 * time.Minute,

		AuthenticatedMax:        60,
		AuthenticatedExpiration: 1 * time.Minute,

		// 10 attempts per 15 minutes
		LoginMax:        10,
		LoginExpiration: 15 * time.Minute,

		// every message may fan out to several providers
		ChatMax:        20,
		ChatExpiration: 1 * time.Minute,
	}
}

// LoadRateLimitConfig loads config from environment variables with defaults
func LoadRateLimitConfig() *RateLimitConfig {
	config := DefaultRateLimitConfig()

	overrides := map[string]*int{
		"RATE_LIMIT_GLOBAL_API":    &config.GlobalAPIMax,
		"RATE_LIMIT_PUBLIC_READ":   &config.PublicReadMax,
		"RATE_LIMIT_AUTHENTICATED": &config.AuthenticatedMax,
		"RATE_LIMIT_LOGIN":         &config.LoginMax,
		"RATE_LIMIT_CHAT":          &config.ChatMax,
	}
	for key, target := range overrides {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*target = n
			}
		}
	}

	// Development mode: more lenient limits
	if os.Getenv("ENVIRONMENT") == "development" {
		config.GlobalAPIMax = 1000
		config.LoginMax = 100
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}

	return config
}

// userOrIP keys a limiter by user ID when authenticated, IP otherwise
func userOrIP(prefix string) func(c *fiber.Ctx) string {
	return func(c *fiber.Ctx) string {
		if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
			return prefix + ":" + userID
		}
		return prefix + "-ip:" + c.IP()
	}
}

func tooManyRequests(message string, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":       message,
			"retry_after": int(window.Seconds()),
		})
	}
}

// GlobalAPIRateLimiter creates a rate limiter for all API requests
func GlobalAPIRateLimiter(config *RateLimitConfig) fiber.Handler {
	reached := tooManyRequests("Too many requests. Please slow down.", config.GlobalAPIExpiration)
	return limiter.New(limiter.Config{
		Max:        config.GlobalAPIMax,
		Expiration: config.GlobalAPIExpiration,
		Storage:    config.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "global:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Global limit reached for IP: %s", c.IP())
			return reached(c)
		},
	})
}

// PublicReadRateLimiter for public read-only endpoints
func PublicReadRateLimiter(config *RateLimitConfig) fiber.Handler {
	reached := tooManyRequests("Too many requests to this endpoint.", config.PublicReadExpiration)
	return limiter.New(limiter.Config{
		Max:        config.PublicReadMax,
		Expiration: config.PublicReadExpiration,
		Storage:    config.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "public:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Public endpoint limit reached for IP: %s on %s", c.IP(), c.Path())
			return reached(c)
		},
	})
}

// AuthenticatedRateLimiter for authenticated endpoints (uses user ID)
func AuthenticatedRateLimiter(config *RateLimitConfig) fiber.Handler {
	reached := tooManyRequests("Too many requests. Please wait before trying again.", config.AuthenticatedExpiration)
	return limiter.New(limiter.Config{
		Max:          config.AuthenticatedMax,
		Expiration:   config.AuthenticatedExpiration,
		Storage:      config.Storage,
		KeyGenerator: userOrIP("auth"),
		LimitReached: func(c *fiber.Ctx) error {
			userID, _ := c.Locals("user_id").(string)
			log.Printf("⚠️  [RATE-LIMIT] Auth endpoint limit reached for user: %s on %s", userID, c.Path())
			return reached(c)
		},
	})
}

// LoginRateLimiter slows down credential guessing on /api/auth
func LoginRateLimiter(config *RateLimitConfig) fiber.Handler {
	reached := tooManyRequests("Too many login attempts. Please try again later.", config.LoginExpiration)
	return limiter.New(limiter.Config{
		Max:        config.LoginMax,
		Expiration: config.LoginExpiration,
		Storage:    config.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "login:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Login limit reached for IP: %s", c.IP())
			return reached(c)
		},
	})
}

// ChatRateLimiter limits message generation. It must run after one of the
// auth middlewares so authenticated users get their own bucket.
func ChatRateLimiter(config *RateLimitConfig) fiber.Handler {
	reached := tooManyRequests("Message rate limit reached. Please wait before sending more.", config.ChatExpiration)
	return limiter.New(limiter.Config{
		Max:          config.ChatMax,
		Expiration:   config.ChatExpiration,
		Storage:      config.Storage,
		KeyGenerator: userOrIP("chat"),
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Chat limit reached for: %v", c.Locals("user_id"))
			return reached(c)
		},
	})
}
