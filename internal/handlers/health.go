package handlers

import (
	"campusbot/internal/database"
	"campusbot/internal/health"
	"campusbot/internal/knowledge"
	"campusbot/internal/services"
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	healthService *health.Service
	db            *database.DB
	mongo         *database.MongoDB
	redis         *services.RedisService
	base          *knowledge.Base
	startedAt     time.Time
}

// NewHealthHandler creates a new health handler. Every dependency except
// healthService may be nil when it is not configured.
func NewHealthHandler(healthService *health.Service, db *database.DB, mongo *database.MongoDB, redis *services.RedisService, base *knowledge.Base) *HealthHandler {
	return &HealthHandler{
		healthService: healthService,
		db:            db,
		mongo:         mongo,
		redis:         redis,
		base:          base,
		startedAt:     time.Now(),
	}
}

// Handle responds with server and provider health
// GET /health
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "healthy"
	deps := fiber.Map{}
	check := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			deps[name] = "unavailable"
			status = "degraded"
			return
		}
		deps[name] = "ok"
	}

	if h.db != nil {
		check("database", h.db.PingContext)
	}
	if h.mongo != nil {
		check("mongodb", h.mongo.Ping)
	}
	if h.redis != nil {
		check("redis", h.redis.Ping)
	}

	body := fiber.Map{
		"status":       status,
		"dependencies": deps,
		"uptime":       time.Since(h.startedAt).Round(time.Second).String(),
		"timestamp":    time.Now().Format(time.RFC3339),
	}
	if h.healthService != nil {
		body["providers"] = h.healthService.GetStatus()
	}
	if h.base != nil {
		body["knowledge_documents"] = len(h.base.Documents())
	}

	code := fiber.StatusOK
	if status != "healthy" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(body)
}
