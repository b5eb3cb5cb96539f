package handlers

import (
	"campusbot/internal/middleware"
	"campusbot/pkg/auth"

	"github.com/gofiber/fiber/v2"
)

// Routes bundles everything RegisterRoutes mounts
type Routes struct {
	JWTAuth   *auth.LocalJWTAuth
	RateLimit *middleware.RateLimitConfig

	Auth      *LocalAuthHandler
	Chat      *ChatHandler
	Settings  *SettingsHandler
	Knowledge *KnowledgeHandler
	Health    *HealthHandler
}

// RegisterRoutes mounts /health and the /api tree on app
func RegisterRoutes(app *fiber.App, r *Routes) {
	rl := r.RateLimit
	if rl == nil {
		rl = middleware.DefaultRateLimitConfig()
	}

	required := middleware.LocalAuthMiddleware(r.JWTAuth)
	optional := middleware.OptionalLocalAuthMiddleware(r.JWTAuth)
	admin := middleware.AdminMiddleware()
	perUser := middleware.AuthenticatedRateLimiter(rl)
	chatLimit := middleware.ChatRateLimiter(rl)

	app.Get("/health", r.Health.Handle)

	api := app.Group("/api", middleware.GlobalAPIRateLimiter(rl))

	// Authentication
	authRoutes := api.Group("/auth")
	login := middleware.LoginRateLimiter(rl)
	authRoutes.Post("/register", login, r.Auth.Register)
	authRoutes.Post("/login", login, r.Auth.Login)
	authRoutes.Post("/refresh", login, r.Auth.RefreshToken)
	authRoutes.Post("/logout", r.Auth.Logout)
	authRoutes.Get("/me", required, r.Auth.GetCurrentUser)

	// Chat
	chat := api.Group("/chat")
	chat.Post("/message", optional, chatLimit, r.Chat.Message)
	chat.Post("/prompt_public", optional, chatLimit, r.Chat.Message)
	chat.Post("/prompt", required, chatLimit, r.Chat.Message)
	chat.Post("/prompt/stream", required, chatLimit, r.Chat.Stream)
	chat.Get("/", required, perUser, r.Chat.List)
	chat.Get("/messages/:id", required, perUser, r.Chat.Messages)
	chat.Put("/rename/:id", required, perUser, r.Chat.Rename)
	chat.Delete("/archive/:id", required, perUser, r.Chat.Archive)

	// Settings
	settings := api.Group("/settings")
	settings.Get("/provider", optional, middleware.PublicReadRateLimiter(rl), r.Settings.GetProvider)
	settings.Put("/provider", required, admin, r.Settings.SetProvider)
	settings.Get("/preference", required, r.Settings.GetPreference)
	settings.Put("/preference", required, perUser, r.Settings.SetPreference)
	settings.Post("/test-connection", optional, perUser, r.Settings.TestConnection)
	settings.Get("/", required, admin, r.Settings.GetSettings)
	settings.Put("/", required, admin, r.Settings.UpdateSettings)

	// Knowledge base administration
	kb := api.Group("/knowledge", required, admin)
	kb.Post("/upload", r.Knowledge.Upload)
	kb.Get("/documents", r.Knowledge.Documents)
	kb.Post("/reindex", r.Knowledge.Reindex)
}
