package handlers

import (
	"campusbot/internal/config"
	"campusbot/internal/logging"
	"campusbot/internal/providers"
	"campusbot/internal/services"
	"context"
	"errors"
	"log"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// principal reads the caller set by the auth middlewares. Anonymous callers
// get the zero Principal.
func principal(c *fiber.Ctx) services.Principal {
	userID, _ := c.Locals("user_id").(string)
	email, _ := c.Locals("user_email").(string)
	role, _ := c.Locals("user_role").(string)
	return services.Principal{UserID: userID, Email: email, Role: role}
}

func requestLogger(c *fiber.Ctx, chatID string) *slog.Logger {
	requestID, _ := c.Locals("requestid").(string)
	userID, _ := c.Locals("user_id").(string)
	return logging.WithRequest(requestID, userID, chatID)
}

// errorBody maps a chat or provider error to its HTTP status and JSON body
func errorBody(err error) (int, fiber.Map) {
	var cfgErr *providers.ConfigError
	var composite *providers.CompositeError

	switch {
	case errors.As(err, &cfgErr):
		return fiber.StatusBadRequest, fiber.Map{
			"success": false,
			"error":   "config_error",
			"message": cfgErr.Error(),
		}
	case errors.As(err, &composite):
		attempts := composite.Attempts
		if attempts == nil {
			attempts = []providers.Attempt{}
		}
		return fiber.StatusBadGateway, fiber.Map{
			"success":  false,
			"error":    "all_providers_failed",
			"message":  composite.UserMessage(),
			"attempts": attempts,
		}
	case errors.Is(err, services.ErrDeniedContent):
		return fiber.StatusBadRequest, fiber.Map{
			"success": false,
			"error":   "denied_content",
			"message": "Your message contains restricted content and cannot be processed.",
		}
	case errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrMessageTooLong),
		errors.Is(err, services.ErrInvalidTitle):
		return fiber.StatusBadRequest, fiber.Map{
			"success": false,
			"error":   "invalid_request",
			"message": err.Error(),
		}
	case errors.Is(err, services.ErrChatNotFound):
		return fiber.StatusNotFound, fiber.Map{
			"success": false,
			"error":   "not_found",
			"message": "Chat not found",
		}
	case errors.Is(err, context.Canceled):
		return fiber.StatusRequestTimeout, fiber.Map{
			"success": false,
			"error":   "cancelled",
			"message": "Request was cancelled",
		}
	}

	log.Printf("❌ [CHAT] Unexpected error: %v", err)
	return fiber.StatusInternalServerError, fiber.Map{
		"success": false,
		"error":   "internal_error",
		"message": "Something went wrong. Please try again.",
	}
}

// requestContext ends with the user context or when the server shuts down.
// fasthttp does not report client disconnects to buffered handlers, so an
// abandoned request runs until its provider deadlines expire.
func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(c.UserContext())
	if done := c.Context().Done(); done != nil {
		go func() {
			select {
			case <-done:
				cancel()
			case <-ctx.Done():
			}
		}()
	}
	return ctx, cancel
}

func respondError(c *fiber.Ctx, err error) error {
	status, body := errorBody(err)
	return c.Status(status).JSON(body)
}

// SettingsResolver builds the request-scoped EffectiveSettings from headers,
// the caller's saved preference, org settings and the server defaults.
type SettingsResolver struct {
	settings *services.SettingsService
	users    *services.UserService
	defaults *config.DefaultsStore
}

// NewSettingsResolver creates a resolver. users may be nil.
func NewSettingsResolver(settings *services.SettingsService, users *services.UserService, defaults *config.DefaultsStore) *SettingsResolver {
	return &SettingsResolver{settings: settings, users: users, defaults: defaults}
}

// Resolve merges every layer for the current request. Nothing is cached.
func (r *SettingsResolver) Resolve(c *fiber.Ctx) (services.EffectiveSettings, error) {
	p := principal(c)

	userPref := ""
	if p.Authenticated() && r.users != nil {
		pref, err := r.users.GetPreference(c.UserContext(), p.UserID)
		if err != nil && !errors.Is(err, services.ErrUserNotFound) {
			log.Printf("⚠️  [SETTINGS] Failed to load preference for %s: %v", p.UserID, err)
		}
		userPref = pref
	}

	var prefs services.Preferences
	if r.settings != nil {
		prefs = r.settings.Preferences(c.UserContext(), userPref)
	} else {
		prefs.User = userPref
	}

	return services.ResolveCredentials(services.CredentialsFromHeaders(c.Get), prefs, r.defaults.Load())
}
