package handlers

import (
	"campusbot/internal/config"
	"campusbot/internal/models"
	"campusbot/internal/providers"
	"campusbot/internal/services"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
)

// SettingsHandler serves /api/settings
type SettingsHandler struct {
	settingsService *services.SettingsService
	userService     *services.UserService
	tester          *services.ConnectionTester
	resolver        *SettingsResolver
	defaults        *config.DefaultsStore
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settingsService *services.SettingsService, userService *services.UserService, tester *services.ConnectionTester, resolver *SettingsResolver, defaults *config.DefaultsStore) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
		userService:     userService,
		tester:          tester,
		resolver:        resolver,
		defaults:        defaults,
	}
}

// GetSettings returns the persisted application settings, with server
// defaults shown for anything never saved
// GET /api/settings/
func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	app, err := h.settingsService.GetAppSettings(c.UserContext())
	if err != nil {
		log.Printf("❌ [SETTINGS] Failed to load settings: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load settings",
		})
	}

	d := h.defaults.Load()
	return c.JSON(app.WithDefaults(string(d.Selection), d.Ollama.MaxTokens, d.Ollama.Temperature))
}

// UpdateSettings saves application settings
// PUT /api/settings/
func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	var req models.UpdateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if req.AIProvider != nil {
		sel, err := providers.ParseSelection(*req.AIProvider)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		normalized := string(sel)
		req.AIProvider = &normalized
	}

	app, err := h.settingsService.UpdateAppSettings(c.UserContext(), &req)
	if err != nil {
		log.Printf("❌ [SETTINGS] Failed to update settings: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update settings",
		})
	}

	log.Printf("⚙️  [SETTINGS] Updated by %s", principal(c).Email)
	d := h.defaults.Load()
	return c.JSON(app.WithDefaults(string(d.Selection), d.Ollama.MaxTokens, d.Ollama.Temperature))
}

// GetProvider reports the selection that applies to this caller and which
// providers are usable with the credentials it sent
// GET /api/settings/provider
func (h *SettingsHandler) GetProvider(c *fiber.Ctx) error {
	settings, err := h.resolver.Resolve(c)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(models.ProviderStatusResponse{
		AIProvider:         string(settings.Selection),
		AvailableProviders: settings.Available(),
	})
}

// SetProvider changes the org-wide provider selection
// PUT /api/settings/provider
func (h *SettingsHandler) SetProvider(c *fiber.Ctx) error {
	var req models.ProviderSelectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	sel, err := providers.ParseSelection(req.AIProvider)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.settingsService.SetOrgProvider(c.UserContext(), sel); err != nil {
		log.Printf("❌ [SETTINGS] Failed to save provider: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save provider",
		})
	}

	log.Printf("⚙️  [SETTINGS] Org provider set to %s by %s", sel, principal(c).Email)
	return c.JSON(fiber.Map{
		"success":     true,
		"ai_provider": sel,
	})
}

// GetPreference returns the caller's saved provider preference
// GET /api/settings/preference
func (h *SettingsHandler) GetPreference(c *fiber.Ctx) error {
	pref, err := h.userService.GetPreference(c.UserContext(), principal(c).UserID)
	if errors.Is(err, services.ErrUserNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}
	if err != nil {
		log.Printf("❌ [SETTINGS] Failed to load preference: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load preference",
		})
	}
	return c.JSON(models.ProviderSelectionRequest{AIProvider: pref})
}

// SetPreference saves the caller's provider preference. An empty value clears it.
// PUT /api/settings/preference
func (h *SettingsHandler) SetPreference(c *fiber.Ctx) error {
	var req models.ProviderSelectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	pref := ""
	if req.AIProvider != "" {
		sel, err := providers.ParseSelection(req.AIProvider)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		pref = string(sel)
	}

	err := h.userService.SetPreference(c.UserContext(), principal(c).UserID, pref)
	if errors.Is(err, services.ErrUserNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}
	if err != nil {
		log.Printf("❌ [SETTINGS] Failed to save preference: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save preference",
		})
	}
	return c.JSON(models.ProviderSelectionRequest{AIProvider: pref})
}

// TestConnection probes one provider. The result always has status 200;
// failures are reported in the body.
// POST /api/settings/test-connection
func (h *SettingsHandler) TestConnection(c *fiber.Ctx) error {
	var req models.TestConnectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	return c.JSON(h.tester.Test(c.UserContext(), req, principal(c)))
}
