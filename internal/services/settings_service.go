package services

import (
	"campusbot/internal/database"
	"campusbot/internal/models"
	"campusbot/internal/providers"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	settingsCacheTTL = 30 * time.Second
	appSettingsKey   = "app_settings"
)

// SettingsService handles system-wide settings stored in the settings table.
// Reads go through a short-lived cache that is dropped on every write.
type SettingsService struct {
	db    *database.DB
	cache *cache.Cache
}

// NewSettingsService creates a settings service over an initialized database
func NewSettingsService(db *database.DB) *SettingsService {
	return &SettingsService{
		db:    db,
		cache: cache.New(settingsCacheTTL, 2*settingsCacheTTL),
	}
}

// Get retrieves a setting by key. A missing key returns "".
func (s *SettingsService) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE setting_key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil // Not found is not an error
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// Set updates or creates a setting
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	query := "INSERT INTO settings (setting_key, value, updated_at) VALUES (?, ?, ?)" +
		s.db.UpsertClause("setting_key", "value", "updated_at")
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	s.cache.Delete(appSettingsKey)
	return nil
}

// GetAppSettings returns the application settings, filling unsaved keys with defaults
func (s *SettingsService) GetAppSettings(ctx context.Context) (models.AppSettings, error) {
	if cached, ok := s.cache.Get(appSettingsKey); ok {
		return cached.(models.AppSettings), nil
	}

	app := models.DefaultAppSettings()
	rows, err := s.db.QueryContext(ctx, "SELECT setting_key, value, updated_at FROM settings")
	if err != nil {
		return app, fmt.Errorf("failed to load settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st models.Setting
		if err := rows.Scan(&st.Key, &st.Value, &st.UpdatedAt); err != nil {
			return app, fmt.Errorf("failed to scan setting: %w", err)
		}
		switch st.Key {
		case models.SettingKeyAIProvider:
			app.AIProvider = st.Value
		case models.SettingKeyDenyWords:
			app.DenyWords = st.Value
		case models.SettingKeyMaxTokens:
			if n, err := strconv.Atoi(st.Value); err == nil {
				app.MaxTokens = n
			}
		case models.SettingKeyTemperature:
			app.Temperature = st.Value
		default:
			continue
		}
		if st.UpdatedAt.After(app.UpdatedAt) {
			app.UpdatedAt = st.UpdatedAt
		}
	}
	if err := rows.Err(); err != nil {
		return app, err
	}

	s.cache.Set(appSettingsKey, app, cache.DefaultExpiration)
	return app, nil
}

// UpdateAppSettings validates and saves every non-nil field of req
func (s *SettingsService) UpdateAppSettings(ctx context.Context, req *models.UpdateSettingsRequest) (models.AppSettings, error) {
	if err := req.Validate(); err != nil {
		return models.AppSettings{}, err
	}
	if req.AIProvider != nil {
		if _, err := providers.ParseSelection(*req.AIProvider); err != nil {
			return models.AppSettings{}, err
		}
	}

	updates := map[string]*string{
		models.SettingKeyAIProvider:  req.AIProvider,
		models.SettingKeyDenyWords:   req.DenyWords,
		models.SettingKeyTemperature: req.Temperature,
	}
	if req.MaxTokens != nil {
		v := strconv.Itoa(*req.MaxTokens)
		updates[models.SettingKeyMaxTokens] = &v
	}

	for key, value := range updates {
		if value == nil {
			continue
		}
		if err := s.Set(ctx, key, *value); err != nil {
			return models.AppSettings{}, err
		}
	}

	log.Printf("⚙️  [SETTINGS] Application settings updated")
	return s.GetAppSettings(ctx)
}

// SetOrgProvider stores the org-wide provider selection
func (s *SettingsService) SetOrgProvider(ctx context.Context, selection providers.Selection) error {
	return s.Set(ctx, models.SettingKeyAIProvider, string(selection))
}

// Preferences builds the persisted layer of credential resolution for a user's saved choice
func (s *SettingsService) Preferences(ctx context.Context, userPreference string) Preferences {
	app, err := s.GetAppSettings(ctx)
	if err != nil {
		log.Printf("⚠️  [SETTINGS] Using defaults, failed to load settings: %v", err)
	}
	prefs := Preferences{
		User:      userPreference,
		Org:       app.AIProvider,
		MaxTokens: app.MaxTokens,
	}
	if app.Temperature != "" {
		t := app.TemperatureValue()
		prefs.Temperature = &t
	}
	return prefs
}
