package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// GeneralSettings are the app-wide presentation defaults.
type GeneralSettings struct {
	AppName          string    `json:"appName"`
	MaxFileSize      int64     `json:"maxFileSize"`
	SessionTimeout   int       `json:"sessionTimeout"` // minutes
	DefaultChartType ChartType `json:"defaultChartType"`
	MaintenanceMode  bool      `json:"maintenanceMode"`
}

// SecuritySettings are the security knobs shown on the admin page.
type SecuritySettings struct {
	JWTExpiration     string `json:"jwtExpiration"`
	RateLimit         int    `json:"rateLimit"`
	Require2FA        bool   `json:"require2FA"`
	LogFailedAttempts bool   `json:"logFailedAttempts"`
	EmailAlerts       bool   `json:"emailAlerts"`
}

// EmailSettings describe outgoing mail. Nothing is sent from this server.
type EmailSettings struct {
	SMTPHost       string `json:"smtpHost"`
	SMTPPort       int    `json:"smtpPort"`
	FromEmail      string `json:"fromEmail"`
	WelcomeEmail   bool   `json:"welcomeEmail"`
	SecurityAlerts bool   `json:"securityAlerts"`
	SystemAlerts   bool   `json:"systemAlerts"`
}

// Settings are the admin-editable system settings. They live in process and
// reset to their configured defaults on restart.
type Settings struct {
	General  GeneralSettings  `json:"general"`
	Security SecuritySettings `json:"security"`
	Email    EmailSettings    `json:"email"`
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		General: GeneralSettings{
			AppName:          "Excel Analytics Platform",
			MaxFileSize:      10 << 20,
			SessionTimeout:   60,
			DefaultChartType: ChartBar,
		},
		Security: SecuritySettings{
			JWTExpiration:     "7d",
			RateLimit:         100,
			LogFailedAttempts: true,
			EmailAlerts:       true,
		},
		Email: EmailSettings{
			SMTPPort:       587,
			WelcomeEmail:   true,
			SecurityAlerts: true,
			SystemAlerts:   true,
		},
	}
}

// Validate checks the ranges an admin may set.
func (s Settings) Validate() error {
	var errs []string
	if strings.TrimSpace(s.General.AppName) == "" {
		errs = append(errs, "general.appName is required")
	}
	if s.General.MaxFileSize <= 0 {
		errs = append(errs, "general.maxFileSize must be positive")
	}
	if s.General.SessionTimeout <= 0 {
		errs = append(errs, "general.sessionTimeout must be positive")
	}
	if !s.General.DefaultChartType.Valid() {
		errs = append(errs, fmt.Sprintf("general.defaultChartType %q is not a chart type", s.General.DefaultChartType))
	}
	if s.Security.RateLimit < 0 {
		errs = append(errs, "security.rateLimit must not be negative")
	}
	if s.Email.SMTPPort < 0 || s.Email.SMTPPort > 65535 {
		errs = append(errs, "email.smtpPort must be between 0 and 65535")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(errs, "; "))
	}
	return nil
}

type settingsHolder struct {
	mu sync.RWMutex
	s  Settings
}

func newSettingsHolder(s Settings) *settingsHolder {
	if s.General.AppName == "" {
		s = DefaultSettings()
	}
	return &settingsHolder{s: s}
}

func (h *settingsHolder) get() Settings {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.s
}

// Settings returns the current system settings.
func (s *Service) Settings() Settings {
	return s.settings.get()
}

// UpdateSettings merges a partial JSON document into the current settings.
// Sections and fields absent from raw keep their values.
func (s *Service) UpdateSettings(ctx context.Context, actorID string, raw json.RawMessage) (Settings, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return Settings{}, fmt.Errorf("%w: settings must be a JSON object", ErrInvalidRequest)
	}

	h := s.settings
	h.mu.Lock()
	next := h.s
	if err := json.Unmarshal(raw, &next); err != nil {
		h.mu.Unlock()
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Settings{}, fmt.Errorf("%w: %s has the wrong type", ErrInvalidRequest, typeErr.Field)
		}
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := next.Validate(); err != nil {
		h.mu.Unlock()
		return Settings{}, err
	}
	h.s = next
	h.mu.Unlock()

	updated := make([]string, 0, len(keys))
	for k := range keys {
		updated = append(updated, k)
	}
	sort.Strings(updated)

	s.logActivity(ctx, activityParams{
		UserID:       actorID,
		Action:       ActionAdminUpdateSettings,
		ResourceType: ResourceSystem,
		Metadata:     map[string]any{"updatedSettings": updated},
	})
	return next, nil
}

// defaultChartType is the chart type used when a request names none.
func (s *Service) defaultChartType() ChartType {
	t := s.settings.get().General.DefaultChartType
	if !t.Valid() {
		return ChartBar
	}
	return t
}
