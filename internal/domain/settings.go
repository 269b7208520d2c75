package domain

// Settings is the single object stored in settings.json.
type Settings struct {
	BotName         string    `json:"bot_name" validate:"required"`
	WelcomeMessage  string    `json:"welcome_message"`
	WebsiteURL      string    `json:"website_url" validate:"omitempty,url"`
	AdminPanelURL   string    `json:"admin_panel_url" validate:"omitempty,url"`
	MiniAppURL      string    `json:"mini_app_url,omitempty" validate:"omitempty,url"`
	MaintenanceMode bool      `json:"maintenance_mode"`
	MaxUsers        int       `json:"max_users" validate:"gte=0"`
	CreatedAt       Timestamp `json:"created_at"`
	UpdatedAt       Timestamp `json:"updated_at"`
}

// SettingsPatch is a partial update; nil fields are left untouched.
type SettingsPatch struct {
	BotName         *string `json:"bot_name,omitempty"`
	WelcomeMessage  *string `json:"welcome_message,omitempty"`
	WebsiteURL      *string `json:"website_url,omitempty"`
	AdminPanelURL   *string `json:"admin_panel_url,omitempty"`
	MiniAppURL      *string `json:"mini_app_url,omitempty"`
	MaintenanceMode *bool   `json:"maintenance_mode,omitempty"`
	MaxUsers        *int    `json:"max_users,omitempty"`
}

// Empty reports whether the patch sets nothing.
func (p SettingsPatch) Empty() bool {
	return p.BotName == nil && p.WelcomeMessage == nil && p.WebsiteURL == nil &&
		p.AdminPanelURL == nil && p.MiniAppURL == nil && p.MaintenanceMode == nil && p.MaxUsers == nil
}

// Apply writes every set field of p into s.
func (p SettingsPatch) Apply(s *Settings) {
	if s == nil {
		return
	}

	if p.BotName != nil {
		s.BotName = *p.BotName
	}
	if p.WelcomeMessage != nil {
		s.WelcomeMessage = *p.WelcomeMessage
	}
	if p.WebsiteURL != nil {
		s.WebsiteURL = *p.WebsiteURL
	}
	if p.AdminPanelURL != nil {
		s.AdminPanelURL = *p.AdminPanelURL
	}
	if p.MiniAppURL != nil {
		s.MiniAppURL = *p.MiniAppURL
	}
	if p.MaintenanceMode != nil {
		s.MaintenanceMode = *p.MaintenanceMode
	}
	if p.MaxUsers != nil {
		s.MaxUsers = *p.MaxUsers
	}
}

// CapacityReached reports whether a store holding count users is full. MaxUsers 0 means unlimited.
func (s *Settings) CapacityReached(count int) bool {
	return s != nil && s.MaxUsers > 0 && count >= s.MaxUsers
}
