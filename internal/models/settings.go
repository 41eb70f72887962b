package models

// Settings are per-user preference flags, stored as a key/value hash.
type Settings struct {
	PushNotifications bool `json:"push_notifications"`
	ReminderSound     bool `json:"reminder_sound"`
	AutoMarkMissed    bool `json:"auto_mark_missed"`
}

// DefaultSettings matches the defaults a fresh client starts with.
func DefaultSettings() Settings {
	return Settings{
		PushNotifications: false,
		ReminderSound:     true,
		AutoMarkMissed:    true,
	}
}
