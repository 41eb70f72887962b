package models

import "time"

// Recurrence kinds a medicine schedule can use.
const (
	FrequencyDaily         = "daily"
	FrequencyEveryOtherDay = "every_other_day"
	FrequencyWeekly        = "weekly"
)

// Medicine lifecycle status.
const (
	MedicineActive    = "active"
	MedicineCompleted = "completed"
)

type Medicine struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	Name         string    `json:"name"`
	Formula      string    `json:"formula,omitempty"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	Strength     string    `json:"strength,omitempty"`
	StartDate    time.Time `json:"start_date"`
	Frequency    string    `json:"frequency"`
	DoseTimes    []string  `json:"dose_times"` // "HH:MM", insertion order is generation order
	DurationDays int       `json:"duration_days"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
