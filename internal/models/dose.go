package models

import "time"

// Persisted dose status. "missed" is terminal and only ever written by
// the sweeper; the transient overdue view is computed, never stored.
const (
	DoseScheduled = "scheduled"
	DoseTaken     = "taken"
	DoseMissed    = "missed"
)

type Dose struct {
	ID         int        `json:"id"`
	MedicineID int        `json:"medicine_id"`
	DoseTime   time.Time  `json:"dose_time"`
	Taken      bool       `json:"taken"`
	TakenAt    *time.Time `json:"taken_at,omitempty"`
	Status     string     `json:"status"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// Joined medicine fields for display, populated by list queries.
	MedicineName     string `json:"medicine_name,omitempty"`
	MedicineStrength string `json:"medicine_strength,omitempty"`
}

// DoseTakenEvent is the single inbound event consumed by the mark-taken
// transition, regardless of origin (UI click, push action, service
// worker relay). It is also what the SSE stream fans out.
type DoseTakenEvent struct {
	DoseID  int       `json:"dose_id"`
	TakenAt time.Time `json:"taken_at"`
	Source  string    `json:"source,omitempty"`
}
