package schedule

import (
	"time"

	"medreminder-go/internal/models"
)

// Status is the real-time classification of a dose.
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusDue      Status = "due"
	StatusOverdue  Status = "overdue"
	StatusMissed   Status = "missed"
	StatusTaken    Status = "taken"
)

const (
	// GracePeriod is the window around a dose's scheduled time during
	// which it counts as due rather than upcoming or overdue.
	GracePeriod = 15 * time.Minute

	// NearWindow bounds the "coming up soon" display hint.
	NearWindow = 30 * time.Minute
)

// Classify returns the status of a dose at the given instant. Taken
// wins outright; the due window spans GracePeriod on both sides of the
// scheduled time. Pure and deterministic, safe to call every tick.
func Classify(scheduledAt time.Time, taken bool, now time.Time) Status {
	if taken {
		return StatusTaken
	}

	diff := now.Sub(scheduledAt)
	if diff < 0 {
		diff = -diff
	}
	if diff <= GracePeriod {
		return StatusDue
	}
	if now.Before(scheduledAt) {
		return StatusUpcoming
	}
	return StatusOverdue
}

// ClassifyDose is Classify plus the persisted terminal state: a dose
// the sweeper already marked missed stays missed.
func ClassifyDose(d models.Dose, now time.Time) Status {
	if !d.Taken && d.Status == models.DoseMissed {
		return StatusMissed
	}
	return Classify(d.DoseTime, d.Taken, now)
}

// Near reports whether an upcoming dose is within the countdown
// highlight window. Display-only, never persisted.
func Near(scheduledAt, now time.Time) bool {
	diff := scheduledAt.Sub(now)
	return diff > 0 && diff <= NearWindow
}
