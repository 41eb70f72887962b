package models

import (
	"fmt"
	"time"
)

// Notification assignment status.
const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// NotificationAssignment is a durable record of an intended push
// delivery for one dose. At most one assignment exists per dose id,
// enforced by the store.
type NotificationAssignment struct {
	ID             int       `json:"id"`
	UserID         int       `json:"user_id"`
	MedicineID     int       `json:"medicine_id"`
	DoseID         int       `json:"dose_id"`
	SubscriptionID int       `json:"push_subscription_id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Status         string    `json:"status"`
	ScheduledFor   time.Time `json:"scheduled_for"`
	CreatedAt      time.Time `json:"created_at"`
}

// NotificationPayload is the wire contract sent to the push transport.
type NotificationPayload struct {
	Title   string               `json:"title"`
	Body    string               `json:"body"`
	Tag     string               `json:"tag"`
	Data    NotificationData     `json:"data"`
	Actions []NotificationAction `json:"actions"`
}

type NotificationData struct {
	DoseID int    `json:"doseId,omitempty"`
	URL    string `json:"url"`
}

type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// DoseTitle and DoseBody build the reminder text for a dose of the
// given medicine. Strength is appended only when set.
func DoseTitle(name string) string {
	return fmt.Sprintf("Time for %s", name)
}

func DoseBody(name, strength string) string {
	if strength != "" {
		return fmt.Sprintf("It's time to take your %s (%s)", name, strength)
	}
	return fmt.Sprintf("It's time to take your %s", name)
}

// DuePayload is the notification shown at dose time.
func DuePayload(doseID int, name, strength string) NotificationPayload {
	return NotificationPayload{
		Title: DoseTitle(name),
		Body:  DoseBody(name, strength),
		Tag:   fmt.Sprintf("dose-%d", doseID),
		Data:  NotificationData{DoseID: doseID, URL: "/dashboard"},
		Actions: []NotificationAction{
			{Action: "mark-taken", Title: "Mark as Taken"},
			{Action: "view", Title: "View Dashboard"},
		},
	}
}

// MissedPayload is the notification shown after a dose goes missed.
func MissedPayload(doseID int, name string, doseTime time.Time) NotificationPayload {
	return NotificationPayload{
		Title: fmt.Sprintf("Missed: %s", name),
		Body:  fmt.Sprintf("You missed your %s dose scheduled for %s", name, doseTime.Format("3:04 PM")),
		Tag:   fmt.Sprintf("missed-%d", doseID),
		Data:  NotificationData{DoseID: doseID, URL: "/dashboard"},
		Actions: []NotificationAction{
			{Action: "take-late", Title: "Take Now"},
			{Action: "skip", Title: "Skip"},
		},
	}
}

// TestPayload backs the settings page "send test notification" button.
func TestPayload() NotificationPayload {
	return NotificationPayload{
		Title: "Test Notification",
		Body:  "This is a test notification from MedReminder!",
		Tag:   "test-notification",
		Data:  NotificationData{URL: "/dashboard"},
		Actions: []NotificationAction{
			{Action: "view", Title: "View Dashboard"},
		},
	}
}
