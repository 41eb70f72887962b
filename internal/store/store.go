package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"medreminder-go/internal/models"
)

// ErrNotFound is returned for rows that don't exist or aren't owned by
// the requesting user. Cross-tenant reads are indistinguishable from
// missing rows on purpose.
var ErrNotFound = errors.New("not found")

// UserStore handles accounts.
type UserStore interface {
	CreateUser(ctx context.Context, email, password string) (models.User, error)
	GetUser(ctx context.Context, id int) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateUser2FA(ctx context.Context, userID int, totpSecret string, enabled bool) error
	Disable2FA(ctx context.Context, userID int) error
}

// DoseStore handles medicines and their dose rows. Every query is
// scoped by owner id; dose writes are conditional updates so
// concurrent clients can interleave safely.
type DoseStore interface {
	CreateMedicine(ctx context.Context, m models.Medicine) (models.Medicine, error)
	GetMedicine(ctx context.Context, id, userID int) (models.Medicine, error)
	GetMedicines(ctx context.Context, userID int) ([]models.Medicine, error)
	UpdateMedicine(ctx context.Context, m models.Medicine) (models.Medicine, error)
	DeleteMedicine(ctx context.Context, id, userID int) error

	CreateDoses(ctx context.Context, medicineID int, times []time.Time) ([]models.Dose, error)

	// RegenerateDoses atomically swaps the untaken doses at or after
	// from for the given timestamps. Taken doses are preserved.
	RegenerateDoses(ctx context.Context, medicineID int, from time.Time, times []time.Time) ([]models.Dose, error)
	GetDosesForMedicine(ctx context.Context, medicineID, userID int) ([]models.Dose, error)
	GetUpcomingDoses(ctx context.Context, userID int, now time.Time, limit int) ([]models.Dose, error)
	GetDosesBetween(ctx context.Context, userID int, from, to time.Time) ([]models.Dose, error)
	GetDoseHistory(ctx context.Context, userID int) ([]models.Dose, error)

	// MarkDoseTaken is the single authoritative taken transition. The
	// returned bool reports whether this call flipped the flag; an
	// already-taken dose comes back unchanged with false.
	MarkDoseTaken(ctx context.Context, doseID, userID int, at time.Time) (models.Dose, bool, error)

	// SweepMissed marks every over-grace untaken dose missed in one
	// conditional update and returns the transitioned dose ids. Rows
	// with taken=TRUE are never touched, whatever the cutoff.
	SweepMissed(ctx context.Context, cutoff time.Time, excludeUsers []int) ([]int, error)
}

// ScheduleCandidate is a dose eligible for notification scheduling,
// joined with its medicine and the owner's active push subscription.
type ScheduleCandidate struct {
	DoseID       int
	MedicineID   int
	UserID       int
	MedicineName string
	Strength     string
	DoseTime     time.Time
	Subscription models.PushSubscription
}

// AssignmentDelivery pairs a due assignment with the subscription it
// should be delivered to.
type AssignmentDelivery struct {
	Assignment   models.NotificationAssignment
	Subscription models.PushSubscription
}

// NotificationStore handles push subscriptions and durable
// notification assignments. The store guarantees at most one
// assignment per dose id.
type NotificationStore interface {
	SavePushSubscription(ctx context.Context, userID int, endpoint, p256dh, auth string) (models.PushSubscription, error)
	DeactivatePushSubscriptions(ctx context.Context, userID int) error
	ActivePushSubscription(ctx context.Context, userID int) (models.PushSubscription, error)

	ScheduleCandidates(ctx context.Context, from, to time.Time) ([]ScheduleCandidate, error)
	MissedCandidates(ctx context.Context, doseIDs []int) ([]ScheduleCandidate, error)

	CreateAssignments(ctx context.Context, assignments []models.NotificationAssignment) (int, error)
	DueAssignments(ctx context.Context, now time.Time) ([]AssignmentDelivery, error)

	// ClaimAssignment flips pending to sent and reports whether this
	// caller won the claim. Both the dispatch loop and the in-process
	// timer fallback go through it, so a dose is delivered at most once.
	ClaimAssignment(ctx context.Context, id int) (bool, error)
	MarkAssignmentFailed(ctx context.Context, id int) error
}

// SettingsStore handles per-user preference flags and the dose event
// fan-out (Redis). Dose events are published and consumed on a
// per-user channel; one user's stream never carries another's events.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID int) (models.Settings, error)
	SaveSettings(ctx context.Context, userID int, s models.Settings) error
	AutoMarkDisabledUsers(ctx context.Context) ([]int, error)
	PublishDoseTaken(ctx context.Context, userID int, ev models.DoseTakenEvent) error
	SubscribeDoseEvents(ctx context.Context, userID int) *redis.PubSub
}
