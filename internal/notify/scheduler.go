package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"medreminder-go/internal/metrics"
	"medreminder-go/internal/models"
	"medreminder-go/internal/store"
)

// DefaultWindow bounds the scheduling look-ahead so the number of
// outstanding assignments and fallback timers stays finite.
const DefaultWindow = 24 * time.Hour

// SchedulerStore is the slice of the notification store the scheduler
// needs.
type SchedulerStore interface {
	ScheduleCandidates(ctx context.Context, from, to time.Time) ([]store.ScheduleCandidate, error)
	CreateAssignments(ctx context.Context, assignments []models.NotificationAssignment) (int, error)
	DueAssignments(ctx context.Context, now time.Time) ([]store.AssignmentDelivery, error)
	ClaimAssignment(ctx context.Context, id int) (bool, error)
	MarkAssignmentFailed(ctx context.Context, id int) error
}

// Scheduler turns upcoming doses into durable notification
// assignments and drives their delivery. Assignments are the source of
// truth; the per-dose timers are a best-effort fallback that just
// triggers an early dispatch pass and wins or loses the claim like
// anyone else.
type Scheduler struct {
	store   SchedulerStore
	channel Channel
	window  time.Duration

	mu     sync.Mutex
	timers map[int]*time.Timer
}

func NewScheduler(st SchedulerStore, channel Channel, window time.Duration) *Scheduler {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Scheduler{
		store:   st,
		channel: channel,
		window:  window,
		timers:  make(map[int]*time.Timer),
	}
}

// ScheduleWindow creates assignments for every untaken dose inside
// (now, now+window] whose owner has an active subscription, and arms a
// fallback timer per dose. Re-invoking it on the same doses is a
// no-op: the store keeps at most one assignment per dose id, and the
// timer map keeps at most one timer. Users without a subscription
// yield no candidates, which is a normal state, not an error.
func (s *Scheduler) ScheduleWindow(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.store.ScheduleCandidates(ctx, now, now.Add(s.window))
	if err != nil {
		return 0, fmt.Errorf("fetching schedule candidates: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	assignments := make([]models.NotificationAssignment, 0, len(candidates))
	for _, c := range candidates {
		assignments = append(assignments, models.NotificationAssignment{
			UserID:         c.UserID,
			MedicineID:     c.MedicineID,
			DoseID:         c.DoseID,
			SubscriptionID: c.Subscription.ID,
			Title:          models.DoseTitle(c.MedicineName),
			Body:           models.DoseBody(c.MedicineName, c.Strength),
			ScheduledFor:   c.DoseTime,
		})
	}

	created, err := s.store.CreateAssignments(ctx, assignments)
	if err != nil {
		return 0, fmt.Errorf("creating assignments: %w", err)
	}
	metrics.AssignmentsScheduled.Add(float64(created))

	for _, c := range candidates {
		s.armFallback(c.DoseID, c.DoseTime.Sub(now))
	}

	return created, nil
}

// DispatchDue delivers every pending assignment whose scheduled time
// has arrived. Each assignment is claimed (pending -> sent) before the
// send, so concurrent dispatchers and fallback timers never deliver
// the same dose twice.
func (s *Scheduler) DispatchDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.DueAssignments(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("fetching due assignments: %w", err)
	}

	sent := 0
	for _, d := range due {
		claimed, err := s.store.ClaimAssignment(ctx, d.Assignment.ID)
		if err != nil {
			log.Printf("Failed to claim assignment %d: %v", d.Assignment.ID, err)
			continue
		}
		if !claimed {
			continue
		}

		payload := assignmentPayload(d.Assignment)
		if err := s.channel.Deliver(ctx, d.Subscription, payload); err != nil {
			log.Printf("Failed to deliver notification for dose %d: %v", d.Assignment.DoseID, err)
			metrics.NotificationsFailed.Inc()
			if err := s.store.MarkAssignmentFailed(ctx, d.Assignment.ID); err != nil {
				log.Printf("Failed to mark assignment %d failed: %v", d.Assignment.ID, err)
			}
			continue
		}

		metrics.NotificationsSent.Inc()
		sent++
	}

	return sent, nil
}

// Stop cancels every armed fallback timer. Durable assignments are
// untouched; a later dispatch pass picks them up.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// armFallback schedules a one-shot in-process dispatch at dose time.
// Timers die with the process; correctness rests on the assignment
// records and the periodic dispatch loop.
func (s *Scheduler) armFallback(doseID int, fireIn time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, armed := s.timers[doseID]; armed {
		return
	}
	if fireIn < 0 {
		fireIn = 0
	}

	s.timers[doseID] = time.AfterFunc(fireIn, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := s.DispatchDue(ctx, time.Now()); err != nil {
			log.Printf("Fallback dispatch failed: %v", err)
		}

		s.mu.Lock()
		delete(s.timers, doseID)
		s.mu.Unlock()
	})
}

func assignmentPayload(a models.NotificationAssignment) models.NotificationPayload {
	return models.NotificationPayload{
		Title: a.Title,
		Body:  a.Body,
		Tag:   fmt.Sprintf("dose-%d", a.DoseID),
		Data:  models.NotificationData{DoseID: a.DoseID, URL: "/dashboard"},
		Actions: []models.NotificationAction{
			{Action: "mark-taken", Title: "Mark as Taken"},
			{Action: "view", Title: "View Dashboard"},
		},
	}
}
