package sweeper

import (
	"context"
	"fmt"
	"log"
	"time"

	"medreminder-go/internal/metrics"
	"medreminder-go/internal/models"
	"medreminder-go/internal/notify"
	"medreminder-go/internal/schedule"
	"medreminder-go/internal/store"
)

// missedNotifyWindow caps how far back a freshly missed dose still
// earns a "you missed this" notification.
const missedNotifyWindow = time.Hour

// Store is the slice of the store the sweeper needs.
type Store interface {
	SweepMissed(ctx context.Context, cutoff time.Time, excludeUsers []int) ([]int, error)
	MissedCandidates(ctx context.Context, doseIDs []int) ([]store.ScheduleCandidate, error)
}

// Settings supplies the per-user auto-mark opt-out list.
type Settings interface {
	AutoMarkDisabledUsers(ctx context.Context) ([]int, error)
}

// Sweeper persists the missed transition for doses that slipped past
// the grace period. It is the only writer of the missed status;
// everything it does is a conditional update, so concurrent sweeps
// from other clients and concurrent mark-taken calls interleave
// safely.
type Sweeper struct {
	store    Store
	settings Settings
	channel  notify.Channel
}

func New(st Store, settings Settings, channel notify.Channel) *Sweeper {
	return &Sweeper{store: st, settings: settings, channel: channel}
}

// Sweep transitions every eligible dose to missed and returns how many
// moved. Doses that went missed just now (within the last hour) get a
// missed-dose notification; only freshly transitioned doses are
// notified, so repeated sweeps never re-notify.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	excluded, err := s.settings.AutoMarkDisabledUsers(ctx)
	if err != nil {
		// Settings being unreachable shouldn't stop the sweep; the
		// opt-out is a preference, not a correctness guard.
		log.Printf("Failed to load auto-mark opt-outs, sweeping all users: %v", err)
		excluded = nil
	}

	cutoff := now.Add(-schedule.GracePeriod)
	ids, err := s.store.SweepMissed(ctx, cutoff, excluded)
	if err != nil {
		return 0, fmt.Errorf("sweeping missed doses: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	metrics.DosesSwept.Add(float64(len(ids)))

	s.notifyMissed(ctx, ids, now)

	return len(ids), nil
}

func (s *Sweeper) notifyMissed(ctx context.Context, doseIDs []int, now time.Time) {
	candidates, err := s.store.MissedCandidates(ctx, doseIDs)
	if err != nil {
		log.Printf("Failed to load missed-dose candidates: %v", err)
		return
	}

	for _, c := range candidates {
		if now.Sub(c.DoseTime) > missedNotifyWindow {
			continue
		}

		payload := models.MissedPayload(c.DoseID, c.MedicineName, c.DoseTime)
		if err := s.channel.Deliver(ctx, c.Subscription, payload); err != nil {
			// Non-fatal: the dose is already persisted as missed.
			log.Printf("Failed to deliver missed notification for dose %d: %v", c.DoseID, err)
			metrics.NotificationsFailed.Inc()
			continue
		}
		metrics.NotificationsSent.Inc()
	}
}
