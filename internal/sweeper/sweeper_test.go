package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medreminder-go/internal/models"
	"medreminder-go/internal/store"
)

type fakeDose struct {
	id       int
	userID   int
	doseTime time.Time
	taken    bool
	status   string
}

// fakeSweepStore mirrors the real store's sweep semantics: the missed
// transition is conditional, so taken doses and already-missed doses
// never come back from SweepMissed.
type fakeSweepStore struct {
	doses []*fakeDose
}

func (f *fakeSweepStore) SweepMissed(ctx context.Context, cutoff time.Time, excludeUsers []int) ([]int, error) {
	excluded := make(map[int]bool, len(excludeUsers))
	for _, id := range excludeUsers {
		excluded[id] = true
	}

	var ids []int
	for _, d := range f.doses {
		if d.taken || d.status == models.DoseMissed || excluded[d.userID] {
			continue
		}
		if d.doseTime.Before(cutoff) {
			d.status = models.DoseMissed
			ids = append(ids, d.id)
		}
	}
	return ids, nil
}

func (f *fakeSweepStore) MissedCandidates(ctx context.Context, doseIDs []int) ([]store.ScheduleCandidate, error) {
	want := make(map[int]bool, len(doseIDs))
	for _, id := range doseIDs {
		want[id] = true
	}

	var out []store.ScheduleCandidate
	for _, d := range f.doses {
		if want[d.id] {
			out = append(out, store.ScheduleCandidate{
				DoseID:       d.id,
				UserID:       d.userID,
				MedicineName: "Metformin",
				DoseTime:     d.doseTime,
				Subscription: models.PushSubscription{ID: 1, Endpoint: "https://push.example/sub"},
			})
		}
	}
	return out, nil
}

type fakeSettings struct {
	disabled []int
	err      error
}

func (f *fakeSettings) AutoMarkDisabledUsers(ctx context.Context) ([]int, error) {
	return f.disabled, f.err
}

type recordingChannel struct {
	delivered []models.NotificationPayload
}

func (r *recordingChannel) Deliver(ctx context.Context, sub models.PushSubscription, payload models.NotificationPayload) error {
	r.delivered = append(r.delivered, payload)
	return nil
}

func TestSweepMarksOverdueDoses(t *testing.T) {
	now := time.Now()
	st := &fakeSweepStore{doses: []*fakeDose{
		{id: 1, userID: 1, doseTime: now.Add(-30 * time.Minute), status: models.DoseScheduled},
		{id: 2, userID: 1, doseTime: now.Add(-10 * time.Minute), status: models.DoseScheduled},
		{id: 3, userID: 1, doseTime: now.Add(time.Hour), status: models.DoseScheduled},
	}}
	ch := &recordingChannel{}
	s := New(st, &fakeSettings{}, ch)

	n, err := s.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Only the dose past the grace period moved; the within-grace dose
	// is still due and the future dose untouched.
	assert.Equal(t, models.DoseMissed, st.doses[0].status)
	assert.Equal(t, models.DoseScheduled, st.doses[1].status)
	assert.Equal(t, models.DoseScheduled, st.doses[2].status)
}

func TestSweepNeverTouchesTakenDoses(t *testing.T) {
	now := time.Now()
	st := &fakeSweepStore{doses: []*fakeDose{
		{id: 1, userID: 1, doseTime: now.Add(-2 * time.Hour), taken: true, status: models.DoseTaken},
	}}
	s := New(st, &fakeSettings{}, &recordingChannel{})

	n, err := s.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, st.doses[0].taken)
	assert.Equal(t, models.DoseTaken, st.doses[0].status)
}

func TestSweepIsIdempotent(t *testing.T) {
	now := time.Now()
	st := &fakeSweepStore{doses: []*fakeDose{
		{id: 1, userID: 1, doseTime: now.Add(-30 * time.Minute), status: models.DoseScheduled},
	}}
	ch := &recordingChannel{}
	s := New(st, &fakeSettings{}, ch)

	n, err := s.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, ch.delivered, 1)

	// A second sweep finds nothing new and must not re-notify.
	n, err = s.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, ch.delivered, 1)
}

func TestSweepRespectsAutoMarkOptOut(t *testing.T) {
	now := time.Now()
	st := &fakeSweepStore{doses: []*fakeDose{
		{id: 1, userID: 1, doseTime: now.Add(-time.Hour), status: models.DoseScheduled},
		{id: 2, userID: 2, doseTime: now.Add(-time.Hour), status: models.DoseScheduled},
	}}
	s := New(st, &fakeSettings{disabled: []int{2}}, &recordingChannel{})

	n, err := s.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.DoseMissed, st.doses[0].status)
	assert.Equal(t, models.DoseScheduled, st.doses[1].status)
}

func TestSweepContinuesWhenSettingsUnavailable(t *testing.T) {
	now := time.Now()
	st := &fakeSweepStore{doses: []*fakeDose{
		{id: 1, userID: 1, doseTime: now.Add(-time.Hour), status: models.DoseScheduled},
	}}
	s := New(st, &fakeSettings{err: errors.New("redis down")}, &recordingChannel{})

	n, err := s.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSweepSkipsStaleMissedNotifications(t *testing.T) {
	now := time.Now()
	st := &fakeSweepStore{doses: []*fakeDose{
		{id: 1, userID: 1, doseTime: now.Add(-30 * time.Minute), status: models.DoseScheduled},
		{id: 2, userID: 1, doseTime: now.Add(-3 * time.Hour), status: models.DoseScheduled},
	}}
	ch := &recordingChannel{}
	s := New(st, &fakeSettings{}, ch)

	n, err := s.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Both doses are marked, but only the recent one earns a
	// notification.
	require.Len(t, ch.delivered, 1)
	assert.Equal(t, "missed-1", ch.delivered[0].Tag)
}
