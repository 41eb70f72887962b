package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medreminder-go/internal/models"
	"medreminder-go/internal/store"
)

// fakeSchedulerStore keeps assignments in memory with the same
// guarantees the real store gives: one assignment per dose id, and a
// claim that only the first caller wins.
type fakeSchedulerStore struct {
	mu           sync.Mutex
	candidates   []store.ScheduleCandidate
	assignments  map[int]*models.NotificationAssignment // keyed by dose id
	inactiveSubs map[int]bool
	nextID       int
}

func newFakeSchedulerStore(candidates ...store.ScheduleCandidate) *fakeSchedulerStore {
	return &fakeSchedulerStore{
		candidates:   candidates,
		assignments:  make(map[int]*models.NotificationAssignment),
		inactiveSubs: make(map[int]bool),
		nextID:       1,
	}
}

func (f *fakeSchedulerStore) ScheduleCandidates(ctx context.Context, from, to time.Time) ([]store.ScheduleCandidate, error) {
	var out []store.ScheduleCandidate
	for _, c := range f.candidates {
		if c.DoseTime.After(from) && !c.DoseTime.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeSchedulerStore) CreateAssignments(ctx context.Context, assignments []models.NotificationAssignment) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	created := 0
	for _, a := range assignments {
		if _, exists := f.assignments[a.DoseID]; exists {
			continue
		}
		a.ID = f.nextID
		f.nextID++
		a.Status = models.NotificationPending
		f.assignments[a.DoseID] = &a
		created++
	}
	return created, nil
}

// DueAssignments mirrors the real query: a pending assignment whose
// subscription went inactive is not due.
func (f *fakeSchedulerStore) DueAssignments(ctx context.Context, now time.Time) ([]store.AssignmentDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.AssignmentDelivery
	for _, a := range f.assignments {
		if f.inactiveSubs[a.SubscriptionID] {
			continue
		}
		if a.Status == models.NotificationPending && !a.ScheduledFor.After(now) {
			out = append(out, store.AssignmentDelivery{Assignment: *a})
		}
	}
	return out, nil
}

func (f *fakeSchedulerStore) ClaimAssignment(ctx context.Context, id int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assignments {
		if a.ID == id && a.Status == models.NotificationPending {
			a.Status = models.NotificationSent
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSchedulerStore) MarkAssignmentFailed(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assignments {
		if a.ID == id {
			a.Status = models.NotificationFailed
		}
	}
	return nil
}

type fakeChannel struct {
	mu        sync.Mutex
	delivered []models.NotificationPayload
	err       error
}

func (f *fakeChannel) Deliver(ctx context.Context, sub models.PushSubscription, payload models.NotificationPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, payload)
	return nil
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

func candidateAt(doseID int, at time.Time) store.ScheduleCandidate {
	return store.ScheduleCandidate{
		DoseID:       doseID,
		MedicineID:   1,
		UserID:       1,
		MedicineName: "Aspirin",
		Strength:     "100mg",
		DoseTime:     at,
		Subscription: models.PushSubscription{ID: 7, Endpoint: "https://push.example/sub"},
	}
}

func TestScheduleWindowIdempotent(t *testing.T) {
	now := time.Now()
	st := newFakeSchedulerStore(
		candidateAt(1, now.Add(time.Hour)),
		candidateAt(2, now.Add(2*time.Hour)),
	)
	s := NewScheduler(st, &fakeChannel{}, DefaultWindow)
	defer s.Stop()

	created, err := s.ScheduleWindow(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	// Re-rolling the same window must not duplicate assignments.
	created, err = s.ScheduleWindow(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Len(t, st.assignments, 2)
}

func TestScheduleWindowSkipsDosesOutsideWindow(t *testing.T) {
	now := time.Now()
	st := newFakeSchedulerStore(
		candidateAt(1, now.Add(time.Hour)),
		candidateAt(2, now.Add(25*time.Hour)),
		candidateAt(3, now.Add(-time.Hour)),
	)
	s := NewScheduler(st, &fakeChannel{}, DefaultWindow)
	defer s.Stop()

	created, err := s.ScheduleWindow(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestScheduleWindowNoCandidates(t *testing.T) {
	s := NewScheduler(newFakeSchedulerStore(), &fakeChannel{}, DefaultWindow)
	defer s.Stop()

	created, err := s.ScheduleWindow(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

func TestDispatchDueDeliversOnce(t *testing.T) {
	now := time.Now()
	ch := &fakeChannel{}
	st := newFakeSchedulerStore(candidateAt(1, now.Add(time.Hour)))
	s := NewScheduler(st, ch, DefaultWindow)
	defer s.Stop()

	_, err := s.ScheduleWindow(context.Background(), now)
	require.NoError(t, err)

	later := now.Add(time.Hour + time.Minute)
	sent, err := s.DispatchDue(context.Background(), later)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, ch.count())

	// The assignment is claimed; a second pass finds nothing to send.
	sent, err = s.DispatchDue(context.Background(), later)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 1, ch.count())
}

func TestDispatchDueSkipsFutureAssignments(t *testing.T) {
	now := time.Now()
	ch := &fakeChannel{}
	st := newFakeSchedulerStore(candidateAt(1, now.Add(2*time.Hour)))
	s := NewScheduler(st, ch, DefaultWindow)
	defer s.Stop()

	_, err := s.ScheduleWindow(context.Background(), now)
	require.NoError(t, err)

	sent, err := s.DispatchDue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 0, ch.count())
}

func TestDispatchDueSkipsUnsubscribedUser(t *testing.T) {
	now := time.Now()
	ch := &fakeChannel{}
	st := newFakeSchedulerStore(candidateAt(1, now.Add(time.Hour)))
	s := NewScheduler(st, ch, DefaultWindow)
	defer s.Stop()

	_, err := s.ScheduleWindow(context.Background(), now)
	require.NoError(t, err)

	// The user unsubscribes before the dose comes due; nothing is
	// pushed to the deactivated endpoint.
	st.mu.Lock()
	st.inactiveSubs[7] = true
	st.mu.Unlock()

	sent, err := s.DispatchDue(context.Background(), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 0, ch.count())
}

func TestDispatchDueMarksFailedDelivery(t *testing.T) {
	now := time.Now()
	ch := &fakeChannel{err: errors.New("endpoint gone")}
	st := newFakeSchedulerStore(candidateAt(1, now.Add(time.Hour)))
	s := NewScheduler(st, ch, DefaultWindow)
	defer s.Stop()

	_, err := s.ScheduleWindow(context.Background(), now)
	require.NoError(t, err)

	sent, err := s.DispatchDue(context.Background(), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	st.mu.Lock()
	defer st.mu.Unlock()
	assert.Equal(t, models.NotificationFailed, st.assignments[1].Status)
}

func TestAssignmentPayloadShape(t *testing.T) {
	a := models.NotificationAssignment{
		DoseID: 42,
		Title:  models.DoseTitle("Aspirin"),
		Body:   models.DoseBody("Aspirin", "100mg"),
	}
	p := assignmentPayload(a)

	assert.Equal(t, "Time for Aspirin", p.Title)
	assert.Equal(t, "dose-42", p.Tag)
	assert.Equal(t, 42, p.Data.DoseID)
	assert.Equal(t, "/dashboard", p.Data.URL)
	require.Len(t, p.Actions, 2)
	assert.Equal(t, "mark-taken", p.Actions[0].Action)
}
