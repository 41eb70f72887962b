package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"medreminder-go/internal/models"
)

func TestClassify(t *testing.T) {
	scheduled := time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		taken bool
		now   time.Time
		want  Status
	}{
		{"exactly on time", false, scheduled, StatusDue},
		{"14 minutes late is still due", false, scheduled.Add(14 * time.Minute), StatusDue},
		{"15 minutes late is still due", false, scheduled.Add(15 * time.Minute), StatusDue},
		{"16 minutes late is overdue", false, scheduled.Add(16 * time.Minute), StatusOverdue},
		{"14 minutes early is due", false, scheduled.Add(-14 * time.Minute), StatusDue},
		{"16 minutes early is upcoming", false, scheduled.Add(-16 * time.Minute), StatusUpcoming},
		{"far future is upcoming", false, scheduled.Add(-48 * time.Hour), StatusUpcoming},
		{"taken wins regardless of time", true, scheduled.Add(900 * time.Hour), StatusTaken},
		{"taken wins in the future too", true, scheduled.Add(-900 * time.Hour), StatusTaken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(scheduled, tc.taken, tc.now))
		})
	}
}

func TestClassifyDose_PersistedMissed(t *testing.T) {
	scheduled := time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)

	d := models.Dose{DoseTime: scheduled, Taken: false, Status: models.DoseMissed}
	assert.Equal(t, StatusMissed, ClassifyDose(d, scheduled.Add(time.Hour)))

	// A taken dose is taken even if a stale missed status lingers.
	d.Taken = true
	d.Status = models.DoseTaken
	assert.Equal(t, StatusTaken, ClassifyDose(d, scheduled.Add(time.Hour)))

	// No persisted missed status falls through to the live view.
	d = models.Dose{DoseTime: scheduled, Status: models.DoseScheduled}
	assert.Equal(t, StatusOverdue, ClassifyDose(d, scheduled.Add(time.Hour)))
}

func TestNear(t *testing.T) {
	scheduled := time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)

	assert.True(t, Near(scheduled, scheduled.Add(-20*time.Minute)))
	assert.True(t, Near(scheduled, scheduled.Add(-30*time.Minute)))
	assert.False(t, Near(scheduled, scheduled.Add(-31*time.Minute)))
	assert.False(t, Near(scheduled, scheduled.Add(time.Minute))) // already past
}
