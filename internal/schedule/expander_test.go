package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medreminder-go/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpand_Daily(t *testing.T) {
	start := date(2024, time.January, 1)
	times := []string{"08:00", "20:00"}

	out, err := Expand(start, models.FrequencyDaily, times, 7)
	require.NoError(t, err)

	assert.Len(t, out, 7*len(times))

	// Day-major ordering, dose-time order preserved within a day.
	assert.Equal(t, time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC), out[0])
	assert.Equal(t, time.Date(2024, time.January, 1, 20, 0, 0, 0, time.UTC), out[1])
	assert.Equal(t, time.Date(2024, time.January, 2, 8, 0, 0, 0, time.UTC), out[2])

	// All timestamps fall inside [start, start+7d).
	end := start.AddDate(0, 0, 7)
	for _, ts := range out {
		assert.False(t, ts.Before(start))
		assert.True(t, ts.Before(end))
		assert.Zero(t, ts.Second())
	}
}

func TestExpand_EveryOtherDay(t *testing.T) {
	out, err := Expand(date(2024, time.January, 1), models.FrequencyEveryOtherDay, []string{"08:00"}, 7)
	require.NoError(t, err)

	// Active on day offsets 0, 2, 4, 6.
	require.Len(t, out, 4)
	assert.Equal(t, 1, out[0].Day())
	assert.Equal(t, 3, out[1].Day())
	assert.Equal(t, 5, out[2].Day())
	assert.Equal(t, 7, out[3].Day())
	for _, ts := range out {
		assert.Equal(t, 8, ts.Hour())
	}
}

func TestExpand_Weekly(t *testing.T) {
	out, err := Expand(date(2024, time.January, 1), models.FrequencyWeekly, []string{"08:00", "20:00"}, 15)
	require.NoError(t, err)

	// Active on day offsets 0, 7, 14 with two times each.
	require.Len(t, out, 6)
	assert.Equal(t, 1, out[0].Day())
	assert.Equal(t, 8, out[2].Day())
	assert.Equal(t, 15, out[4].Day())
}

func TestExpand_KeepsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, loc)
	out, err := Expand(start, models.FrequencyDaily, []string{"09:30"}, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, loc, out[0].Location())
	assert.Equal(t, 9, out[0].Hour())
	assert.Equal(t, 30, out[0].Minute())
}

func TestExpand_Validation(t *testing.T) {
	start := date(2024, time.January, 1)

	_, err := Expand(start, models.FrequencyDaily, []string{"08:00"}, 0)
	assert.ErrorIs(t, err, ErrBadDuration)

	_, err = Expand(start, models.FrequencyDaily, nil, 7)
	assert.ErrorIs(t, err, ErrNoDoseTimes)

	_, err = Expand(start, "hourly", []string{"08:00"}, 7)
	assert.ErrorIs(t, err, ErrUnknownFrequency)

	_, err = Expand(start, models.FrequencyDaily, []string{"25:00"}, 7)
	assert.Error(t, err)

	_, err = Expand(start, models.FrequencyDaily, []string{"0800"}, 7)
	assert.Error(t, err)
}

func TestValidateMedicine(t *testing.T) {
	m := models.Medicine{
		Name:         "Lisinopril",
		StartDate:    date(2024, time.January, 1),
		Frequency:    models.FrequencyDaily,
		DoseTimes:    []string{"08:00"},
		DurationDays: 7,
	}
	assert.NoError(t, ValidateMedicine(m))

	m.Name = "  "
	assert.Error(t, ValidateMedicine(m))

	m.Name = "Lisinopril"
	m.DoseTimes = nil
	assert.ErrorIs(t, ValidateMedicine(m), ErrNoDoseTimes)
}
