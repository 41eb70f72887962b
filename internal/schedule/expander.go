package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"medreminder-go/internal/models"
)

// Validation errors, returned before any store mutation happens.
var (
	ErrNoDoseTimes      = errors.New("at least one dose time is required")
	ErrBadDuration      = errors.New("duration must be at least 1 day")
	ErrUnknownFrequency = errors.New("unknown frequency")
)

// dayPredicates maps a recurrence kind to its day-selection rule.
// Adding a kind is one entry here.
var dayPredicates = map[string]func(day int) bool{
	models.FrequencyDaily:         func(day int) bool { return true },
	models.FrequencyEveryOtherDay: func(day int) bool { return day%2 == 0 },
	models.FrequencyWeekly:        func(day int) bool { return day%7 == 0 },
}

// Expand turns a medicine schedule into concrete dose timestamps:
// day offsets 0..durationDays-1 from startDate, filtered by the
// frequency's day predicate, one timestamp per dose time on each
// active day. Output is day-major, then dose-time order as given.
// Timestamps are built in startDate's location; no timezone
// conversion happens here.
func Expand(startDate time.Time, frequency string, doseTimes []string, durationDays int) ([]time.Time, error) {
	if durationDays < 1 {
		return nil, ErrBadDuration
	}
	if len(doseTimes) == 0 {
		return nil, ErrNoDoseTimes
	}

	active, ok := dayPredicates[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrequency, frequency)
	}

	type hm struct{ hour, minute int }
	parsed := make([]hm, 0, len(doseTimes))
	for _, t := range doseTimes {
		hour, minute, err := parseTimeOfDay(t)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, hm{hour, minute})
	}

	var out []time.Time
	for day := 0; day < durationDays; day++ {
		if !active(day) {
			continue
		}
		date := startDate.AddDate(0, 0, day)
		for _, p := range parsed {
			out = append(out, time.Date(
				date.Year(), date.Month(), date.Day(),
				p.hour, p.minute, 0, 0, startDate.Location(),
			))
		}
	}
	return out, nil
}

// parseTimeOfDay parses "HH:MM" (24h).
func parseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid dose time %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid dose time %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid dose time %q", s)
	}
	return hour, minute, nil
}

// ValidateMedicine checks the schedule-bearing fields of a medicine
// before anything is written. Expansion errors double as validation.
func ValidateMedicine(m models.Medicine) error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("medicine name is required")
	}
	_, err := Expand(m.StartDate, m.Frequency, m.DoseTimes, m.DurationDays)
	return err
}
