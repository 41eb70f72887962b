package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Dose events are per-user channels; a shared channel would stream one
// user's events into another user's dashboard.
func TestDoseEventsChannelIsPerUser(t *testing.T) {
	assert.Equal(t, "dose_events:1", doseEventsChannel(1))
	assert.Equal(t, "dose_events:42", doseEventsChannel(42))
	assert.NotEqual(t, doseEventsChannel(1), doseEventsChannel(2))
}
