package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowValidate(t *testing.T) {
	base := ScheduleWindow{ProviderID: "vet-1", DayOfWeek: time.Monday, StartMinute: 540, EndMinute: 600, SlotDurationMinutes: 30, MaxConcurrentBookings: 1}
	require.NoError(t, base.Validate())

	cases := []struct {
		name  string
		edit  func(w *ScheduleWindow)
		field string
	}{
		{"inverted", func(w *ScheduleWindow) { w.EndMinute = 500 }, "end_time"},
		{"empty", func(w *ScheduleWindow) { w.EndMinute = w.StartMinute }, "end_time"},
		{"zero slot", func(w *ScheduleWindow) { w.SlotDurationMinutes = 0 }, "slot_duration_minutes"},
		{"past midnight", func(w *ScheduleWindow) { w.EndMinute = MinutesPerDay + 1 }, "start_time"},
		{"no provider", func(w *ScheduleWindow) { w.ProviderID = "" }, "provider_id"},
		{"bad day", func(w *ScheduleWindow) { w.DayOfWeek = 7 }, "day_of_week"},
		{"no capacity", func(w *ScheduleWindow) { w.MaxConcurrentBookings = 0 }, "max_concurrent_bookings"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := base
			tc.edit(&w)
			var ve *ValidationError
			require.ErrorAs(t, w.Validate(), &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestWindowOverlaps(t *testing.T) {
	a := ScheduleWindow{DayOfWeek: time.Monday, StartMinute: 540, EndMinute: 720}
	assert.True(t, a.Overlaps(ScheduleWindow{DayOfWeek: time.Monday, StartMinute: 600, EndMinute: 780}))
	assert.False(t, a.Overlaps(ScheduleWindow{DayOfWeek: time.Monday, StartMinute: 720, EndMinute: 780}), "adjacent windows")
	assert.False(t, a.Overlaps(ScheduleWindow{DayOfWeek: time.Tuesday, StartMinute: 600, EndMinute: 780}))
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, m)

	m, err = ParseClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, MinutesPerDay, m)

	for _, bad := range []string{"9:30", "25:00", "12:60", "noon"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
	assert.Equal(t, "09:05", FormatClock(545))
}

func TestEmergencyPrice(t *testing.T) {
	svc := Service{BasePriceCents: 10000}
	assert.Equal(t, int64(10000), svc.PriceCents(false, 30))
	assert.Equal(t, int64(13000), svc.PriceCents(true, 30))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "overlap", Kind(fmt.Errorf("save: %w", &OverlapError{})))
	assert.Equal(t, "invalid_transition", Kind(&InvalidTransitionError{From: StatusAttended, Event: "confirm"}))
	assert.Equal(t, "persistence", Kind(&PersistenceError{Op: "save", Err: errors.New("boom")}))
	assert.Equal(t, "internal", Kind(errors.New("boom")))
}
