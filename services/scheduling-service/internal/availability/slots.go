package availability

import (
	"sort"
	"time"

	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
)

// DayStart returns local midnight of t's calendar day in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// At returns the wall-clock instant `minute` minutes into day.
func At(day time.Time, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, minute, 0, 0, day.Location())
}

// Generate expands the day's windows into slots. A slot is emitted while
// start+duration fits inside its window; a trailing partial slot is dropped.
// A slot is occupied only when a non-cancelled appointment starts exactly at
// the slot start. Slots that begin before now are marked elapsed.
//
// day must be local midnight in the clinic location. Windows for other
// weekdays and inactive windows are ignored. Wall-clock minutes that do not
// exist on the day (a spring-forward gap) produce no slot.
func Generate(day time.Time, windows []model.ScheduleWindow, appointments []model.Appointment, now time.Time) []model.Slot {
	booked := make(map[int64]string, len(appointments))
	for _, a := range appointments {
		if !a.Status.Holding() {
			continue
		}
		booked[a.StartTime.Unix()] = a.ID
	}

	var slots []model.Slot
	for _, w := range windows {
		if !w.Active || w.DayOfWeek != day.Weekday() || w.SlotDurationMinutes <= 0 {
			continue
		}
		for m := w.StartMinute; m+w.SlotDurationMinutes <= w.EndMinute; m += w.SlotDurationMinutes {
			t := At(day, m)
			if t.Hour()*60+t.Minute() != m {
				continue
			}
			s := model.Slot{
				Time:            t,
				DurationMinutes: w.SlotDurationMinutes,
				Available:       true,
				WindowID:        w.ID,
			}
			if id, ok := booked[t.Unix()]; ok {
				s.Available = false
				s.ReasonUnavailable = model.ReasonBooked
				s.AppointmentID = id
			} else if t.Before(now) {
				s.Available = false
				s.ReasonUnavailable = model.ReasonElapsed
			}
			slots = append(slots, s)
		}
	}

	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Time.Before(slots[j].Time) })
	return slots
}

// Find returns the slot starting exactly at t.
func Find(slots []model.Slot, t time.Time) (model.Slot, bool) {
	for _, s := range slots {
		if s.Time.Equal(t) {
			return s, true
		}
	}
	return model.Slot{}, false
}

// Free filters the bookable slots.
func Free(slots []model.Slot) []model.Slot {
	out := make([]model.Slot, 0, len(slots))
	for _, s := range slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}
