package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/calendar"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
)

// MemoryStore is a process-local store with the same guarantees as the
// postgres repositories. A single mutex serializes writes, which is what
// enforces the one-live-appointment-per-slot rule.
type MemoryStore struct {
	mu       sync.RWMutex
	windows  map[string]model.ScheduleWindow
	history  []model.WindowChange
	appts    map[string]model.Appointment
	services map[string]model.Service
	patients map[string]patientRecord
	provs    map[string]model.Contact
	stock    map[string]int
}

type patientRecord struct {
	ownerID string
	contact model.Contact
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows:  map[string]model.ScheduleWindow{},
		appts:    map[string]model.Appointment{},
		services: map[string]model.Service{},
		patients: map[string]patientRecord{},
		provs:    map[string]model.Contact{},
		stock:    map[string]int{},
	}
}

func (s *MemoryStore) PutService(svc model.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

// PutPatient registers a patient and the owner contact notifications go to.
func (s *MemoryStore) PutPatient(patientID string, owner model.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[patientID] = patientRecord{ownerID: owner.ID, contact: owner}
}

func (s *MemoryStore) PutProvider(c model.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provs[c.ID] = c
}

func (s *MemoryStore) PutStock(supplyID string, available int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[supplyID] = available
}

// Windows

func (s *MemoryStore) InsertWindow(_ context.Context, w model.ScheduleWindow, check calendar.OverlapCheck) (model.ScheduleWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if check != nil {
		if err := check(s.activeWindowsLocked(w.ProviderID, w.DayOfWeek)); err != nil {
			return model.ScheduleWindow{}, err
		}
	}
	s.windows[w.ID] = w
	s.history = append(s.history, model.WindowChange{WindowID: w.ID, ProviderID: w.ProviderID, Action: model.WindowAdded, At: w.CreatedAt})
	return w, nil
}

func (s *MemoryStore) ActiveWindows(_ context.Context, providerID string, day time.Weekday) ([]model.ScheduleWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeWindowsLocked(providerID, day), nil
}

func (s *MemoryStore) activeWindowsLocked(providerID string, day time.Weekday) []model.ScheduleWindow {
	var out []model.ScheduleWindow
	for _, w := range s.windows {
		if w.Active && w.ProviderID == providerID && w.DayOfWeek == day {
			out = append(out, w)
		}
	}
	sortWindows(out)
	return out
}

func (s *MemoryStore) ListWindows(_ context.Context, providerID string, includeInactive bool) ([]model.ScheduleWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ScheduleWindow
	for _, w := range s.windows {
		if w.ProviderID == providerID && (includeInactive || w.Active) {
			out = append(out, w)
		}
	}
	sortWindows(out)
	return out, nil
}

func (s *MemoryStore) SetWindowActive(_ context.Context, id string, active bool, at time.Time) (model.ScheduleWindow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[id]
	if !ok {
		return model.ScheduleWindow{}, false, &model.NotFoundError{Entity: "schedule window", ID: id}
	}
	if w.Active == active {
		return w, false, nil
	}
	w.Active = active
	w.UpdatedAt = at
	s.windows[id] = w
	s.history = append(s.history, model.WindowChange{WindowID: id, ProviderID: w.ProviderID, Action: windowAction(active), At: at})
	return w, true, nil
}

func (s *MemoryStore) WindowHistory(_ context.Context, id string) ([]model.WindowChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.windows[id]; !ok {
		return nil, &model.NotFoundError{Entity: "schedule window", ID: id}
	}
	var out []model.WindowChange
	for _, h := range s.history {
		if h.WindowID == id {
			out = append(out, h)
		}
	}
	return out, nil
}

// Appointments

func (s *MemoryStore) InsertAppointment(_ context.Context, a model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.appts[a.ID]; exists {
		return &model.PersistenceError{Op: "insert appointment", Err: fmt.Errorf("duplicate id %s", a.ID)}
	}
	if err := s.checkSlotLocked(a); err != nil {
		return err
	}
	s.appts[a.ID] = a
	return nil
}

func (s *MemoryStore) UpdateAppointment(_ context.Context, a model.Appointment, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.appts[a.ID]
	if !ok {
		return &model.NotFoundError{Entity: "appointment", ID: a.ID}
	}
	if cur.Version != expectedVersion {
		return &model.ConcurrentModificationError{ID: a.ID}
	}
	if err := s.checkSlotLocked(a); err != nil {
		return err
	}
	s.appts[a.ID] = a
	return nil
}

func (s *MemoryStore) checkSlotLocked(a model.Appointment) error {
	if !a.Status.Holding() {
		return nil
	}
	for _, o := range s.appts {
		if o.ID != a.ID && o.ProviderID == a.ProviderID && o.Status.Holding() && o.StartTime.Equal(a.StartTime) {
			return slotTaken(a)
		}
	}
	return nil
}

func (s *MemoryStore) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, &model.NotFoundError{Entity: "appointment", ID: id}
	}
	return a, nil
}

func (s *MemoryStore) AppointmentsBetween(_ context.Context, providerID string, from, to time.Time) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if a.ProviderID == providerID && a.Status.Holding() && !a.StartTime.Before(from) && a.StartTime.Before(to) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (s *MemoryStore) UpcomingAppointments(_ context.Context, from, to time.Time) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if (a.Status == model.StatusScheduled || a.Status == model.StatusConfirmed) && a.StartTime.After(from) && !a.StartTime.After(to) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

// Catalog

func (s *MemoryStore) Service(_ context.Context, id string) (model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[id]
	if !ok {
		return model.Service{}, &model.NotFoundError{Entity: "service", ID: id}
	}
	return svc, nil
}

func (s *MemoryStore) OwnerOf(_ context.Context, patientID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[patientID]
	if !ok {
		return "", &model.NotFoundError{Entity: "patient", ID: patientID}
	}
	return p.ownerID, nil
}

func (s *MemoryStore) Available(_ context.Context, supplyIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(supplyIDs))
	for _, id := range supplyIDs {
		out[id] = s.stock[id]
	}
	return out, nil
}

func (s *MemoryStore) Contacts(_ context.Context, patientID, providerID string) (model.Contact, model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patients[patientID].contact, s.provs[providerID], nil
}

func sortWindows(ws []model.ScheduleWindow) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].DayOfWeek != ws[j].DayOfWeek {
			return ws[i].DayOfWeek < ws[j].DayOfWeek
		}
		return ws[i].StartMinute < ws[j].StartMinute
	})
}

func sortAppointments(as []model.Appointment) {
	sort.Slice(as, func(i, j int) bool { return as[i].StartTime.Before(as[j].StartTime) })
}

func windowAction(active bool) model.WindowAction {
	if active {
		return model.WindowReactivated
	}
	return model.WindowDeactivated
}

func slotTaken(a model.Appointment) error {
	return &model.OverlapError{
		ProviderID: a.ProviderID,
		Detail:     fmt.Sprintf("provider %s is already booked at %s", a.ProviderID, a.StartTime.Format(time.RFC3339)),
	}
}
