package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/clinicflow/libs/db"
)

const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Notification is one delivery attempt to one recipient.
type Notification struct {
	EventID       string
	AppointmentID string
	Kind          string
	Channel       string
	Recipient     string
	Provider      string
	Status        string
	Error         string
	Payload       map[string]any
	CreatedAt     time.Time
}

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	if n.Payload == nil {
		n.Payload = map[string]any{}
	}
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO notifications (event_id, appointment_id, kind, channel, recipient, provider, status, error, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, n.EventID, n.AppointmentID, n.Kind, n.Channel, n.Recipient, n.Provider, n.Status, n.Error, payload)
	return err
}

// ForAppointment lists attempts oldest first.
func (r *Repository) ForAppointment(ctx context.Context, appointmentID string) ([]Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT event_id, appointment_id, kind, channel, recipient, provider, status, error, payload, created_at
		FROM notifications
		WHERE appointment_id = $1
		ORDER BY created_at, id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var (
			n   Notification
			raw []byte
		)
		if err := rows.Scan(&n.EventID, &n.AppointmentID, &n.Kind, &n.Channel, &n.Recipient, &n.Provider, &n.Status, &n.Error, &raw, &n.CreatedAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &n.Payload); err != nil {
				return nil, err
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
