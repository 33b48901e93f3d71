// Package delivery fans appointment events out to the owner and provider
// over the channels their contact details allow.
package delivery

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/clinicflow/libs/events"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/render"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/sms"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/storage"
)

type Recorder interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type Handler struct {
	renderer *render.Renderer
	email    email.Sender
	sms      sms.Sender
	log      Recorder
	logger   *slog.Logger
}

func NewHandler(renderer *render.Renderer, emailSender email.Sender, smsSender sms.Sender, log Recorder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{renderer: renderer, email: emailSender, sms: smsSender, log: log, logger: logger}
}

// Handle processes one Kafka message. Delivery failures are recorded and
// swallowed; only a failure to record is returned.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	var evt events.AppointmentEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		h.logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
		return nil
	}
	if evt.Kind == "" {
		evt.Kind, _ = events.KindFromTopic(msg.Topic)
	}
	if evt.AppointmentID == "" || evt.Kind == "" {
		h.logger.Error("missing required event fields", "topic", msg.Topic, "event_id", evt.EventID)
		return nil
	}

	for _, to := range recipients(evt) {
		if err := h.deliver(ctx, evt, to); err != nil {
			return err
		}
	}
	return nil
}

// recipients: the owner always, the provider for new bookings.
func recipients(evt events.AppointmentEvent) []events.Party {
	out := []events.Party{evt.Owner}
	if evt.Kind == events.KindCreated && evt.Provider.ID != "" {
		out = append(out, evt.Provider)
	}
	return out
}

func (h *Handler) deliver(ctx context.Context, evt events.AppointmentEvent, to events.Party) error {
	base := storage.Notification{
		EventID:       evt.EventID,
		AppointmentID: evt.AppointmentID,
		Kind:          evt.Kind,
		Payload:       map[string]any{"party_id": to.ID, "start_time": evt.StartTime},
	}
	if to.Email == "" && to.Phone == "" {
		n := base
		n.Channel, n.Recipient, n.Status = "none", to.ID, storage.StatusSkipped
		n.Error = "no contact details"
		return h.log.Insert(ctx, n)
	}

	msg, err := h.renderer.Render(evt, to)
	if err != nil {
		h.logger.Error("render failed", "err", err, "kind", evt.Kind)
		n := base
		n.Channel, n.Recipient, n.Status, n.Error = "none", to.ID, storage.StatusFailed, err.Error()
		return h.log.Insert(ctx, n)
	}

	if to.Email != "" {
		n := base
		n.Channel, n.Recipient, n.Provider = "email", to.Email, h.email.ProviderID()
		err := h.email.Send(ctx, email.Message{To: to.Email, ToName: to.Name, Subject: msg.Subject, Body: msg.Body})
		if err := h.record(ctx, n, err); err != nil {
			return err
		}
	}
	if to.Phone != "" {
		n := base
		n.Channel, n.Recipient, n.Provider = "sms", to.Phone, h.sms.ProviderID()
		err := h.sms.Send(ctx, sms.Message{
			To:        to.Phone,
			Body:      msg.Subject + "\n" + msg.Body,
			Reference: base.EventID + ":" + to.Phone,
		})
		if err := h.record(ctx, n, err); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) record(ctx context.Context, n storage.Notification, sendErr error) error {
	n.Status = storage.StatusSent
	if sendErr != nil {
		n.Status = storage.StatusFailed
		n.Error = sendErr.Error()
		h.logger.Error("notification send failed", "err", sendErr, "channel", n.Channel, "appointment_id", n.AppointmentID)
	}
	if err := h.log.Insert(ctx, n); err != nil {
		h.logger.Error("failed to persist notification", "err", err)
		return err
	}
	h.logger.Info("notification processed", "appointment_id", n.AppointmentID, "kind", n.Kind, "channel", n.Channel, "status", n.Status)
	return nil
}
