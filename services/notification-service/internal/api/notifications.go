package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicflow/libs/httpx"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/storage"
)

type History interface {
	ForAppointment(ctx context.Context, appointmentID string) ([]storage.Notification, error)
}

type notificationResponse struct {
	EventID   string `json:"event_id"`
	Kind      string `json:"kind"`
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Provider  string `json:"provider,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ListNotifications serves GET /notifications?appointment_id=...
func ListNotifications(history History, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		id := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
		if id == "" {
			httpx.WriteErrorKind(w, http.StatusBadRequest, "validation", "appointment_id is required")
			return
		}
		rows, err := history.ForAppointment(r.Context(), id)
		if err != nil {
			logger.Error("list notifications failed", "err", err, "appointment_id", id)
			httpx.WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}
		out := make([]notificationResponse, 0, len(rows))
		for _, n := range rows {
			out = append(out, notificationResponse{
				EventID:   n.EventID,
				Kind:      n.Kind,
				Channel:   n.Channel,
				Recipient: n.Recipient,
				Provider:  n.Provider,
				Status:    n.Status,
				Error:     n.Error,
				CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}
