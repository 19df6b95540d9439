package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/tshiamom/clanfund-gobackend/internal/models"
)

// notificationLogStore records provider delivery reports.
type notificationLogStore interface {
	InsertNotificationLog(ctx context.Context, nl *models.NotificationLog) error
}

// NotificationHandler receives callbacks from the notification providers.
type NotificationHandler struct {
	store notificationLogStore
}

func NewNotificationHandler(store notificationLogStore) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// SMSReport records SMS provider delivery reports.
func (h *NotificationHandler) SMSReport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read report body"})
		return
	}

	var report struct {
		MessageID string `json:"message_id"`
		Status    string `json:"status"`
		Recipient string `json:"recipient"`
		Provider  string `json:"provider"`
	}
	if err := json.Unmarshal(body, &report); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid report payload"})
		return
	}

	nl := &models.NotificationLog{
		MessageID: report.MessageID,
		Status:    report.Status,
		Recipient: report.Recipient,
		Provider:  report.Provider,
		Raw:       string(body),
	}
	if err := h.store.InsertNotificationLog(r.Context(), nl); err != nil {
		writeError(w, err)
		return
	}
	log.Printf("Recorded delivery report %s: %s", report.MessageID, report.Status)
	w.WriteHeader(http.StatusOK)
}
