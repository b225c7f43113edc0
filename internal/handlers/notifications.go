package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"boq-portal.kz/internal/db"
	"boq-portal.kz/internal/middleware"
	"boq-portal.kz/internal/models"
)

type notificationsResponse struct {
	Items  []models.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Ошибка кодирования JSON ответа", "error", err)
	}
}

// ListNotificationsHandler: уведомления реального пользователя, режим
// просмотра на выборку не влияет.
func (h *AppHandlers) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	real, ok := middleware.RealIdentity(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	items, unread, err := h.Notifier.List(r.Context(), real.UserID)
	if err != nil {
		slog.Error("ListNotificationsHandler: ошибка получения уведомлений", "userID", real.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if items == nil {
		items = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, notificationsResponse{Items: items, Unread: unread})
}

func (h *AppHandlers) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	real, ok := middleware.RealIdentity(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	err := h.Notifier.MarkRead(r.Context(), real.UserID, id)
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case err != nil:
		slog.Error("MarkNotificationReadHandler: ошибка", "userID", real.UserID, "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
