package handler

import (
	"net/http"
	"time"

	"github.com/hitoshi/grantdesk/internal/middleware"
	"github.com/hitoshi/grantdesk/internal/model"
	"github.com/hitoshi/grantdesk/internal/repository"
)

// NotificationHandler は通知のHTTPハンドラー。
type NotificationHandler struct {
	notifications repository.NotificationRepository
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(notifications repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

type notificationResponse struct {
	ID         int64     `json:"id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   *int64    `json:"entity_id"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// List はログイン中ユーザーの通知を新しい順に返す。unread=true で未読のみ。
// GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	unreadOnly := r.URL.Query().Get("unread") == "true"

	items, err := h.notifications.ListByUser(r.Context(), user.ID, unreadOnly)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	out := make([]notificationResponse, len(items))
	for i, n := range items {
		out[i] = notificationResponse{
			ID:         n.ID,
			Type:       string(n.Type),
			Title:      n.Title,
			Message:    n.Message,
			EntityType: n.EntityType,
			EntityID:   n.EntityID,
			IsRead:     n.IsRead,
			CreatedAt:  n.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// MarkRead は通知を既読にする。他のユーザーの通知は404を返す。
// PUT /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	found, err := h.notifications.MarkRead(r.Context(), id, user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !found {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotificationNotFoundError(id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
