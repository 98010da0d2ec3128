package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/gamerooms/internal/model"
)

// NotificationServiceInterface は通知ハンドラーが必要とするサービスインターフェース。
type NotificationServiceInterface interface {
	GetUserNotifications(ctx context.Context, userID string) ([]*model.Notification, error)
	GetUnread(ctx context.Context, userID string) ([]*model.Notification, error)
	GetRoomNotifications(ctx context.Context, roomID, userID string) ([]*model.Notification, error)
	MarkAsRead(ctx context.Context, userID, notificationID string) (*model.Notification, error)
	Count(ctx context.Context) (int, error)
}

// NotificationHandler は通知のHTTPハンドラー。
type NotificationHandler struct {
	service NotificationServiceInterface
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{service: service}
}

type countResponse struct {
	Count int `json:"count"`
}

// List はログインユーザーの通知を返す。
// GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.GetUserNotifications)
}

// ListUnread はログインユーザーの未読通知を返す。
// GET /api/notifications/unread
func (h *NotificationHandler) ListUnread(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.GetUnread)
}

func (h *NotificationHandler) list(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, userID string) ([]*model.Notification, error)) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	list, err := fn(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ListRoom はルームの通知を返す。ルームのメンバーのみ閲覧できる。
// GET /api/notifications/rooms/{id}
func (h *NotificationHandler) ListRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r, "id", "room")
	if !ok {
		return
	}

	list, err := h.service.GetRoomNotifications(r.Context(), roomID, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Count は通知の総数を返す。
// GET /api/notifications/count
func (h *NotificationHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.Count(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: count})
}

// MarkAsRead は通知を既読にする。
// POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	notificationID, ok := pathID(w, r, "id", "notification")
	if !ok {
		return
	}

	n, err := h.service.MarkAsRead(r.Context(), userID, notificationID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
