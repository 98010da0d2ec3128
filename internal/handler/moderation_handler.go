package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gamerooms/internal/middleware"
	"github.com/hitoshi/gamerooms/internal/model"
)

// ModerationServiceInterface はモデレーションハンドラーが必要とするサービスインターフェース。
type ModerationServiceInterface interface {
	WarnPlayer(ctx context.Context, roomID, moderatorID, targetID, reason string) (*model.ModerationLog, error)
	MutePlayer(ctx context.Context, roomID, moderatorID, targetID string, duration time.Duration, reason string) (*model.ModerationLog, error)
	KickPlayer(ctx context.Context, roomID, moderatorID, targetID, reason string) (*model.ModerationLog, error)
	GetRoomActivity(ctx context.Context, roomID, requesterID string) ([]*model.ModerationLog, error)
	GetUserActivity(ctx context.Context, userID, requesterID string) ([]*model.ModerationLog, error)
}

// ModerationHandler はモデレーション操作のHTTPハンドラー。
// 操作者は常にログインユーザーとして扱う。
type ModerationHandler struct {
	service ModerationServiceInterface
}

// NewModerationHandler はModerationHandlerを生成する。
func NewModerationHandler(service ModerationServiceInterface) *ModerationHandler {
	return &ModerationHandler{service: service}
}

// moderationRequest はモデレーション操作リクエストのボディ。
// DurationMinutes はミュート時のみ使用する。
type moderationRequest struct {
	TargetUserID    string `json:"target_user_id"`
	Reason          string `json:"reason"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Warn はプレイヤーに警告する。
// POST /api/moderation/rooms/{id}/warn
func (h *ModerationHandler) Warn(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context, roomID, moderatorID string, req moderationRequest) (*model.ModerationLog, error) {
		return h.service.WarnPlayer(ctx, roomID, moderatorID, req.TargetUserID, req.Reason)
	})
}

// Mute はプレイヤーをミュートする。
// POST /api/moderation/rooms/{id}/mute
func (h *ModerationHandler) Mute(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context, roomID, moderatorID string, req moderationRequest) (*model.ModerationLog, error) {
		duration := time.Duration(req.DurationMinutes) * time.Minute
		return h.service.MutePlayer(ctx, roomID, moderatorID, req.TargetUserID, duration, req.Reason)
	})
}

// Kick はプレイヤーのキックを記録する。
// POST /api/moderation/rooms/{id}/kick
func (h *ModerationHandler) Kick(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context, roomID, moderatorID string, req moderationRequest) (*model.ModerationLog, error) {
		return h.service.KickPlayer(ctx, roomID, moderatorID, req.TargetUserID, req.Reason)
	})
}

func (h *ModerationHandler) act(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, roomID, moderatorID string, req moderationRequest) (*model.ModerationLog, error)) {
	moderatorID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r, "id", "room")
	if !ok {
		return
	}

	var req moderationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	targetID, err := uuid.Parse(req.TargetUserID)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("対象ユーザーIDが不正です"))
		return
	}
	req.TargetUserID = targetID.String()

	entry, err := fn(r.Context(), roomID, moderatorID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// RoomActivity はルームのモデレーション履歴を返す。
// GET /api/moderation/rooms/{id}/activity
func (h *ModerationHandler) RoomActivity(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r, "id", "room")
	if !ok {
		return
	}

	logs, err := h.service.GetRoomActivity(r.Context(), roomID, requesterID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// UserActivity はユーザーが関与したモデレーション履歴を返す。
// GET /api/moderation/users/{id}/activity
func (h *ModerationHandler) UserActivity(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "id", "user")
	if !ok {
		return
	}

	logs, err := h.service.GetUserActivity(r.Context(), userID, requesterID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
