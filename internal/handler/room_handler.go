package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/gamerooms/internal/model"
	"github.com/hitoshi/gamerooms/internal/room"
)

// RoomServiceInterface はルームハンドラーが必要とするサービスインターフェース。
type RoomServiceInterface interface {
	CreateRoom(ctx context.Context, userID string, req room.CreateRoomRequest) (*model.RoomView, error)
	JoinRoom(ctx context.Context, userID, roomID string) (*model.RoomView, error)
	LeaveRoom(ctx context.Context, userID, roomID string) error
	KickPlayer(ctx context.Context, requesterID, roomID, targetID string) error
	TransferOwnership(ctx context.Context, currentOwnerID, roomID, newOwnerID string) (*model.RoomView, error)
	UpdatePlayerRole(ctx context.Context, requesterID, roomID, targetID string, role model.Role) (*model.RoomView, error)
	StartGame(ctx context.Context, userID, roomID string) (*model.RoomView, error)
	EndGame(ctx context.Context, userID, roomID string) (*model.RoomView, error)
	GetAvailableRooms(ctx context.Context) ([]*model.RoomView, error)
	GetRoomByID(ctx context.Context, roomID string) (*model.RoomView, error)
	GetUserRooms(ctx context.Context, userID string) ([]*model.RoomView, error)
}

// RoomHandler はゲームルームのHTTPハンドラー。
type RoomHandler struct {
	service RoomServiceInterface
}

// NewRoomHandler はRoomHandlerを生成する。
func NewRoomHandler(service RoomServiceInterface) *RoomHandler {
	return &RoomHandler{service: service}
}

// updateRoleRequest は役割変更リクエストのボディ。
type updateRoleRequest struct {
	Role model.Role `json:"role"`
}

// ListAvailable は参加者募集中のルーム一覧を返す。
// GET /api/rooms
func (h *RoomHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.service.GetAvailableRooms(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// ListMine はログインユーザーが参加している待機中ルームを返す。
// GET /api/rooms/mine
func (h *RoomHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	rooms, err := h.service.GetUserRooms(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// Get はルーム詳細を返す。
// GET /api/rooms/{id}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "id", "room")
	if !ok {
		return
	}

	view, err := h.service.GetRoomByID(r.Context(), roomID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Create はルームを作成する。
// POST /api/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req room.CreateRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.service.CreateRoom(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// Join はルームに参加する。
// POST /api/rooms/{id}/join
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r, "id", "room")
	if !ok {
		return
	}

	view, err := h.service.JoinRoom(r.Context(), userID, roomID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Leave はルームから退出する。
// POST /api/rooms/{id}/leave
func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r, "id", "room")
	if !ok {
		return
	}

	if err := h.service.LeaveRoom(r.Context(), userID, roomID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Kick はプレイヤーをルームから除外する。
// POST /api/rooms/{id}/kick/{userID}
func (h *RoomHandler) Kick(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r, "id", "room")
	if !ok {
		return
	}
	targetID, ok := pathID(w, r, "userID", "user")
	if !ok {
		return
	}

	if err := h.service.KickPlayer(r.Context(), requesterID, roomID, targetID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TransferOwnership はオーナー権限を別のメンバーに移譲する。
// POST /api/rooms/{id}/transfer-ownership/{userID}
func (h *RoomHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r, "id", "room")
	if !ok {
		return
	}
	newOwnerID, ok := pathID(w, r, "userID", "user")
	if !ok {
		return
	}

	view, err := h.service.TransferOwnership(r.Context(), userID, roomID, newOwnerID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateRole はメンバーの役割を変更する。
// PUT /api/rooms/{id}/members/{userID}/role
func (h *RoomHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r, "id", "room")
	if !ok {
		return
	}
	targetID, ok := pathID(w, r, "userID", "user")
	if !ok {
		return
	}

	var req updateRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.service.UpdatePlayerRole(r.Context(), requesterID, roomID, targetID, req.Role)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Start はゲームを開始する。
// POST /api/rooms/{id}/start
func (h *RoomHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.StartGame)
}

// End はゲームを終了する。
// POST /api/rooms/{id}/end
func (h *RoomHandler) End(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.EndGame)
}

func (h *RoomHandler) transition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, userID, roomID string) (*model.RoomView, error)) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r, "id", "room")
	if !ok {
		return
	}

	view, err := fn(r.Context(), userID, roomID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
