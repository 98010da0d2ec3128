package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gamerooms/internal/auth"
	"github.com/hitoshi/gamerooms/internal/middleware"
	"github.com/hitoshi/gamerooms/internal/model"
	"github.com/hitoshi/gamerooms/internal/room"
)

const (
	testUserID   = "11111111-1111-1111-1111-111111111111"
	testTargetID = "22222222-2222-2222-2222-222222222222"
	testRoomID   = "33333333-3333-3333-3333-333333333333"
	testNotifID  = "44444444-4444-4444-4444-444444444444"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn func(ctx context.Context, req auth.RegisterRequest) (*auth.AuthResult, error)
	loginFn    func(ctx context.Context, req auth.LoginRequest) (*auth.AuthResult, error)
}

func (m *mockAuthService) Register(ctx context.Context, req auth.RegisterRequest) (*auth.AuthResult, error) {
	return m.registerFn(ctx, req)
}

func (m *mockAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.AuthResult, error) {
	return m.loginFn(ctx, req)
}

type mockRoomService struct {
	createRoomFn        func(ctx context.Context, userID string, req room.CreateRoomRequest) (*model.RoomView, error)
	joinRoomFn          func(ctx context.Context, userID, roomID string) (*model.RoomView, error)
	leaveRoomFn         func(ctx context.Context, userID, roomID string) error
	kickPlayerFn        func(ctx context.Context, requesterID, roomID, targetID string) error
	transferOwnershipFn func(ctx context.Context, currentOwnerID, roomID, newOwnerID string) (*model.RoomView, error)
	updatePlayerRoleFn  func(ctx context.Context, requesterID, roomID, targetID string, role model.Role) (*model.RoomView, error)
	startGameFn         func(ctx context.Context, userID, roomID string) (*model.RoomView, error)
	endGameFn           func(ctx context.Context, userID, roomID string) (*model.RoomView, error)
	getAvailableRoomsFn func(ctx context.Context) ([]*model.RoomView, error)
	getRoomByIDFn       func(ctx context.Context, roomID string) (*model.RoomView, error)
	getUserRoomsFn      func(ctx context.Context, userID string) ([]*model.RoomView, error)
}

func (m *mockRoomService) CreateRoom(ctx context.Context, userID string, req room.CreateRoomRequest) (*model.RoomView, error) {
	return m.createRoomFn(ctx, userID, req)
}

func (m *mockRoomService) JoinRoom(ctx context.Context, userID, roomID string) (*model.RoomView, error) {
	return m.joinRoomFn(ctx, userID, roomID)
}

func (m *mockRoomService) LeaveRoom(ctx context.Context, userID, roomID string) error {
	return m.leaveRoomFn(ctx, userID, roomID)
}

func (m *mockRoomService) KickPlayer(ctx context.Context, requesterID, roomID, targetID string) error {
	return m.kickPlayerFn(ctx, requesterID, roomID, targetID)
}

func (m *mockRoomService) TransferOwnership(ctx context.Context, currentOwnerID, roomID, newOwnerID string) (*model.RoomView, error) {
	return m.transferOwnershipFn(ctx, currentOwnerID, roomID, newOwnerID)
}

func (m *mockRoomService) UpdatePlayerRole(ctx context.Context, requesterID, roomID, targetID string, role model.Role) (*model.RoomView, error) {
	return m.updatePlayerRoleFn(ctx, requesterID, roomID, targetID, role)
}

func (m *mockRoomService) StartGame(ctx context.Context, userID, roomID string) (*model.RoomView, error) {
	return m.startGameFn(ctx, userID, roomID)
}

func (m *mockRoomService) EndGame(ctx context.Context, userID, roomID string) (*model.RoomView, error) {
	return m.endGameFn(ctx, userID, roomID)
}

func (m *mockRoomService) GetAvailableRooms(ctx context.Context) ([]*model.RoomView, error) {
	return m.getAvailableRoomsFn(ctx)
}

func (m *mockRoomService) GetRoomByID(ctx context.Context, roomID string) (*model.RoomView, error) {
	return m.getRoomByIDFn(ctx, roomID)
}

func (m *mockRoomService) GetUserRooms(ctx context.Context, userID string) ([]*model.RoomView, error) {
	return m.getUserRoomsFn(ctx, userID)
}

type mockModerationService struct {
	warnPlayerFn      func(ctx context.Context, roomID, moderatorID, targetID, reason string) (*model.ModerationLog, error)
	mutePlayerFn      func(ctx context.Context, roomID, moderatorID, targetID string, duration time.Duration, reason string) (*model.ModerationLog, error)
	kickPlayerFn      func(ctx context.Context, roomID, moderatorID, targetID, reason string) (*model.ModerationLog, error)
	getRoomActivityFn func(ctx context.Context, roomID, requesterID string) ([]*model.ModerationLog, error)
	getUserActivityFn func(ctx context.Context, userID, requesterID string) ([]*model.ModerationLog, error)
}

func (m *mockModerationService) WarnPlayer(ctx context.Context, roomID, moderatorID, targetID, reason string) (*model.ModerationLog, error) {
	return m.warnPlayerFn(ctx, roomID, moderatorID, targetID, reason)
}

func (m *mockModerationService) MutePlayer(ctx context.Context, roomID, moderatorID, targetID string, duration time.Duration, reason string) (*model.ModerationLog, error) {
	return m.mutePlayerFn(ctx, roomID, moderatorID, targetID, duration, reason)
}

func (m *mockModerationService) KickPlayer(ctx context.Context, roomID, moderatorID, targetID, reason string) (*model.ModerationLog, error) {
	return m.kickPlayerFn(ctx, roomID, moderatorID, targetID, reason)
}

func (m *mockModerationService) GetRoomActivity(ctx context.Context, roomID, requesterID string) ([]*model.ModerationLog, error) {
	return m.getRoomActivityFn(ctx, roomID, requesterID)
}

func (m *mockModerationService) GetUserActivity(ctx context.Context, userID, requesterID string) ([]*model.ModerationLog, error) {
	return m.getUserActivityFn(ctx, userID, requesterID)
}

type mockNotificationService struct {
	getUserNotificationsFn func(ctx context.Context, userID string) ([]*model.Notification, error)
	getUnreadFn            func(ctx context.Context, userID string) ([]*model.Notification, error)
	getRoomNotificationsFn func(ctx context.Context, roomID, userID string) ([]*model.Notification, error)
	markAsReadFn           func(ctx context.Context, userID, notificationID string) (*model.Notification, error)
	countFn                func(ctx context.Context) (int, error)
}

func (m *mockNotificationService) GetUserNotifications(ctx context.Context, userID string) ([]*model.Notification, error) {
	return m.getUserNotificationsFn(ctx, userID)
}

func (m *mockNotificationService) GetUnread(ctx context.Context, userID string) ([]*model.Notification, error) {
	return m.getUnreadFn(ctx, userID)
}

func (m *mockNotificationService) GetRoomNotifications(ctx context.Context, roomID, userID string) ([]*model.Notification, error) {
	return m.getRoomNotificationsFn(ctx, roomID, userID)
}

func (m *mockNotificationService) MarkAsRead(ctx context.Context, userID, notificationID string) (*model.Notification, error) {
	return m.markAsReadFn(ctx, userID, notificationID)
}

func (m *mockNotificationService) Count(ctx context.Context) (int, error) {
	return m.countFn(ctx)
}

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withChiURLParams はテスト用にchiのURLパラメータを注入するヘルパー。
// 引数はキーと値を交互に並べる。
func withChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func sampleRoomView() *model.RoomView {
	return &model.RoomView{
		ID:             testRoomID,
		Name:           "Friday Night",
		MaxPlayers:     4,
		CurrentPlayers: 1,
		Status:         model.RoomStatusCreated,
		OwnerID:        testUserID,
		OwnerUsername:  "alice",
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Players: []model.PlayerView{
			{UserID: testUserID, Username: "alice", Role: model.RoleOwner},
		},
	}
}
