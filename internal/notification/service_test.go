package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/gamerooms/internal/gameroom"
	"github.com/hitoshi/gamerooms/internal/model"
	"github.com/hitoshi/gamerooms/internal/repository"
)

// --- モック ---

type mockNotificationRepo struct {
	findByIDFn          func(ctx context.Context, id string) (*model.Notification, error)
	listForUserFn       func(ctx context.Context, userID string) ([]*model.Notification, error)
	listUnreadForUserFn func(ctx context.Context, userID string) ([]*model.Notification, error)
	listByRoomFn        func(ctx context.Context, roomID string) ([]*model.Notification, error)
	markAsReadFn        func(ctx context.Context, id string) error
	countAllFn          func(ctx context.Context) (int, error)
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	return nil
}
func (m *mockNotificationRepo) FindByID(ctx context.Context, id string) (*model.Notification, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockNotificationRepo) ListForUser(ctx context.Context, userID string) ([]*model.Notification, error) {
	return m.listForUserFn(ctx, userID)
}
func (m *mockNotificationRepo) ListUnreadForUser(ctx context.Context, userID string) ([]*model.Notification, error) {
	return m.listUnreadForUserFn(ctx, userID)
}
func (m *mockNotificationRepo) ListByRoom(ctx context.Context, roomID string) ([]*model.Notification, error) {
	return m.listByRoomFn(ctx, roomID)
}
func (m *mockNotificationRepo) MarkAsRead(ctx context.Context, id string) error {
	return m.markAsReadFn(ctx, id)
}
func (m *mockNotificationRepo) CountAll(ctx context.Context) (int, error) {
	return m.countAllFn(ctx)
}

type mockRoomRepo struct {
	findByIDFn func(ctx context.Context, id string) (*repository.LoadedRoom, error)
}

func (m *mockRoomRepo) FindByID(ctx context.Context, id string) (*repository.LoadedRoom, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockRoomRepo) ListByStatus(ctx context.Context, status model.RoomStatus) ([]*repository.LoadedRoom, error) {
	return nil, nil
}
func (m *mockRoomRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	return false, nil
}
func (m *mockRoomRepo) FindActiveRoomsForUser(ctx context.Context, userID string) ([]*repository.LoadedRoom, error) {
	return nil, nil
}
func (m *mockRoomRepo) HasActiveMembershipElsewhere(ctx context.Context, userID, roomID string) (bool, error) {
	return false, nil
}
func (m *mockRoomRepo) Create(ctx context.Context, room *gameroom.Room) error {
	return nil
}
func (m *mockRoomRepo) Update(ctx context.Context, room *gameroom.Room) error {
	return nil
}

// newRoomRepo は "room-1" を持つルームリポジトリを生成する。ownerID がオーナーとして参加する。
func newRoomRepo(t *testing.T, ownerID string) *mockRoomRepo {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := gameroom.Snapshot{
		ID:                "room-1",
		Name:              "Lobby",
		MaxPlayers:        4,
		MinPlayersToStart: 2,
		OwnerID:           ownerID,
		Status:            model.RoomStatusCreated,
		CreatedAt:         now,
		Members: []model.Membership{
			{RoomID: "room-1", UserID: ownerID, Role: model.RoleOwner, JoinedAt: now},
		},
	}
	room := gameroom.Restore(snap)
	return &mockRoomRepo{findByIDFn: func(ctx context.Context, id string) (*repository.LoadedRoom, error) {
		if id != "room-1" {
			return nil, nil
		}
		return &repository.LoadedRoom{Room: room}, nil
	}}
}

func strPtr(s string) *string { return &s }

// --- テスト ---

// TestService_MarkAsRead は既読化の各パターンを検証する。
func TestService_MarkAsRead(t *testing.T) {
	tests := []struct {
		name         string
		notification *model.Notification
		wantCode     string
		wantMarked   bool
	}{
		{
			name:         "自分宛ての未読通知を既読にする",
			notification: &model.Notification{ID: "n1", ReceiverID: strPtr("user-1")},
			wantMarked:   true,
		},
		{
			name:         "ルーム全体宛ての通知を既読にする",
			notification: &model.Notification{ID: "n1"},
			wantMarked:   true,
		},
		{
			name:         "既読済みの通知は更新しない",
			notification: &model.Notification{ID: "n1", ReceiverID: strPtr("user-1"), IsRead: true},
		},
		{
			name:         "他のユーザー宛ての通知はFORBIDDEN",
			notification: &model.Notification{ID: "n1", ReceiverID: strPtr("user-2")},
			wantCode:     model.ErrCodeForbidden,
		},
		{
			name:     "存在しない通知はNOT_FOUND",
			wantCode: model.ErrCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			marked := false
			svc := NewService(&mockNotificationRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Notification, error) {
					return tt.notification, nil
				},
				markAsReadFn: func(ctx context.Context, id string) error {
					marked = true
					return nil
				},
			}, nil)

			n, err := svc.MarkAsRead(context.Background(), "user-1", "n1")
			if tt.wantCode != "" {
				if model.ErrorCode(err) != tt.wantCode {
					t.Fatalf("error = %v, want code %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !n.IsRead {
				t.Error("notification should be read")
			}
			if marked != tt.wantMarked {
				t.Errorf("MarkAsRead called = %v, want %v", marked, tt.wantMarked)
			}
		})
	}
}

// TestService_Lists は一覧取得がnilの代わりに空スライスを返すことを検証する。
func TestService_Lists(t *testing.T) {
	svc := NewService(&mockNotificationRepo{
		listForUserFn: func(ctx context.Context, userID string) ([]*model.Notification, error) {
			return []*model.Notification{{ID: "n1"}, {ID: "n2"}}, nil
		},
		listUnreadForUserFn: func(ctx context.Context, userID string) ([]*model.Notification, error) {
			return nil, nil
		},
		listByRoomFn: func(ctx context.Context, roomID string) ([]*model.Notification, error) {
			return nil, nil
		},
	}, newRoomRepo(t, "user-1"))
	ctx := context.Background()

	all, err := svc.GetUserNotifications(ctx, "user-1")
	if err != nil || len(all) != 2 {
		t.Errorf("GetUserNotifications = %d, %v", len(all), err)
	}
	unread, err := svc.GetUnread(ctx, "user-1")
	if err != nil || unread == nil || len(unread) != 0 {
		t.Errorf("GetUnread = %v, %v, want empty slice", unread, err)
	}
	room, err := svc.GetRoomNotifications(ctx, "room-1", "user-1")
	if err != nil || room == nil {
		t.Errorf("GetRoomNotifications = %v, %v, want empty slice", room, err)
	}
}

// TestService_GetRoomNotifications_Membership はルーム通知の閲覧権限を検証する。
func TestService_GetRoomNotifications_Membership(t *testing.T) {
	called := false
	svc := NewService(&mockNotificationRepo{
		listByRoomFn: func(ctx context.Context, roomID string) ([]*model.Notification, error) {
			called = true
			return []*model.Notification{{ID: "n1", RoomID: roomID}}, nil
		},
	}, newRoomRepo(t, "owner"))
	ctx := context.Background()

	list, err := svc.GetRoomNotifications(ctx, "room-1", "owner")
	if err != nil || len(list) != 1 {
		t.Fatalf("member: GetRoomNotifications = %v, %v", list, err)
	}

	called = false
	_, err = svc.GetRoomNotifications(ctx, "room-1", "stranger")
	if model.ErrorCode(err) != model.ErrCodeForbidden {
		t.Errorf("non-member: error = %v, want FORBIDDEN", err)
	}
	if called {
		t.Error("ListByRoom should not be called for a non-member")
	}

	_, err = svc.GetRoomNotifications(ctx, "missing", "owner")
	if model.ErrorCode(err) != model.ErrCodeNotFound {
		t.Errorf("missing room: error = %v, want NOT_FOUND", err)
	}
}

// TestService_Count は総数取得とエラーの伝播を検証する。
func TestService_Count(t *testing.T) {
	svc := NewService(&mockNotificationRepo{
		countAllFn: func(ctx context.Context) (int, error) { return 12, nil },
	}, nil)
	if n, err := svc.Count(context.Background()); err != nil || n != 12 {
		t.Errorf("Count = %d, %v, want 12", n, err)
	}

	dbErr := errors.New("connection reset")
	svc = NewService(&mockNotificationRepo{
		countAllFn: func(ctx context.Context) (int, error) { return 0, dbErr },
	}, nil)
	if _, err := svc.Count(context.Background()); !errors.Is(err, dbErr) {
		t.Errorf("error = %v, want wrapped %v", err, dbErr)
	}
}
