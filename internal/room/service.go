// Package room はゲームルームのユースケース（作成・参加・退出・キック・権限移譲・開始・終了）を提供する。
//
// 各ユースケースは「ルームの読み込み → 集約の操作 → ルームの保存 → 通知の保存」を
// 1つのトランザクションで実行し、競合時はトランザクション全体を最新状態から再実行する。
// リアルタイム通知はコミット後にベストエフォートで送信する。
package room

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gamerooms/internal/gameroom"
	"github.com/hitoshi/gamerooms/internal/metrics"
	"github.com/hitoshi/gamerooms/internal/model"
	"github.com/hitoshi/gamerooms/internal/realtime"
	"github.com/hitoshi/gamerooms/internal/repository"
	"github.com/hitoshi/gamerooms/internal/security"
)

// CreateRoomRequest はルーム作成の入力。
type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxPlayers  int    `json:"max_players"`
}

// Service はゲームルームのサービス層。
type Service struct {
	userRepo         repository.UserRepository
	roomRepo         repository.RoomRepository
	notificationRepo repository.NotificationRepository
	txManager        repository.TxManager
	push             *realtime.Dispatcher
	sanitizer        security.TextSanitizer
	metrics          metrics.MetricsCollector
	now              func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	roomRepo repository.RoomRepository,
	notificationRepo repository.NotificationRepository,
	txManager repository.TxManager,
	push *realtime.Dispatcher,
	sanitizer security.TextSanitizer,
	m metrics.MetricsCollector,
) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	if push == nil {
		push = realtime.NewDispatcher(nil, m, nil)
	}
	if sanitizer == nil {
		sanitizer = security.NopSanitizer{}
	}
	return &Service{
		userRepo:         userRepo,
		roomRepo:         roomRepo,
		notificationRepo: notificationRepo,
		txManager:        txManager,
		push:             push,
		sanitizer:        sanitizer,
		metrics:          m,
		now:              time.Now,
	}
}

// CreateRoom はルームを作成し、作成者をオーナーとして追加する。
func (s *Service) CreateRoom(ctx context.Context, userID string, req CreateRoomRequest) (view *model.RoomView, err error) {
	defer s.observe("create", time.Now(), &err)

	name := s.sanitizer.Sanitize(req.Name)
	description := s.sanitizer.Sanitize(req.Description)

	var loaded *repository.LoadedRoom
	err = s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.findUser(ctx, userID)
		if err != nil {
			return err
		}

		exists, err := s.roomRepo.ExistsByName(ctx, name)
		if err != nil {
			return fmt.Errorf("ルーム名の確認に失敗しました: %w", err)
		}
		if exists {
			return model.NewDuplicateNameError(name)
		}

		now := s.now()
		room, err := gameroom.New(name, description, req.MaxPlayers, user.ID, now)
		if err != nil {
			return err
		}
		if err := room.AddPlayer(user.ID, model.RoleOwner, now); err != nil {
			return err
		}
		if err := s.roomRepo.Create(ctx, room); err != nil {
			return err
		}
		if err := s.notify(ctx, room.ID(), &user.ID, nil, model.NotificationRoomCreated,
			fmt.Sprintf("新しいルームが作成されました: %s", room.Name())); err != nil {
			return err
		}

		loaded = &repository.LoadedRoom{Room: room, Usernames: map[string]string{user.ID: user.Username}}
		return nil
	})
	if err != nil {
		return nil, err
	}

	v := toView(loaded)
	event := realtime.Event{Type: realtime.EventRoomCreated, RoomID: v.ID, UserID: userID, CurrentPlayers: v.CurrentPlayers}
	s.push.Room(ctx, v.ID, event)
	s.push.Broadcast(ctx, event)
	return v, nil
}

// JoinRoom はユーザーをプレイヤーとしてルームに参加させる。
// 他の待機中ルームにオーナー以外として参加している場合は参加できない。
func (s *Service) JoinRoom(ctx context.Context, userID, roomID string) (view *model.RoomView, err error) {
	defer s.observe("join", time.Now(), &err)

	var (
		loaded   *repository.LoadedRoom
		username string
	)
	err = s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.findUser(ctx, userID)
		if err != nil {
			return err
		}
		r, err := s.findRoom(ctx, roomID)
		if err != nil {
			return err
		}
		loaded = r

		elsewhere, err := s.roomRepo.HasActiveMembershipElsewhere(ctx, userID, roomID)
		if err != nil {
			return fmt.Errorf("参加中ルームの確認に失敗しました: %w", err)
		}
		if elsewhere {
			return model.NewAlreadyInAnotherRoomError()
		}

		if err := loaded.Room.AddPlayer(userID, model.RolePlayer, s.now()); err != nil {
			return err
		}
		if err := s.roomRepo.Update(ctx, loaded.Room); err != nil {
			return err
		}
		if err := s.notify(ctx, roomID, &userID, nil, model.NotificationPlayerJoined,
			fmt.Sprintf("%sがルームに参加しました", user.Username)); err != nil {
			return err
		}

		username = user.Username
		loaded.Usernames[userID] = username
		return nil
	})
	if err != nil {
		return nil, err
	}

	v := toView(loaded)
	s.push.Room(ctx, roomID, realtime.Event{
		Type:           realtime.EventJoin,
		RoomID:         roomID,
		UserID:         userID,
		Username:       username,
		CurrentPlayers: v.CurrentPlayers,
	})
	return v, nil
}

// LeaveRoom はユーザーをルームから退出させる。
func (s *Service) LeaveRoom(ctx context.Context, userID, roomID string) (err error) {
	defer s.observe("leave", time.Now(), &err)

	var (
		username string
		count    int
	)
	err = s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		loaded, err := s.findRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if err := loaded.Room.RemovePlayer(userID); err != nil {
			return err
		}
		if err := s.roomRepo.Update(ctx, loaded.Room); err != nil {
			return err
		}

		username = loaded.Usernames[userID]
		count = loaded.Room.MemberCount()
		return s.notify(ctx, roomID, &userID, nil, model.NotificationPlayerLeft,
			fmt.Sprintf("%sがルームから退出しました", username))
	})
	if err != nil {
		return err
	}

	s.push.Room(ctx, roomID, realtime.Event{
		Type:           realtime.EventLeave,
		RoomID:         roomID,
		UserID:         userID,
		Username:       username,
		CurrentPlayers: count,
	})
	return nil
}

// KickPlayer は対象メンバーをルームから除外する。権限の判定は集約が行う。
func (s *Service) KickPlayer(ctx context.Context, requesterID, roomID, targetID string) (err error) {
	defer s.observe("kick", time.Now(), &err)

	var (
		username string
		count    int
	)
	err = s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		loaded, err := s.findRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if err := loaded.Room.KickPlayer(targetID, requesterID); err != nil {
			return err
		}
		if err := s.roomRepo.Update(ctx, loaded.Room); err != nil {
			return err
		}

		username = loaded.Usernames[targetID]
		count = loaded.Room.MemberCount()
		return s.notify(ctx, roomID, &requesterID, &targetID, model.NotificationPlayerKicked,
			fmt.Sprintf("%sがルームから除外されました", username))
	})
	if err != nil {
		return err
	}

	event := realtime.Event{
		Type:           realtime.EventKick,
		RoomID:         roomID,
		UserID:         requesterID,
		TargetUserID:   targetID,
		Username:       username,
		CurrentPlayers: count,
	}
	s.push.Room(ctx, roomID, event)
	s.push.User(ctx, targetID, event)
	return nil
}

// TransferOwnership はオーナー権限を別のメンバーに移譲する。
func (s *Service) TransferOwnership(ctx context.Context, currentOwnerID, roomID, newOwnerID string) (view *model.RoomView, err error) {
	defer s.observe("transfer_ownership", time.Now(), &err)

	var loaded *repository.LoadedRoom
	err = s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.findRoom(ctx, roomID)
		if err != nil {
			return err
		}
		loaded = r
		if err := loaded.Room.TransferOwnership(newOwnerID, currentOwnerID); err != nil {
			return err
		}
		if err := s.roomRepo.Update(ctx, loaded.Room); err != nil {
			return err
		}
		return s.notify(ctx, roomID, &currentOwnerID, &newOwnerID, model.NotificationRoleChanged,
			fmt.Sprintf("%sがルームの新しいオーナーになりました", loaded.Usernames[newOwnerID]))
	})
	if err != nil {
		return nil, err
	}

	s.push.Room(ctx, roomID, realtime.Event{
		Type:         realtime.EventRoleChange,
		RoomID:       roomID,
		UserID:       currentOwnerID,
		TargetUserID: newOwnerID,
		Role:         string(model.RoleOwner),
	})
	return toView(loaded), nil
}

// UpdatePlayerRole はメンバーの役割を変更する。オーナーのみ実行できる。
func (s *Service) UpdatePlayerRole(ctx context.Context, requesterID, roomID, targetID string, role model.Role) (view *model.RoomView, err error) {
	defer s.observe("update_role", time.Now(), &err)

	var loaded *repository.LoadedRoom
	err = s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.findRoom(ctx, roomID)
		if err != nil {
			return err
		}
		loaded = r
		if err := loaded.Room.UpdatePlayerRole(targetID, role, requesterID); err != nil {
			return err
		}
		if err := s.roomRepo.Update(ctx, loaded.Room); err != nil {
			return err
		}

		typ := model.NotificationRoleChanged
		if role == model.RoleModerator {
			typ = model.NotificationModeratorAssigned
		}
		return s.notify(ctx, roomID, &requesterID, &targetID, typ,
			fmt.Sprintf("%sの役割が%sに変更されました", loaded.Usernames[targetID], role))
	})
	if err != nil {
		return nil, err
	}

	s.push.Room(ctx, roomID, realtime.Event{
		Type:         realtime.EventRoleChange,
		RoomID:       roomID,
		UserID:       requesterID,
		TargetUserID: targetID,
		Role:         string(role),
	})
	return toView(loaded), nil
}

// StartGame はゲームを開始する。ルームのオーナーのみ実行できる。
func (s *Service) StartGame(ctx context.Context, userID, roomID string) (view *model.RoomView, err error) {
	defer s.observe("start", time.Now(), &err)

	var loaded *repository.LoadedRoom
	err = s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.findOwnedRoom(ctx, userID, roomID, "開始")
		if err != nil {
			return err
		}
		loaded = r
		if err := loaded.Room.Start(s.now()); err != nil {
			return err
		}
		if err := s.roomRepo.Update(ctx, loaded.Room); err != nil {
			return err
		}
		return s.notify(ctx, roomID, &userID, nil, model.NotificationGameStarted,
			fmt.Sprintf("ゲームが開始されました: %s", loaded.Room.Name()))
	})
	if err != nil {
		return nil, err
	}

	s.push.Room(ctx, roomID, realtime.Event{
		Type:           realtime.EventGameStarted,
		RoomID:         roomID,
		UserID:         userID,
		CurrentPlayers: loaded.Room.MemberCount(),
	})
	return toView(loaded), nil
}

// EndGame は進行中のゲームを終了する。ルームのオーナーのみ実行できる。
func (s *Service) EndGame(ctx context.Context, userID, roomID string) (view *model.RoomView, err error) {
	defer s.observe("end", time.Now(), &err)

	var loaded *repository.LoadedRoom
	err = s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.findOwnedRoom(ctx, userID, roomID, "終了")
		if err != nil {
			return err
		}
		loaded = r
		if err := loaded.Room.End(s.now()); err != nil {
			return err
		}
		if err := s.roomRepo.Update(ctx, loaded.Room); err != nil {
			return err
		}
		return s.notify(ctx, roomID, &userID, nil, model.NotificationGameEnded,
			fmt.Sprintf("ゲームが終了しました: %s", loaded.Room.Name()))
	})
	if err != nil {
		return nil, err
	}

	s.push.Room(ctx, roomID, realtime.Event{Type: realtime.EventGameEnded, RoomID: roomID, UserID: userID})
	return toView(loaded), nil
}

// GetAvailableRooms は参加者を募集中のルームを新しい順に返す。
func (s *Service) GetAvailableRooms(ctx context.Context) ([]*model.RoomView, error) {
	rooms, err := s.roomRepo.ListByStatus(ctx, model.RoomStatusCreated)
	if err != nil {
		return nil, fmt.Errorf("ルーム一覧の取得に失敗しました: %w", err)
	}
	return toViews(rooms), nil
}

// GetRoomByID は指定IDのルームを返す。
func (s *Service) GetRoomByID(ctx context.Context, roomID string) (*model.RoomView, error) {
	loaded, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return toView(loaded), nil
}

// GetUserRooms はユーザーがオーナーまたはメンバーである待機中ルームを返す。
func (s *Service) GetUserRooms(ctx context.Context, userID string) ([]*model.RoomView, error) {
	rooms, err := s.roomRepo.FindActiveRoomsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("参加中ルームの取得に失敗しました: %w", err)
	}
	return toViews(rooms), nil
}

func (s *Service) findUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("user", userID)
	}
	return user, nil
}

func (s *Service) findRoom(ctx context.Context, roomID string) (*repository.LoadedRoom, error) {
	loaded, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("ルームの取得に失敗しました: %w", err)
	}
	if loaded == nil {
		return nil, model.NewNotFoundError("room", roomID)
	}
	if loaded.Usernames == nil {
		loaded.Usernames = make(map[string]string)
	}
	return loaded, nil
}

// findOwnedRoom はルームを読み込み、userIDがオーナーであることを確認する。
func (s *Service) findOwnedRoom(ctx context.Context, userID, roomID, action string) (*repository.LoadedRoom, error) {
	loaded, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if loaded.Room.OwnerID() != userID {
		return nil, model.NewForbiddenError(fmt.Sprintf("ゲームの%sはルームのオーナーのみ実行できます", action))
	}
	return loaded, nil
}

// notify は通知を保存する。トランザクション内で呼び出す。
func (s *Service) notify(ctx context.Context, roomID string, senderID, receiverID *string, typ model.NotificationType, message string) error {
	n := &model.Notification{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Type:       typ,
		Message:    message,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		return fmt.Errorf("通知の保存に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) observe(operation string, start time.Time, err *error) {
	s.metrics.RecordRoomOperation(operation, *err, time.Since(start))
}

func toViews(rooms []*repository.LoadedRoom) []*model.RoomView {
	views := make([]*model.RoomView, len(rooms))
	for i, r := range rooms {
		views[i] = toView(r)
	}
	return views
}

func toView(loaded *repository.LoadedRoom) *model.RoomView {
	r := loaded.Room
	members := r.Members()
	players := make([]model.PlayerView, len(members))
	for i, m := range members {
		players[i] = model.PlayerView{
			UserID:   m.UserID,
			Username: loaded.Usernames[m.UserID],
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		}
	}
	return &model.RoomView{
		ID:             r.ID(),
		Name:           r.Name(),
		Description:    r.Description(),
		MaxPlayers:     r.MaxPlayers(),
		CurrentPlayers: len(members),
		Status:         r.Status(),
		OwnerID:        r.OwnerID(),
		OwnerUsername:  loaded.Usernames[r.OwnerID()],
		CreatedAt:      r.CreatedAt(),
		StartedAt:      r.StartedAt(),
		EndedAt:        r.EndedAt(),
		Players:        players,
	}
}
