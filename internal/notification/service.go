// Package notification は永続化された通知の取得と既読管理を提供する。
package notification

import (
	"context"
	"fmt"

	"github.com/hitoshi/gamerooms/internal/model"
	"github.com/hitoshi/gamerooms/internal/repository"
)

// Service は通知のサービス層。
type Service struct {
	notificationRepo repository.NotificationRepository
	roomRepo         repository.RoomRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(notificationRepo repository.NotificationRepository, roomRepo repository.RoomRepository) *Service {
	return &Service{notificationRepo: notificationRepo, roomRepo: roomRepo}
}

// GetUserNotifications はユーザー宛て、またはユーザーが参加するルームの通知を新しい順に返す。
func (s *Service) GetUserNotifications(ctx context.Context, userID string) ([]*model.Notification, error) {
	list, err := s.notificationRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗しました: %w", err)
	}
	return nonNil(list), nil
}

// GetUnread は GetUserNotifications のうち未読のものを返す。
func (s *Service) GetUnread(ctx context.Context, userID string) ([]*model.Notification, error) {
	list, err := s.notificationRepo.ListUnreadForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("未読通知の取得に失敗しました: %w", err)
	}
	return nonNil(list), nil
}

// GetRoomNotifications はルームの通知を新しい順に返す。
// 閲覧できるのはルームのメンバーのみ。
func (s *Service) GetRoomNotifications(ctx context.Context, roomID, userID string) ([]*model.Notification, error) {
	loaded, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("ルームの取得に失敗しました: %w", err)
	}
	if loaded == nil {
		return nil, model.NewNotFoundError("room", roomID)
	}
	if _, ok := loaded.Room.Member(userID); !ok {
		return nil, model.NewForbiddenError("ルームのメンバーのみ通知を閲覧できます")
	}

	list, err := s.notificationRepo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("ルームの通知取得に失敗しました: %w", err)
	}
	return nonNil(list), nil
}

// MarkAsRead は通知を既読にする。
// 他のユーザー宛ての通知は既読にできない。既読済みの通知に対しては何もしない。
func (s *Service) MarkAsRead(ctx context.Context, userID, notificationID string) (*model.Notification, error) {
	n, err := s.notificationRepo.FindByID(ctx, notificationID)
	if err != nil {
		return nil, fmt.Errorf("通知の取得に失敗しました: %w", err)
	}
	if n == nil {
		return nil, model.NewNotFoundError("notification", notificationID)
	}
	if n.ReceiverID != nil && *n.ReceiverID != userID {
		return nil, model.NewForbiddenError("他のユーザー宛ての通知は既読にできません")
	}
	if n.IsRead {
		return n, nil
	}

	if err := s.notificationRepo.MarkAsRead(ctx, notificationID); err != nil {
		return nil, fmt.Errorf("通知の既読化に失敗しました: %w", err)
	}
	n.IsRead = true
	return n, nil
}

// Count は通知の総数を返す。
func (s *Service) Count(ctx context.Context) (int, error) {
	count, err := s.notificationRepo.CountAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("通知数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// nonNil はJSONで null ではなく空配列を返すため、nilスライスを空スライスに変換する。
func nonNil(list []*model.Notification) []*model.Notification {
	if list == nil {
		return []*model.Notification{}
	}
	return list
}
