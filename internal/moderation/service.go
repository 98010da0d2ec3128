// Package moderation はルーム内のモデレーション（警告・ミュート・キック）と監査ログを提供する。
package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gamerooms/internal/metrics"
	"github.com/hitoshi/gamerooms/internal/model"
	"github.com/hitoshi/gamerooms/internal/realtime"
	"github.com/hitoshi/gamerooms/internal/repository"
	"github.com/hitoshi/gamerooms/internal/security"
)

const (
	// MaxMuteDuration はミュート期間の上限。
	MaxMuteDuration = 7 * 24 * time.Hour
	// RoomActivityLimit はルームのアクティビティ取得件数の上限。
	RoomActivityLimit = 100
	// UserActivityLimit はユーザーのアクティビティ取得件数の上限。
	UserActivityLimit = 50
)

// Service はモデレーションのサービス層。
// 権限（ルーム内の役割が Owner または Moderator）はこの層で判定する。
// キックは監査ログと通知の記録のみで、メンバーシップの削除はルームサービスが行う。
type Service struct {
	userRepo         repository.UserRepository
	roomRepo         repository.RoomRepository
	logRepo          repository.ModerationLogRepository
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
	logRepo repository.ModerationLogRepository,
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
		logRepo:          logRepo,
		notificationRepo: notificationRepo,
		txManager:        txManager,
		push:             push,
		sanitizer:        sanitizer,
		metrics:          m,
		now:              time.Now,
	}
}

// action は1件のモデレーション操作の記録内容。
type action struct {
	kind      model.ModerationAction
	details   string
	notifType model.NotificationType
	event     string
	message   func(username string) string
}

// WarnPlayer は対象ユーザーに警告する。理由は必須。
func (s *Service) WarnPlayer(ctx context.Context, roomID, moderatorID, targetID, reason string) (*model.ModerationLog, error) {
	reason = s.sanitizer.Sanitize(reason)
	if reason == "" {
		return nil, model.NewValidationError("警告の理由は必須です")
	}
	return s.apply(ctx, roomID, moderatorID, targetID, action{
		kind:      model.ModerationWarn,
		details:   "warned: " + reason,
		notifType: model.NotificationPlayerWarned,
		event:     realtime.EventModerationWarn,
		message: func(username string) string {
			return fmt.Sprintf("%sが警告を受けました: %s", username, reason)
		},
	})
}

// MutePlayer は対象ユーザーを指定期間ミュートする。期間は0より大きく7日以内。
func (s *Service) MutePlayer(ctx context.Context, roomID, moderatorID, targetID string, duration time.Duration, reason string) (*model.ModerationLog, error) {
	if duration <= 0 || duration > MaxMuteDuration {
		return nil, model.NewInvalidDurationError()
	}
	reason = s.sanitizer.Sanitize(reason)
	minutes := int(duration / time.Minute)
	return s.apply(ctx, roomID, moderatorID, targetID, action{
		kind:      model.ModerationMute,
		details:   fmt.Sprintf("muted for %d minutes: %s", minutes, reason),
		notifType: model.NotificationPlayerMuted,
		event:     realtime.EventModerationMute,
		message: func(username string) string {
			return fmt.Sprintf("%sが%d分間ミュートされました", username, minutes)
		},
	})
}

// KickPlayer は対象ユーザーのキックを記録する。理由は任意。
func (s *Service) KickPlayer(ctx context.Context, roomID, moderatorID, targetID, reason string) (*model.ModerationLog, error) {
	reason = s.sanitizer.Sanitize(reason)
	return s.apply(ctx, roomID, moderatorID, targetID, action{
		kind:      model.ModerationKick,
		details:   "kicked: " + reason,
		notifType: model.NotificationPlayerKicked,
		event:     realtime.EventModerationKick,
		message: func(username string) string {
			return fmt.Sprintf("%sがルームから除外されました", username)
		},
	})
}

// apply は権限と対象を確認し、ログと通知を1つのトランザクションで保存する。
func (s *Service) apply(ctx context.Context, roomID, moderatorID, targetID string, a action) (*model.ModerationLog, error) {
	var entry *model.ModerationLog
	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		loaded, err := s.roomRepo.FindByID(ctx, roomID)
		if err != nil {
			return fmt.Errorf("ルームの取得に失敗しました: %w", err)
		}
		if loaded == nil {
			return model.NewNotFoundError("room", roomID)
		}
		if err := requireModerator(loaded, moderatorID); err != nil {
			return err
		}

		target, err := s.userRepo.FindByID(ctx, targetID)
		if err != nil {
			return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		if target == nil {
			return model.NewNotFoundError("user", targetID)
		}

		now := s.now().UTC()
		entry = &model.ModerationLog{
			ID:           uuid.NewString(),
			RoomID:       roomID,
			ModeratorID:  moderatorID,
			TargetUserID: &target.ID,
			Action:       a.kind,
			Details:      a.details,
			Timestamp:    now,
		}
		if err := s.logRepo.Append(ctx, entry); err != nil {
			return fmt.Errorf("モデレーションログの保存に失敗しました: %w", err)
		}

		n := &model.Notification{
			ID:         uuid.NewString(),
			RoomID:     roomID,
			SenderID:   &moderatorID,
			ReceiverID: &target.ID,
			Type:       a.notifType,
			Message:    a.message(target.Username),
			CreatedAt:  now,
		}
		if err := s.notificationRepo.Create(ctx, n); err != nil {
			return fmt.Errorf("通知の保存に失敗しました: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordModerationAction(a.kind)
	s.push.Room(ctx, roomID, realtime.Event{
		Type:         a.event,
		RoomID:       roomID,
		UserID:       moderatorID,
		TargetUserID: *entry.TargetUserID,
		Message:      a.details,
	})
	return entry, nil
}

// requireModerator はユーザーがルームの Owner または Moderator であることを確認する。
func requireModerator(loaded *repository.LoadedRoom, userID string) error {
	m, ok := loaded.Room.Member(userID)
	if !ok || (m.Role != model.RoleOwner && m.Role != model.RoleModerator) {
		return model.NewForbiddenError("モデレーションはオーナーまたはモデレーターのみ実行できます")
	}
	return nil
}

// GetRoomActivity はルームのモデレーションログを新しい順に最大100件返す。
// 閲覧できるのはルームの Owner と Moderator のみ。
func (s *Service) GetRoomActivity(ctx context.Context, roomID, requesterID string) ([]*model.ModerationLog, error) {
	loaded, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("ルームの取得に失敗しました: %w", err)
	}
	if loaded == nil {
		return nil, model.NewNotFoundError("room", roomID)
	}
	if err := requireModerator(loaded, requesterID); err != nil {
		return nil, err
	}

	logs, err := s.logRepo.ListByRoom(ctx, roomID, RoomActivityLimit)
	if err != nil {
		return nil, fmt.Errorf("ルームのアクティビティ取得に失敗しました: %w", err)
	}
	return logs, nil
}

// GetUserActivity はユーザーが対象またはモデレーターであるログを新しい順に最大50件返す。
// 本人以外の履歴は閲覧できない。
func (s *Service) GetUserActivity(ctx context.Context, userID, requesterID string) ([]*model.ModerationLog, error) {
	if userID != requesterID {
		return nil, model.NewForbiddenError("他のユーザーのモデレーション履歴は閲覧できません")
	}
	logs, err := s.logRepo.ListByUser(ctx, userID, UserActivityLimit)
	if err != nil {
		return nil, fmt.Errorf("ユーザーのアクティビティ取得に失敗しました: %w", err)
	}
	return logs, nil
}

// PurgeOlderThan は指定期間より古いログを削除し、削除件数を返す。
func (s *Service) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	if age <= 0 {
		return 0, model.NewValidationError("保持期間は正の値で指定してください")
	}
	deleted, err := s.logRepo.DeleteOlderThan(ctx, age)
	if err != nil {
		return 0, fmt.Errorf("モデレーションログの削除に失敗しました: %w", err)
	}
	s.metrics.RecordLogsPurged(deleted)
	return deleted, nil
}
