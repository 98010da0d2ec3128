package model

import "time"

// ModerationAction はモデレーション操作の種別を表す。
type ModerationAction string

const (
	ModerationWarn ModerationAction = "WARN"
	ModerationMute ModerationAction = "MUTE"
	ModerationKick ModerationAction = "KICK"
)

// ModerationLog はモデレーション操作の監査ログを表す。
// 追記のみで、作成後に更新されることはない。
type ModerationLog struct {
	ID           string           `json:"id"`
	RoomID       string           `json:"room_id"`
	ModeratorID  string           `json:"moderator_id"`
	TargetUserID *string          `json:"target_user_id"`
	Action       ModerationAction `json:"action"`
	Details      string           `json:"details"`
	Timestamp    time.Time        `json:"timestamp"`
}
