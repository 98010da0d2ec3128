package model

import "time"

// NotificationType は通知の種別を表す。
type NotificationType string

const (
	NotificationPlayerJoined      NotificationType = "PlayerJoined"
	NotificationPlayerLeft        NotificationType = "PlayerLeft"
	NotificationGameStarted       NotificationType = "GameStarted"
	NotificationGameEnded         NotificationType = "GameEnded"
	NotificationPlayerKicked      NotificationType = "PlayerKicked"
	NotificationRoomCreated       NotificationType = "RoomCreated"
	NotificationPlayerWarned      NotificationType = "PlayerWarned"
	NotificationPlayerMuted       NotificationType = "PlayerMuted"
	NotificationPlayerUnmuted     NotificationType = "PlayerUnmuted"
	NotificationModeratorAssigned NotificationType = "ModeratorAssigned"
	NotificationRoleChanged       NotificationType = "RoleChanged"
)

// Notification はルーム・モデレーション操作によって永続化される通知を表す。
// ReceiverIDがnilの場合はルーム全体宛て。IsReadはfalseからtrueへ一度だけ変化する。
type Notification struct {
	ID         string           `json:"id"`
	RoomID     string           `json:"room_id"`
	SenderID   *string          `json:"sender_id"`
	ReceiverID *string          `json:"receiver_id"`
	Type       NotificationType `json:"type"`
	Message    string           `json:"message"`
	CreatedAt  time.Time        `json:"created_at"`
	IsRead     bool             `json:"is_read"`
}
