// Package realtime は接続中のクライアントへのリアルタイム通知（ベストエフォート）を提供する。
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// イベント種別
const (
	EventJoin           = "JOIN"
	EventLeave          = "LEAVE"
	EventKick           = "KICK"
	EventRoleChange     = "ROLE_CHANGE"
	EventGameStarted    = "GAME_STARTED"
	EventGameEnded      = "GAME_ENDED"
	EventRoomCreated    = "ROOM_CREATED"
	EventModerationWarn = "MODERATION_WARN"
	EventModerationMute = "MODERATION_MUTE"
	EventModerationKick = "MODERATION_KICK"
)

// Event はクライアントへ送るイベントのペイロード。
type Event struct {
	Type           string `json:"type"`
	RoomID         string `json:"roomId,omitempty"`
	UserID         string `json:"userId,omitempty"`
	Username       string `json:"username,omitempty"`
	TargetUserID   string `json:"targetUserId,omitempty"`
	Role           string `json:"role,omitempty"`
	CurrentPlayers int    `json:"currentPlayers,omitempty"`
	Message        string `json:"message,omitempty"`
}

// Pusher はリアルタイム通知の送信インターフェース。
type Pusher interface {
	NotifyRoom(ctx context.Context, roomID string, event Event) error
	NotifyUser(ctx context.Context, userID string, event Event) error
	Broadcast(ctx context.Context, event Event) error
}

// publisher は Redis の PUBLISH を行うクライアント。*redis.Client が満たす。
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// envelope はチャンネルに流すメッセージ形式。
type envelope struct {
	Target  string    `json:"target"`
	Payload Event     `json:"payload"`
	SentAt  time.Time `json:"sent_at"`
}

// RedisPusher は Redis Pub/Sub を使用する Pusher の実装。
// ルームは <prefix>:room:<id>、ユーザーは <prefix>:user:<id>、
// 全体は <prefix>:broadcast チャンネルに発行する。
type RedisPusher struct {
	client publisher
	prefix string
	now    func() time.Time
}

// NewRedisPusher はRedisPusherを生成する。
func NewRedisPusher(client publisher, prefix string) *RedisPusher {
	return &RedisPusher{client: client, prefix: prefix, now: time.Now}
}

// NotifyRoom はルームの購読者にイベントを送信する。
func (p *RedisPusher) NotifyRoom(ctx context.Context, roomID string, event Event) error {
	return p.publish(ctx, "room:"+roomID, event)
}

// NotifyUser は特定ユーザーにイベントを送信する。
func (p *RedisPusher) NotifyUser(ctx context.Context, userID string, event Event) error {
	return p.publish(ctx, "user:"+userID, event)
}

// Broadcast は全クライアントにイベントを送信する。
func (p *RedisPusher) Broadcast(ctx context.Context, event Event) error {
	return p.publish(ctx, "broadcast", event)
}

func (p *RedisPusher) publish(ctx context.Context, target string, event Event) error {
	data, err := json.Marshal(envelope{Target: target, Payload: event, SentAt: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal realtime event: %w", err)
	}
	channel := p.prefix + ":" + target
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// NopPusher は何も送信しない Pusher。Redisが未設定の場合に使用する。
type NopPusher struct{}

func (NopPusher) NotifyRoom(context.Context, string, Event) error { return nil }
func (NopPusher) NotifyUser(context.Context, string, Event) error { return nil }
func (NopPusher) Broadcast(context.Context, Event) error          { return nil }

// compile-time interface check
var (
	_ Pusher = (*RedisPusher)(nil)
	_ Pusher = NopPusher{}
)
