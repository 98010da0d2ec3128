package realtime

import (
	"context"
	"log/slog"

	"github.com/hitoshi/gamerooms/internal/metrics"
)

// Dispatcher はコミット後のリアルタイム通知を送信する。
// 送信失敗はログとメトリクスに記録するだけで呼び出し元には返さない。
type Dispatcher struct {
	pusher  Pusher
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewDispatcher はDispatcherを生成する。loggerがnilの場合は slog.Default() を使用する。
func NewDispatcher(pusher Pusher, m metrics.MetricsCollector, logger *slog.Logger) *Dispatcher {
	if pusher == nil {
		pusher = NopPusher{}
	}
	if m == nil {
		m = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{pusher: pusher, metrics: m, logger: logger}
}

// Room はルーム宛てにイベントを送信する。
func (d *Dispatcher) Room(ctx context.Context, roomID string, event Event) {
	if err := d.pusher.NotifyRoom(ctx, roomID, event); err != nil {
		d.fail(ctx, "room", event, err, slog.String("room_id", roomID))
	}
}

// User はユーザー宛てにイベントを送信する。
func (d *Dispatcher) User(ctx context.Context, userID string, event Event) {
	if err := d.pusher.NotifyUser(ctx, userID, event); err != nil {
		d.fail(ctx, "user", event, err, slog.String("user_id", userID))
	}
}

// Broadcast は全体にイベントを送信する。
func (d *Dispatcher) Broadcast(ctx context.Context, event Event) {
	if err := d.pusher.Broadcast(ctx, event); err != nil {
		d.fail(ctx, "broadcast", event, err)
	}
}

func (d *Dispatcher) fail(ctx context.Context, target string, event Event, err error, attrs ...slog.Attr) {
	d.metrics.RecordPushFailure(target)
	attrs = append(attrs,
		slog.String("target", target),
		slog.String("event", event.Type),
		slog.String("error", err.Error()),
	)
	d.logger.LogAttrs(ctx, slog.LevelWarn, "realtime push failed", attrs...)
}
