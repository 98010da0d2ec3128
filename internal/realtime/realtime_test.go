package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/gamerooms/internal/model"
)

type published struct {
	channel string
	message []byte
}

type fakePublisher struct {
	err  error
	sent []published
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.sent = append(f.sent, published{channel: channel, message: message.([]byte)})
	cmd.SetVal(1)
	return cmd
}

type fakePusher struct {
	err   error
	calls []string
}

func (f *fakePusher) NotifyRoom(ctx context.Context, roomID string, event Event) error {
	f.calls = append(f.calls, "room:"+roomID)
	return f.err
}
func (f *fakePusher) NotifyUser(ctx context.Context, userID string, event Event) error {
	f.calls = append(f.calls, "user:"+userID)
	return f.err
}
func (f *fakePusher) Broadcast(ctx context.Context, event Event) error {
	f.calls = append(f.calls, "broadcast")
	return f.err
}

type countingMetrics struct {
	pushFailures map[string]int
}

func (m *countingMetrics) RecordRoomOperation(string, error, time.Duration) {}
func (m *countingMetrics) RecordModerationAction(model.ModerationAction)    {}
func (m *countingMetrics) RecordPushFailure(target string) {
	if m.pushFailures == nil {
		m.pushFailures = map[string]int{}
	}
	m.pushFailures[target]++
}
func (m *countingMetrics) RecordTxRetry()         {}
func (m *countingMetrics) RecordLogsPurged(int64) {}
func (m *countingMetrics) RecordHTTPStatus(int)   {}

// TestRedisPusher_Channels は宛先ごとのチャンネル名とメッセージ形式を検証する。
func TestRedisPusher_Channels(t *testing.T) {
	pub := &fakePublisher{}
	p := NewRedisPusher(pub, "gr")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	ctx := context.Background()

	ev := Event{Type: EventJoin, RoomID: "room-1", UserID: "user-1", Username: "alice", CurrentPlayers: 2}
	if err := p.NotifyRoom(ctx, "room-1", ev); err != nil {
		t.Fatalf("NotifyRoom: unexpected error: %v", err)
	}
	if err := p.NotifyUser(ctx, "user-1", ev); err != nil {
		t.Fatalf("NotifyUser: unexpected error: %v", err)
	}
	if err := p.Broadcast(ctx, ev); err != nil {
		t.Fatalf("Broadcast: unexpected error: %v", err)
	}

	wantChannels := []string{"gr:room:room-1", "gr:user:user-1", "gr:broadcast"}
	if len(pub.sent) != len(wantChannels) {
		t.Fatalf("published %d messages, want %d", len(pub.sent), len(wantChannels))
	}
	for i, want := range wantChannels {
		if pub.sent[i].channel != want {
			t.Errorf("channel[%d] = %q, want %q", i, pub.sent[i].channel, want)
		}
	}

	var got struct {
		Target  string         `json:"target"`
		Payload map[string]any `json:"payload"`
		SentAt  time.Time      `json:"sent_at"`
	}
	if err := json.Unmarshal(pub.sent[0].message, &got); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	if got.Target != "room:room-1" {
		t.Errorf("target = %q, want %q", got.Target, "room:room-1")
	}
	if got.Payload["type"] != EventJoin || got.Payload["userId"] != "user-1" || got.Payload["currentPlayers"] != float64(2) {
		t.Errorf("unexpected payload: %v", got.Payload)
	}
	if !got.SentAt.Equal(fixed) {
		t.Errorf("sent_at = %v, want %v", got.SentAt, fixed)
	}
}

// TestRedisPusher_PublishError はPUBLISH失敗がエラーとして返ることを検証する。
func TestRedisPusher_PublishError(t *testing.T) {
	p := NewRedisPusher(&fakePublisher{err: errors.New("connection refused")}, "gr")

	err := p.NotifyRoom(context.Background(), "room-1", Event{Type: EventLeave})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "gr:room:room-1") {
		t.Errorf("error should mention channel: %v", err)
	}
}

// TestDispatcher_SwallowsFailures は送信失敗がログとメトリクスに記録されることを検証する。
func TestDispatcher_SwallowsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	m := &countingMetrics{}
	pusher := &fakePusher{err: errors.New("redis down")}
	d := NewDispatcher(pusher, m, logger)
	ctx := context.Background()

	d.Room(ctx, "room-1", Event{Type: EventKick})
	d.User(ctx, "user-1", Event{Type: EventKick})
	d.Broadcast(ctx, Event{Type: EventRoomCreated})

	if len(pusher.calls) != 3 {
		t.Errorf("pusher calls = %v, want 3 calls", pusher.calls)
	}
	for _, target := range []string{"room", "user", "broadcast"} {
		if m.pushFailures[target] != 1 {
			t.Errorf("push failures[%s] = %d, want 1", target, m.pushFailures[target])
		}
	}
	out := buf.String()
	if !strings.Contains(out, "realtime push failed") || !strings.Contains(out, `"room_id":"room-1"`) {
		t.Errorf("expected failure log with room_id, got: %s", out)
	}
}

// TestDispatcher_Success は成功時に何も記録しないことを検証する。
func TestDispatcher_Success(t *testing.T) {
	var buf bytes.Buffer
	m := &countingMetrics{}
	d := NewDispatcher(&fakePusher{}, m, slog.New(slog.NewJSONHandler(&buf, nil)))

	d.Room(context.Background(), "room-1", Event{Type: EventJoin})

	if len(m.pushFailures) != 0 {
		t.Errorf("unexpected push failures: %v", m.pushFailures)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log output: %s", buf.String())
	}
}

// TestNewDispatcher_Defaults はnil引数でも動作することを検証する。
func TestNewDispatcher_Defaults(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	d.Room(context.Background(), "room-1", Event{Type: EventJoin})
	d.Broadcast(context.Background(), Event{Type: EventJoin})
}
