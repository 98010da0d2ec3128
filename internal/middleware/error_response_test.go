package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/gamerooms/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusConflict, model.NewRoomFullError(4))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != model.ErrCodeRoomFull {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRoomFull)
	}
	if body.Category != "room" {
		t.Errorf("category = %q, want %q", body.Category, "room")
	}
	if body.Message == "" || body.Action == "" {
		t.Errorf("message and action should be set: %+v", body)
	}
}

// TestWriteInternalServerError_HidesDetails は内部エラーで一般的なメッセージのみ返すことを検証する。
func TestWriteInternalServerError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	for _, key := range []string{"code", "message", "category", "action"} {
		if _, ok := body[key]; !ok {
			t.Errorf("missing field %q", key)
		}
	}
	if body["code"] != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeInternal)
	}
	if body["category"] != "system" {
		t.Errorf("category = %q, want %q", body["category"], "system")
	}
}
