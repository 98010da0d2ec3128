package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/gamerooms/internal/model"
	"github.com/hitoshi/gamerooms/internal/room"
)

func TestRoomHandler_Create_Success(t *testing.T) {
	svc := &mockRoomService{
		createRoomFn: func(ctx context.Context, userID string, req room.CreateRoomRequest) (*model.RoomView, error) {
			if userID != testUserID {
				t.Errorf("userID = %q, want %q", userID, testUserID)
			}
			if req.Name != "Friday Night" || req.MaxPlayers != 4 {
				t.Errorf("req = %+v", req)
			}
			return sampleRoomView(), nil
		},
	}
	h := NewRoomHandler(svc)

	body := `{"name": "Friday Night", "description": "casual", "max_players": 4}`
	req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewBufferString(body))
	req = withUserID(req, testUserID)
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var got model.RoomView
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != testRoomID || got.OwnerUsername != "alice" || len(got.Players) != 1 {
		t.Errorf("response = %+v", got)
	}
}

func TestRoomHandler_Create_InvalidJSON(t *testing.T) {
	h := NewRoomHandler(&mockRoomService{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"name":`},
		{"unknown field", `{"name": "a", "owner_id": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewBufferString(tt.body))
			req = withUserID(req, testUserID)
			w := httptest.NewRecorder()

			h.Create(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeValidation {
				t.Errorf("code = %q, want %q", body["code"], model.ErrCodeValidation)
			}
		})
	}
}

func TestRoomHandler_Create_NoUser(t *testing.T) {
	h := NewRoomHandler(&mockRoomService{})

	req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRoomHandler_Join_MapsDomainErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"room full", model.NewRoomFullError(4), http.StatusConflict},
		{"already in another room", model.NewAlreadyInAnotherRoomError(), http.StatusConflict},
		{"not found", model.NewNotFoundError("room", testRoomID), http.StatusNotFound},
		{"wait time exceeded", model.NewWaitTimeExceededError(), http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockRoomService{
				joinRoomFn: func(ctx context.Context, userID, roomID string) (*model.RoomView, error) {
					return nil, tt.err
				},
			}
			h := NewRoomHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/rooms/"+testRoomID+"/join", nil)
			req = withChiURLParams(withUserID(req, testUserID), "id", testRoomID)
			w := httptest.NewRecorder()

			h.Join(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRoomHandler_MalformedRoomID_Returns404(t *testing.T) {
	called := false
	svc := &mockRoomService{
		getRoomByIDFn: func(ctx context.Context, roomID string) (*model.RoomView, error) {
			called = true
			return nil, nil
		},
	}
	h := NewRoomHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/not-a-uuid", nil)
	req = withChiURLParams(withUserID(req, testUserID), "id", "not-a-uuid")
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if called {
		t.Error("service should not be called for malformed ID")
	}
}

func TestRoomHandler_Leave_Returns204(t *testing.T) {
	svc := &mockRoomService{
		leaveRoomFn: func(ctx context.Context, userID, roomID string) error {
			if userID != testUserID || roomID != testRoomID {
				t.Errorf("LeaveRoom(%q, %q)", userID, roomID)
			}
			return nil
		},
	}
	h := NewRoomHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/rooms/"+testRoomID+"/leave", nil)
	req = withChiURLParams(withUserID(req, testUserID), "id", testRoomID)
	w := httptest.NewRecorder()

	h.Leave(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestRoomHandler_Kick_PassesTarget(t *testing.T) {
	var gotTarget string
	svc := &mockRoomService{
		kickPlayerFn: func(ctx context.Context, requesterID, roomID, targetID string) error {
			gotTarget = targetID
			return model.NewCannotKickOwnerError()
		},
	}
	h := NewRoomHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = withChiURLParams(withUserID(req, testUserID), "id", testRoomID, "userID", testTargetID)
	w := httptest.NewRecorder()

	h.Kick(w, req)

	if gotTarget != testTargetID {
		t.Errorf("targetID = %q, want %q", gotTarget, testTargetID)
	}
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

func TestRoomHandler_UpdateRole(t *testing.T) {
	var gotRole model.Role
	svc := &mockRoomService{
		updatePlayerRoleFn: func(ctx context.Context, requesterID, roomID, targetID string, role model.Role) (*model.RoomView, error) {
			gotRole = role
			return sampleRoomView(), nil
		},
	}
	h := NewRoomHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{"role": "Moderator"}`))
	req = withChiURLParams(withUserID(req, testUserID), "id", testRoomID, "userID", testTargetID)
	w := httptest.NewRecorder()

	h.UpdateRole(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotRole != model.RoleModerator {
		t.Errorf("role = %q, want %q", gotRole, model.RoleModerator)
	}
}

func TestRoomHandler_StartAndEnd(t *testing.T) {
	var calls []string
	svc := &mockRoomService{
		startGameFn: func(ctx context.Context, userID, roomID string) (*model.RoomView, error) {
			calls = append(calls, "start")
			return nil, model.NewNotEnoughPlayersError(1, 2)
		},
		endGameFn: func(ctx context.Context, userID, roomID string) (*model.RoomView, error) {
			calls = append(calls, "end")
			return nil, model.NewForbiddenError("オーナーのみ操作できます")
		},
	}
	h := NewRoomHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = withChiURLParams(withUserID(req, testUserID), "id", testRoomID)

	w := httptest.NewRecorder()
	h.Start(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("start status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}

	w = httptest.NewRecorder()
	h.End(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("end status = %d, want %d", w.Code, http.StatusForbidden)
	}

	if len(calls) != 2 || calls[0] != "start" || calls[1] != "end" {
		t.Errorf("calls = %v", calls)
	}
}

func TestRoomHandler_ListMine(t *testing.T) {
	svc := &mockRoomService{
		getUserRoomsFn: func(ctx context.Context, userID string) ([]*model.RoomView, error) {
			return []*model.RoomView{}, nil
		},
	}
	h := NewRoomHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/rooms/mine", nil), testUserID)
	w := httptest.NewRecorder()

	h.ListMine(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := bytes.TrimSpace(w.Body.Bytes()); string(got) != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}
