package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/gamerooms/internal/model"
)

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewValidationError("x"), http.StatusBadRequest},
		{model.NewInvalidDurationError(), http.StatusBadRequest},
		{model.NewUnauthorizedError(), http.StatusUnauthorized},
		{model.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{model.NewForbiddenError("x"), http.StatusForbidden},
		{model.NewNotFoundError("room", "r1"), http.StatusNotFound},
		{model.NewDuplicateNameError("n"), http.StatusConflict},
		{model.NewDuplicateUserError(), http.StatusConflict},
		{model.NewAlreadyMemberError(), http.StatusConflict},
		{model.NewAlreadyInAnotherRoomError(), http.StatusConflict},
		{model.NewRoomFullError(4), http.StatusConflict},
		{model.NewConcurrencyConflictError(), http.StatusConflict},
		{model.NewInvalidStateError("x"), http.StatusUnprocessableEntity},
		{model.NewNotAMemberError("u"), http.StatusUnprocessableEntity},
		{model.NewCannotDemoteOwnerError(), http.StatusUnprocessableEntity},
		{model.NewCannotKickOwnerError(), http.StatusUnprocessableEntity},
		{model.NewOwnerCannotLeaveError(), http.StatusUnprocessableEntity},
		{model.NewNotEnoughPlayersError(1, 2), http.StatusUnprocessableEntity},
		{model.NewWaitTimeExceededError(), http.StatusUnprocessableEntity},
		{model.NewRateLimitedError(), http.StatusTooManyRequests},
		{model.NewInternalError(), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}

func TestHandleServiceError_WrappedAPIError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	handleServiceError(w, r, errors.Join(errors.New("context"), model.NewRoomFullError(4)))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeRoomFull {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeRoomFull)
	}
}

func TestHandleServiceError_UnknownErrorIs500(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	handleServiceError(w, r, errors.New("connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := parseAPIErrorResponse(t, w)
	if body["code"] != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeInternal)
	}
	if strings.Contains(body["message"], "connection refused") {
		t.Error("internal error details should not leak to the response")
	}
}
