// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/gamerooms/internal/middleware"
	"github.com/hitoshi/gamerooms/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。
const maxRequestBodyBytes = 64 << 10

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをvにデコードする。
// 解析に失敗した場合は400レスポンスを書き込んでfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeValidation,
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return false
	}
	return true
}

// requireUserID は認証済みユーザーIDを返す。
// 取得できない場合は401レスポンスを書き込んでfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

// pathID はURLパラメータのIDを取得する。
// UUIDとして解釈できないIDは存在しないものとして404を返す。
func pathID(w http.ResponseWriter, r *http.Request, key, resource string) (string, bool) {
	raw := chi.URLParam(r, key)
	id, err := uuid.Parse(raw)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError(resource, raw))
		return "", false
	}
	return id.String(), true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeInvalidDuration:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateName, model.ErrCodeDuplicateUser,
		model.ErrCodeAlreadyMember, model.ErrCodeAlreadyInAnotherRoom,
		model.ErrCodeRoomFull, model.ErrCodeConcurrencyConflict:
		return http.StatusConflict
	case model.ErrCodeInvalidState, model.ErrCodeNotAMember,
		model.ErrCodeCannotDemoteOwner, model.ErrCodeCannotKickOwner,
		model.ErrCodeOwnerCannotLeave, model.ErrCodeNotEnoughPlayers,
		model.ErrCodeWaitTimeExceeded:
		return http.StatusUnprocessableEntity
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
