// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, room, conflict, not_found, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeInvalidState         = "INVALID_STATE"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeAlreadyMember        = "ALREADY_MEMBER"
	ErrCodeNotAMember           = "NOT_A_MEMBER"
	ErrCodeRoomFull             = "ROOM_FULL"
	ErrCodeCannotDemoteOwner    = "CANNOT_DEMOTE_OWNER"
	ErrCodeCannotKickOwner      = "CANNOT_KICK_OWNER"
	ErrCodeOwnerCannotLeave     = "OWNER_CANNOT_LEAVE"
	ErrCodeAlreadyInAnotherRoom = "ALREADY_IN_ANOTHER_ROOM"
	ErrCodeDuplicateName        = "DUPLICATE_NAME"
	ErrCodeNotEnoughPlayers     = "NOT_ENOUGH_PLAYERS"
	ErrCodeWaitTimeExceeded     = "WAIT_TIME_EXCEEDED"
	ErrCodeInvalidDuration      = "INVALID_DURATION"
	ErrCodeConcurrencyConflict  = "CONCURRENCY_CONFLICT"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeDuplicateUser        = "DUPLICATE_USER"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// ErrorCode はエラーチェーン中のAPIErrorのコードを返す。
// APIErrorを含まない場合は空文字列を返す。
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidStateError はルームの状態上実行できない操作のエラーを生成する。
func NewInvalidStateError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  fmt.Sprintf("現在のルーム状態では実行できません: %s", reason),
		Category: "room",
		Action:   "ルームの状態を確認してください。",
	}
}

// NewNotFoundError は対象リソース未検出エラーを生成する。
// resourceには "user" "room" "notification" などを指定する。
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s が見つかりません: %s", resource, id),
		Category: "not_found",
		Action:   "IDを確認してください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("この操作を行う権限がありません: %s", reason),
		Category: "auth",
		Action:   "ルームのオーナーまたはモデレーターに依頼してください。",
	}
}

// NewAlreadyMemberError は既にルームに参加しているエラーを生成する。
func NewAlreadyMemberError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyMember,
		Message:  "既にこのルームに参加しています。",
		Category: "room",
		Action:   "ルーム一覧から参加中のルームを確認してください。",
	}
}

// NewNotAMemberError はルームのメンバーでないエラーを生成する。
func NewNotAMemberError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotAMember,
		Message:  fmt.Sprintf("ユーザーはこのルームのメンバーではありません: %s", userID),
		Category: "room",
		Action:   "ルームのメンバー一覧を確認してください。",
	}
}

// NewRoomFullError は満員エラーを生成する。
func NewRoomFullError(maxPlayers int) *APIError {
	return &APIError{
		Code:     ErrCodeRoomFull,
		Message:  fmt.Sprintf("ルームが満員です（最大%d人）。", maxPlayers),
		Category: "room",
		Action:   "別のルームに参加してください。",
	}
}

// NewCannotDemoteOwnerError はオーナー降格エラーを生成する。
func NewCannotDemoteOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeCannotDemoteOwner,
		Message:  "オーナーの役割は変更できません。",
		Category: "room",
		Action:   "オーナー権限を移譲してから役割を変更してください。",
	}
}

// NewCannotKickOwnerError はオーナーをキックしようとしたエラーを生成する。
func NewCannotKickOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeCannotKickOwner,
		Message:  "オーナーはキックできません。",
		Category: "room",
		Action:   "対象ユーザーを確認してください。",
	}
}

// NewOwnerCannotLeaveError はオーナー退出エラーを生成する。
func NewOwnerCannotLeaveError() *APIError {
	return &APIError{
		Code:     ErrCodeOwnerCannotLeave,
		Message:  "オーナーはルームから退出できません。",
		Category: "room",
		Action:   "他のメンバーにオーナー権限を移譲してから退出してください。",
	}
}

// NewAlreadyInAnotherRoomError は別のアクティブなルームに参加中のエラーを生成する。
func NewAlreadyInAnotherRoomError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyInAnotherRoom,
		Message:  "既に別の待機中ルームに参加しています。",
		Category: "conflict",
		Action:   "現在のルームから退出してから参加してください。",
	}
}

// NewDuplicateNameError はルーム名重複エラーを生成する。
func NewDuplicateNameError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateName,
		Message:  fmt.Sprintf("同じ名前のルームが既に存在します: %s", name),
		Category: "conflict",
		Action:   "別のルーム名を指定してください。",
	}
}

// NewNotEnoughPlayersError は開始人数不足エラーを生成する。
func NewNotEnoughPlayersError(current, required int) *APIError {
	return &APIError{
		Code:     ErrCodeNotEnoughPlayers,
		Message:  fmt.Sprintf("プレイヤーが不足しています（%d/%d人）。", current, required),
		Category: "room",
		Action:   "プレイヤーが集まるまでお待ちください。",
	}
}

// NewWaitTimeExceededError は開始待機時間超過エラーを生成する。
func NewWaitTimeExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeWaitTimeExceeded,
		Message:  "ゲーム開始の待機時間を超過しました。",
		Category: "room",
		Action:   "新しいルームを作成してください。",
	}
}

// NewInvalidDurationError はミュート期間が範囲外のエラーを生成する。
func NewInvalidDurationError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDuration,
		Message:  "ミュート期間が不正です。",
		Category: "validation",
		Action:   "ミュート期間は1分以上7日以内で指定してください。",
	}
}

// NewConcurrencyConflictError は同時更新の競合エラーを生成する。
func NewConcurrencyConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeConcurrencyConflict,
		Message:  "他の操作と競合しました。",
		Category: "conflict",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewDuplicateUserError はユーザー名またはメールアドレス重複エラーを生成する。
func NewDuplicateUserError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUser,
		Message:  "ユーザー名またはメールアドレスは既に登録されています。",
		Category: "conflict",
		Action:   "別のユーザー名またはメールアドレスを指定してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
