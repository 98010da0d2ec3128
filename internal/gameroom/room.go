// Package gameroom はゲームルーム集約（ルームとメンバーシップ）の状態遷移とルールを提供する。
//
// 集約はメモリ上の値として操作され、永続化は呼び出し側の責務となる。
// メンバーシップはルームが所有するキー付きコレクションとして保持し、
// 役割の変更は集約のメソッド経由でのみ行える。
package gameroom

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/gamerooms/internal/model"
)

const (
	// MinNameLength はルーム名の最小文字数。
	MinNameLength = 3
	// MaxNameLength はルーム名の最大文字数。
	MaxNameLength = 50
	// MinMaxPlayers は最大人数に指定できる下限。
	MinMaxPlayers = 2
	// MaxMaxPlayers は最大人数に指定できる上限。
	MaxMaxPlayers = 10
	// MaxWaitTimeToStart は作成からゲーム開始までの最大待機時間。
	MaxWaitTimeToStart = 15 * time.Minute
)

// Room はゲームルーム集約のルート。
// ゼロ値は使用できない。New または Restore で生成すること。
type Room struct {
	id                 string
	name               string
	description        string
	maxPlayers         int
	minPlayersToStart  int
	ownerID            string
	status             model.RoomStatus
	createdAt          time.Time
	startedAt          *time.Time
	endedAt            *time.Time
	maxWaitTimeToStart time.Duration
	version            int
	members            map[string]model.Membership
}

// Snapshot は永続化・復元用のルームの状態を表す。
type Snapshot struct {
	ID                 string
	Name               string
	Description        string
	MaxPlayers         int
	MinPlayersToStart  int
	OwnerID            string
	Status             model.RoomStatus
	CreatedAt          time.Time
	StartedAt          *time.Time
	EndedAt            *time.Time
	MaxWaitTimeToStart time.Duration
	// Version は楽観的同時実行制御に使うバージョン番号。
	Version int
	Members []model.Membership
}

// New は新しいルームを Created 状態で生成する。
// メンバーは含まれないため、オーナーのメンバーシップは呼び出し側が AddPlayer で追加する。
func New(name, description string, maxPlayers int, ownerID string, now time.Time) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewValidationError("ルーム名は必須です")
	}
	if n := utf8.RuneCountInString(name); n < MinNameLength || n > MaxNameLength {
		return nil, model.NewValidationError("ルーム名は3文字以上50文字以内で指定してください")
	}
	if maxPlayers < MinMaxPlayers || maxPlayers > MaxMaxPlayers {
		return nil, model.NewValidationError("最大人数は2人以上10人以下で指定してください")
	}
	if ownerID == "" {
		return nil, model.NewValidationError("オーナーが指定されていません")
	}

	return &Room{
		id:                 uuid.NewString(),
		name:               name,
		description:        strings.TrimSpace(description),
		maxPlayers:         maxPlayers,
		minPlayersToStart:  max(2, maxPlayers/2),
		ownerID:            ownerID,
		status:             model.RoomStatusCreated,
		createdAt:          now.UTC(),
		maxWaitTimeToStart: MaxWaitTimeToStart,
		members:            make(map[string]model.Membership),
	}, nil
}

// Restore はストレージから読み込んだ状態からルームを復元する。
// 保存済みの値は検証済みとみなし、再検証は行わない。
func Restore(s Snapshot) *Room {
	r := &Room{
		id:                 s.ID,
		name:               s.Name,
		description:        s.Description,
		maxPlayers:         s.MaxPlayers,
		minPlayersToStart:  s.MinPlayersToStart,
		ownerID:            s.OwnerID,
		status:             s.Status,
		createdAt:          s.CreatedAt,
		startedAt:          s.StartedAt,
		endedAt:            s.EndedAt,
		maxWaitTimeToStart: s.MaxWaitTimeToStart,
		version:            s.Version,
		members:            make(map[string]model.Membership, len(s.Members)),
	}
	if r.maxWaitTimeToStart == 0 {
		r.maxWaitTimeToStart = MaxWaitTimeToStart
	}
	for _, m := range s.Members {
		r.members[m.UserID] = m
	}
	return r
}

// AddPlayer はユーザーを指定の役割でルームに追加する。
// Owner 役割はルームのオーナー本人かつオーナー不在の場合にのみ付与できる。
func (r *Room) AddPlayer(userID string, role model.Role, now time.Time) error {
	if r.status != model.RoomStatusCreated {
		return model.NewInvalidStateError("参加者の募集は終了しています")
	}
	if len(r.members) >= r.maxPlayers {
		return model.NewRoomFullError(r.maxPlayers)
	}
	if _, ok := r.members[userID]; ok {
		return model.NewAlreadyMemberError()
	}
	if !role.Valid() {
		return model.NewValidationError("不明な役割です: " + string(role))
	}
	if role == model.RoleOwner {
		if userID != r.ownerID {
			return model.NewValidationError("オーナー役割はルームのオーナーにのみ付与できます")
		}
		if _, ok := r.Owner(); ok {
			return model.NewValidationError("ルームには既にオーナーが存在します")
		}
	}

	r.members[userID] = model.Membership{
		UserID:   userID,
		RoomID:   r.id,
		Role:     role,
		JoinedAt: now.UTC(),
	}
	return nil
}

// RemovePlayer はユーザーをルームから退出させる。
// 進行中・終了済みのルームからは退出できない。
func (r *Room) RemovePlayer(userID string) error {
	m, ok := r.members[userID]
	if !ok {
		return model.NewNotAMemberError(userID)
	}
	if m.Role == model.RoleOwner {
		return model.NewOwnerCannotLeaveError()
	}
	if r.status != model.RoomStatusCreated {
		return model.NewInvalidStateError("ゲーム開始後は退出できません")
	}

	delete(r.members, userID)
	return nil
}

// UpdatePlayerRole は対象メンバーの役割を変更する。オーナーのみ実行できる。
// オーナーの交代は TransferOwnership で行うため、Owner への昇格は受け付けない。
func (r *Room) UpdatePlayerRole(targetUserID string, newRole model.Role, requestingUserID string) error {
	if !newRole.Valid() {
		return model.NewValidationError("不明な役割です: " + string(newRole))
	}
	target, ok := r.members[targetUserID]
	if !ok {
		return model.NewNotAMemberError(targetUserID)
	}
	if r.roleOf(requestingUserID) != model.RoleOwner {
		return model.NewForbiddenError("役割の変更はオーナーのみ実行できます")
	}
	if target.Role == model.RoleOwner {
		if newRole != model.RoleOwner {
			return model.NewCannotDemoteOwnerError()
		}
		return nil
	}
	if newRole == model.RoleOwner {
		return model.NewForbiddenError("オーナー権限の付与には権限移譲を使用してください")
	}

	target.Role = newRole
	r.members[targetUserID] = target
	return nil
}

// KickPlayer は対象メンバーをルームから除外する。
// オーナーとモデレーターが実行でき、モデレーターの除外はオーナーのみ行える。
func (r *Room) KickPlayer(targetUserID, requestingUserID string) error {
	requesterRole := r.roleOf(requestingUserID)
	if requesterRole != model.RoleOwner && requesterRole != model.RoleModerator {
		return model.NewForbiddenError("キックはオーナーまたはモデレーターのみ実行できます")
	}
	target, ok := r.members[targetUserID]
	if !ok {
		return model.NewNotAMemberError(targetUserID)
	}
	if target.Role == model.RoleOwner {
		return model.NewCannotKickOwnerError()
	}
	if target.Role == model.RoleModerator && requesterRole != model.RoleOwner {
		return model.NewForbiddenError("モデレーターのキックはオーナーのみ実行できます")
	}

	delete(r.members, targetUserID)
	return nil
}

// TransferOwnership はオーナー権限を別のメンバーに移譲する。
// 新オーナーは Owner に、旧オーナーは Player になる。
func (r *Room) TransferOwnership(newOwnerID, currentOwnerID string) error {
	if r.status != model.RoomStatusCreated {
		return model.NewInvalidStateError("ゲーム開始後は権限を移譲できません")
	}
	current, ok := r.members[currentOwnerID]
	if !ok || current.Role != model.RoleOwner {
		return model.NewForbiddenError("権限移譲はオーナーのみ実行できます")
	}
	next, ok := r.members[newOwnerID]
	if !ok {
		return model.NewNotAMemberError(newOwnerID)
	}
	if newOwnerID == currentOwnerID {
		return nil
	}

	next.Role = model.RoleOwner
	current.Role = model.RolePlayer
	r.members[newOwnerID] = next
	r.members[currentOwnerID] = current
	r.ownerID = newOwnerID
	return nil
}

// Start はゲームを開始する。
func (r *Room) Start(now time.Time) error {
	if r.status != model.RoomStatusCreated {
		return model.NewInvalidStateError("ゲームは既に開始または終了しています")
	}
	if len(r.members) < r.minPlayersToStart {
		return model.NewNotEnoughPlayersError(len(r.members), r.minPlayersToStart)
	}
	if now.Sub(r.createdAt) > r.maxWaitTimeToStart {
		return model.NewWaitTimeExceededError()
	}

	started := now.UTC()
	r.status = model.RoomStatusInProgress
	r.startedAt = &started
	return nil
}

// End はゲームを終了する。進行中のルームのみ終了できる。
func (r *Room) End(now time.Time) error {
	if r.status != model.RoomStatusInProgress {
		return model.NewInvalidStateError("進行中のゲームのみ終了できます")
	}

	ended := now.UTC()
	r.status = model.RoomStatusEnded
	r.endedAt = &ended
	return nil
}

func (r *Room) roleOf(userID string) model.Role {
	return r.members[userID].Role
}

// ID はルームIDを返す。
func (r *Room) ID() string { return r.id }

// Name はルーム名を返す。
func (r *Room) Name() string { return r.name }

// Description はルームの説明を返す。
func (r *Room) Description() string { return r.description }

// MaxPlayers は最大人数を返す。
func (r *Room) MaxPlayers() int { return r.maxPlayers }

// MinPlayersToStart は開始に必要な最少人数を返す。
func (r *Room) MinPlayersToStart() int { return r.minPlayersToStart }

// OwnerID はオーナーのユーザーIDを返す。
func (r *Room) OwnerID() string { return r.ownerID }

// Status は現在の状態を返す。
func (r *Room) Status() model.RoomStatus { return r.status }

// CreatedAt は作成日時を返す。
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// StartedAt は開始日時を返す。未開始の場合はnil。
func (r *Room) StartedAt() *time.Time { return r.startedAt }

// EndedAt は終了日時を返す。未終了の場合はnil。
func (r *Room) EndedAt() *time.Time { return r.endedAt }

// Version は読み込み時点のバージョン番号を返す。
func (r *Room) Version() int { return r.version }

// MemberCount は現在のメンバー数を返す。
func (r *Room) MemberCount() int { return len(r.members) }

// Member は指定ユーザーのメンバーシップを返す。
func (r *Room) Member(userID string) (model.Membership, bool) {
	m, ok := r.members[userID]
	return m, ok
}

// Owner は Owner 役割のメンバーシップを返す。
func (r *Room) Owner() (model.Membership, bool) {
	for _, m := range r.members {
		if m.Role == model.RoleOwner {
			return m, true
		}
	}
	return model.Membership{}, false
}

// Members はメンバーシップのコピーを返す。Owner を先頭に、以降は参加日時順
// （同時刻はユーザーID順）に並べる。
func (r *Room) Members() []model.Membership {
	members := make([]model.Membership, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
	}
	slices.SortFunc(members, func(a, b model.Membership) int {
		if ao, bo := a.Role == model.RoleOwner, b.Role == model.RoleOwner; ao != bo {
			if ao {
				return -1
			}
			return 1
		}
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return strings.Compare(a.UserID, b.UserID)
	})
	return members
}

// Snapshot は永続化用に現在の状態を返す。
func (r *Room) Snapshot() Snapshot {
	return Snapshot{
		ID:                 r.id,
		Name:               r.name,
		Description:        r.description,
		MaxPlayers:         r.maxPlayers,
		MinPlayersToStart:  r.minPlayersToStart,
		OwnerID:            r.ownerID,
		Status:             r.status,
		CreatedAt:          r.createdAt,
		StartedAt:          r.startedAt,
		EndedAt:            r.endedAt,
		MaxWaitTimeToStart: r.maxWaitTimeToStart,
		Version:            r.version,
		Members:            r.Members(),
	}
}
