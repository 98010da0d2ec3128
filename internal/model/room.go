package model

import "time"

// RoomStatus はゲームルームのライフサイクル状態を表す。
// Created → InProgress → Ended の順にのみ遷移する。
type RoomStatus string

const (
	// RoomStatusCreated は参加者を募集中の状態。
	RoomStatusCreated RoomStatus = "Created"
	// RoomStatusInProgress はゲーム進行中の状態。
	RoomStatusInProgress RoomStatus = "InProgress"
	// RoomStatusEnded はゲーム終了後の状態（終端）。
	RoomStatusEnded RoomStatus = "Ended"
)

// Role はルーム内でのメンバーの役割を表す。
type Role string

const (
	RoleOwner     Role = "Owner"
	RoleModerator Role = "Moderator"
	RolePlayer    Role = "Player"
)

// Valid は定義済みの役割かどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleModerator, RolePlayer:
		return true
	}
	return false
}

// Membership はユーザーとルームの参加関係を表す。
// ルーム集約が所有し、単独で生成・削除されることはない。
type Membership struct {
	UserID   string
	RoomID   string
	Role     Role
	JoinedAt time.Time
}

// RoomView はサービスが返すルームの表示用データ。
type RoomView struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	MaxPlayers     int          `json:"max_players"`
	CurrentPlayers int          `json:"current_players"`
	Status         RoomStatus   `json:"status"`
	OwnerID        string       `json:"owner_id"`
	OwnerUsername  string       `json:"owner_username"`
	CreatedAt      time.Time    `json:"created_at"`
	StartedAt      *time.Time   `json:"started_at"`
	EndedAt        *time.Time   `json:"ended_at"`
	Players        []PlayerView `json:"players"`
}

// PlayerView はルーム参加者の表示用データ。
type PlayerView struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}
