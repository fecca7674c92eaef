// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// SessionState は会話状態を表す。次の受信メッセージをどのハンドラーが
// 解釈するかを決定する。
type SessionState string

const (
	// StateMenu はメインメニュー表示中の状態。新規セッションのデフォルト。
	StateMenu SessionState = "MENU"
	// StateCompanyRegistration は会社名の入力待ち状態。
	StateCompanyRegistration SessionState = "COMPANY_REGISTRATION"
	// StateAwaitingInviteCode は招待コードの入力待ち状態。
	StateAwaitingInviteCode SessionState = "AWAITING_INVITE_CODE"
)

// SessionData はセッションに紐づく自由形式の属性マップ。
// 選択言語や複数ステップフォームの途中経過など、一時的な会話コンテキストを保持する。
// JSONとしてシリアライズされ、設定された最大バイト数を超えてはならない。
type SessionData map[string]any

// SerializedSize はJSONシリアライズ後のバイト数を返す。
// シリアライズできない値が含まれる場合はエラーを返す。
func (d SessionData) SerializedSize() (int, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Session は外部ユーザー1人分の会話状態レコードを表す。
// UserKeyごとに常に1件のみ存在し、ExpiresAtを過ぎたレコードは
// 物理的に残っていても不在として扱われる。
type Session struct {
	ID        string
	UserKey   string       // チャット側の安定識別子。作成後は不変。
	UserID    *string      // 登録済みユーザーID。登録完了までnil。
	CompanyID *string      // 所属会社ID。会社作成/参加までnil。
	State     SessionState
	Data      SessionData
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired は現在時刻がExpiresAtを過ぎているかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// SessionUpdate はセッションの部分更新を表す。
// nilのフィールドは変更されない。Dataはマージではなく全置換。
type SessionUpdate struct {
	State     *SessionState
	Data      *SessionData
	UserID    *string
	CompanyID *string
}

// IsEmpty は更新対象フィールドが1つもないことを返す。
func (u *SessionUpdate) IsEmpty() bool {
	return u.State == nil && u.Data == nil && u.UserID == nil && u.CompanyID == nil
}

// User はサービス利用ユーザーを表す。
type User struct {
	ID        string
	UserKey   string // チャット側の識別子
	Username  string
	FullName  string
	CompanyID *string
	Language  string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Company は登録済みの会社を表す。
type Company struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Position は組織図上のポストを表す。会社ごとに21ポストが固定でシードされる。
type Position struct {
	ID               string
	CompanyID        string
	PositionNumber   int
	PositionName     string
	DepartmentNumber int
	DivisionNumber   int
	AssignedUserID   *string
	IsFounder        bool
	IsCEO            bool
}
