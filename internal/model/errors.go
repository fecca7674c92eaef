// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// 呼び出し側に返す原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, session, company, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeDataTooLarge     = "SESSION_DATA_TOO_LARGE"
	ErrCodeInvalidData      = "SESSION_DATA_INVALID"
	ErrCodeCompanyNotFound  = "COMPANY_NOT_FOUND"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeEmptyCompanyName = "EMPTY_COMPANY_NAME"
	ErrCodeWebhookForbidden = "WEBHOOK_FORBIDDEN"
	ErrCodeInvalidUpdate    = "INVALID_UPDATE"
)

// ErrStoreUnavailable は永続ストアが利用できないことを表すセンチネル。
// errors.Isでの分類に使用する。
var ErrStoreUnavailable = errors.New("durable store unavailable")

// NewStoreUnavailableError は永続ストア障害エラーを生成する。
// キャッシュ障害と異なり、このエラーは呼び出し元の操作を失敗させる。
func NewStoreUnavailableError(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, cause)
}

// NewDataTooLargeError はセッションデータのサイズ超過エラーを生成する。
// I/Oを行う前に同期的に返される。
func NewDataTooLargeError(size, max int) *APIError {
	return &APIError{
		Code:     ErrCodeDataTooLarge,
		Message:  fmt.Sprintf("セッションデータが上限を超えています: %dバイト（上限%dバイト）", size, max),
		Category: "validation",
		Action:   "保存するデータ量を減らしてください。",
	}
}

// NewInvalidDataError はJSONシリアライズ不能なセッションデータのエラーを生成する。
func NewInvalidDataError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidData,
		Message:  fmt.Sprintf("セッションデータをシリアライズできません: %v", cause),
		Category: "validation",
		Action:   "JSONで表現可能な値のみを保存してください。",
	}
}

// NewCompanyNotFoundError は会社未検出エラーを生成する。
func NewCompanyNotFoundError(companyID string) *APIError {
	return &APIError{
		Code:     ErrCodeCompanyNotFound,
		Message:  fmt.Sprintf("指定された会社が見つかりません: %s", companyID),
		Category: "company",
		Action:   "会社IDを確認してください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "session",
		Action:   "登録フローをやり直してください。",
	}
}

// NewWebhookForbiddenError はWebhookの秘密トークン不一致エラーを生成する。
func NewWebhookForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeWebhookForbidden,
		Message:  "Webhookの秘密トークンが一致しません。",
		Category: "system",
		Action:   "setWebhookに設定したsecret_tokenを確認してください。",
	}
}

// NewInvalidUpdateError はWebhookボディのデコード失敗エラーを生成する。
func NewInvalidUpdateError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidUpdate,
		Message:  fmt.Sprintf("更新オブジェクトをパースできません: %v", cause),
		Category: "validation",
		Action:   "Telegram Bot APIのUpdate形式のJSONを送信してください。",
	}
}

// NewEmptyCompanyNameError は会社名が空の場合のエラーを生成する。
func NewEmptyCompanyNameError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyCompanyName,
		Message:  "会社名が空です。",
		Category: "validation",
		Action:   "会社名を入力してください。",
	}
}
