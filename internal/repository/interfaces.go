// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/assistchatbot-debug/DrAive/internal/model"
)

// SessionRepository はセッションレコードの永続化インターフェース。
// 永続ストア（Postgres）とインメモリフォールバックの2実装があり、
// どちらを使うかは設定で決まる。
type SessionRepository interface {
	// Upsert はuser_keyをキーにセッションを作成または全置換する。
	// 同一キーへの同時作成は行レベルで冪等（ON CONFLICT DO UPDATE相当）。
	// 成功時はsessionのID/CreatedAt/UpdatedAtをストアの値で埋める。
	Upsert(ctx context.Context, session *model.Session) error

	// FindByUserKey は有効期限内のセッションを取得する。
	// 期限切れまたは存在しない場合はnilを返す（エラーではない）。
	FindByUserKey(ctx context.Context, userKey string) (*model.Session, error)

	// Update は指定フィールドのみを部分更新し、expires_atを新しい値に更新する。
	// 対象行が存在しない場合は何もしない。
	Update(ctx context.Context, userKey string, upd *model.SessionUpdate, expiresAt time.Time) error

	// DeleteByUserKey はセッションを削除する。存在しない場合もエラーにしない。
	DeleteByUserKey(ctx context.Context, userKey string) error

	// DeleteExpired はexpires_atが過去の行を一括削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByUserKey はチャット側識別子でユーザーを検索する。見つからない場合はnilを返す。
	FindByUserKey(ctx context.Context, userKey string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error
}

// CompanyRepository は会社データの永続化インターフェース。
type CompanyRepository interface {
	// FindByID は指定IDの会社を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Company, error)

	// Create は会社を作成する。
	Create(ctx context.Context, company *model.Company) error
}

// PositionRepository は組織図ポストの永続化インターフェース。
type PositionRepository interface {
	// CreateAll は会社の全ポストを作成する。登録フローから21件まとめて呼ばれる。
	CreateAll(ctx context.Context, positions []*model.Position) error

	// ListByCompanyID は会社の全ポストをposition_number順で返す。
	ListByCompanyID(ctx context.Context, companyID string) ([]*model.Position, error)
}
