package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/assistchatbot-debug/DrAive/internal/model"
)

// MemorySessionRepo はインメモリのセッションリポジトリ。
// DATABASE_URL未設定時のフォールバックとして使用する。
// プロセス内のみで有効であり、クラッシュセーフでもマルチプロセスセーフでもない。
// 開発・デモ用途専用。
type MemorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session

	// now はテストからの時刻注入ポイント。未設定時はtime.Now。
	now func() time.Time
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]*model.Session),
		now:      time.Now,
	}
}

// SetClock は現在時刻の取得関数を差し替える。テスト専用。
func (r *MemorySessionRepo) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Upsert はuser_keyをキーにセッションを作成または全置換する。
func (r *MemorySessionRepo) Upsert(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	stored := copySession(session)
	if existing, ok := r.sessions[session.UserKey]; ok {
		stored.ID = existing.ID
	} else {
		stored.ID = uuid.New().String()
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.sessions[session.UserKey] = stored

	session.ID = stored.ID
	session.CreatedAt = stored.CreatedAt
	session.UpdatedAt = stored.UpdatedAt
	return nil
}

// FindByUserKey は有効期限内のセッションを取得する。期限切れはnilを返す。
func (r *MemorySessionRepo) FindByUserKey(ctx context.Context, userKey string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[userKey]
	if !ok || session.Expired(r.now()) {
		return nil, nil
	}
	return copySession(session), nil
}

// Update は指定フィールドのみを部分更新する。対象がなければ何もしない。
func (r *MemorySessionRepo) Update(ctx context.Context, userKey string, upd *model.SessionUpdate, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[userKey]
	if !ok || upd.IsEmpty() {
		return nil
	}

	if upd.State != nil {
		session.State = *upd.State
	}
	if upd.Data != nil {
		session.Data = copyData(*upd.Data)
	}
	if upd.UserID != nil {
		id := *upd.UserID
		session.UserID = &id
	}
	if upd.CompanyID != nil {
		id := *upd.CompanyID
		session.CompanyID = &id
	}
	session.ExpiresAt = expiresAt
	session.UpdatedAt = r.now()
	return nil
}

// DeleteByUserKey はセッションを削除する。冪等。
func (r *MemorySessionRepo) DeleteByUserKey(ctx context.Context, userKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userKey)
	return nil
}

// DeleteExpired は期限切れセッションを削除し件数を返す。
func (r *MemorySessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var count int64
	for key, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, key)
			count++
		}
	}
	return count, nil
}

// copySession は呼び出し側との共有を避けるためセッションを複製する。
func copySession(s *model.Session) *model.Session {
	c := *s
	c.Data = copyData(s.Data)
	if s.UserID != nil {
		id := *s.UserID
		c.UserID = &id
	}
	if s.CompanyID != nil {
		id := *s.CompanyID
		c.CompanyID = &id
	}
	return &c
}

func copyData(d model.SessionData) model.SessionData {
	c := make(model.SessionData, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

// compile-time interface check
var _ SessionRepository = (*MemorySessionRepo)(nil)
