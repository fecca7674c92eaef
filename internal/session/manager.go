// Package session はハイブリッド2層構成のセッション管理を提供する。
// ホットなセッションはRedisキャッシュから読み、ミスまたはキャッシュ障害時は
// 永続ストアへ透過的にフォールバックする。書き込みは常に永続ストアへ行い、
// キャッシュ側は更新ではなく無効化する。
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/assistchatbot-debug/DrAive/internal/cache"
	"github.com/assistchatbot-debug/DrAive/internal/model"
	"github.com/assistchatbot-debug/DrAive/internal/repository"
)

const cacheKeyPrefix = "session:"

// Cache はマネージャーが必要とするキャッシュ操作の部分集合。
// cache.SessionCacheが実装する。全操作は失敗をbool/ミスとして返し、
// エラーを伝播しない。
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool
	Delete(ctx context.Context, key string) bool
	IsConnected() bool
	Stats() cache.Stats
}

// Metrics はセッション層のメトリクス収集インターフェース。
type Metrics interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordSessionCreated()
	RecordSessionsSwept(count int64)
	RecordStoreError()
}

// noopMetrics はメトリクス未設定時のダミー実装。
type noopMetrics struct{}

func (noopMetrics) RecordCacheHit()                   {}
func (noopMetrics) RecordCacheMiss()                  {}
func (noopMetrics) RecordSessionCreated()             {}
func (noopMetrics) RecordSessionsSwept(_ int64)       {}
func (noopMetrics) RecordStoreError()                 {}

// Config はManagerの動作設定。
type Config struct {
	// TTL はセッションの有効期間。全ての作成・更新操作でexpires_atが
	// now+TTLに更新される（スライディング有効期限）。0以下は24時間。
	TTL time.Duration
	// MaxDataSize はセッションデータのシリアライズ後最大バイト数。
	// 0以下は10KiB。
	MaxDataSize int
	// StoreTimeout は永続ストア1操作あたりの制限時間。0以下は30秒。
	// 超過した操作はストア障害として呼び出し元に返る。
	StoreTimeout time.Duration
}

// Manager はセッションの読み書きを2層にまたがって調停する。
// プロセス内ロックは持たず、正しさはストア側のステートメント単位の
// アトミック性（upsert/update）にのみ依存する。
type Manager struct {
	repo    repository.SessionRepository
	cache   Cache // nil = キャッシュ層無効
	metrics Metrics
	logger  *slog.Logger

	ttl          time.Duration
	maxDataSize  int
	storeTimeout time.Duration

	// now はテストからの時刻注入ポイント。
	now func() time.Time
}

// NewManager はManagerを生成する。cacheとmetricsはnilを許容する。
func NewManager(
	repo repository.SessionRepository,
	c Cache,
	metrics Metrics,
	logger *slog.Logger,
	cfg Config,
) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.MaxDataSize <= 0 {
		cfg.MaxDataSize = 10 * 1024
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 30 * time.Second
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		repo:         repo,
		cache:        c,
		metrics:      metrics,
		logger:       logger,
		ttl:          cfg.TTL,
		maxDataSize:  cfg.MaxDataSize,
		storeTimeout: cfg.StoreTimeout,
		now:          time.Now,
	}
}

// storeCtx は永続ストア1操作分の制限時間付きコンテキストを返す。
// ストアのハング時にWebhook処理ごと巻き込まれるのを防ぐ。
func (m *Manager) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.storeTimeout)
}

// SetClock は現在時刻の取得関数を差し替える。テスト専用。
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// cachedSession はキャッシュに格納されるセッションのJSON表現。
type cachedSession struct {
	ID        string            `json:"id"`
	UserKey   string            `json:"user_key"`
	UserID    *string           `json:"user_id"`
	CompanyID *string           `json:"company_id"`
	State     string            `json:"state"`
	Data      model.SessionData `json:"data"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func cacheKey(userKey string) string {
	return cacheKeyPrefix + userKey
}

// GetOrCreate はユーザーの有効なセッションを返す。
// 存在しないか期限切れの場合はデフォルト状態の新規セッションを作成して返す。
// 期限切れレコードを返すことは決してない。
//
// 読み取り順序: キャッシュ → 永続ストア（ヒット時はキャッシュへ再充填）→ 新規作成。
// キャッシュ障害はミスとして扱い、呼び出し元には決して伝播しない。
func (m *Manager) GetOrCreate(ctx context.Context, userKey string) (*model.Session, error) {
	now := m.now()

	// 1. キャッシュ
	if session := m.cacheLookup(ctx, userKey, now); session != nil {
		return session, nil
	}

	// 2. 永続ストア（expires_at > now の行のみ）
	storeCtx, cancel := m.storeCtx(ctx)
	session, err := m.repo.FindByUserKey(storeCtx, userKey)
	cancel()
	if err != nil {
		m.metrics.RecordStoreError()
		return nil, model.NewStoreUnavailableError("get session", err)
	}
	if session != nil {
		m.cachePopulate(ctx, session, now)
		return session, nil
	}

	// 3. どちらの層にも有効なレコードがない → 新規作成
	return m.create(ctx, userKey, now)
}

// create はデフォルト状態の新規セッションをupsertで作成する。
// 同時に同じキーで作成が走っても行は1つに収束する。
func (m *Manager) create(ctx context.Context, userKey string, now time.Time) (*model.Session, error) {
	session := &model.Session{
		UserKey:   userKey,
		State:     model.StateMenu,
		Data:      model.SessionData{},
		ExpiresAt: now.Add(m.ttl),
	}

	storeCtx, cancel := m.storeCtx(ctx)
	defer cancel()
	if err := m.repo.Upsert(storeCtx, session); err != nil {
		m.metrics.RecordStoreError()
		return nil, model.NewStoreUnavailableError("create session", err)
	}

	m.metrics.RecordSessionCreated()
	m.logger.Debug("新規セッションを作成しました", slog.String("user_key", userKey))

	m.cachePopulate(ctx, session, now)
	return session, nil
}

// Update は指定フィールドのみを永続ストアに書き込み、キャッシュの該当キーを
// 無効化する。順序は「ストア書き込み → キャッシュ削除」で固定。逆順にすると
// ストア書き込み後に古いキャッシュが読まれる窓が生まれる。
// Dataはマージではなく全置換であり、上限バイト数の検証はI/Oの前に行う。
func (m *Manager) Update(ctx context.Context, userKey string, upd *model.SessionUpdate) error {
	if upd == nil || upd.IsEmpty() {
		return nil
	}

	if upd.Data != nil {
		if err := m.validateDataSize(*upd.Data); err != nil {
			return err
		}
	}

	expiresAt := m.now().Add(m.ttl)
	storeCtx, cancel := m.storeCtx(ctx)
	defer cancel()
	if err := m.repo.Update(storeCtx, userKey, upd, expiresAt); err != nil {
		m.metrics.RecordStoreError()
		return model.NewStoreUnavailableError("update session", err)
	}

	m.cacheInvalidate(ctx, userKey)
	return nil
}

// Delete はセッションを両層から削除する。冪等。
func (m *Manager) Delete(ctx context.Context, userKey string) error {
	storeCtx, cancel := m.storeCtx(ctx)
	defer cancel()
	if err := m.repo.DeleteByUserKey(storeCtx, userKey); err != nil {
		m.metrics.RecordStoreError()
		return model.NewStoreUnavailableError("delete session", err)
	}
	m.cacheInvalidate(ctx, userKey)
	return nil
}

// SetAttribute はセッションデータ内の1キーを設定する。
// GetOrCreate+Updateによる読んで書く操作であり、同一ユーザーへの同時呼び出し
// ではlast-write-winsになる（チャットユーザーは自分自身と並行しないため許容）。
func (m *Manager) SetAttribute(ctx context.Context, userKey, key string, value any) error {
	session, err := m.GetOrCreate(ctx, userKey)
	if err != nil {
		return err
	}

	data := make(model.SessionData, len(session.Data)+1)
	for k, v := range session.Data {
		data[k] = v
	}
	data[key] = value

	return m.Update(ctx, userKey, &model.SessionUpdate{Data: &data})
}

// GetAttribute はセッションデータ内の1キーを取得する。未設定時はdefaultValueを返す。
func (m *Manager) GetAttribute(ctx context.Context, userKey, key string, defaultValue any) (any, error) {
	session, err := m.GetOrCreate(ctx, userKey)
	if err != nil {
		return nil, err
	}
	if v, ok := session.Data[key]; ok {
		return v, nil
	}
	return defaultValue, nil
}

// SweepExpired は期限切れの永続ストア行を一括削除し、削除件数を返す。
// キャッシュ側はRedis自身のTTLで失効するため触らない。
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	storeCtx, cancel := m.storeCtx(ctx)
	defer cancel()
	count, err := m.repo.DeleteExpired(storeCtx)
	if err != nil {
		m.metrics.RecordStoreError()
		return 0, model.NewStoreUnavailableError("sweep expired sessions", err)
	}
	if count > 0 {
		m.metrics.RecordSessionsSwept(count)
	}
	return count, nil
}

// CacheStats はキャッシュ層の診断情報を返す。キャッシュ無効時はその旨を示す。
func (m *Manager) CacheStats() cache.Stats {
	if m.cache == nil {
		return cache.Stats{
			Enabled: false,
			Message: "cache disabled",
		}
	}
	return m.cache.Stats()
}

// validateDataSize はDataのシリアライズ後サイズを検証する。I/Oより前に呼ぶ。
func (m *Manager) validateDataSize(data model.SessionData) error {
	size, err := data.SerializedSize()
	if err != nil {
		return model.NewInvalidDataError(err)
	}
	if size > m.maxDataSize {
		return model.NewDataTooLargeError(size, m.maxDataSize)
	}
	return nil
}

// cacheLookup はキャッシュからセッションを読む。ミス・障害・期限切れ・
// デシリアライズ失敗はすべてnil（＝ミス）として扱う。
func (m *Manager) cacheLookup(ctx context.Context, userKey string, now time.Time) *model.Session {
	if m.cache == nil || !m.cache.IsConnected() {
		return nil
	}

	raw, ok := m.cache.Get(ctx, cacheKey(userKey))
	if !ok {
		m.metrics.RecordCacheMiss()
		return nil
	}

	var cached cachedSession
	if err := json.Unmarshal(raw, &cached); err != nil {
		m.logger.Warn("キャッシュ済みセッションのデシリアライズに失敗、ミスとして扱います",
			slog.String("user_key", userKey),
			slog.String("error", err.Error()),
		)
		m.metrics.RecordCacheMiss()
		return nil
	}

	session := &model.Session{
		ID:        cached.ID,
		UserKey:   cached.UserKey,
		UserID:    cached.UserID,
		CompanyID: cached.CompanyID,
		State:     model.SessionState(cached.State),
		Data:      cached.Data,
		ExpiresAt: cached.ExpiresAt,
		CreatedAt: cached.CreatedAt,
		UpdatedAt: cached.UpdatedAt,
	}
	if session.Data == nil {
		session.Data = model.SessionData{}
	}

	// RedisのTTLより時計が先行するケースの保険。期限切れは返さない。
	if session.Expired(now) {
		m.metrics.RecordCacheMiss()
		return nil
	}

	m.metrics.RecordCacheHit()
	return session
}

// cachePopulate はストアから読んだセッションをキャッシュへベストエフォートで
// 書き込む。TTLは行の残り有効期間（固定TTLを上限とする）。失敗しても無視する。
func (m *Manager) cachePopulate(ctx context.Context, session *model.Session, now time.Time) {
	if m.cache == nil || !m.cache.IsConnected() {
		return
	}

	ttl := session.ExpiresAt.Sub(now)
	if ttl > m.ttl {
		ttl = m.ttl
	}
	if ttl <= 0 {
		return
	}

	raw, err := json.Marshal(&cachedSession{
		ID:        session.ID,
		UserKey:   session.UserKey,
		UserID:    session.UserID,
		CompanyID: session.CompanyID,
		State:     string(session.State),
		Data:      session.Data,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	})
	if err != nil {
		return
	}

	m.cache.Set(ctx, cacheKey(session.UserKey), raw, ttl)
}

// cacheInvalidate はキャッシュの該当キーを削除する。失敗しても無視する。
func (m *Manager) cacheInvalidate(ctx context.Context, userKey string) {
	if m.cache == nil || !m.cache.IsConnected() {
		return
	}
	m.cache.Delete(ctx, cacheKey(userKey))
}
