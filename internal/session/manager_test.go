package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/assistchatbot-debug/DrAive/internal/cache"
	"github.com/assistchatbot-debug/DrAive/internal/model"
	"github.com/assistchatbot-debug/DrAive/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

// newTestManager はインメモリリポジトリ+miniredisキャッシュ構成のManagerを返す。
func newTestManager(t *testing.T) (*Manager, *repository.MemorySessionRepo, *cache.SessionCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	c, err := cache.New("redis://"+mr.Addr(), time.Second, testLogger())
	if err != nil {
		t.Fatalf("cache.New failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	if !c.Connect(context.Background()) {
		t.Fatal("cache connect failed")
	}

	repo := repository.NewMemorySessionRepo()
	m := NewManager(repo, c, nil, testLogger(), Config{TTL: 24 * time.Hour, MaxDataSize: 1024})
	return m, repo, c, mr
}

// GetOrCreate直後の再呼び出しが同じセッションを返すことを検証（勝手に再作成しない）
func TestManager_GetOrCreate_IsStableWithinTTL(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.GetOrCreate(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if first.State != model.StateMenu {
		t.Errorf("State = %q, want MENU", first.State)
	}
	if len(first.Data) != 0 {
		t.Errorf("new session Data should be empty, got %v", first.Data)
	}

	second, err := m.GetOrCreate(ctx, "user-1")
	if err != nil {
		t.Fatalf("second GetOrCreate failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("session was recreated: %q != %q", second.ID, first.ID)
	}
	if second.State != first.State {
		t.Errorf("State changed between reads: %q != %q", second.State, first.State)
	}
}

// TTL経過後のGetOrCreateがデフォルト状態の新規セッションを返すことを検証
func TestManager_GetOrCreate_AfterExpiryReturnsFreshSession(t *testing.T) {
	m, repo, _, _ := newTestManager(t)
	ctx := context.Background()

	orgID := "org-42"
	first, err := m.GetOrCreate(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if err := m.Update(ctx, "user-1", &model.SessionUpdate{CompanyID: &orgID}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// 時計をTTL超過まで進める（マネージャーとストア両方）
	future := time.Now().Add(25 * time.Hour)
	m.SetClock(func() time.Time { return future })
	repo.SetClock(func() time.Time { return future })

	fresh, err := m.GetOrCreate(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrCreate after expiry failed: %v", err)
	}
	if fresh.State != model.StateMenu {
		t.Errorf("State = %q, want MENU", fresh.State)
	}
	if fresh.CompanyID != nil {
		t.Errorf("CompanyID = %v, want nil on a fresh session", *fresh.CompanyID)
	}
	if !fresh.CreatedAt.After(first.CreatedAt) {
		t.Error("fresh session should have a newer CreatedAt")
	}
}

// 更新がキャッシュの古い値を迂回して即座に見えることを検証。
// キャッシュに古い値を事前充填した上でUpdate→次の読み取りが新しい値を返すこと。
func TestManager_Update_BypassesStaleCache(t *testing.T) {
	m, _, _, mr := newTestManager(t)
	ctx := context.Background()

	// 読み取りでキャッシュを充填する
	if _, err := m.GetOrCreate(ctx, "user-1"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if !mr.Exists("session:user-1") {
		t.Fatal("cache should be populated after a store read")
	}

	state := model.StateCompanyRegistration
	if err := m.Update(ctx, "user-1", &model.SessionUpdate{State: &state}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// 書き込み後はキャッシュが無効化されている（update-on-writeではない）
	if mr.Exists("session:user-1") {
		t.Error("cache entry must be invalidated, not rewritten, on update")
	}

	got, err := m.GetOrCreate(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrCreate after update failed: %v", err)
	}
	if got.State != model.StateCompanyRegistration {
		t.Errorf("State = %q, want COMPANY_REGISTRATION", got.State)
	}
}

// キャッシュ切断状態でも全セッション操作が成功することを検証（縮退運転）
func TestManager_DegradedCacheStillServes(t *testing.T) {
	repo := repository.NewMemorySessionRepo()

	// 接続に失敗したキャッシュ（以後は永続的に切断扱い）
	c, err := cache.New("redis://127.0.0.1:1", time.Second, testLogger())
	if err != nil {
		t.Fatalf("cache.New failed: %v", err)
	}
	defer c.Close()
	c.Connect(context.Background())

	m := NewManager(repo, c, nil, testLogger(), Config{})
	ctx := context.Background()

	if _, err := m.GetOrCreate(ctx, "user-1"); err != nil {
		t.Fatalf("GetOrCreate with dead cache failed: %v", err)
	}

	state := model.StateCompanyRegistration
	if err := m.Update(ctx, "user-1", &model.SessionUpdate{State: &state}); err != nil {
		t.Fatalf("Update with dead cache failed: %v", err)
	}

	got, err := m.GetOrCreate(ctx, "user-1")
	if err != nil {
		t.Fatalf("read-back with dead cache failed: %v", err)
	}
	if got.State != model.StateCompanyRegistration {
		t.Errorf("State = %q, want COMPANY_REGISTRATION", got.State)
	}

	if err := m.Delete(ctx, "user-1"); err != nil {
		t.Fatalf("Delete with dead cache failed: %v", err)
	}
}

// 接続済みキャッシュのサーバー障害がリクエストエラーにならないことを検証
func TestManager_CacheOutageMidFlightIsInvisible(t *testing.T) {
	m, _, _, mr := newTestManager(t)
	ctx := context.Background()

	if _, err := m.GetOrCreate(ctx, "user-1"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	mr.Close() // 接続確立後のRedis障害

	got, err := m.GetOrCreate(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrCreate during cache outage failed: %v", err)
	}
	if got.UserKey != "user-1" {
		t.Errorf("UserKey = %q", got.UserKey)
	}

	state := model.StateMenu
	if err := m.Update(ctx, "user-1", &model.SessionUpdate{State: &state}); err != nil {
		t.Fatalf("Update during cache outage failed: %v", err)
	}
}

// 永続ストア障害は呼び出し元にエラーとして伝播することを検証
func TestManager_StoreErrorPropagates(t *testing.T) {
	m := NewManager(&failingRepo{}, nil, nil, testLogger(), Config{})
	ctx := context.Background()

	_, err := m.GetOrCreate(ctx, "user-1")
	if err == nil {
		t.Fatal("expected store error to propagate")
	}
	if !errors.Is(err, model.ErrStoreUnavailable) {
		t.Errorf("error should wrap ErrStoreUnavailable, got: %v", err)
	}

	if _, err := m.SweepExpired(ctx); !errors.Is(err, model.ErrStoreUnavailable) {
		t.Errorf("sweep error should wrap ErrStoreUnavailable, got: %v", err)
	}
}

// ハングしたストアがStoreTimeoutで打ち切られ、ストア障害として返ることを検証
func TestManager_HungStoreFailsAfterTimeout(t *testing.T) {
	m := NewManager(&hangingRepo{}, nil, nil, testLogger(), Config{
		StoreTimeout: 50 * time.Millisecond,
	})
	ctx := context.Background()

	start := time.Now()
	_, err := m.GetOrCreate(ctx, "user-1")
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout error from hung store")
	}
	if !errors.Is(err, model.ErrStoreUnavailable) {
		t.Errorf("error should wrap ErrStoreUnavailable, got: %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error should wrap context.DeadlineExceeded, got: %v", err)
	}
	// ハングしても呼び出しはタイムアウト近辺で返ること
	if elapsed > 2*time.Second {
		t.Errorf("call took %v, should return around the 50ms timeout", elapsed)
	}

	state := model.StateMenu
	if err := m.Update(ctx, "user-1", &model.SessionUpdate{State: &state}); !errors.Is(err, model.ErrStoreUnavailable) {
		t.Errorf("update error should wrap ErrStoreUnavailable, got: %v", err)
	}
	if _, err := m.SweepExpired(ctx); !errors.Is(err, model.ErrStoreUnavailable) {
		t.Errorf("sweep error should wrap ErrStoreUnavailable, got: %v", err)
	}
}

// SweepExpiredが期限切れ行のみを削除し、2回目は0件になることを検証
func TestManager_SweepExpired(t *testing.T) {
	m, repo, _, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.GetOrCreate(ctx, "live"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	// 過去の有効期限を持つ行を直接仕込む
	for i := 0; i < 3; i++ {
		expired := &model.Session{
			UserKey:   fmt.Sprintf("expired-%d", i),
			State:     model.StateMenu,
			Data:      model.SessionData{},
			ExpiresAt: time.Now().Add(-time.Hour),
		}
		if err := repo.Upsert(ctx, expired); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	count, err := m.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if count != 3 {
		t.Errorf("swept count = %d, want 3", count)
	}

	// 有効なセッションは無傷
	if got, _ := repo.FindByUserKey(ctx, "live"); got == nil {
		t.Error("live session must survive the sweep")
	}

	count, err = m.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("second SweepExpired failed: %v", err)
	}
	if count != 0 {
		t.Errorf("second sweep count = %d, want 0", count)
	}
}

// 異なるキーへの同時更新が互いに干渉しないことを検証
func TestManager_ConcurrentUpdatesAreIsolatedPerKey(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ctx := context.Background()

	const n = 20
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("user-%d", i)
		if _, err := m.GetOrCreate(ctx, keys[i]); err != nil {
			t.Fatalf("GetOrCreate failed: %v", err)
		}
	}

	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			data := model.SessionData{"idx": i}
			state := model.StateCompanyRegistration
			if err := m.Update(ctx, key, &model.SessionUpdate{State: &state, Data: &data}); err != nil {
				t.Errorf("Update(%s) failed: %v", key, err)
			}
		}(i, key)
	}
	wg.Wait()

	for i, key := range keys {
		got, err := m.GetOrCreate(ctx, key)
		if err != nil {
			t.Fatalf("GetOrCreate(%s) failed: %v", key, err)
		}
		// JSON経由で読むとfloat64になる経路があるため数値として比較する
		idx, ok := got.Data["idx"]
		if !ok {
			t.Fatalf("Data[idx] missing for %s", key)
		}
		var idxInt int
		switch v := idx.(type) {
		case int:
			idxInt = v
		case float64:
			idxInt = int(v)
		default:
			t.Fatalf("unexpected idx type %T", idx)
		}
		if idxInt != i {
			t.Errorf("key %s got idx %d, cross-key interference", key, idxInt)
		}
	}
}

// サイズ上限を超えるデータが保存済みセッションを変更せずに拒否されることを検証
func TestManager_OversizedDataRejectedWithoutMutation(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ctx := context.Background()

	if err := m.SetAttribute(ctx, "user-1", "lang", "ru"); err != nil {
		t.Fatalf("SetAttribute failed: %v", err)
	}

	// MaxDataSize=1024を超えるペイロード
	err := m.SetAttribute(ctx, "user-1", "blob", strings.Repeat("x", 2048))
	if err == nil {
		t.Fatal("expected validation error for oversized payload")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDataTooLarge {
		t.Errorf("expected SESSION_DATA_TOO_LARGE, got: %v", err)
	}

	got, err := m.GetOrCreate(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if _, ok := got.Data["blob"]; ok {
		t.Error("rejected payload must not be persisted")
	}
	if got.Data["lang"] != "ru" {
		t.Error("prior attributes must be untouched by the rejected write")
	}
}

// シリアライズ不能な値の拒否を検証
func TestManager_UnserializableDataRejected(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	err := m.SetAttribute(context.Background(), "user-1", "ch", make(chan int))
	if err == nil {
		t.Fatal("expected validation error for unserializable value")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidData {
		t.Errorf("expected SESSION_DATA_INVALID, got: %v", err)
	}
}

// GetAttributeが未設定キーにデフォルト値を返すことを検証
func TestManager_GetAttributeDefault(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ctx := context.Background()

	v, err := m.GetAttribute(ctx, "user-1", "lang", "ru")
	if err != nil {
		t.Fatalf("GetAttribute failed: %v", err)
	}
	if v != "ru" {
		t.Errorf("default = %v, want \"ru\"", v)
	}

	if err := m.SetAttribute(ctx, "user-1", "lang", "en"); err != nil {
		t.Fatalf("SetAttribute failed: %v", err)
	}
	v, err = m.GetAttribute(ctx, "user-1", "lang", "ru")
	if err != nil {
		t.Fatalf("GetAttribute failed: %v", err)
	}
	if v != "en" {
		t.Errorf("value = %v, want \"en\"", v)
	}
}

// 空の更新がI/Oなしで成功することを検証
func TestManager_EmptyUpdateIsNoOp(t *testing.T) {
	m := NewManager(&failingRepo{}, nil, nil, testLogger(), Config{})

	if err := m.Update(context.Background(), "user-1", &model.SessionUpdate{}); err != nil {
		t.Errorf("empty update should be a no-op, got: %v", err)
	}
	if err := m.Update(context.Background(), "user-1", nil); err != nil {
		t.Errorf("nil update should be a no-op, got: %v", err)
	}
}

// キャッシュ無効構成でのCacheStatsを検証
func TestManager_CacheStatsWhenDisabled(t *testing.T) {
	m := NewManager(repository.NewMemorySessionRepo(), nil, nil, testLogger(), Config{})

	stats := m.CacheStats()
	if stats.Enabled {
		t.Error("stats should report disabled when no cache is configured")
	}
}

// エンドツーエンド: 新規ユーザー"1001"のセッションライフサイクル
func TestManager_EndToEndLifecycle(t *testing.T) {
	m, repo, _, _ := newTestManager(t)
	ctx := context.Background()

	// 新規作成: MENU、空データ
	s, err := m.GetOrCreate(ctx, "1001")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if s.State != model.StateMenu || len(s.Data) != 0 {
		t.Fatalf("fresh session: state=%q data=%v", s.State, s.Data)
	}

	// 会社登録状態へ
	state := model.StateCompanyRegistration
	if err := m.Update(ctx, "1001", &model.SessionUpdate{State: &state}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	s, _ = m.GetOrCreate(ctx, "1001")
	if s.State != model.StateCompanyRegistration {
		t.Fatalf("State = %q, want COMPANY_REGISTRATION", s.State)
	}

	// 会社紐付け+メニューへ戻る
	orgID := "org-42"
	menu := model.StateMenu
	if err := m.Update(ctx, "1001", &model.SessionUpdate{State: &menu, CompanyID: &orgID}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	s, _ = m.GetOrCreate(ctx, "1001")
	if s.State != model.StateMenu {
		t.Fatalf("State = %q, want MENU", s.State)
	}
	if s.CompanyID == nil || *s.CompanyID != "org-42" {
		t.Fatalf("CompanyID = %v, want org-42", s.CompanyID)
	}

	// TTL超過 → まっさらな新規セッション
	future := time.Now().Add(25 * time.Hour)
	m.SetClock(func() time.Time { return future })
	repo.SetClock(func() time.Time { return future })

	s, err = m.GetOrCreate(ctx, "1001")
	if err != nil {
		t.Fatalf("GetOrCreate after expiry failed: %v", err)
	}
	if s.State != model.StateMenu {
		t.Errorf("State = %q, want MENU", s.State)
	}
	if s.CompanyID != nil {
		t.Errorf("CompanyID = %v, want nil", *s.CompanyID)
	}
}

// hangingRepo はコンテキストの期限まで応答しないSessionRepository。
// ストアのハング時にタイムアウトが効くことのテスト用。
type hangingRepo struct{}

func (h *hangingRepo) wait(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (h *hangingRepo) Upsert(ctx context.Context, s *model.Session) error { return h.wait(ctx) }
func (h *hangingRepo) FindByUserKey(ctx context.Context, userKey string) (*model.Session, error) {
	return nil, h.wait(ctx)
}
func (h *hangingRepo) Update(ctx context.Context, userKey string, upd *model.SessionUpdate, expiresAt time.Time) error {
	return h.wait(ctx)
}
func (h *hangingRepo) DeleteByUserKey(ctx context.Context, userKey string) error { return h.wait(ctx) }
func (h *hangingRepo) DeleteExpired(ctx context.Context) (int64, error)          { return 0, h.wait(ctx) }

var _ repository.SessionRepository = (*hangingRepo)(nil)

// failingRepo は常にエラーを返すSessionRepository。ストア障害の伝播テスト用。
type failingRepo struct{}

var errDown = errors.New("connection refused")

func (f *failingRepo) Upsert(ctx context.Context, s *model.Session) error { return errDown }
func (f *failingRepo) FindByUserKey(ctx context.Context, userKey string) (*model.Session, error) {
	return nil, errDown
}
func (f *failingRepo) Update(ctx context.Context, userKey string, upd *model.SessionUpdate, expiresAt time.Time) error {
	return errDown
}
func (f *failingRepo) DeleteByUserKey(ctx context.Context, userKey string) error { return errDown }
func (f *failingRepo) DeleteExpired(ctx context.Context) (int64, error)          { return 0, errDown }

var _ repository.SessionRepository = (*failingRepo)(nil)
