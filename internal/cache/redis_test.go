package cache

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) (*SessionCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	c, err := New("redis://"+mr.Addr(), time.Second, logger)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if !c.Connect(context.Background()) {
		t.Fatal("Connect to miniredis failed")
	}
	return c, mr
}

// Set/Getの往復とTTLの設定を検証
func TestSessionCache_SetAndGet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if ok := c.Set(ctx, "session:1001", []byte(`{"state":"MENU"}`), time.Hour); !ok {
		t.Fatal("Set should succeed")
	}

	value, ok := c.Get(ctx, "session:1001")
	if !ok {
		t.Fatal("Get should hit")
	}
	if string(value) != `{"state":"MENU"}` {
		t.Errorf("value = %s", value)
	}

	if mr.TTL("session:1001") != time.Hour {
		t.Errorf("TTL = %v, want 1h", mr.TTL("session:1001"))
	}
}

// 存在しないキーのGetがミスになることを検証
func TestSessionCache_GetMiss(t *testing.T) {
	c, _ := newTestCache(t)

	_, ok := c.Get(context.Background(), "session:nope")
	if ok {
		t.Error("Get for missing key should miss")
	}
}

// TTL経過後にキーが消えることを検証
func TestSessionCache_TTLExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "session:1001", []byte("x"), time.Minute)
	mr.FastForward(2 * time.Minute)

	if _, ok := c.Get(ctx, "session:1001"); ok {
		t.Error("key should be expired after TTL")
	}
}

// Deleteの冪等性を検証
func TestSessionCache_DeleteIsIdempotent(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "session:1001", []byte("x"), time.Hour)

	if ok := c.Delete(ctx, "session:1001"); !ok {
		t.Error("Delete should succeed")
	}
	if ok := c.Delete(ctx, "session:1001"); !ok {
		t.Error("deleting a missing key should still succeed")
	}
	if _, ok := c.Get(ctx, "session:1001"); ok {
		t.Error("key should be gone after Delete")
	}
}

// 接続失敗後は全操作がno-opで縮退することを検証
func TestSessionCache_DisconnectedOperationsAreNoOps(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	// 誰もlistenしていないアドレス
	c, err := New("redis://127.0.0.1:1", time.Second, logger)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if c.Connect(context.Background()) {
		t.Fatal("Connect should fail against a closed port")
	}
	if c.IsConnected() {
		t.Error("IsConnected should be false")
	}

	ctx := context.Background()
	if ok := c.Set(ctx, "k", []byte("v"), time.Hour); ok {
		t.Error("Set should report not-available when disconnected")
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Get should miss when disconnected")
	}
	if ok := c.Delete(ctx, "k"); ok {
		t.Error("Delete should report not-available when disconnected")
	}

	stats := c.Stats()
	if stats.Connected {
		t.Error("Stats should report disconnected")
	}
}

// サーバーダウン中のエラーが呼び出し側にミスとして返ることを検証
func TestSessionCache_ServerFailureBecomesMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "session:1001", []byte("x"), time.Hour)

	// 接続確立後のサーバー障害を再現
	mr.Close()

	if _, ok := c.Get(ctx, "session:1001"); ok {
		t.Error("Get during server outage should be treated as a miss")
	}
	if ok := c.Set(ctx, "session:1001", []byte("y"), time.Hour); ok {
		t.Error("Set during server outage should fail quietly")
	}
}

// ヒット/ミスカウンタがStatsに反映されることを検証
func TestSessionCache_StatsCounters(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Hour)
	c.Get(ctx, "k")      // hit
	c.Get(ctx, "k")      // hit
	c.Get(ctx, "other")  // miss

	stats := c.Stats()
	if !stats.Connected || !stats.Enabled {
		t.Error("Stats should report connected and enabled")
	}
	if stats.Hits != 2 {
		t.Errorf("Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
}

// 不正なURLでNewがエラーを返すことを検証
func TestNew_InvalidURL(t *testing.T) {
	_, err := New("not-a-redis-url", time.Second, nil)
	if err == nil {
		t.Error("expected error for invalid redis URL")
	}
}
