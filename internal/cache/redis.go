// Package cache はRedisによるセッションキャッシュ層を提供する。
// あくまで読み取りの高速化であり、真実のソースは常に永続ストア側にある。
// Redisが落ちていてもすべての操作は縮退して成功し、エラーがこの層の外に
// 漏れることはない。
package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stats はキャッシュの診断情報を表す。
type Stats struct {
	Enabled   bool   `json:"enabled"`
	Connected bool   `json:"connected"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Message   string `json:"message,omitempty"`
}

// SessionCache はRedisをラップしたセッションキャッシュアダプタ。
// 接続は起動時に1回だけ試行し、失敗した場合はプロセスの生存期間中
// 切断状態のままになる（再接続ループは持たない）。切断状態では
// 全操作がno-opとなり、呼び出し側は永続ストアのみで動作を継続する。
type SessionCache struct {
	client    *redis.Client
	opTimeout time.Duration
	logger    *slog.Logger

	connected atomic.Bool
	hits      atomic.Uint64
	misses    atomic.Uint64
}

// New はRedis接続URLからSessionCacheを生成する。接続はまだ行わない。
// opTimeoutが0以下の場合はデフォルト3秒を使用する。
func New(redisURL string, opTimeout time.Duration, logger *slog.Logger) (*SessionCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if opTimeout <= 0 {
		opTimeout = 3 * time.Second
	}

	// キャッシュ縮退がリクエストを遅くしないよう、操作単位の短いタイムアウトを設定する
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = opTimeout
	opts.WriteTimeout = opTimeout

	if logger == nil {
		logger = slog.Default()
	}

	return &SessionCache{
		client:    redis.NewClient(opts),
		opTimeout: opTimeout,
		logger:    logger,
	}, nil
}

// Connect はRedisへの接続を1回だけ試行する。
// 失敗してもエラーを返さずfalseを返し、以後の全操作はno-opになる。
func (c *SessionCache) Connect(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		c.logger.Warn("Redis接続に失敗しました。永続ストアのみで継続します",
			slog.String("error", err.Error()),
		)
		c.connected.Store(false)
		return false
	}

	c.connected.Store(true)
	c.logger.Info("Redis接続を確立しました")
	return true
}

// Close はRedis接続を閉じる。
func (c *SessionCache) Close() error {
	c.connected.Store(false)
	return c.client.Close()
}

// IsConnected は起動時の接続が成功しているかを返す。
func (c *SessionCache) IsConnected() bool {
	return c.connected.Load()
}

// Get はキーの値を取得する。ミスまたは任意のRedisエラーの場合は(nil, false)。
// エラーは警告ログのみでこの層の外には伝播しない。
func (c *SessionCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.connected.Load() {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	value, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.misses.Add(1)
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Redis GETに失敗、ミスとして扱います",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return value, true
}

// Set はキーにTTL付きで値を書き込む。失敗時はfalseを返すのみ。
func (c *SessionCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if !c.connected.Load() || ttl <= 0 {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("Redis SETに失敗しました",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// Delete はキーを削除する。存在しないキーの削除も成功扱い。
func (c *SessionCache) Delete(ctx context.Context, key string) bool {
	if !c.connected.Load() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("Redis DELに失敗しました",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// Stats はキャッシュの診断情報を返す。
func (c *SessionCache) Stats() Stats {
	if !c.connected.Load() {
		return Stats{
			Enabled:   true,
			Connected: false,
			Message:   "Redis cache disconnected",
		}
	}
	return Stats{
		Enabled:   true,
		Connected: true,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
	}
}
