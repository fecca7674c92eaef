// Package sweeper は期限切れセッションの定期削除ジョブを提供する。
// 有効期限を過ぎた永続ストアの行を固定間隔（デフォルト1時間）で一括削除する。
// キャッシュ側はRedis自身のTTLで失効するため対象外。
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionSweeper は掃引対象の操作インターフェース。
// session.Managerが実装する。
type SessionSweeper interface {
	// SweepExpired は期限切れセッションを削除し件数を返す。
	SweepExpired(ctx context.Context) (int64, error)
}

// Job は期限切れセッションの定期削除ジョブ。
// リクエスト処理とは完全に独立したバックグラウンドタスクとして動作し、
// 1回分の失敗はログに残して次のティックで再試行する。スケジューリング
// ループ自体が止まることはない。
type Job struct {
	sweeper SessionSweeper
	logger  *slog.Logger
}

// NewJob は新しいJobを生成する。
func NewJob(sweeper SessionSweeper, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		sweeper: sweeper,
		logger:  logger,
	}
}

// RunOnce は掃引を1回実行する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Job) RunOnce(ctx context.Context) error {
	start := time.Now()

	count, err := j.sweeper.SweepExpired(ctx)
	if err != nil {
		j.logger.Error("セッション掃引ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッション掃引の実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("セッション掃引ジョブが完了しました",
		slog.Int64("deleted_count", count),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return nil
}

// Start は固定間隔のティッカーで掃引ジョブを起動する。
// 起動直後に1回実行し、以降はintervalごとに実行する。
// コンテキストがキャンセルされるまでブロックする。
// 1回分のエラーはRunOnce内でログ済みのため、ここでは握りつぶして継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	j.logger.Info("セッション掃引スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	_ = j.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッション掃引スケジューラを停止しました")
			return
		case <-ticker.C:
			_ = j.RunOnce(ctx)
		}
	}
}
