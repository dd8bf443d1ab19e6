// Package cleanup は長期間使われていないデバイスのセッションデータの自動削除ジョブを提供する。
// 保持期間（デフォルト90日）を超えて更新のないKVエントリを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/dcode/internal/repository"
)

// DefaultRetentionDays はセッションデータの既定の保持日数。
const DefaultRetentionDays = 90

// PurgeRecorder は削除件数を記録するメトリクスのインターフェース。
type PurgeRecorder interface {
	RecordPurgedEntries(count int64)
}

// CleanupJob は保持期間を超過したセッションデータの自動削除ジョブ。
// 冪等な削除処理で、同時に複数のワーカーが実行しても結果は変わらない。
type CleanupJob struct {
	purger        repository.StaleEntryPurger
	logger        *slog.Logger
	metrics       PurgeRecorder
	RetentionDays int // 保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。metricsはnilでもよい。
func NewCleanupJob(purger repository.StaleEntryPurger, logger *slog.Logger, metrics PurgeRecorder) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		purger:        purger,
		logger:        logger,
		metrics:       metrics,
		RetentionDays: DefaultRetentionDays,
	}
}

// Run は保持期間を超過したエントリを削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	if j.RetentionDays <= 0 {
		return fmt.Errorf("retention days must be positive: %d", j.RetentionDays)
	}
	start := time.Now()

	olderThan := time.Duration(j.RetentionDays) * 24 * time.Hour
	deleted, err := j.purger.PurgeStale(ctx, olderThan)
	if err != nil {
		j.logger.Error("session cleanup failed",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("session cleanup failed: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordPurgedEntries(deleted)
	}

	j.logger.Info("session cleanup completed",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回実行し、以降interval間隔でRunを繰り返す。
// ctxがキャンセルされるまで戻らない。失敗はログに記録して次の周期で再試行する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("session cleanup scheduler started",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.RetentionDays),
	)

	_ = j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("session cleanup scheduler stopped")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
