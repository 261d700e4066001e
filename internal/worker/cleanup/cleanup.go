// Package cleanup は送信記録とセッションの自動削除ジョブを提供する。
// 保持期間（デフォルト90日）を超過した送信記録と期限切れセッションを
// 日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/weatherpost/internal/metrics"
	"github.com/hitoshi/weatherpost/internal/repository"
)

// CleanupJob は保持期間を超過した送信記録の自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	notifications repository.NotificationRepository
	sessions      repository.SessionRepository
	collector     metrics.MetricsCollector
	logger        *slog.Logger
	RetentionDays int // 送信記録の保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は90日。
func NewCleanupJob(
	notifications repository.NotificationRepository,
	sessions repository.SessionRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *CleanupJob {
	return &CleanupJob{
		notifications: notifications,
		sessions:      sessions,
		collector:     collector,
		logger:        logger,
		RetentionDays: 90,
	}
}

// Run は保持期間を超過した送信記録と期限切れセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	before := time.Now().UTC().AddDate(0, 0, -j.RetentionDays)
	deletedRecords, err := j.notifications.DeleteOlderThan(ctx, before)
	if err != nil {
		j.logger.Error("送信記録クリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("送信記録クリーンアップの実行に失敗: %w", err)
	}

	deletedSessions, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	if j.collector != nil {
		j.collector.RecordCleanupDeleted(deletedRecords + deletedSessions)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_records", deletedRecords),
		slog.Int64("deleted_sessions", deletedSessions),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は日次間隔のティッカーでクリーンアップジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.RetentionDays),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
