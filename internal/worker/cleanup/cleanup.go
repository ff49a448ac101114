// Package cleanup は既読通知の自動削除ジョブを提供する。
// 保持期間（デフォルト90日）を超過した既読通知を日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// NotificationPurger は既読通知を期限で削除するインターフェース。
// repository.NotificationRepositoryが実装する。
type NotificationPurger interface {
	DeleteReadBefore(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob は保持期間を超過した既読通知の削除ジョブ。
// 削除対象がない場合もエラーにしないため、何度実行してもよい。
type CleanupJob struct {
	notifications NotificationPurger
	logger        *slog.Logger
	RetentionDays int // 既読通知の保持日数（デフォルト: 90）
	now           func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(notifications NotificationPurger, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		notifications: notifications,
		logger:        logger,
		RetentionDays: 90,
		now:           time.Now,
	}
}

// Run はRetentionDays日より前に作成された既読通知を削除し、削除件数を返す。
// 未読の通知は期間に関わらず残す。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()
	before := j.now().AddDate(0, 0, -j.RetentionDays)

	deleted, err := j.notifications.DeleteReadBefore(ctx, before)
	if err != nil {
		j.logger.Error("notification cleanup failed",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return 0, fmt.Errorf("failed to delete read notifications: %w", err)
	}

	j.logger.Info("notification cleanup completed",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return deleted, nil
}
