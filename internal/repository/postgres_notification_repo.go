package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/weatherpost/internal/model"
)

// PostgresNotificationRepo はPostgreSQLを使用した送信記録リポジトリ。
// email_notificationsテーブルは追記専用であり、UPDATE文を持たない。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

// Create は送信記録を追記する。
func (r *PostgresNotificationRepo) Create(ctx context.Context, notification *model.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_notifications (id, user_id, email, city_id, subject, content,
		                                  status, error_message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		notification.ID, notification.UserID, notification.Email, notification.CityID,
		notification.Subject, notification.Content,
		notification.Status, nullString(notification.ErrorMessage), notification.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("送信記録の追記に失敗しました: %w", err)
	}
	return nil
}

// CountSentSince は指定時刻以降のSENT記録数を返す。
func (r *PostgresNotificationRepo) CountSentSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(id) FROM email_notifications
		 WHERE user_id = $1 AND status = 'SENT' AND created_at >= $2`,
		userID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("送信記録のカウントに失敗しました: %w", err)
	}
	return count, nil
}

// LatestSentAt は(user, email)ペアの最新SENT記録の作成時刻を返す。
// 記録がない場合はnilを返す。
func (r *PostgresNotificationRepo) LatestSentAt(ctx context.Context, userID, email string) (*time.Time, error) {
	var latest sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM email_notifications
		 WHERE user_id = $1 AND email = $2 AND status = 'SENT'`,
		userID, email,
	).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("最新送信時刻の取得に失敗しました: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	t := latest.Time
	return &t, nil
}

// DeleteOlderThan は指定時刻より古い記録を削除し、削除件数を返す。
func (r *PostgresNotificationRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM email_notifications WHERE created_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("送信記録の削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
