// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/weatherpost/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
// セッションの発行は除外されたID層が行うため、ここでは検証と掃除のみ扱う。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// FavoriteRepository は収蔵都市の永続化インターフェース。
type FavoriteRepository interface {
	// FindByUserAndCity はユーザーIDと都市名（任意で地域名）で収蔵を検索する。
	// provinceが空の場合は都市名のみで照合する。見つからない場合はnilを返す。
	FindByUserAndCity(ctx context.Context, userID, cityName, province string) (*model.Favorite, error)
}

// ScheduleRepository はスケジュールデータの永続化インターフェース。
type ScheduleRepository interface {
	// Create はスケジュールを作成する。
	Create(ctx context.Context, schedule *model.Schedule) error

	// FindByID は指定IDのスケジュールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Schedule, error)

	// ListByUserID はユーザーのスケジュール一覧を作成日時降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Schedule, error)

	// ListDue は処理対象のスケジュールを取得する。
	// status = 'ACTIVE' かつ next_run_at <= now のスケジュールを
	// next_run_at昇順（先に到期したものが先）でlimit件まで取得する。
	// 行ロックは取らない。排他はワーカー単一インスタンス運用が前提。
	ListDue(ctx context.Context, now time.Time, limit int) ([]*model.Schedule, error)

	// UpdateRunState はワーカーによる処理結果（status、next_run_at、last_run_at）を永続化する。
	UpdateRunState(ctx context.Context, schedule *model.Schedule) error

	// UpdateNextRun はnext_run_atのみを更新する。
	// 処理中エラー時の防御的な再試行延期に使用する。
	UpdateNextRun(ctx context.Context, id string, nextRunAt time.Time) error

	// UpdateStatus は指定IDのスケジュールの状態を更新する。
	// API層によるキャンセルで使用する。
	UpdateStatus(ctx context.Context, id string, status model.ScheduleStatus) error
}

// NotificationRepository は送信記録（追記専用ログ）の永続化インターフェース。
type NotificationRepository interface {
	// Create は送信記録を追記する。記録は以後変更されない。
	Create(ctx context.Context, notification *model.Notification) error

	// CountSentSince は指定時刻以降のSENT記録数を返す。配額カウントに使用する。
	CountSentSince(ctx context.Context, userID string, since time.Time) (int, error)

	// LatestSentAt は(user, email)ペアの最新SENT記録の作成時刻を返す。
	// 記録がない場合はnilを返す。最小送信間隔の判定に使用する。
	LatestSentAt(ctx context.Context, userID, email string) (*time.Time, error)

	// DeleteOlderThan は指定時刻より古い記録を削除し、削除件数を返す。
	// 保持期間クリーンアップジョブで使用する。
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
