package notification

import (
	"context"
	"time"

	"github.com/hitoshi/weatherpost/internal/repository"
)

// Guard は日次配額と最小送信間隔の2つの独立した検査を提供する。
// どちらもDeliveryログへの読み取り専用クエリであり、追加の状態を持たない。
// Enabledがfalseの場合、呼び出し元は両検査をスキップする。
type Guard struct {
	notifications repository.NotificationRepository
	Enabled       bool
	DailyQuota    int
	MinInterval   time.Duration
	zone          *time.Location

	// nowFunc はテスト用に現在時刻を差し替え可能にする
	nowFunc func() time.Time
}

// NewGuard はGuard の新しいインスタンスを生成する。
// zone は配額の日界計算に使うローカルタイムゾーン（固定オフセット）。
func NewGuard(notifications repository.NotificationRepository, enabled bool, dailyQuota int, minInterval time.Duration, zone *time.Location) *Guard {
	return &Guard{
		notifications: notifications,
		Enabled:       enabled,
		DailyQuota:    dailyQuota,
		MinInterval:   minInterval,
		zone:          zone,
		nowFunc:       time.Now,
	}
}

// RemainingQuota はローカル日界以降のSENT件数から残り配額を算出する。
// 0以上の値を返す。
func (g *Guard) RemainingQuota(ctx context.Context, userID string) (int, error) {
	localNow := g.nowFunc().In(g.zone)
	startOfDay := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, g.zone).UTC()

	count, err := g.notifications.CountSentSince(ctx, userID, startOfDay)
	if err != nil {
		return 0, err
	}

	remaining := g.DailyQuota - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// CheckInterval は同一 (user, email) ペアへの直近SENTが最小間隔より
// 古いかを検査する。送信してよい場合にtrueを返す。
func (g *Guard) CheckInterval(ctx context.Context, userID, email string) (bool, error) {
	last, err := g.notifications.LatestSentAt(ctx, userID, email)
	if err != nil {
		return false, err
	}
	if last == nil {
		return true, nil
	}

	threshold := g.nowFunc().UTC().Add(-g.MinInterval)
	return !last.After(threshold), nil
}
