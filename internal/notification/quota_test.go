package notification

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/weatherpost/internal/model"
)

// mockNotificationRepo はテスト用のNotificationRepository実装。
type mockNotificationRepo struct {
	createFunc         func(ctx context.Context, n *model.Notification) error
	countSentSinceFunc func(ctx context.Context, userID string, since time.Time) (int, error)
	latestSentAtFunc   func(ctx context.Context, userID, email string) (*time.Time, error)
	deleteOlderFunc    func(ctx context.Context, before time.Time) (int64, error)

	created []*model.Notification
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	m.created = append(m.created, n)
	if m.createFunc != nil {
		return m.createFunc(ctx, n)
	}
	return nil
}

func (m *mockNotificationRepo) CountSentSince(ctx context.Context, userID string, since time.Time) (int, error) {
	if m.countSentSinceFunc != nil {
		return m.countSentSinceFunc(ctx, userID, since)
	}
	return 0, nil
}

func (m *mockNotificationRepo) LatestSentAt(ctx context.Context, userID, email string) (*time.Time, error) {
	if m.latestSentAtFunc != nil {
		return m.latestSentAtFunc(ctx, userID, email)
	}
	return nil, nil
}

func (m *mockNotificationRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	if m.deleteOlderFunc != nil {
		return m.deleteOlderFunc(ctx, before)
	}
	return 0, nil
}

func TestGuard_RemainingQuota_NoSends(t *testing.T) {
	repo := &mockNotificationRepo{}
	g := NewGuard(repo, true, 50, 2*time.Second, testZone)

	remaining, err := g.RemainingQuota(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RemainingQuota がエラーを返した: %v", err)
	}
	if remaining != 50 {
		t.Errorf("残り配額 = %d, want 50", remaining)
	}
}

func TestGuard_RemainingQuota_AtLimit_ZeroRemaining(t *testing.T) {
	repo := &mockNotificationRepo{
		countSentSinceFunc: func(ctx context.Context, userID string, since time.Time) (int, error) {
			return 50, nil
		},
	}
	g := NewGuard(repo, true, 50, 2*time.Second, testZone)

	remaining, err := g.RemainingQuota(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RemainingQuota がエラーを返した: %v", err)
	}
	if remaining != 0 {
		t.Errorf("残り配額 = %d, want 0", remaining)
	}
}

func TestGuard_RemainingQuota_OverLimit_ClampedToZero(t *testing.T) {
	repo := &mockNotificationRepo{
		countSentSinceFunc: func(ctx context.Context, userID string, since time.Time) (int, error) {
			return 60, nil
		},
	}
	g := NewGuard(repo, true, 50, 2*time.Second, testZone)

	remaining, _ := g.RemainingQuota(context.Background(), "user-1")
	if remaining != 0 {
		t.Errorf("残り配額 = %d, 負値にはならないべき", remaining)
	}
}

func TestGuard_RemainingQuota_CountsSinceLocalMidnight(t *testing.T) {
	var gotSince time.Time
	repo := &mockNotificationRepo{
		countSentSinceFunc: func(ctx context.Context, userID string, since time.Time) (int, error) {
			gotSince = since
			return 0, nil
		},
	}
	g := NewGuard(repo, true, 50, 2*time.Second, testZone)
	// ローカル（UTC+8）2024-01-02 01:30 = UTC 2024-01-01 17:30
	g.nowFunc = func() time.Time {
		return time.Date(2024, 1, 1, 17, 30, 0, 0, time.UTC)
	}

	if _, err := g.RemainingQuota(context.Background(), "user-1"); err != nil {
		t.Fatalf("RemainingQuota がエラーを返した: %v", err)
	}

	// ローカル日界 2024-01-02 00:00 +08:00 = UTC 2024-01-01 16:00
	want := time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC)
	if !gotSince.Equal(want) {
		t.Errorf("カウント起点 = %v, want %v（ローカル日界のUTC換算）", gotSince, want)
	}
}

func TestGuard_RemainingQuota_ResetsAfterMidnightRollover(t *testing.T) {
	// 日界起点が翌日に進めばカウント対象が変わり配額がリセットされる
	day1Midnight := time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC) // 01-02 00:00 +08:00
	repo := &mockNotificationRepo{
		countSentSinceFunc: func(ctx context.Context, userID string, since time.Time) (int, error) {
			if since.Before(day1Midnight.Add(24 * time.Hour)) {
				return 50, nil
			}
			return 0, nil
		},
	}
	g := NewGuard(repo, true, 50, 2*time.Second, testZone)

	g.nowFunc = func() time.Time { return day1Midnight.Add(time.Hour) }
	remaining, _ := g.RemainingQuota(context.Background(), "user-1")
	if remaining != 0 {
		t.Errorf("当日中の残り配額 = %d, want 0", remaining)
	}

	g.nowFunc = func() time.Time { return day1Midnight.Add(25 * time.Hour) }
	remaining, _ = g.RemainingQuota(context.Background(), "user-1")
	if remaining != 50 {
		t.Errorf("日界越え後の残り配額 = %d, want 50", remaining)
	}
}

func TestGuard_CheckInterval_NoPriorSend_Allowed(t *testing.T) {
	repo := &mockNotificationRepo{}
	g := NewGuard(repo, true, 50, 2*time.Second, testZone)

	ok, err := g.CheckInterval(context.Background(), "user-1", "user@example.com")
	if err != nil {
		t.Fatalf("CheckInterval がエラーを返した: %v", err)
	}
	if !ok {
		t.Error("送信履歴がなければ許可されるべき")
	}
}

func TestGuard_CheckInterval_RecentSend_Rejected(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	last := now.Add(-1 * time.Second)
	repo := &mockNotificationRepo{
		latestSentAtFunc: func(ctx context.Context, userID, email string) (*time.Time, error) {
			return &last, nil
		},
	}
	g := NewGuard(repo, true, 50, 2*time.Second, testZone)
	g.nowFunc = func() time.Time { return now }

	ok, err := g.CheckInterval(context.Background(), "user-1", "user@example.com")
	if err != nil {
		t.Fatalf("CheckInterval がエラーを返した: %v", err)
	}
	if ok {
		t.Error("最小間隔内の再送信は拒否されるべき")
	}
}

func TestGuard_CheckInterval_OldSend_Allowed(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	last := now.Add(-3 * time.Second)
	repo := &mockNotificationRepo{
		latestSentAtFunc: func(ctx context.Context, userID, email string) (*time.Time, error) {
			return &last, nil
		},
	}
	g := NewGuard(repo, true, 50, 2*time.Second, testZone)
	g.nowFunc = func() time.Time { return now }

	ok, _ := g.CheckInterval(context.Background(), "user-1", "user@example.com")
	if !ok {
		t.Error("最小間隔より古い送信は許可されるべき")
	}
}
