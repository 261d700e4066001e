package weather

import (
	"context"
	"sync"
	"time"
)

// CachedProvider はProviderをTTL付きインメモリキャッシュで包む。
// 同一都市への短時間の連続アクセス（即時送信ラッシュやプレビュー）で
// 上流APIの呼び出し回数を抑える。SearchCityはキャッシュしない。
type CachedProvider struct {
	inner Provider
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry

	// nowFunc はテスト用に現在時刻を差し替え可能にする
	nowFunc func() time.Time
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider はCachedProvider の新しいインスタンスを生成する。
func NewCachedProvider(inner Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		nowFunc: time.Now,
	}
}

// GetNow はキャッシュ経由で実況天気を取得する。
// キャッシュミスまたは期限切れの場合のみ上流を呼び、成功時のみ格納する。
func (p *CachedProvider) GetNow(ctx context.Context, cityID string) (*Now, error) {
	key := "now:" + cityID
	if v, ok := p.lookup(key); ok {
		return v.(*Now), nil
	}

	now, err := p.inner.GetNow(ctx, cityID)
	if err != nil {
		return nil, err
	}
	p.store(key, now)
	return now, nil
}

// GetForecast3d はキャッシュ経由で3日予報を取得する。
func (p *CachedProvider) GetForecast3d(ctx context.Context, cityID string) ([]Daily, error) {
	key := "3d:" + cityID
	if v, ok := p.lookup(key); ok {
		return v.([]Daily), nil
	}

	daily, err := p.inner.GetForecast3d(ctx, cityID)
	if err != nil {
		return nil, err
	}
	p.store(key, daily)
	return daily, nil
}

// SearchCity は常に上流へ委譲する。
func (p *CachedProvider) SearchCity(ctx context.Context, name, adm string) ([]City, error) {
	return p.inner.SearchCity(ctx, name, adm)
}

func (p *CachedProvider) lookup(key string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[key]
	if !ok {
		return nil, false
	}
	if p.nowFunc().After(entry.expiresAt) {
		delete(p.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (p *CachedProvider) store(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries[key] = cacheEntry{
		value:     value,
		expiresAt: p.nowFunc().Add(p.ttl),
	}
}
