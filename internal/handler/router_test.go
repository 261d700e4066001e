package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/weatherpost/internal/middleware"
	"github.com/hitoshi/weatherpost/internal/model"
)

// mockSessionFinder はテスト用のSessionFinder実装。
type mockSessionFinder struct {
	findFunc func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, id)
	}
	return nil, nil
}

// mockPinger はテスト用のPinger実装。
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.pingErr
}

func newRouterForTest(t *testing.T, sessions *mockSessionFinder) http.Handler {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		SessionFinder:       sessions,
		CORSAllowedOrigin:   "http://localhost:3000",
		RateLimiter:         rl,
		NotificationService: &mockNotificationService{},
		QuotaChecker:        &mockQuotaChecker{remaining: 50},
		ScheduleRepo:        newMockScheduleStore(),
		UserFinder:          &mockUserFinder{},
		CityResolver:        NewCityResolver(&mockFavoriteRepo{}, &mockCitySearcher{}),
		LocalZone:           time.FixedZone("UTC+8", 8*3600),
		DB:                  &mockPinger{},
	})
}

func validSessionFinder() *mockSessionFinder {
	return &mockSessionFinder{
		findFunc: func(ctx context.Context, id string) (*model.Session, error) {
			if id != "valid-session" {
				return nil, nil
			}
			return &model.Session{
				ID:        id,
				UserID:    "user-1",
				ExpiresAt: time.Now().Add(time.Hour),
			}, nil
		},
	}
}

func TestRouter_Health_NoAuthRequired(t *testing.T) {
	router := newRouterForTest(t, &mockSessionFinder{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, ヘルスチェックは認証なしで到達できるべき", rec.Code)
	}
}

func TestRouter_AuthedRoutes_RejectWithoutCookie(t *testing.T) {
	router := newRouterForTest(t, &mockSessionFinder{})

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/notifications/send"},
		{http.MethodPost, "/api/notifications/schedules"},
		{http.MethodGet, "/api/notifications/schedules"},
		{http.MethodDelete, "/api/notifications/schedules/sch-1"},
	}
	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", p.method, p.path, rec.Code)
		}
	}
}

func TestRouter_ScheduleList_WithValidSession(t *testing.T) {
	router := newRouterForTest(t, validSessionFinder())

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/schedules", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_CORSHeaders(t *testing.T) {
	router := newRouterForTest(t, &mockSessionFinder{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %s", got)
	}
}

func TestRouter_Preflight(t *testing.T) {
	router := newRouterForTest(t, &mockSessionFinder{})

	req := httptest.NewRequest(http.MethodOptions, "/api/notifications/send", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// プリフライトは認証前に処理される
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

func TestRouter_Health_DBUnavailable(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	router := NewRouter(&RouterDeps{
		SessionFinder:       &mockSessionFinder{},
		CORSAllowedOrigin:   "http://localhost:3000",
		RateLimiter:         rl,
		NotificationService: &mockNotificationService{},
		QuotaChecker:        &mockQuotaChecker{},
		ScheduleRepo:        newMockScheduleStore(),
		UserFinder:          &mockUserFinder{},
		CityResolver:        NewCityResolver(&mockFavoriteRepo{}, &mockCitySearcher{}),
		LocalZone:           time.UTC,
		DB:                  &mockPinger{pingErr: context.DeadlineExceeded},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
