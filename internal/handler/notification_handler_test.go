package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/weatherpost/internal/middleware"
	"github.com/hitoshi/weatherpost/internal/model"
	"github.com/hitoshi/weatherpost/internal/notification"
)

// mockNotificationService はテスト用のNotificationServiceInterface実装。
type mockNotificationService struct {
	sendFunc    func(ctx context.Context, userID, email, cityID, cityName string) (*notification.SendResult, error)
	previewFunc func(ctx context.Context, cityID, cityName string) string

	sendCalls int
}

func (m *mockNotificationService) SendNow(ctx context.Context, userID, email, cityID, cityName string) (*notification.SendResult, error) {
	m.sendCalls++
	if m.sendFunc != nil {
		return m.sendFunc(ctx, userID, email, cityID, cityName)
	}
	return &notification.SendResult{Sent: true, Text: "本文", Remaining: 49}, nil
}

func (m *mockNotificationService) Preview(ctx context.Context, cityID, cityName string) string {
	if m.previewFunc != nil {
		return m.previewFunc(ctx, cityID, cityName)
	}
	return "プレビュー本文"
}

// mockQuotaChecker はテスト用のQuotaChecker実装。
type mockQuotaChecker struct {
	remaining int
}

func (m *mockQuotaChecker) RemainingQuota(ctx context.Context, userID string) (int, error) {
	return m.remaining, nil
}

// mockUserFinder はテスト用のUserEmailFinder実装。
type mockUserFinder struct {
	user *model.User
}

func (m *mockUserFinder) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.user, nil
}

func newNotificationHandlerForTest(svc *mockNotificationService, users *mockUserFinder) *NotificationHandler {
	resolver := NewCityResolver(&mockFavoriteRepo{}, &mockCitySearcher{})
	return NewNotificationHandler(svc, &mockQuotaChecker{remaining: 50}, users, resolver)
}

func sendJSONRequest(t *testing.T, h http.HandlerFunc, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("リクエストのJSON化に失敗した: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/send", bytes.NewReader(data))
	if userID != "" {
		req = req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestNotificationHandler_Send_Success(t *testing.T) {
	svc := &mockNotificationService{}
	h := newNotificationHandlerForTest(svc, &mockUserFinder{})

	rec := sendJSONRequest(t, h.Send, "user-1", sendRequest{
		Email:  "user@example.com",
		CityID: "101010100", CityName: "北京",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp sendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのJSONパースに失敗した: %v", err)
	}
	if resp.Preview != "本文" {
		t.Errorf("preview = %s, want 本文", resp.Preview)
	}
	if resp.QuotaRemaining != 49 {
		t.Errorf("quota_remaining = %d, want 49", resp.QuotaRemaining)
	}
}

func TestNotificationHandler_Send_Unauthenticated(t *testing.T) {
	h := newNotificationHandlerForTest(&mockNotificationService{}, &mockUserFinder{})

	rec := sendJSONRequest(t, h.Send, "", sendRequest{CityID: "101010100", CityName: "北京"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestNotificationHandler_Send_DefaultsToAccountEmail(t *testing.T) {
	var gotEmail string
	svc := &mockNotificationService{
		sendFunc: func(ctx context.Context, userID, email, cityID, cityName string) (*notification.SendResult, error) {
			gotEmail = email
			return &notification.SendResult{Sent: true}, nil
		},
	}
	users := &mockUserFinder{user: &model.User{ID: "user-1", Email: "account@example.com"}}
	h := newNotificationHandlerForTest(svc, users)

	rec := sendJSONRequest(t, h.Send, "user-1", sendRequest{CityID: "101010100", CityName: "北京"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if gotEmail != "account@example.com" {
		t.Errorf("宛先 = %s, アカウントの既定メールアドレスを使うべき", gotEmail)
	}
}

func TestNotificationHandler_Send_NoEmailDeterminable(t *testing.T) {
	h := newNotificationHandlerForTest(&mockNotificationService{}, &mockUserFinder{})

	rec := sendJSONRequest(t, h.Send, "user-1", sendRequest{CityID: "101010100", CityName: "北京", Email: ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var body apiErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Code != model.ErrCodeEmailNotDetermined {
		t.Errorf("code = %s, want %s", body.Code, model.ErrCodeEmailNotDetermined)
	}
}

func TestNotificationHandler_Send_Blocked_Returns429(t *testing.T) {
	svc := &mockNotificationService{
		sendFunc: func(ctx context.Context, userID, email, cityID, cityName string) (*notification.SendResult, error) {
			return &notification.SendResult{Blocked: model.NewQuotaExhaustedError(50)}, nil
		},
	}
	h := newNotificationHandlerForTest(svc, &mockUserFinder{})

	rec := sendJSONRequest(t, h.Send, "user-1", sendRequest{
		Email: "user@example.com", CityID: "101010100", CityName: "北京",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestNotificationHandler_Send_TransportFailure_Returns502(t *testing.T) {
	svc := &mockNotificationService{
		sendFunc: func(ctx context.Context, userID, email, cityID, cityName string) (*notification.SendResult, error) {
			return &notification.SendResult{Sent: false}, nil
		},
	}
	h := newNotificationHandlerForTest(svc, &mockUserFinder{})

	rec := sendJSONRequest(t, h.Send, "user-1", sendRequest{
		Email: "user@example.com", CityID: "101010100", CityName: "北京",
	})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestNotificationHandler_Send_DryRun_NoSend(t *testing.T) {
	svc := &mockNotificationService{}
	h := newNotificationHandlerForTest(svc, &mockUserFinder{})

	rec := sendJSONRequest(t, h.Send, "user-1", sendRequest{
		CityID: "101010100", CityName: "北京", DryRun: true,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if svc.sendCalls != 0 {
		t.Error("dry_runは送信を実行しないべき")
	}
	var resp sendResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Preview != "プレビュー本文" {
		t.Errorf("preview = %s, want プレビュー本文", resp.Preview)
	}
	if resp.QuotaRemaining != 50 {
		t.Errorf("quota_remaining = %d, want 50（消費されない）", resp.QuotaRemaining)
	}
}

func TestNotificationHandler_Send_CityNotResolved(t *testing.T) {
	h := newNotificationHandlerForTest(&mockNotificationService{}, &mockUserFinder{})

	// 未収蔵の都市名のみで即時送信（dry_runでない）
	rec := sendJSONRequest(t, h.Send, "user-1", sendRequest{
		Email: "user@example.com", CityName: "上海",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var body apiErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Code != model.ErrCodeCityNotResolved {
		t.Errorf("code = %s, want %s", body.Code, model.ErrCodeCityNotResolved)
	}
}

func TestNotificationHandler_Send_InvalidBody(t *testing.T) {
	h := newNotificationHandlerForTest(&mockNotificationService{}, &mockUserFinder{})

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/send", bytes.NewReader([]byte("{broken")))
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()
	h.Send(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
