package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewClient_ReturnsNonNil(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	c := NewClient(http.DefaultClient, logger, "test-key", "http://example.com", "http://example.com")
	if c == nil {
		t.Fatal("NewClient は nil を返してはならない")
	}
}

func TestClient_GetNow_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v7/weather/now" {
			t.Errorf("パス = %s, want /v7/weather/now", r.URL.Path)
		}
		if r.URL.Query().Get("location") != "101010100" {
			t.Errorf("location = %s, want 101010100", r.URL.Query().Get("location"))
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key = %s, want test-key", r.URL.Query().Get("key"))
		}

		resp := nowResponse{
			Code: "200",
			Now: Now{
				ObsTime:   "2026-01-15T08:00+08:00",
				Temp:      "5",
				FeelsLike: "3",
				Text:      "晴",
				WindDir:   "北風",
				WindScale: "3",
				Humidity:  "40",
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), "test-key", server.URL, server.URL)

	now, err := c.GetNow(context.Background(), "101010100")
	if err != nil {
		t.Fatalf("GetNow がエラーを返した: %v", err)
	}
	if now.Temp != "5" {
		t.Errorf("Temp = %s, want 5", now.Temp)
	}
	if now.Text != "晴" {
		t.Errorf("Text = %s, want 晴", now.Text)
	}
}

func TestClient_GetNow_APIErrorCode(t *testing.T) {
	// QWeatherはHTTP 200でもボディのcodeでエラーを表すことがある
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(nowResponse{Code: "402"})
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), "test-key", server.URL, server.URL)

	_, err := c.GetNow(context.Background(), "101010100")
	if err == nil {
		t.Fatal("エラーコードのレスポンスでエラーが返るべき")
	}
}

func TestClient_GetNow_HTTPErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), "test-key", server.URL, server.URL)

	_, err := c.GetNow(context.Background(), "101010100")
	if err == nil {
		t.Fatal("HTTPエラーステータスでエラーが返るべき")
	}
	// HTTPエラーは再試行対象外
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("呼び出し回数 = %d, want 1", got)
	}
}

func TestClient_GetNow_NetworkErrorRetriedOnce(t *testing.T) {
	// 到達不能なアドレスへのリクエストはネットワークエラーとなり1回再試行される
	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, newTestLogger(&buf), "test-key", "http://127.0.0.1:1", "http://127.0.0.1:1")

	_, err := c.GetNow(context.Background(), "101010100")
	if err == nil {
		t.Fatal("接続失敗でエラーが返るべき")
	}

	// 再試行の警告ログが2回分出力されている
	logs := buf.String()
	if !bytes.Contains([]byte(logs), []byte("天気APIの呼び出しに失敗しました")) {
		t.Error("再試行の警告ログが出力されるべき")
	}
}

func TestClient_GetForecast3d_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v7/weather/3d" {
			t.Errorf("パス = %s, want /v7/weather/3d", r.URL.Path)
		}
		resp := forecastResponse{
			Code: "200",
			Daily: []Daily{
				{FxDate: "2026-01-15", TempMax: "8", TempMin: "-2", TextDay: "晴"},
				{FxDate: "2026-01-16", TempMax: "6", TempMin: "-3", TextDay: "曇"},
				{FxDate: "2026-01-17", TempMax: "4", TempMin: "-5", TextDay: "小雪"},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), "test-key", server.URL, server.URL)

	daily, err := c.GetForecast3d(context.Background(), "101010100")
	if err != nil {
		t.Fatalf("GetForecast3d がエラーを返した: %v", err)
	}
	if len(daily) != 3 {
		t.Fatalf("予報日数 = %d, want 3", len(daily))
	}
	if daily[0].TempMax != "8" {
		t.Errorf("初日のTempMax = %s, want 8", daily[0].TempMax)
	}
}

func TestClient_SearchCity_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/city/lookup" {
			t.Errorf("パス = %s, want /v2/city/lookup", r.URL.Path)
		}
		if r.URL.Query().Get("adm") != "北京" {
			t.Errorf("adm = %s, want 北京", r.URL.Query().Get("adm"))
		}
		resp := geoResponse{
			Code: "200",
			Location: []City{
				{ID: "101010100", Name: "北京", Adm1: "北京"},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), "test-key", server.URL, server.URL)

	cities, err := c.SearchCity(context.Background(), "北京", "北京")
	if err != nil {
		t.Fatalf("SearchCity がエラーを返した: %v", err)
	}
	if len(cities) != 1 {
		t.Fatalf("都市候補数 = %d, want 1", len(cities))
	}
	if cities[0].ID != "101010100" {
		t.Errorf("都市ID = %s, want 101010100", cities[0].ID)
	}
}

func TestClient_SearchCity_NotFound_ReturnsEmpty(t *testing.T) {
	// code 404 は「該当都市なし」であってエラーではない
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geoResponse{Code: "404"})
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), "test-key", server.URL, server.URL)

	cities, err := c.SearchCity(context.Background(), "存在しない都市", "")
	if err != nil {
		t.Fatalf("該当なしはエラーにならないべき: %v", err)
	}
	if len(cities) != 0 {
		t.Errorf("都市候補数 = %d, want 0", len(cities))
	}
}
