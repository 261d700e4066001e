package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// Provider は天気情報の取得元を抽象化する。
type Provider interface {
	// GetNow は都市IDの実況天気を取得する。
	GetNow(ctx context.Context, cityID string) (*Now, error)
	// GetForecast3d は都市IDの3日予報を取得する。
	GetForecast3d(ctx context.Context, cityID string) ([]Daily, error)
	// SearchCity は都市名（任意で省名）から都市候補を検索する。
	SearchCity(ctx context.Context, name, adm string) ([]City, error)
}

// Client はQWeather互換APIのクライアント。
// 一時的なネットワークエラーに対して1回だけ再試行する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	weatherURL string // 実況・予報API のベースURL（テスト用に差し替え可能）
	geoURL     string // 都市検索API のベースURL
}

var _ Provider = (*Client)(nil)

// NewClient はClient の新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiKey, weatherURL, geoURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		weatherURL: weatherURL,
		geoURL:     geoURL,
	}
}

// GetNow は都市IDの実況天気を取得する。
func (c *Client) GetNow(ctx context.Context, cityID string) (*Now, error) {
	body, err := c.get(ctx, c.weatherURL+"/v7/weather/now", url.Values{"location": {cityID}})
	if err != nil {
		return nil, err
	}

	var result nowResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("実況天気レスポンスのパースに失敗しました: %w", err)
	}
	if result.Code != "200" {
		return nil, fmt.Errorf("天気APIがエラーコード %s を返しました", result.Code)
	}

	return &result.Now, nil
}

// GetForecast3d は都市IDの3日予報を取得する。
func (c *Client) GetForecast3d(ctx context.Context, cityID string) ([]Daily, error) {
	body, err := c.get(ctx, c.weatherURL+"/v7/weather/3d", url.Values{"location": {cityID}})
	if err != nil {
		return nil, err
	}

	var result forecastResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("予報レスポンスのパースに失敗しました: %w", err)
	}
	if result.Code != "200" {
		return nil, fmt.Errorf("天気APIがエラーコード %s を返しました", result.Code)
	}

	return result.Daily, nil
}

// SearchCity は都市名から都市候補を検索する。
// adm が非空の場合は省・州名で絞り込む。該当なしは空スライスを返す。
func (c *Client) SearchCity(ctx context.Context, name, adm string) ([]City, error) {
	q := url.Values{"location": {name}}
	if adm != "" {
		q.Set("adm", adm)
	}

	body, err := c.get(ctx, c.geoURL+"/v2/city/lookup", q)
	if err != nil {
		return nil, err
	}

	var result geoResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("都市検索レスポンスのパースに失敗しました: %w", err)
	}
	// 404は「該当都市なし」を意味するので空で返す
	if result.Code == "404" {
		return []City{}, nil
	}
	if result.Code != "200" {
		return nil, fmt.Errorf("都市検索APIがエラーコード %s を返しました", result.Code)
	}

	return result.Location, nil
}

// get はクエリ付きGETリクエストを実行し、レスポンスボディを返す。
// ネットワークエラーの場合のみ1回再試行する。HTTPエラーステータスは再試行しない。
func (c *Client) get(ctx context.Context, endpoint string, q url.Values) ([]byte, error) {
	q.Set("key", c.apiKey)

	reqURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	reqURL.RawQuery = q.Encode()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("天気APIの呼び出しに失敗しました",
				slog.String("endpoint", endpoint),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", readErr)
		}

		if resp.StatusCode != http.StatusOK {
			c.logger.Error("天気APIがエラーステータスを返しました",
				slog.String("endpoint", endpoint),
				slog.Int("http_status", resp.StatusCode),
			)
			return nil, fmt.Errorf("天気APIがステータス %d を返しました", resp.StatusCode)
		}

		return body, nil
	}

	return nil, fmt.Errorf("天気APIへの接続に失敗しました: %w", lastErr)
}
