// Package advice は天気情報からLLMによる生活アドバイス文を生成する機能を提供する。
// アドバイスは付加情報であり、生成失敗は呼び出し元で無視できるようエラーとして返す。
package advice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Generator はアドバイス文の生成元を抽象化する。
type Generator interface {
	// Generate は天気の説明文からアドバイス文を生成する。
	Generate(ctx context.Context, weatherSummary string) (string, error)
}

// Client はGemini互換のgenerateContent APIクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	baseURL    string // テスト用に差し替え可能
	model      string
}

var _ Generator = (*Client)(nil)

// NewClient はClient の新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiKey, baseURL, model string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate は天気の説明文から1〜2文の生活アドバイスを生成する。
// APIキー未設定の場合は呼ばずにエラーを返す。
func (c *Client) Generate(ctx context.Context, weatherSummary string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("アドバイス生成用のAPIキーが設定されていません")
	}

	prompt := fmt.Sprintf(
		"以下の天気情報をもとに、服装や外出に関する実用的なアドバイスを1〜2文で簡潔に書いてください。\n\n%s",
		weatherSummary,
	)

	reqBody, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("アドバイスAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("アドバイスAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return "", fmt.Errorf("アドバイスAPIがステータス %d を返しました", resp.StatusCode)
	}

	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("アドバイスAPIのレスポンスに候補が含まれていません")
	}

	text := strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", fmt.Errorf("アドバイスAPIが空の文を返しました")
	}

	return text, nil
}
