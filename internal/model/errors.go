// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, notification, weather, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeCityNotResolved     = "CITY_NOT_RESOLVED"
	ErrCodeCityNotFound        = "CITY_NOT_FOUND"
	ErrCodeEmailNotDetermined  = "EMAIL_NOT_DETERMINED"
	ErrCodeQuotaExhausted      = "QUOTA_EXHAUSTED"
	ErrCodeSendTooFrequent     = "SEND_TOO_FREQUENT"
	ErrCodeInvalidSchedule     = "INVALID_SCHEDULE"
	ErrCodeScheduleNotFound    = "SCHEDULE_NOT_FOUND"
	ErrCodeWeatherUnavailable  = "WEATHER_UNAVAILABLE"
)

// NewCityNotResolvedError は都市解決失敗のエラーを生成する。
func NewCityNotResolvedError() *APIError {
	return &APIError{
		Code:     ErrCodeCityNotResolved,
		Message:  "都市を特定できませんでした。",
		Category: "validation",
		Action:   "都市を収蔵するか、有効なcity_idを指定してください。",
	}
}

// NewCityNotFoundError は天気プロバイダで都市が見つからない場合のエラーを生成する。
func NewCityNotFoundError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeCityNotFound,
		Message:  fmt.Sprintf("天気プロバイダで都市が見つかりません: %s", name),
		Category: "weather",
		Action:   "都市名と地域名を確認してください。",
	}
}

// NewEmailNotDeterminedError は宛先メールアドレスを決定できない場合のエラーを生成する。
func NewEmailNotDeterminedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotDetermined,
		Message:  "宛先メールアドレスを決定できませんでした。",
		Category: "validation",
		Action:   "メールアドレスを指定するか、アカウントにメールアドレスを登録してください。",
	}
}

// NewQuotaExhaustedError は日次配額超過のエラーを生成する。
func NewQuotaExhaustedError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeQuotaExhausted,
		Message:  fmt.Sprintf("本日の送信配額を使い切りました（%d/%d）。", limit, limit),
		Category: "notification",
		Action:   "翌日になってから再度お試しください。",
	}
}

// NewSendTooFrequentError は最小送信間隔違反のエラーを生成する。
func NewSendTooFrequentError(intervalSeconds int) *APIError {
	return &APIError{
		Code:     ErrCodeSendTooFrequent,
		Message:  "送信間隔が短すぎます。",
		Category: "notification",
		Action:   fmt.Sprintf("%d秒待ってから再度お試しください。", intervalSeconds),
	}
}

// NewInvalidScheduleError は不正なスケジュール指定のエラーを生成する。
func NewInvalidScheduleError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSchedule,
		Message:  fmt.Sprintf("不正なスケジュール指定です: %s", reason),
		Category: "validation",
		Action:   "type（ONCE/DAILY）、time（HH:MM）、date（ONCEの場合）を確認してください。",
	}
}

// NewScheduleNotFoundError はスケジュールが見つからない場合のエラーを生成する。
func NewScheduleNotFoundError(scheduleID string) *APIError {
	return &APIError{
		Code:     ErrCodeScheduleNotFound,
		Message:  fmt.Sprintf("指定されたスケジュールが見つかりません: %s", scheduleID),
		Category: "notification",
		Action:   "スケジュールIDを確認してください。",
	}
}

// NewWeatherUnavailableError は天気プロバイダ呼び出し失敗のエラーを生成する。
func NewWeatherUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeWeatherUnavailable,
		Message:  fmt.Sprintf("天気情報の取得に失敗しました: %s", reason),
		Category: "weather",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
