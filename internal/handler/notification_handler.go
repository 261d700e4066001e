package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/weatherpost/internal/middleware"
	"github.com/hitoshi/weatherpost/internal/model"
	"github.com/hitoshi/weatherpost/internal/notification"
)

// NotificationServiceInterface は通知ハンドラーが必要とするサービスインターフェース。
type NotificationServiceInterface interface {
	// SendNow は宛先1件に天気メールを送信する。
	SendNow(ctx context.Context, userID, email, cityID, cityName string) (*notification.SendResult, error)
	// Preview は永続化なしで本文のみ生成する。
	Preview(ctx context.Context, cityID, cityName string) string
}

// QuotaChecker は残り配額の照会インターフェース。
type QuotaChecker interface {
	RemainingQuota(ctx context.Context, userID string) (int, error)
}

// UserEmailFinder はユーザーの既定メールアドレスを取得するインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserEmailFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// NotificationHandler は天気メール送信のHTTPハンドラー。
type NotificationHandler struct {
	service  NotificationServiceInterface
	quota    QuotaChecker
	users    UserEmailFinder
	resolver *CityResolver
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationServiceInterface, quota QuotaChecker, users UserEmailFinder, resolver *CityResolver) *NotificationHandler {
	return &NotificationHandler{
		service:  service,
		quota:    quota,
		users:    users,
		resolver: resolver,
	}
}

// sendRequest は即時送信リクエストのボディ。
type sendRequest struct {
	Email    string `json:"email"`
	CityID   string `json:"city_id"`
	CityName string `json:"city_name"`
	Province string `json:"province"`
	DryRun   bool   `json:"dry_run"`
}

// sendResponse は即時送信・プレビューのAPIレスポンス。
type sendResponse struct {
	Message        string `json:"message"`
	Preview        string `json:"preview"`
	QuotaRemaining int    `json:"quota_remaining"`
}

// Send は天気メールの即時送信とプレビュー（dry_run）を処理する。
// POST /api/notifications/send
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	// 宛先未指定の場合はアカウントの既定メールアドレスを使う
	email := req.Email
	if email == "" {
		user, err := h.users.FindByID(r.Context(), userID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if user != nil {
			email = user.Email
		}
	}
	if email == "" && !req.DryRun {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewEmailNotDeterminedError())
		return
	}

	// プレビューは未収蔵都市も許可する
	ref, err := h.resolver.Resolve(r.Context(), userID, req.CityID, req.CityName, req.Province, !req.DryRun)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	locationID, err := h.resolver.LocationID(r.Context(), ref)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if req.DryRun {
		preview := h.service.Preview(r.Context(), locationID, ref.CityName)
		remaining, err := h.quota.RemainingQuota(r.Context(), userID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sendResponse{
			Message:        "プレビューを生成しました",
			Preview:        preview,
			QuotaRemaining: remaining,
		})
		return
	}

	result, err := h.service.SendNow(r.Context(), userID, email, locationID, ref.CityName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if result.Blocked != nil {
		writeAPIErrorResponse(w, http.StatusTooManyRequests, result.Blocked)
		return
	}
	if !result.Sent {
		writeAPIErrorResponse(w, http.StatusBadGateway, &model.APIError{
			Code:     "SEND_FAILED",
			Message:  "メールの送信に失敗しました。",
			Category: "notification",
			Action:   "しばらく待ってから再度お試しください。",
		})
		return
	}

	writeJSON(w, http.StatusOK, sendResponse{
		Message:        "送信しました",
		Preview:        result.Text,
		QuotaRemaining: result.Remaining,
	})
}

// --- ヘルパー関数 ---

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

func unauthorizedError() *model.APIError {
	return &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

func invalidRequestError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外は内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はエラーコードをHTTPステータスコードに対応付ける。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeCityNotResolved, model.ErrCodeEmailNotDetermined, model.ErrCodeInvalidSchedule:
		return http.StatusBadRequest
	case model.ErrCodeCityNotFound, model.ErrCodeScheduleNotFound:
		return http.StatusNotFound
	case model.ErrCodeQuotaExhausted, model.ErrCodeSendTooFrequent:
		return http.StatusTooManyRequests
	case model.ErrCodeWeatherUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
