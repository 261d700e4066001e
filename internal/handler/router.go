package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/weatherpost/internal/middleware"
	"github.com/hitoshi/weatherpost/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 通知
	NotificationService NotificationServiceInterface
	QuotaChecker        QuotaChecker

	// スケジュール
	ScheduleRepo repository.ScheduleRepository

	// 都市解決
	UserFinder   UserEmailFinder
	CityResolver *CityResolver

	// スケジュール計算用のローカルタイムゾーン
	LocalZone *time.Location

	// ヘルスチェック
	DB Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → CORSMiddleware
//	→ SessionMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// ヘルスチェック（/health）は認証チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// panic回復とアクセスログを最上位に適用（全ルートに効く）
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	notificationHandler := NewNotificationHandler(deps.NotificationService, deps.QuotaChecker, deps.UserFinder, deps.CityResolver)
	scheduleHandler := NewScheduleHandler(deps.ScheduleRepo, deps.UserFinder, deps.CityResolver, deps.LocalZone)
	healthHandler := NewHealthHandler(deps.DB)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler.Health)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/notifications", func(r chi.Router) {
			// POST /api/notifications/send - 即時送信（送信専用レート制限を追加）
			r.With(deps.RateLimiter.SendMiddleware()).Post("/send", notificationHandler.Send)

			r.Route("/schedules", func(r chi.Router) {
				r.Post("/", scheduleHandler.Create)
				r.Get("/", scheduleHandler.List)
				r.Delete("/{id}", scheduleHandler.Cancel)
			})
		})
	})

	return r
}
