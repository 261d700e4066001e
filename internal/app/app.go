package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/weatherpost/internal/advice"
	"github.com/hitoshi/weatherpost/internal/config"
	"github.com/hitoshi/weatherpost/internal/database"
	"github.com/hitoshi/weatherpost/internal/handler"
	"github.com/hitoshi/weatherpost/internal/logger"
	"github.com/hitoshi/weatherpost/internal/mailer"
	"github.com/hitoshi/weatherpost/internal/metrics"
	"github.com/hitoshi/weatherpost/internal/middleware"
	"github.com/hitoshi/weatherpost/internal/notification"
	"github.com/hitoshi/weatherpost/internal/repository"
	"github.com/hitoshi/weatherpost/internal/weather"
	"github.com/hitoshi/weatherpost/internal/worker/cleanup"
	"github.com/hitoshi/weatherpost/internal/worker/dispatch"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// buildNotificationService は天気プロバイダ・アドバイス生成・SMTP送信・
// 配額ガードをワイヤリングした通知サービスを構築する。
// serveとworkerの両モードが同じ構成の送信経路を共有する。
func buildNotificationService(cfg *config.Config, notificationRepo repository.NotificationRepository) (*notification.Service, weather.Provider, *notification.Guard) {
	weatherClient := weather.NewClient(
		&http.Client{Timeout: cfg.WeatherTimeout},
		slog.Default(),
		cfg.QWeatherAPIKey, cfg.QWeatherBase, cfg.QWeatherGeo,
	)
	provider := weather.NewCachedProvider(weatherClient, cfg.WeatherCacheTTL)

	// アドバイス生成は任意機能。キー未設定なら基礎天気文のみになる
	var adviceGen advice.Generator
	if cfg.GeminiAPIKey != "" {
		adviceGen = advice.NewClient(
			&http.Client{Timeout: 15 * time.Second},
			slog.Default(),
			cfg.GeminiAPIKey, cfg.GeminiBase, cfg.GeminiModel,
		)
	}

	smtpMailer := mailer.NewSMTPMailer(
		cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFromName,
	)

	guard := notification.NewGuard(
		notificationRepo,
		cfg.RateLimitEnabled, cfg.DailyQuota, cfg.MinSendInterval,
		cfg.LocalZone(),
	)

	svc := notification.NewService(
		provider, adviceGen, smtpMailer, notificationRepo, guard, slog.Default(),
	)
	return svc, provider, guard
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	favoriteRepo := repository.NewPostgresFavoriteRepo(db)
	scheduleRepo := repository.NewPostgresScheduleRepo(db)
	notificationRepo := repository.NewPostgresNotificationRepo(db)

	// 3. 通知サービスと配額ガードの初期化
	svc, provider, guard := buildNotificationService(cfg, notificationRepo)

	// 4. 都市解決の初期化
	resolver := handler.NewCityResolver(favoriteRepo, provider)

	// 5. ルーターの構築
	rateLimiterCfg := middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		SendRate:        rate.Limit(float64(cfg.RateLimitSend) / 60.0),
		SendBurst:       cfg.RateLimitSend,
		CleanupInterval: 5 * time.Minute,
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		NotificationService: svc,
		QuotaChecker:        guard,

		ScheduleRepo: scheduleRepo,

		UserFinder:   userRepo,
		CityResolver: resolver,

		LocalZone: cfg.LocalZone(),

		DB: db,
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker は配信ワーカーモードで起動する。
// DB接続を開き、到期スケジュールのディスパッチャと保持期間クリーンアップジョブ、
// メトリクスエンドポイントを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	scheduleRepo := repository.NewPostgresScheduleRepo(db)
	notificationRepo := repository.NewPostgresNotificationRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 送信経路の初期化（API側と同じ構成を共有する）
	svc, _, _ := buildNotificationService(cfg, notificationRepo)

	// 5. ディスパッチャの初期化
	dispatcher := dispatch.NewDispatcher(
		scheduleRepo, svc, collector, slog.Default(), cfg.DispatchBatchSize,
	)

	// 6. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(
		notificationRepo, sessionRepo, collector, slog.Default(),
	)
	cleanupJob.RetentionDays = cfg.NotificationRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// メトリクスエンドポイントをバックグラウンドで起動
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		slog.Info("metrics server starting",
			slog.String("addr", metricsServer.Addr),
		)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
		}
	}()

	slog.Info("worker starting",
		slog.Duration("dispatch_interval", cfg.DispatchInterval),
		slog.Int("batch_size", cfg.DispatchBatchSize),
		slog.Int("retention_days", cfg.NotificationRetentionDays),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}
		cleanupJob.Start(ctx, 24*time.Hour)
	}()

	// ディスパッチャをメインgoroutineで実行（ブロッキング）
	dispatcher.Start(ctx, cfg.DispatchInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
