package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/weatherpost/internal/advice"
	"github.com/hitoshi/weatherpost/internal/mailer"
	"github.com/hitoshi/weatherpost/internal/model"
	"github.com/hitoshi/weatherpost/internal/repository"
	"github.com/hitoshi/weatherpost/internal/weather"
)

// SendResult は1回の送信要求の結果を表す。
// BlockedがnilでないときはSENTもFAILEDも記録されていない（試行前拒否）。
type SendResult struct {
	Sent      bool
	Blocked   *model.APIError
	Text      string
	Remaining int
}

// Service は天気メールの本文生成と送信実行を担う。
// 即時送信（API経由）とスケジュール送信（ワーカー経由）の両方がこのServiceを呼ぶ。
type Service struct {
	weather       weather.Provider
	advice        advice.Generator
	mailer        mailer.Mailer
	notifications repository.NotificationRepository
	guard         *Guard
	logger        *slog.Logger

	// nowFunc はテスト用に現在時刻を差し替え可能にする
	nowFunc func() time.Time
}

// NewService はService の新しいインスタンスを生成する。
// adviceGen はnil可（アドバイス生成を無効化する場合）。
func NewService(
	provider weather.Provider,
	adviceGen advice.Generator,
	m mailer.Mailer,
	notifications repository.NotificationRepository,
	guard *Guard,
	logger *slog.Logger,
) *Service {
	return &Service{
		weather:       provider,
		advice:        adviceGen,
		mailer:        m,
		notifications: notifications,
		guard:         guard,
		logger:        logger,
		nowFunc:       time.Now,
	}
}

// Preview は都市の天気本文を生成する。永続化も配額消費も行わない。
// 実況と3日予報は並行に取得し、片方の失敗は欠損フィールドとして吸収する。
// アドバイス生成の失敗は基礎天気文へのサイレントな縮退となり、エラーにはならない。
func (s *Service) Preview(ctx context.Context, cityID, cityName string) string {
	var (
		wg    sync.WaitGroup
		now   *weather.Now
		today *weather.Daily
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		n, err := s.weather.GetNow(ctx, cityID)
		if err != nil {
			s.logger.Warn("実況天気の取得に失敗しました",
				slog.String("city_id", cityID),
				slog.String("error", err.Error()),
			)
			return
		}
		now = n
	}()
	go func() {
		defer wg.Done()
		daily, err := s.weather.GetForecast3d(ctx, cityID)
		if err != nil {
			s.logger.Warn("予報の取得に失敗しました",
				slog.String("city_id", cityID),
				slog.String("error", err.Error()),
			)
			return
		}
		if len(daily) > 0 {
			today = &daily[0]
		}
	}()
	wg.Wait()

	baseText := Compose(cityName, now, today)

	// アドバイスは付加情報。生成失敗は基礎文のみ返す
	if s.advice != nil {
		adviceText, err := s.advice.Generate(ctx, baseText)
		if err == nil && adviceText != "" {
			return baseText + "\n\n服装アドバイス：\n" + adviceText
		}
		if err != nil {
			s.logger.Warn("アドバイス生成に失敗しました（基礎天気文のみで送信します）",
				slog.String("city_id", cityID),
				slog.String("error", err.Error()),
			)
		}
	}

	return baseText
}

// SendNow は宛先1件に天気メールを送信し、送信記録を追記する。
// 配額・間隔検査はGuard.Enabledがtrueの場合のみ行われ、違反時は
// 外部呼び出しも記録追記もせず拒否結果を返す。
func (s *Service) SendNow(ctx context.Context, userID, email, cityID, cityName string) (*SendResult, error) {
	quota := s.guard.DailyQuota
	if s.guard.Enabled {
		remaining, err := s.guard.RemainingQuota(ctx, userID)
		if err != nil {
			return nil, err
		}
		if remaining <= 0 {
			return &SendResult{
				Blocked:   model.NewQuotaExhaustedError(s.guard.DailyQuota),
				Remaining: 0,
			}, nil
		}
		ok, err := s.guard.CheckInterval(ctx, userID, email)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &SendResult{
				Blocked:   model.NewSendTooFrequentError(int(s.guard.MinInterval.Seconds())),
				Remaining: remaining,
			}, nil
		}
		quota = remaining
	}

	return s.deliver(ctx, userID, email, cityID, cityName, quota)
}

// SendScheduled はスケジュール到期分の送信を実行する。
// 配額・間隔検査は行わない。スケジュール送信はユーザー自身が予約した
// 定期配信であり、即時送信の乱用対策とは独立に必ず試行される。
func (s *Service) SendScheduled(ctx context.Context, userID, email, cityID, cityName string) (*SendResult, error) {
	return s.deliver(ctx, userID, email, cityID, cityName, s.guard.DailyQuota)
}

// deliver は本文生成・メール送信・送信記録の追記を行う。
func (s *Service) deliver(ctx context.Context, userID, email, cityID, cityName string, quota int) (*SendResult, error) {
	text := s.Preview(ctx, cityID, cityName)
	subject := "今日の天気｜" + cityName

	sendErr := s.mailer.Send(email, subject, text)
	sent := sendErr == nil

	record := &model.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Email:     email,
		CityID:    cityID,
		Subject:   subject,
		Content:   text,
		Status:    model.NotificationStatusSent,
		CreatedAt: s.nowFunc().UTC(),
	}
	if !sent {
		record.Status = model.NotificationStatusFailed
		record.ErrorMessage = sendErr.Error()
		s.logger.Error("メール送信に失敗しました",
			slog.String("user_id", userID),
			slog.String("city_id", cityID),
			slog.String("error", sendErr.Error()),
		)
	}

	if err := s.notifications.Create(ctx, record); err != nil {
		return nil, err
	}

	remaining := quota
	if sent {
		remaining = quota - 1
		if remaining < 0 {
			remaining = 0
		}
	}

	return &SendResult{
		Sent:      sent,
		Text:      text,
		Remaining: remaining,
	}, nil
}
