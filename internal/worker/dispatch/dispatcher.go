// Package dispatch はスケジュールされた天気メールのバックグラウンド送信処理を提供する。
// 一定間隔で到期スケジュールをスキャンし、送信と状態遷移を実行する。
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/weatherpost/internal/metrics"
	"github.com/hitoshi/weatherpost/internal/model"
	"github.com/hitoshi/weatherpost/internal/notification"
	"github.com/hitoshi/weatherpost/internal/repository"
)

// retryDelay は処理失敗時にnext_run_atを先送りする時間。
const retryDelay = 5 * time.Minute

// NotificationSender は送信実行のインターフェース。
type NotificationSender interface {
	// SendScheduled は宛先1件に天気メールを送信し、結果を返す。
	// 配額・間隔検査を行わない経路であること。
	SendScheduled(ctx context.Context, userID, email, cityID, cityName string) (*notification.SendResult, error)
}

// Dispatcher は到期スケジュールのスキャンと送信のディスパッチを行う。
// スケジュールの状態遷移はすべてこのワーカーのティック中にのみ発生する。
// 外部送信先への負荷を抑えるため、バッチ内の処理は逐次実行とする。
type Dispatcher struct {
	scheduleRepo repository.ScheduleRepository
	sender       NotificationSender
	collector    metrics.MetricsCollector
	logger       *slog.Logger
	batchSize    int

	// nowFunc はテスト用に現在時刻を差し替え可能にする
	nowFunc func() time.Time
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// batchSizeが0以下の場合はデフォルト値20を使用する。
func NewDispatcher(
	scheduleRepo repository.ScheduleRepository,
	sender NotificationSender,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	batchSize int,
) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Dispatcher{
		scheduleRepo: scheduleRepo,
		sender:       sender,
		collector:    collector,
		logger:       logger,
		batchSize:    batchSize,
		nowFunc:      time.Now,
	}
}

// Start は指定間隔のティッカーでディスパッチャを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
// ティック単位のエラーはログに記録してループを継続する。
func (d *Dispatcher) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("配信ディスパッチャを開始しました",
		slog.Duration("interval", interval),
		slog.Int("batch_size", d.batchSize),
	)

	// 起動直後に1回実行
	if err := d.RunOnce(ctx); err != nil {
		d.logger.Error("配信サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("配信ディスパッチャを停止しました")
			return
		case <-ticker.C:
			if err := d.RunOnce(ctx); err != nil {
				d.logger.Error("配信サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は到期スケジュールを1バッチ取得し、逐次処理する。
// バッチはnext_run_at昇順（先に到期したものが先）で取得される。
// 1件の失敗は次のスケジュールの処理を妨げない。
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	start := time.Now()
	utcNow := d.nowFunc().UTC()

	schedules, err := d.scheduleRepo.ListDue(ctx, utcNow, d.batchSize)
	if err != nil {
		return err
	}

	if d.collector != nil {
		d.collector.RecordDueBatchSize(len(schedules))
	}

	if len(schedules) == 0 {
		return nil
	}

	d.logger.Info("配信サイクルを開始します",
		slog.Int("schedule_count", len(schedules)),
	)

	for _, sch := range schedules {
		d.processOne(ctx, sch, utcNow)
	}

	duration := time.Since(start)
	if d.collector != nil {
		d.collector.RecordTickDuration(duration)
	}
	d.logger.Info("配信サイクルが完了しました",
		slog.Int("schedule_count", len(schedules)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// processOne は1件のスケジュールを送信・状態遷移・永続化する。
// 途中でエラーが発生した場合は防御的にnext_run_atを5分先送りして
// 次のスケジュールの処理に進む。
func (d *Dispatcher) processOne(ctx context.Context, sch *model.Schedule, utcNow time.Time) {
	result, err := d.sender.SendScheduled(ctx, sch.UserID, sch.Email, sch.CityID, sch.CityName)
	if err != nil {
		d.deferRetry(ctx, sch, utcNow, err)
		return
	}

	ok := result.Sent
	d.record(result)

	sch.LastRunAt = &utcNow

	if sch.Type == model.ScheduleTypeDaily {
		// DAILYは成否にかかわらずちょうど1日進める。失敗した日はスキップされる
		base := sch.NextRunAt
		if base.IsZero() {
			base = utcNow
		}
		sch.NextRunAt = base.Add(24 * time.Hour)
	} else {
		if ok {
			sch.Status = model.ScheduleStatusSent
		} else {
			sch.NextRunAt = utcNow.Add(retryDelay)
		}
	}

	if err := d.scheduleRepo.UpdateRunState(ctx, sch); err != nil {
		d.deferRetry(ctx, sch, utcNow, err)
		return
	}

	d.logger.Info("スケジュールを処理しました",
		slog.String("schedule_id", sch.ID),
		slog.String("type", string(sch.Type)),
		slog.Bool("sent", ok),
		slog.Time("next_run_at", sch.NextRunAt),
	)
}

// deferRetry は処理失敗したスケジュールのnext_run_atを防御的に先送りする。
// この更新自体の失敗もログに記録するだけでバッチは継続する。
func (d *Dispatcher) deferRetry(ctx context.Context, sch *model.Schedule, utcNow time.Time, cause error) {
	d.logger.Error("スケジュールの処理に失敗しました",
		slog.String("schedule_id", sch.ID),
		slog.String("error", cause.Error()),
	)
	if err := d.scheduleRepo.UpdateNextRun(ctx, sch.ID, utcNow.Add(retryDelay)); err != nil {
		d.logger.Error("next_run_atの先送りに失敗しました",
			slog.String("schedule_id", sch.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (d *Dispatcher) record(result *notification.SendResult) {
	if d.collector == nil {
		return
	}
	if result.Sent {
		d.collector.RecordDeliverySent()
	} else {
		d.collector.RecordDeliveryFailed()
	}
}
