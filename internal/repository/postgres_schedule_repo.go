package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/weatherpost/internal/model"
)

// PostgresScheduleRepo はPostgreSQLを使用したスケジュールリポジトリ。
type PostgresScheduleRepo struct {
	db *sql.DB
}

// NewPostgresScheduleRepo はPostgresScheduleRepoを生成する。
func NewPostgresScheduleRepo(db *sql.DB) *PostgresScheduleRepo {
	return &PostgresScheduleRepo{db: db}
}

const scheduleColumns = `id, user_id, email, city_id, city_name, province,
	        type, time_hhmm, date, timezone, next_run_at, status,
	        last_run_at, created_at, updated_at`

// Create はスケジュールを作成する。
func (r *PostgresScheduleRepo) Create(ctx context.Context, schedule *model.Schedule) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_schedules (id, user_id, email, city_id, city_name, province,
		                              type, time_hhmm, date, timezone, next_run_at, status,
		                              last_run_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		schedule.ID, schedule.UserID, schedule.Email, schedule.CityID,
		nullString(schedule.CityName), nullString(schedule.Province),
		schedule.Type, schedule.TimeHHMM, nullString(schedule.Date), schedule.Timezone,
		schedule.NextRunAt, schedule.Status, nullTime(schedule.LastRunAt),
		schedule.CreatedAt, schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("スケジュールの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのスケジュールを取得する。見つからない場合はnilを返す。
func (r *PostgresScheduleRepo) FindByID(ctx context.Context, id string) (*model.Schedule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM email_schedules WHERE id = $1`,
		id,
	)
	schedule, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("スケジュールの取得に失敗しました: %w", err)
	}
	return schedule, nil
}

// ListByUserID はユーザーのスケジュール一覧を作成日時降順で返す。
func (r *PostgresScheduleRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Schedule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+scheduleColumns+`
		 FROM email_schedules
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("スケジュール一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectSchedules(rows)
}

// listDueQuery は行ロックを取らない。ロックを保持するトランザクションが
// ないため（読み取り後すぐ解放される）、排他はワーカー単一インスタンス
// 運用を前提とする。
const listDueQuery = `SELECT ` + scheduleColumns + `
	 FROM email_schedules
	 WHERE status = 'ACTIVE'
	   AND next_run_at <= $1
	 ORDER BY next_run_at ASC
	 LIMIT $2`

// ListDue は処理対象のスケジュールを取得する。
// status = 'ACTIVE' かつ next_run_at <= now のスケジュールを
// 到期順（next_run_at昇順）でlimit件まで取得する。
func (r *PostgresScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, listDueQuery, now, limit)
	if err != nil {
		return nil, fmt.Errorf("到期スケジュールの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectSchedules(rows)
}

// UpdateRunState はワーカーによる処理結果（status、next_run_at、last_run_at）を永続化する。
func (r *PostgresScheduleRepo) UpdateRunState(ctx context.Context, schedule *model.Schedule) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE email_schedules SET
		    status = $2,
		    next_run_at = $3,
		    last_run_at = $4,
		    updated_at = now()
		 WHERE id = $1`,
		schedule.ID,
		schedule.Status,
		schedule.NextRunAt,
		nullTime(schedule.LastRunAt),
	)
	if err != nil {
		return fmt.Errorf("スケジュール処理結果の更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateNextRun はnext_run_atのみを更新する。
func (r *PostgresScheduleRepo) UpdateNextRun(ctx context.Context, id string, nextRunAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE email_schedules SET next_run_at = $2, updated_at = now() WHERE id = $1`,
		id, nextRunAt,
	)
	if err != nil {
		return fmt.Errorf("next_run_atの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateStatus は指定IDのスケジュールの状態を更新する。
func (r *PostgresScheduleRepo) UpdateStatus(ctx context.Context, id string, status model.ScheduleStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE email_schedules SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("スケジュール状態の更新に失敗しました: %w", err)
	}
	return nil
}

// rowScanner は*sql.Rowと*sql.RowsのScanを抽象化する。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanSchedule は1行分のスケジュールを読み取る。
func scanSchedule(row rowScanner) (*model.Schedule, error) {
	schedule := &model.Schedule{}
	var cityName, province, date sql.NullString
	var lastRunAt sql.NullTime

	if err := row.Scan(
		&schedule.ID, &schedule.UserID, &schedule.Email, &schedule.CityID,
		&cityName, &province,
		&schedule.Type, &schedule.TimeHHMM, &date, &schedule.Timezone,
		&schedule.NextRunAt, &schedule.Status,
		&lastRunAt, &schedule.CreatedAt, &schedule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	schedule.CityName = nullStringValue(cityName)
	schedule.Province = nullStringValue(province)
	schedule.Date = nullStringValue(date)
	if lastRunAt.Valid {
		t := lastRunAt.Time
		schedule.LastRunAt = &t
	}

	return schedule, nil
}

// collectSchedules は結果セット全体をスケジュールのスライスに読み取る。
func collectSchedules(rows *sql.Rows) ([]*model.Schedule, error) {
	var schedules []*model.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("スケジュールの読み取りに失敗しました: %w", err)
		}
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("スケジュールの走査に失敗しました: %w", err)
	}
	return schedules, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullTime は*time.Timeをsql.NullTimeに変換する。
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// compile-time interface check
var _ ScheduleRepository = (*PostgresScheduleRepo)(nil)
