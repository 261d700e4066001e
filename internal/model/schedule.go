// Package model はドメインモデルを定義する。
package model

import "time"

// Schedule は天気メールの定期/一回限りの送信指示を表す。
// next_run_atは常にUTCで保持する（ローカル時刻+タイムゾーンから計算される）。
type Schedule struct {
	ID        string
	UserID    string
	Email     string
	CityID    string // 天気プロバイダが理解するロケーションID
	CityName  string
	Province  string
	Type      ScheduleType
	TimeHHMM  string // "HH:MM"
	Date      string // "YYYY-MM-DD"、ONCEの場合のみ
	Timezone  string // IANA名。表示用に保持する（計算は固定オフセット基準）
	NextRunAt time.Time
	Status    ScheduleStatus
	LastRunAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduleType はスケジュールの繰り返し種別を表す。
type ScheduleType string

const (
	// ScheduleTypeOnce は一回限りの送信。
	ScheduleTypeOnce ScheduleType = "ONCE"
	// ScheduleTypeDaily は毎日の送信。
	ScheduleTypeDaily ScheduleType = "DAILY"
)

// ScheduleStatus はスケジュールの状態を表す。
// ACTIVE以外は終端状態であり、ワーカーは処理しない。
type ScheduleStatus string

const (
	// ScheduleStatusActive は処理対象の状態。
	ScheduleStatusActive ScheduleStatus = "ACTIVE"
	// ScheduleStatusCancelled はAPI層によるキャンセル済み状態。
	ScheduleStatusCancelled ScheduleStatus = "CANCELLED"
	// ScheduleStatusSent はONCEスケジュールの送信完了状態。
	ScheduleStatusSent ScheduleStatus = "SENT"
)

// ValidScheduleType は繰り返し種別が妥当かを返す。
func ValidScheduleType(t ScheduleType) bool {
	return t == ScheduleTypeOnce || t == ScheduleTypeDaily
}
