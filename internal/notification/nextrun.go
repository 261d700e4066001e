package notification

import (
	"fmt"
	"time"

	"github.com/hitoshi/weatherpost/internal/model"
)

// retryDelay は送信失敗時にnext_run_atを先送りする時間。
const retryDelay = 5 * time.Minute

// NextRunFor はスケジュール種別と送信時刻から次回実行時刻（UTC）を算出する。
// timeHHMM は "HH:MM" 形式。date はONCEの場合に任意で指定する "YYYY-MM-DD"。
// 候補時刻がnow以前であればちょうど1日先送りする。
// 同じ (type, time, date, now) の組に対して決定的である。
func NextRunFor(schedType model.ScheduleType, timeHHMM, date string, now time.Time, loc *time.Location) (time.Time, error) {
	t, err := time.Parse("15:04", timeHHMM)
	if err != nil {
		return time.Time{}, fmt.Errorf("送信時刻の形式が不正です（HH:MM）: %q", timeHHMM)
	}
	hour, minute := t.Hour(), t.Minute()

	localNow := now.In(loc)

	var candidate time.Time
	if schedType == model.ScheduleTypeOnce && date != "" {
		d, err := time.ParseInLocation("2006-01-02", date, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("送信日の形式が不正です（YYYY-MM-DD）: %q", date)
		}
		candidate = time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc)
	} else {
		candidate = time.Date(localNow.Year(), localNow.Month(), localNow.Day(), hour, minute, 0, 0, loc)
	}

	if !candidate.After(localNow) {
		candidate = candidate.Add(24 * time.Hour)
	}

	return candidate.UTC(), nil
}
