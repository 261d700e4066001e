// Package notification は天気メールの本文生成・配額管理・送信実行を提供する。
// 即時送信とスケジュール送信の両方がこのパッケージのServiceを経由する。
package notification

import (
	"fmt"
	"strings"

	"github.com/hitoshi/weatherpost/internal/weather"
)

// Compose は実況天気と当日予報から1段落のメール本文を組み立てる。
// 欠損フィールドは文から省略する。最高・最低気温の節は両方揃った場合だけ付く。
// 純粋関数であり、同じ入力に対して常に同じ文字列を返す。
func Compose(cityName string, now *weather.Now, today *weather.Daily) string {
	var obs, text, temp, feels, windDir, windScale, hum string
	if now != nil {
		obs = normalizeObsTime(now.ObsTime)
		text = now.Text
		temp = now.Temp
		feels = now.FeelsLike
		windDir = now.WindDir
		windScale = now.WindScale
		hum = now.Humidity
	}

	var maxT, minT string
	if today != nil {
		maxT = today.TempMax
		minT = today.TempMin
	}

	base := fmt.Sprintf(
		"現在 %s、%s は%sです。気温 %s°C、体感 %s°C、%s%s級、湿度 %s%%",
		obs, cityName, text, temp, feels, windDir, windScale, hum,
	)
	if maxT != "" && minT != "" {
		base += fmt.Sprintf("。本日の最高 %s°C、最低 %s°C", maxT, minT)
	}
	return base
}

// normalizeObsTime は観測時刻文字列を表示用に正規化する。
// 日付と時刻の区切り 'T' を空白に置き換え、タイムゾーン接尾辞
// （'Z' または '±HH:MM'）を取り除く。
func normalizeObsTime(obsTime string) string {
	s := strings.Replace(obsTime, "T", " ", 1)
	if strings.HasSuffix(s, "Z") {
		return s[:len(s)-1]
	}
	if len(s) >= 6 {
		if c := s[len(s)-6]; (c == '+' || c == '-') && s[len(s)-3] == ':' {
			return s[:len(s)-6]
		}
	}
	return s
}
