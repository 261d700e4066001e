// Package weather はQWeather互換APIから天気情報を取得する機能を提供する。
// 実況・3日予報・都市検索のクライアントと、短期TTLキャッシュを含む。
package weather

// Now は実況天気の観測値。欠損フィールドは空文字列で表す。
type Now struct {
	ObsTime   string `json:"obsTime"`
	Temp      string `json:"temp"`
	FeelsLike string `json:"feelsLike"`
	Text      string `json:"text"`
	WindDir   string `json:"windDir"`
	WindScale string `json:"windScale"`
	Humidity  string `json:"humidity"`
}

// Daily は1日分の予報値。
type Daily struct {
	FxDate  string `json:"fxDate"`
	TempMax string `json:"tempMax"`
	TempMin string `json:"tempMin"`
	TextDay string `json:"textDay"`
}

// City はGeo APIの都市検索結果。
type City struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Adm1   string `json:"adm1"`
	Adm2   string `json:"adm2"`
}

// nowResponse は実況天気APIのレスポンス形式。
type nowResponse struct {
	Code string `json:"code"`
	Now  Now    `json:"now"`
}

// forecastResponse は予報APIのレスポンス形式。
type forecastResponse struct {
	Code  string  `json:"code"`
	Daily []Daily `json:"daily"`
}

// geoResponse は都市検索APIのレスポンス形式。
type geoResponse struct {
	Code     string `json:"code"`
	Location []City `json:"location"`
}
