// Package model はドメインモデルを定義する。
package model

// CityRef は送信対象都市の解決結果を表す。
// 「IDで直接指定された」か「収蔵から名前解決された」かを明示的に区別し、
// どちらの経路でも未保存のアドホックなオブジェクトを生成しない。
type CityRef struct {
	Source   CitySource
	CityID   string // ByIDの場合のみ設定済み
	CityName string
	Province string
}

// CitySource は都市解決の経路を表す。
type CitySource string

const (
	// CitySourceByID はリクエストでロケーションIDが直接指定された場合。
	CitySourceByID CitySource = "by_id"
	// CitySourceFavorite はユーザーの収蔵から名前解決された場合。
	CitySourceFavorite CitySource = "favorite"
	// CitySourceByName は収蔵に存在しない名前指定（プレビュー専用）の場合。
	CitySourceByName CitySource = "by_name"
)

// ResolvedByID はロケーションIDが確定しているかを返す。
func (c CityRef) ResolvedByID() bool {
	return c.Source == CitySourceByID && c.CityID != ""
}
