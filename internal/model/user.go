// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// ユーザーの作成・認証は除外されたID層が担当し、本コアは参照のみ行う。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// 発行は除外されたID層が行い、API層は検証のみ行う。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Favorite はユーザーが収蔵した都市を表す。
// CityIDは天気プロバイダのロケーションID。
type Favorite struct {
	ID        string
	UserID    string
	CityID    string
	CityName  string
	Province  string
	CreatedAt time.Time
}
