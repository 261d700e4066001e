// Package model はドメインモデルを定義する。
package model

import "time"

// Notification は1回の送信試行の監査ログ（追記専用）を表す。
// 配額カウントの基礎データとしても使用される。
type Notification struct {
	ID           string
	UserID       string
	Email        string
	CityID       string
	Subject      string
	Content      string
	Status       NotificationStatus
	ErrorMessage string
	CreatedAt    time.Time
}

// NotificationStatus は送信試行の結果を表す。
type NotificationStatus string

const (
	// NotificationStatusSent は送信成功。
	NotificationStatusSent NotificationStatus = "SENT"
	// NotificationStatusFailed は送信失敗。
	NotificationStatusFailed NotificationStatus = "FAILED"
)
