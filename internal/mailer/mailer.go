// Package mailer はSMTP経由のプレーンテキストメール送信機能を提供する。
package mailer

import (
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer はメール送信を抽象化する。
type Mailer interface {
	// Send は宛先1件にプレーンテキストメールを送信する。
	Send(to, subject, body string) error
}

// SMTPMailer はnet/smtpによるMailer実装。
// STARTTLS対応サーバーを前提とし、PLAIN認証で送信する。
type SMTPMailer struct {
	host     string
	port     int
	user     string
	password string
	fromName string

	// sendFunc はテスト用にsmtp.SendMailを差し替え可能にする
	sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer はSMTPMailer の新しいインスタンスを生成する。
func NewSMTPMailer(host string, port int, user, password, fromName string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		fromName: fromName,
		sendFunc: smtp.SendMail,
	}
}

// Send は宛先1件にプレーンテキストメールを送信する。
// 件名は非ASCII文字を含むためRFC 2047のBエンコーディングで符号化する。
func (m *SMTPMailer) Send(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.user, m.password, m.host)

	msg := buildMessage(m.fromName, m.user, to, subject, body)

	if err := m.sendFunc(addr, auth, m.user, []string{to}, msg); err != nil {
		return fmt.Errorf("メール送信に失敗しました: %w", err)
	}
	return nil
}

// buildMessage はヘッダーと本文からRFC 5322形式のメッセージを組み立てる。
func buildMessage(fromName, fromAddr, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s <%s>\r\n", encodeHeader(fromName), fromAddr))
	b.WriteString(fmt.Sprintf("To: %s\r\n", to))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", encodeHeader(subject)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("\r\n")
	b.WriteString(base64.StdEncoding.EncodeToString([]byte(body)))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// encodeHeader はヘッダー値をRFC 2047のBエンコーディングで符号化する。
// ASCIIのみの値はそのまま返す。
func encodeHeader(s string) string {
	for _, r := range s {
		if r > 127 {
			return fmt.Sprintf("=?UTF-8?B?%s?=", base64.StdEncoding.EncodeToString([]byte(s)))
		}
	}
	return s
}
