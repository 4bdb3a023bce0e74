package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"
)

// ResetSubject はパスワードリセットメールの件名。
const ResetSubject = "Password Reset Request"

var resetTemplate = template.Must(template.New("reset").Parse(`<p>Hi {{.Username}},</p>
<p>You requested a password reset for your {{.AppName}} account. Click the link below to reset your password:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>This link will expire in {{.ExpiresInMinutes}} minutes.</p>
`))

// ResetEmail はパスワードリセットメールの差し込み内容。
type ResetEmail struct {
	AppName   string
	ClientURL string
	Username  string
	Token     string
	ExpiresIn time.Duration
}

// ResetLink はフロントエンドのリセット画面へのリンクを返す。
func ResetLink(clientURL, token string) string {
	return strings.TrimRight(clientURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

// Render はHTML本文を生成する。
func (e ResetEmail) Render() (string, error) {
	var buf bytes.Buffer
	err := resetTemplate.Execute(&buf, struct {
		AppName          string
		Username         string
		Link             string
		ExpiresInMinutes int
	}{
		AppName:          e.AppName,
		Username:         e.Username,
		Link:             ResetLink(e.ClientURL, e.Token),
		ExpiresInMinutes: int(e.ExpiresIn / time.Minute),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render reset email: %w", err)
	}
	return buf.String(), nil
}
