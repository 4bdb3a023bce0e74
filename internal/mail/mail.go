// Package mail はメール送信を提供する。
package mail

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Dispatcher はメール送信のインターフェース。
// 送信失敗時の再試行は行わない。
type Dispatcher interface {
	Send(ctx context.Context, recipient, subject, htmlBody string) error
}

// SMTPConfig はSMTP送信の設定。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string // 空の場合はSMTP認証を行わない
	Password string
	From     string
	StartTLS bool
	SSL      bool
	Timeout  time.Duration
}

// SMTPDispatcher はSMTPサーバー経由でメールを送信する。
// 送信ごとに接続を確立し、送信後に切断する。
type SMTPDispatcher struct {
	cfg SMTPConfig
}

var _ Dispatcher = (*SMTPDispatcher)(nil)

// NewSMTPDispatcher はSMTPDispatcherを生成する。
func NewSMTPDispatcher(cfg SMTPConfig) *SMTPDispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPDispatcher{cfg: cfg}
}

// Send はHTML本文のメールを1通送信する。
func (d *SMTPDispatcher) Send(ctx context.Context, recipient, subject, htmlBody string) error {
	msg, err := d.newMessage(recipient, subject, htmlBody)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(d.cfg.Host, d.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

func (d *SMTPDispatcher) newMessage(recipient, subject, htmlBody string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(d.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlBody)
	return msg, nil
}

func (d *SMTPDispatcher) clientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(d.cfg.Port),
		gomail.WithTimeout(d.cfg.Timeout),
	}

	switch {
	case d.cfg.SSL:
		opts = append(opts, gomail.WithSSL())
	case d.cfg.StartTLS:
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	default:
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	}

	if d.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(d.cfg.Username),
			gomail.WithPassword(d.cfg.Password),
		)
	}
	return opts
}
