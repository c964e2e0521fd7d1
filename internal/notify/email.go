// Package notify 通知发送
// 外部协作方：只要求失败以错误形式上浮，供熔断器计数；
// 模板渲染与重试策略不在本服务职责内
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
)

// Message 一条通知
type Message struct {
	Recipients []string
	Subject    string
	Body       string
}

// Sender 通知发送接口
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig SMTP 配置
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// emailSender SMTP 邮件发送实现
// 每次发送单独拨号，授权变更通知量低，不值得维护长连接
type emailSender struct {
	config SMTPConfig
}

// NewEmailSender 创建邮件发送器
func NewEmailSender(config SMTPConfig) Sender {
	return &emailSender{config: config}
}

func (s *emailSender) Send(ctx context.Context, msg Message) error {
	if len(msg.Recipients) == 0 {
		return errors.New("通知没有收件人")
	}

	m := mail.NewMsg()
	if err := m.From(s.config.From); err != nil {
		return fmt.Errorf("设置发件人失败: %w", err)
	}
	if err := m.To(msg.Recipients...); err != nil {
		return fmt.Errorf("设置收件人失败: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	opts := []mail.Option{mail.WithPort(s.config.Port)}
	if s.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.config.Username),
			mail.WithPassword(s.config.Password),
		)
	}

	client, err := mail.NewClient(s.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("创建 SMTP 客户端失败: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	return nil
}

// NopSender 空实现，未配置 SMTP 时使用
type NopSender struct{}

// Send 丢弃通知
func (NopSender) Send(ctx context.Context, msg Message) error {
	return nil
}
