package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/sxedu-cn/perm-backend/internal/notify"
	"github.com/sxedu-cn/perm-backend/pkg/breaker"
)

// fakeSender 记录发送并可注入失败
type fakeSender struct {
	sent []notify.Message
	err  error
}

func (s *fakeSender) Send(ctx context.Context, msg notify.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestNotifyGrantChanged(t *testing.T) {
	sender := &fakeSender{}
	svc := NewNotificationService(sender, breaker.NewManager(breaker.Config{}, nil), nil)

	svc.NotifyGrantChanged(context.Background(), []string{"admin@example.com"}, "授权变更", "内容")
	assert.Len(t, sender.sent, 1)
	assert.Equal(t, "授权变更", sender.sent[0].Subject)
}

func TestNotifyGrantChangedNoRecipients(t *testing.T) {
	sender := &fakeSender{}
	svc := NewNotificationService(sender, breaker.NewManager(breaker.Config{}, nil), nil)

	svc.NotifyGrantChanged(context.Background(), nil, "授权变更", "内容")
	assert.Empty(t, sender.sent)
}

// 发送持续失败触发熔断后通知被静默丢弃，调用方完全不受影响
func TestNotifyGrantChangedCircuitFallback(t *testing.T) {
	sender := &fakeSender{err: errors.New("SMTP 不可达")}
	svc := NewNotificationService(sender, breaker.NewManager(breaker.Config{
		FailureThreshold: 2,
		VolumeThreshold:  100,
	}, nil), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		svc.NotifyGrantChanged(ctx, []string{"admin@example.com"}, "授权变更", "内容")
	}
	// 不 panic、不返回错误即为符合约定
	assert.Empty(t, sender.sent)
}
