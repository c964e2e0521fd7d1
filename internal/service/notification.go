// Package service 业务逻辑层
package service

import (
	"context"

	"github.com/sxedu-cn/perm-backend/internal/metrics"
	"github.com/sxedu-cn/perm-backend/internal/notify"
	"github.com/sxedu-cn/perm-backend/pkg/breaker"
	"go.uber.org/zap"
)

// NotificationService 通知服务接口
// 所有发送都经过熔断器；通知失败或被短路只记录，
// 绝不让授权操作本身失败
type NotificationService interface {
	NotifyGrantChanged(ctx context.Context, recipients []string, subject, body string)
}

type notificationService struct {
	sender   notify.Sender
	circuits *breaker.Manager
	logger   *zap.Logger
}

// NewNotificationService 创建通知服务
func NewNotificationService(sender notify.Sender, circuits *breaker.Manager, logger *zap.Logger) NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &notificationService{
		sender:   sender,
		circuits: circuits,
		logger:   logger,
	}
}

func (s *notificationService) NotifyGrantChanged(ctx context.Context, recipients []string, subject, body string) {
	if len(recipients) == 0 {
		return
	}

	msg := notify.Message{Recipients: recipients, Subject: subject, Body: body}
	err := s.circuits.Execute(ctx, CircuitEmailSender,
		func(ctx context.Context) error {
			return s.sender.Send(ctx, msg)
		},
		// 熔断降级：丢弃通知并记录，授权操作不受影响
		func(ctx context.Context) error {
			metrics.BreakerRejections.WithLabelValues(CircuitEmailSender).Inc()
			s.logger.Warn("邮件通知被熔断器短路，通知丢弃",
				zap.String("subject", subject),
				zap.Int("recipients", len(recipients)))
			return nil
		},
	)
	if err != nil {
		s.logger.Warn("邮件通知发送失败",
			zap.String("subject", subject),
			zap.Error(err))
	}
}
