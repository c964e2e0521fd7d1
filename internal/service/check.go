// Package service 业务逻辑层
package service

import (
	"context"
	"errors"

	"github.com/sxedu-cn/perm-backend/internal/metrics"
	"github.com/sxedu-cn/perm-backend/internal/model"
	"github.com/sxedu-cn/perm-backend/internal/repository"
	"github.com/sxedu-cn/perm-backend/pkg/breaker"
	"go.uber.org/zap"
)

// 熔断电路名
const (
	CircuitPermissionStore = "permission-store" // 授权存储查询
	CircuitEmailSender     = "email-sender"     // 邮件通知发送
)

// CheckService 权限检查服务接口
// 请求先探会话缓存，未命中或不新鲜再走解析器并回填；
// 解析器被熔断时退回过期兜底缓存；仍无结果一律拒绝。
// 权限检查失败永远不会被当成允许（fail-closed）
type CheckService interface {
	Check(ctx context.Context, sessionID, userID string, req CheckRequest) (model.Decision, error)
	CheckBatch(ctx context.Context, sessionID, userID string, reqs []CheckRequest) (map[string]model.Decision, error)
}

type checkService struct {
	resolver ResolverService
	sessions SessionService
	circuits *breaker.Manager
	logger   *zap.Logger
}

// NewCheckService 创建权限检查服务
func NewCheckService(resolver ResolverService, sessions SessionService, circuits *breaker.Manager, logger *zap.Logger) CheckService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &checkService{
		resolver: resolver,
		sessions: sessions,
		circuits: circuits,
		logger:   logger,
	}
}

func (s *checkService) Check(ctx context.Context, sessionID, userID string, req CheckRequest) (model.Decision, error) {
	cache := s.sessions.Cache(sessionID)

	// 默认路径只认新鲜条目
	if decision, ok := cache.Get(req.Key()); ok {
		return decision, nil
	}

	var decision model.Decision
	var notFound error
	resolve := func(ctx context.Context) error {
		d, err := s.resolver.Resolve(ctx, userID, req)
		if err != nil {
			// 用户不存在是一次成功的存储查询，不计入熔断失败统计
			if errors.Is(err, repository.ErrUserNotFound) {
				notFound = err
				return nil
			}
			return err
		}
		decision = d
		return nil
	}

	err := s.circuits.Execute(ctx, CircuitPermissionStore, resolve, nil)
	if err == nil {
		// 业务错误直接上抛，不走降级
		if notFound != nil {
			return model.DenyDecision(), notFound
		}
		cache.Put(req.Key(), decision)
		return decision, nil
	}

	if errors.Is(err, breaker.ErrCircuitOpen) {
		metrics.BreakerRejections.WithLabelValues(CircuitPermissionStore).Inc()
	}

	// 解析器不可达：显式走过期兜底路径，仍未命中则按拒绝处理
	if stale, ok := cache.GetStale(req.Key()); ok {
		s.logger.Warn("解析器不可用，使用过期缓存兜底",
			zap.String("key", req.Key()),
			zap.Error(err))
		return stale, nil
	}

	s.logger.Error("权限解析失败且无缓存兜底，按拒绝处理",
		zap.String("user_id", userID),
		zap.String("key", req.Key()),
		zap.Error(err))
	return model.DenyDecision(), nil
}

func (s *checkService) CheckBatch(ctx context.Context, sessionID, userID string, reqs []CheckRequest) (map[string]model.Decision, error) {
	cache := s.sessions.Cache(sessionID)
	results := make(map[string]model.Decision, len(reqs))

	var pending []CheckRequest
	for _, req := range reqs {
		if decision, ok := cache.Get(req.Key()); ok {
			results[req.Key()] = decision
			continue
		}
		pending = append(pending, req)
	}
	if len(pending) == 0 {
		return results, nil
	}

	var resolved map[string]model.Decision
	var notFound error
	resolve := func(ctx context.Context) error {
		m, err := s.resolver.ResolveBatch(ctx, userID, pending)
		if err != nil {
			// 用户不存在是一次成功的存储查询，不计入熔断失败统计
			if errors.Is(err, repository.ErrUserNotFound) {
				notFound = err
				return nil
			}
			return err
		}
		resolved = m
		return nil
	}

	err := s.circuits.Execute(ctx, CircuitPermissionStore, resolve, nil)
	if err == nil {
		if notFound != nil {
			return nil, notFound
		}
		for key, decision := range resolved {
			cache.Put(key, decision)
			results[key] = decision
		}
		return results, nil
	}

	if errors.Is(err, breaker.ErrCircuitOpen) {
		metrics.BreakerRejections.WithLabelValues(CircuitPermissionStore).Inc()
	}

	for _, req := range pending {
		if stale, ok := cache.GetStale(req.Key()); ok {
			results[req.Key()] = stale
			continue
		}
		results[req.Key()] = model.DenyDecision()
	}
	s.logger.Warn("批量权限解析失败，未命中缓存的请求按拒绝处理",
		zap.String("user_id", userID),
		zap.Int("pending", len(pending)),
		zap.Error(err))
	return results, nil
}
