// Package service 业务逻辑层
package service

import (
	"context"
	"errors"
	"time"

	"github.com/sxedu-cn/perm-backend/internal/model"
	"github.com/sxedu-cn/perm-backend/internal/repository"
	"go.uber.org/zap"
)

var (
	ErrInvalidDelegation   = errors.New("委托参数不合法")
	ErrDelegationNotActive = errors.New("委托已失效")
)

// DelegationService 委托服务接口
// PERMISSION 类型的委托落地为优先级 PriorityOverride 的用户直接授权，
// 落地与过期清理由定时任务驱动
type DelegationService interface {
	Create(ctx context.Context, d *model.Delegation) error
	Revoke(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.Delegation, error)

	// Materialize 把所有待落地的 PERMISSION 委托转成用户直接授权
	Materialize(ctx context.Context) (int, error)

	// ExpireSweep 失效已过期的委托及其落地授权
	ExpireSweep(ctx context.Context) (int, error)
}

type delegationService struct {
	delegRepo    repository.DelegationRepository
	permRepo     repository.PermissionRepository
	userPermRepo repository.UserPermissionRepository
	userDir      repository.UserDirectory
	logger       *zap.Logger
	now          func() time.Time
}

// NewDelegationService 创建委托服务
func NewDelegationService(
	delegRepo repository.DelegationRepository,
	permRepo repository.PermissionRepository,
	userPermRepo repository.UserPermissionRepository,
	userDir repository.UserDirectory,
	logger *zap.Logger,
) DelegationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &delegationService{
		delegRepo:    delegRepo,
		permRepo:     permRepo,
		userPermRepo: userPermRepo,
		userDir:      userDir,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *delegationService) Create(ctx context.Context, d *model.Delegation) error {
	if d.DelegatorID == "" || d.DelegateID == "" || d.DelegatorID == d.DelegateID {
		return ErrInvalidDelegation
	}
	if !d.EffectiveUntil.After(d.EffectiveFrom) {
		return ErrInvalidDelegation
	}
	switch d.Type {
	case model.DelegationTypeApproval, model.DelegationTypePermission, model.DelegationTypeWorkflow:
	default:
		return ErrInvalidDelegation
	}
	if d.Type == model.DelegationTypePermission && d.PermissionCode == "" {
		return ErrInvalidDelegation
	}

	for _, userID := range []string{d.DelegatorID, d.DelegateID} {
		exists, err := s.userDir.Exists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return repository.ErrUserNotFound
		}
	}

	d.IsActive = true
	return s.delegRepo.Create(ctx, d)
}

// Revoke 撤销委托，软失效
func (s *delegationService) Revoke(ctx context.Context, id string) error {
	d, err := s.delegRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !d.IsActive {
		return ErrDelegationNotActive
	}
	d.IsActive = false
	return s.delegRepo.Update(ctx, d)
}

func (s *delegationService) Get(ctx context.Context, id string) (*model.Delegation, error) {
	return s.delegRepo.GetByID(ctx, id)
}

// Materialize 委托落地
// 每条生效中且未落地的 PERMISSION 委托生成一条带有效期的用户直接授权，
// 优先级固定为覆盖层级，保证压过普通角色授权
func (s *delegationService) Materialize(ctx context.Context) (int, error) {
	delegations, err := s.delegRepo.ListActiveByType(ctx, model.DelegationTypePermission)
	if err != nil {
		return 0, err
	}

	now := s.now()
	materialized := 0
	for _, d := range delegations {
		if d.MaterializedAt != nil || !d.EffectiveAt(now) {
			continue
		}

		perm, err := s.permRepo.GetByCode(ctx, d.PermissionCode)
		if err != nil {
			s.logger.Warn("委托指向的权限不存在，跳过落地",
				zap.String("delegation_id", d.ID),
				zap.String("permission_code", d.PermissionCode))
			continue
		}

		validFrom := d.EffectiveFrom
		validUntil := d.EffectiveUntil
		grant := &model.UserPermission{
			UserID:       d.DelegateID,
			PermissionID: perm.ID,
			IsGranted:    true,
			ValidFrom:    &validFrom,
			ValidUntil:   &validUntil,
			Priority:     model.PriorityOverride,
			SourceType:   model.SourceDelegation,
			GrantedBy:    d.DelegatorID,
			GrantReason:  "委托落地 " + d.ID,
		}
		if err := s.userPermRepo.Create(ctx, grant); err != nil {
			return materialized, err
		}

		ts := now
		d.MaterializedAt = &ts
		if err := s.delegRepo.Update(ctx, d); err != nil {
			return materialized, err
		}
		materialized++
	}
	return materialized, nil
}

// ExpireSweep 过期清理
// 失效过期委托并软删除有效期已过的用户授权
func (s *delegationService) ExpireSweep(ctx context.Context) (int, error) {
	now := s.now()

	expired, err := s.delegRepo.ListExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, d := range expired {
		d.IsActive = false
		if err := s.delegRepo.Update(ctx, d); err != nil {
			return 0, err
		}
	}

	removed, err := s.userPermRepo.DeactivateExpired(ctx, now)
	if err != nil {
		return len(expired), err
	}
	if len(expired) > 0 || removed > 0 {
		s.logger.Info("委托过期清理完成",
			zap.Int("expired_delegations", len(expired)),
			zap.Int64("expired_grants", removed))
	}
	return len(expired), nil
}
