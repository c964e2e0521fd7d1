// Package service 业务逻辑层
package service

import (
	"context"
	"strings"
	"time"

	"github.com/sxedu-cn/perm-backend/internal/metrics"
	"github.com/sxedu-cn/perm-backend/internal/model"
	"github.com/sxedu-cn/perm-backend/internal/repository"
)

// CheckRequest 单次权限检查请求
// Scope 为空表示不限定范围：任意范围的授权都可满足
type CheckRequest struct {
	Resource string
	Action   model.Action
	Scope    model.Scope
}

// Key 请求的稳定字符串键，与决策缓存键同构
func (r CheckRequest) Key() string {
	key := strings.ToLower(r.Resource) + ":" + strings.ToLower(string(r.Action))
	if r.Scope != "" {
		key += ":" + strings.ToLower(string(r.Scope))
	}
	return key
}

// ResolverService 权限解析服务接口
// 合并直授、角色继承、模块访问三类来源，按统一比较器得出允许/拒绝结论
// 本地查询，不在内部重试；任何错误一律落到拒绝（fail-closed）
type ResolverService interface {
	// Resolve 解析单个权限检查
	Resolve(ctx context.Context, userID string, req CheckRequest) (model.Decision, error)

	// ResolveBatch 批量解析，共享一次角色继承遍历
	ResolveBatch(ctx context.Context, userID string, reqs []CheckRequest) (map[string]model.Decision, error)

	// Snapshot 拉取用户的完整授权快照（会话构建用）
	Snapshot(ctx context.Context, userID string) (*model.PermissionSnapshot, error)
}

type resolverService struct {
	userDir       repository.UserDirectory
	userPermRepo  repository.UserPermissionRepository
	userRoleRepo  repository.UserRoleRepository
	moduleRepo    repository.ModuleRepository
	hierarchy     HierarchyService
	now           func() time.Time
}

// NewResolverService 创建权限解析服务
func NewResolverService(
	userDir repository.UserDirectory,
	userPermRepo repository.UserPermissionRepository,
	userRoleRepo repository.UserRoleRepository,
	moduleRepo repository.ModuleRepository,
	hierarchy HierarchyService,
) ResolverService {
	return &resolverService{
		userDir:      userDir,
		userPermRepo: userPermRepo,
		userRoleRepo: userRoleRepo,
		moduleRepo:   moduleRepo,
		hierarchy:    hierarchy,
		now:          time.Now,
	}
}

func (s *resolverService) Resolve(ctx context.Context, userID string, req CheckRequest) (model.Decision, error) {
	decisions, err := s.ResolveBatch(ctx, userID, []CheckRequest{req})
	if err != nil {
		return model.DenyDecision(), err
	}
	return decisions[req.Key()], nil
}

func (s *resolverService) ResolveBatch(ctx context.Context, userID string, reqs []CheckRequest) (map[string]model.Decision, error) {
	start := s.now()
	defer func() {
		metrics.ResolveDuration.Observe(time.Since(start).Seconds())
	}()

	exists, err := s.userDir.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, repository.ErrUserNotFound
	}

	candidates, err := s.collectCandidates(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make(map[string]model.Decision, len(reqs))
	for _, req := range reqs {
		results[req.Key()] = pickWinner(candidates, req)
	}
	return results, nil
}

// collectCandidates 收集用户的全部候选授权
// 三类来源全部折算为统一候选类型，后续只走一个比较器
func (s *resolverService) collectCandidates(ctx context.Context, userID string) ([]model.GrantCandidate, error) {
	now := s.now()
	var candidates []model.GrantCandidate

	// 来源一：用户直接授权（含委托落地与模板应用）
	userGrants, err := s.userPermRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, g := range userGrants {
		// 有效期之外的授权一律视为不存在，无论允许还是拒绝
		if !g.ValidAt(now) {
			continue
		}
		if g.Permission == nil || !g.Permission.IsActive {
			continue
		}
		source := model.SourceDirect
		switch g.SourceType {
		case model.SourceDelegation:
			source = model.SourceDelegation
		case model.SourceTemplate:
			source = model.SourceTemplate
		}
		candidates = append(candidates, model.GrantCandidate{
			PermissionCode: g.Permission.Code,
			Resource:       g.Permission.Resource,
			Action:         g.Permission.Action,
			Scope:          g.Permission.Scope,
			Granted:        g.IsGranted,
			Priority:       g.Priority,
			Source:         source,
			SourceID:       g.ID,
			SourceName:     g.GrantedBy,
		})
	}

	// 来源二：角色有效权限集（继承遍历在角色粒度只做一次）
	roles, err := s.userRoleRepo.GetUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if !role.IsActive() {
			continue
		}
		effective, err := s.hierarchy.EffectivePermissions(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, effective...)
	}

	// 来源三：模块树成员关系，仅折算为 READ 类布尔权限
	// 成员关系以用户在该模块资源上持有的任一允许授权为准，
	// 范围固定为 OWN：模块只承载菜单可见性，不放大鉴权范围
	modules, err := s.moduleRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	member := grantedResources(candidates)
	for _, m := range modules {
		code := strings.ToLower(m.Code)
		if !m.IsActive() || !m.HasLegacyAction("read") || !member[code] {
			continue
		}
		candidates = append(candidates, model.GrantCandidate{
			PermissionCode: model.BuildPermissionCode(code, model.ActionRead, model.ScopeOwn),
			Resource:       code,
			Action:         model.ActionRead,
			Scope:          model.ScopeOwn,
			Granted:        true,
			Priority:       model.PriorityModule,
			Source:         model.SourceModule,
			SourceID:       m.ID,
			SourceName:     m.Name,
		})
	}

	return candidates, nil
}

// grantedResources 用户持有任一允许授权的资源集合
func grantedResources(candidates []model.GrantCandidate) map[string]bool {
	granted := make(map[string]bool)
	for _, c := range candidates {
		if c.Granted {
			granted[strings.ToLower(c.Resource)] = true
		}
	}
	return granted
}

// visibleModules 过滤用户可见的模块：启用、用户为其成员，
// 外加这些模块的启用祖先，保证树形结构不断链
func visibleModules(modules []*model.Module, candidates []model.GrantCandidate) []*model.Module {
	member := grantedResources(candidates)

	byID := make(map[string]*model.Module, len(modules))
	for _, m := range modules {
		byID[m.ID] = m
	}

	keep := make(map[string]bool)
	for _, m := range modules {
		if !m.IsActive() || !member[strings.ToLower(m.Code)] {
			continue
		}
		keep[m.ID] = true
		for p := byID[m.ParentID]; p != nil && p.IsActive() && !keep[p.ID]; p = byID[p.ParentID] {
			keep[p.ID] = true
		}
	}

	visible := make([]*model.Module, 0, len(keep))
	for _, m := range modules {
		if keep[m.ID] {
			visible = append(visible, m)
		}
	}
	return visible
}

// pickWinner 在满足请求的候选中选出胜者
// 不满足范围的候选直接丢弃；无任何满足候选时默认拒绝
func pickWinner(candidates []model.GrantCandidate, req CheckRequest) model.Decision {
	resource := strings.ToLower(req.Resource)
	var winner *model.GrantCandidate

	for i := range candidates {
		c := candidates[i]
		if c.Resource != resource || c.Action != req.Action {
			continue
		}
		// 范围覆盖单向：候选范围必须不窄于请求范围
		if req.Scope != "" && !c.Scope.Covers(req.Scope) {
			continue
		}
		if winner == nil || c.Better(*winner) {
			winner = &c
		}
	}

	if winner == nil {
		return model.DenyDecision()
	}
	return winner.Decision()
}

func (s *resolverService) Snapshot(ctx context.Context, userID string) (*model.PermissionSnapshot, error) {
	exists, err := s.userDir.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, repository.ErrUserNotFound
	}

	candidates, err := s.collectCandidates(ctx, userID)
	if err != nil {
		return nil, err
	}

	roles, err := s.userRoleRepo.GetUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	roleCodes := make([]string, 0, len(roles))
	for _, r := range roles {
		roleCodes = append(roleCodes, r.Code)
	}

	modules, err := s.moduleRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	grants := make([]model.Grant, 0, len(candidates))
	for _, c := range candidates {
		grants = append(grants, model.Grant{
			PermissionCode: c.PermissionCode,
			Resource:       c.Resource,
			Action:         c.Action,
			Scope:          c.Scope,
			Granted:        c.Granted,
			Source:         c.Source,
			Priority:       c.Priority,
		})
	}

	return &model.PermissionSnapshot{
		UserID:    userID,
		RoleCodes: roleCodes,
		Grants:    grants,
		Modules:   model.BuildModuleTree(visibleModules(modules, candidates)),
		FetchedAt: s.now(),
	}, nil
}
