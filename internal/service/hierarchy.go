// Package service 业务逻辑层
package service

import (
	"context"
	"errors"

	"github.com/sxedu-cn/perm-backend/internal/metrics"
	"github.com/sxedu-cn/perm-backend/internal/model"
	"github.com/sxedu-cn/perm-backend/internal/repository"
	"go.uber.org/zap"
)

var (
	ErrCycleDetected = errors.New("角色继承关系存在环")
	ErrEdgeExists    = errors.New("继承边已存在")
)

// maxHierarchyDepth 继承遍历深度上限
// 正常组织的角色层级远小于该值，超出即视为数据异常
const maxHierarchyDepth = 16

// HierarchyService 角色继承服务接口
type HierarchyService interface {
	// EffectivePermissions 解析角色的有效权限集
	// 从角色出发沿 inherit_permissions=true 的边向父角色广度优先遍历，
	// 自身距离 0 优先级最高，每上溯一层按固定值衰减，
	// 同一权限代码冲突时近端胜出；遇到环终止该分支并返回部分结果
	EffectivePermissions(ctx context.Context, roleID string) ([]model.GrantCandidate, error)

	// AddEdge 添加继承边，写入前做可达性检查拒绝成环
	AddEdge(ctx context.Context, childRoleID, parentRoleID string, inheritPermissions bool, grantedBy string) error

	// RemoveEdge 删除继承边
	RemoveEdge(ctx context.Context, childRoleID, parentRoleID string) error
}

type hierarchyService struct {
	roleRepo repository.RoleRepository
	logger   *zap.Logger
}

// NewHierarchyService 创建角色继承服务
func NewHierarchyService(roleRepo repository.RoleRepository, logger *zap.Logger) HierarchyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &hierarchyService{roleRepo: roleRepo, logger: logger}
}

// walkNode 遍历队列节点
type walkNode struct {
	roleID   string
	roleName string
	depth    int
}

func (s *hierarchyService) EffectivePermissions(ctx context.Context, roleID string) ([]model.GrantCandidate, error) {
	role, err := s.roleRepo.GetByID(ctx, roleID)
	if err != nil {
		return nil, ErrRoleNotFound
	}

	// 权限代码 -> 当前胜出候选
	merged := make(map[string]model.GrantCandidate)
	visited := map[string]bool{role.ID: true}
	queue := []walkNode{{roleID: role.ID, roleName: role.Name, depth: 0}}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if err := s.collectRoleGrants(ctx, node, merged); err != nil {
			return nil, err
		}

		if node.depth >= maxHierarchyDepth {
			s.logger.Error("角色继承深度超限，疑似成环，终止该分支",
				zap.String("role_id", roleID),
				zap.String("branch_role_id", node.roleID))
			metrics.CycleAlerts.Inc()
			continue
		}

		edges, err := s.roleRepo.GetParentEdges(ctx, node.roleID)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			// 每条边独立判定是否继承
			if !edge.InheritPermissions {
				continue
			}
			if visited[edge.ParentRoleID] {
				// 回到起点即为环：告警后终止该分支，不中断整体解析
				// 非起点的重复访问是菱形继承，静默跳过避免重复计数
				if edge.ParentRoleID == role.ID {
					s.logger.Error("检测到角色继承环，角色配置存在数据完整性问题",
						zap.String("role_id", role.ID),
						zap.String("via_role_id", node.roleID))
					metrics.CycleAlerts.Inc()
				}
				continue
			}
			visited[edge.ParentRoleID] = true
			name := ""
			if edge.ParentRole != nil {
				name = edge.ParentRole.Name
			}
			queue = append(queue, walkNode{roleID: edge.ParentRoleID, roleName: name, depth: node.depth + 1})
		}
	}

	result := make([]model.GrantCandidate, 0, len(merged))
	for _, c := range merged {
		result = append(result, c)
	}
	return result, nil
}

// collectRoleGrants 收集单个角色的直接授权边并按近端优先合并
func (s *hierarchyService) collectRoleGrants(ctx context.Context, node walkNode, merged map[string]model.GrantCandidate) error {
	grants, err := s.roleRepo.GetPermissions(ctx, node.roleID)
	if err != nil {
		return err
	}

	priority := model.PriorityRole - node.depth*model.HierarchyHopPenalty
	for _, g := range grants {
		if g.Permission == nil || !g.Permission.IsActive {
			continue
		}
		source := model.SourceRole
		if g.SourceType == model.SourceTemplate {
			source = model.SourceTemplate
		}
		candidate := model.GrantCandidate{
			PermissionCode: g.Permission.Code,
			Resource:       g.Permission.Resource,
			Action:         g.Permission.Action,
			Scope:          g.Permission.Scope,
			Granted:        g.IsGranted,
			Priority:       priority,
			Source:         source,
			SourceID:       node.roleID,
			SourceName:     node.roleName,
		}
		existing, ok := merged[candidate.PermissionCode]
		if !ok || candidate.Better(existing) {
			merged[candidate.PermissionCode] = candidate
		}
	}
	return nil
}

func (s *hierarchyService) AddEdge(ctx context.Context, childRoleID, parentRoleID string, inheritPermissions bool, grantedBy string) error {
	if childRoleID == parentRoleID {
		return ErrCycleDetected
	}
	if _, err := s.roleRepo.GetByID(ctx, childRoleID); err != nil {
		return ErrRoleNotFound
	}
	if _, err := s.roleRepo.GetByID(ctx, parentRoleID); err != nil {
		return ErrRoleNotFound
	}

	existing, err := s.roleRepo.GetParentEdges(ctx, childRoleID)
	if err != nil {
		return err
	}
	for _, edge := range existing {
		if edge.ParentRoleID == parentRoleID {
			return ErrEdgeExists
		}
	}

	// 可达性检查：若 child 已是 parent 的祖先，新边将成环
	reachable, err := s.reachable(ctx, parentRoleID, childRoleID)
	if err != nil {
		return err
	}
	if reachable {
		return ErrCycleDetected
	}

	return s.roleRepo.AddHierarchyEdge(ctx, &model.RoleHierarchy{
		ChildRoleID:        childRoleID,
		ParentRoleID:       parentRoleID,
		InheritPermissions: inheritPermissions,
	})
}

func (s *hierarchyService) RemoveEdge(ctx context.Context, childRoleID, parentRoleID string) error {
	return s.roleRepo.RemoveHierarchyEdge(ctx, childRoleID, parentRoleID)
}

// reachable 检查沿继承边向上走能否从 from 到达 target
func (s *hierarchyService) reachable(ctx context.Context, from, target string) (bool, error) {
	visited := map[string]bool{from: true}
	queue := []string{from}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		edges, err := s.roleRepo.GetParentEdges(ctx, current)
		if err != nil {
			return false, err
		}
		for _, edge := range edges {
			if edge.ParentRoleID == target {
				return true, nil
			}
			if visited[edge.ParentRoleID] {
				continue
			}
			visited[edge.ParentRoleID] = true
			queue = append(queue, edge.ParentRoleID)
		}
	}
	return false, nil
}
