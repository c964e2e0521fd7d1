// Package service 业务逻辑层
package service

import (
	"context"
	"errors"
	"time"

	"github.com/sxedu-cn/perm-backend/internal/model"
	"github.com/sxedu-cn/perm-backend/internal/repository"
)

var (
	ErrRoleNotFound       = errors.New("角色不存在")
	ErrRoleCodeExists     = errors.New("角色代码已存在")
	ErrPermissionNotFound = errors.New("权限不存在")
	ErrPermissionExists   = errors.New("权限已存在")
	ErrSystemRole         = errors.New("系统内置角色不能删除")
	ErrSystemPermission   = errors.New("系统内置权限不能删除或修改")
	ErrInvalidScope       = errors.New("数据范围不合法")
)

// RBACService 权限管理服务接口
// 管理面操作：角色/权限定义、继承边、授权边、用户角色
// 授权边只软失效，不做物理删除，保留审计线索
type RBACService interface {
	// 角色管理
	CreateRole(ctx context.Context, role *model.Role) error
	GetRole(ctx context.Context, id string) (*model.Role, error)
	GetRoleByCode(ctx context.Context, code string) (*model.Role, error)
	UpdateRole(ctx context.Context, role *model.Role) error
	DeleteRole(ctx context.Context, id string) error
	ListRoles(ctx context.Context, page *repository.Pagination) ([]*model.Role, int64, error)

	// 权限管理
	CreatePermission(ctx context.Context, perm *model.Permission) error
	GetPermission(ctx context.Context, id string) (*model.Permission, error)
	DeletePermission(ctx context.Context, id string) error
	ListPermissions(ctx context.Context) ([]*model.Permission, error)

	// 角色授权边
	GrantToRole(ctx context.Context, roleID, permissionID string, isGranted bool, grantedBy, reason string) error
	RevokeFromRole(ctx context.Context, roleID, permissionID string) error
	GetRolePermissions(ctx context.Context, roleID string) ([]*model.RolePermission, error)

	// 用户直接授权边
	GrantToUser(ctx context.Context, grant *model.UserPermission) error
	GetUserGrants(ctx context.Context, userID string) ([]*model.UserPermission, error)

	// 用户角色
	AssignRole(ctx context.Context, userID, roleID string) error
	RevokeRole(ctx context.Context, userID, roleID string) error
	GetUserRoles(ctx context.Context, userID string) ([]*model.Role, error)
	HasRole(ctx context.Context, userID, roleCode string) (bool, error)

	// 初始化
	InitDefaults(ctx context.Context) error
}

type rbacService struct {
	roleRepo     repository.RoleRepository
	permRepo     repository.PermissionRepository
	userRoleRepo repository.UserRoleRepository
	userPermRepo repository.UserPermissionRepository
}

// NewRBACService 创建权限管理服务
func NewRBACService(
	roleRepo repository.RoleRepository,
	permRepo repository.PermissionRepository,
	userRoleRepo repository.UserRoleRepository,
	userPermRepo repository.UserPermissionRepository,
) RBACService {
	return &rbacService{
		roleRepo:     roleRepo,
		permRepo:     permRepo,
		userRoleRepo: userRoleRepo,
		userPermRepo: userPermRepo,
	}
}

// 角色管理

func (s *rbacService) CreateRole(ctx context.Context, role *model.Role) error {
	existing, err := s.roleRepo.GetByCode(ctx, role.Code)
	if err == nil && existing != nil {
		return ErrRoleCodeExists
	}

	if role.Status == "" {
		role.Status = model.StatusActive
	}
	return s.roleRepo.Create(ctx, role)
}

func (s *rbacService) GetRole(ctx context.Context, id string) (*model.Role, error) {
	role, err := s.roleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrRoleNotFound
	}
	return role, nil
}

func (s *rbacService) GetRoleByCode(ctx context.Context, code string) (*model.Role, error) {
	role, err := s.roleRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, ErrRoleNotFound
	}
	return role, nil
}

func (s *rbacService) UpdateRole(ctx context.Context, role *model.Role) error {
	existing, err := s.roleRepo.GetByID(ctx, role.ID)
	if err != nil {
		return ErrRoleNotFound
	}

	// 系统角色不能修改代码
	if existing.IsSystem && role.Code != existing.Code {
		return ErrSystemRole
	}
	return s.roleRepo.Update(ctx, role)
}

func (s *rbacService) DeleteRole(ctx context.Context, id string) error {
	role, err := s.roleRepo.GetByID(ctx, id)
	if err != nil {
		return ErrRoleNotFound
	}
	if role.IsSystem {
		return ErrSystemRole
	}
	return s.roleRepo.Delete(ctx, id)
}

func (s *rbacService) ListRoles(ctx context.Context, page *repository.Pagination) ([]*model.Role, int64, error) {
	return s.roleRepo.List(ctx, page)
}

// 权限管理

func (s *rbacService) CreatePermission(ctx context.Context, perm *model.Permission) error {
	if !perm.Scope.Valid() {
		return ErrInvalidScope
	}
	if perm.Code == "" {
		perm.Code = model.BuildPermissionCode(perm.Resource, perm.Action, perm.Scope)
	}

	existing, err := s.permRepo.GetByCode(ctx, perm.Code)
	if err == nil && existing != nil {
		return ErrPermissionExists
	}
	perm.IsActive = true
	return s.permRepo.Create(ctx, perm)
}

func (s *rbacService) GetPermission(ctx context.Context, id string) (*model.Permission, error) {
	perm, err := s.permRepo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrPermissionNotFound
	}
	return perm, nil
}

func (s *rbacService) DeletePermission(ctx context.Context, id string) error {
	perm, err := s.permRepo.GetByID(ctx, id)
	if err != nil {
		return ErrPermissionNotFound
	}
	if perm.IsSystem {
		return ErrSystemPermission
	}
	return s.permRepo.Delete(ctx, id)
}

func (s *rbacService) ListPermissions(ctx context.Context) ([]*model.Permission, error) {
	return s.permRepo.List(ctx)
}

// 角色授权边

func (s *rbacService) GrantToRole(ctx context.Context, roleID, permissionID string, isGranted bool, grantedBy, reason string) error {
	if _, err := s.roleRepo.GetByID(ctx, roleID); err != nil {
		return ErrRoleNotFound
	}
	if _, err := s.permRepo.GetByID(ctx, permissionID); err != nil {
		return ErrPermissionNotFound
	}
	return s.roleRepo.AddPermission(ctx, &model.RolePermission{
		RoleID:       roleID,
		PermissionID: permissionID,
		IsGranted:    isGranted,
		SourceType:   model.SourceRole,
		GrantedBy:    grantedBy,
		GrantReason:  reason,
	})
}

func (s *rbacService) RevokeFromRole(ctx context.Context, roleID, permissionID string) error {
	return s.roleRepo.RevokePermission(ctx, roleID, permissionID)
}

func (s *rbacService) GetRolePermissions(ctx context.Context, roleID string) ([]*model.RolePermission, error) {
	return s.roleRepo.GetPermissions(ctx, roleID)
}

// 用户直接授权边

func (s *rbacService) GrantToUser(ctx context.Context, grant *model.UserPermission) error {
	if _, err := s.permRepo.GetByID(ctx, grant.PermissionID); err != nil {
		return ErrPermissionNotFound
	}
	if grant.SourceType == "" {
		grant.SourceType = model.SourceDirect
	}
	return s.userPermRepo.Create(ctx, grant)
}

func (s *rbacService) GetUserGrants(ctx context.Context, userID string) ([]*model.UserPermission, error) {
	return s.userPermRepo.ListByUser(ctx, userID)
}

// 用户角色

func (s *rbacService) AssignRole(ctx context.Context, userID, roleID string) error {
	if _, err := s.roleRepo.GetByID(ctx, roleID); err != nil {
		return ErrRoleNotFound
	}
	return s.userRoleRepo.Assign(ctx, userID, roleID)
}

func (s *rbacService) RevokeRole(ctx context.Context, userID, roleID string) error {
	return s.userRoleRepo.Revoke(ctx, userID, roleID)
}

func (s *rbacService) GetUserRoles(ctx context.Context, userID string) ([]*model.Role, error) {
	return s.userRoleRepo.GetUserRoles(ctx, userID)
}

func (s *rbacService) HasRole(ctx context.Context, userID, roleCode string) (bool, error) {
	return s.userRoleRepo.HasRole(ctx, userID, roleCode)
}

// InitDefaults 初始化默认权限与角色
// 幂等：已存在的记录跳过，可在每次启动时安全调用
func (s *rbacService) InitDefaults(ctx context.Context) error {
	for _, perm := range model.DefaultSystemPermissions() {
		existing, _ := s.permRepo.GetByCode(ctx, perm.Code)
		if existing == nil {
			if err := s.permRepo.Create(ctx, &perm); err != nil {
				return err
			}
		}
	}

	allPerms, err := s.permRepo.List(ctx)
	if err != nil {
		return err
	}

	for _, role := range model.DefaultSystemRoles() {
		existing, _ := s.roleRepo.GetByCode(ctx, role.Code)
		if existing != nil {
			continue
		}
		if err := s.roleRepo.Create(ctx, &role); err != nil {
			return err
		}

		// 系统管理员获得全量授权
		if role.Code != model.RoleAdmin {
			continue
		}
		created, _ := s.roleRepo.GetByCode(ctx, role.Code)
		if created == nil {
			continue
		}
		now := time.Now().Format(time.RFC3339)
		for _, p := range allPerms {
			_ = s.roleRepo.AddPermission(ctx, &model.RolePermission{
				RoleID:       created.ID,
				PermissionID: p.ID,
				IsGranted:    true,
				SourceType:   model.SourceRole,
				GrantedBy:    "system",
				GrantReason:  "系统初始化 " + now,
			})
		}
	}
	return nil
}
