// Package repository 数据访问层
package repository

import (
	"context"

	"github.com/sxedu-cn/perm-backend/internal/model"
	"gorm.io/gorm"
)

// RoleRepository 角色仓库接口
type RoleRepository interface {
	Create(ctx context.Context, role *model.Role) error
	GetByID(ctx context.Context, id string) (*model.Role, error)
	GetByCode(ctx context.Context, code string) (*model.Role, error)
	Update(ctx context.Context, role *model.Role) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page *Pagination) ([]*model.Role, int64, error)

	// 继承边
	AddHierarchyEdge(ctx context.Context, edge *model.RoleHierarchy) error
	RemoveHierarchyEdge(ctx context.Context, childRoleID, parentRoleID string) error
	GetParentEdges(ctx context.Context, childRoleID string) ([]*model.RoleHierarchy, error)
	ListHierarchyEdges(ctx context.Context) ([]*model.RoleHierarchy, error)

	// 授权边
	AddPermission(ctx context.Context, grant *model.RolePermission) error
	RevokePermission(ctx context.Context, roleID, permissionID string) error
	GetPermissions(ctx context.Context, roleID string) ([]*model.RolePermission, error)
}

// PermissionRepository 权限仓库接口
type PermissionRepository interface {
	Create(ctx context.Context, perm *model.Permission) error
	GetByID(ctx context.Context, id string) (*model.Permission, error)
	GetByCode(ctx context.Context, code string) (*model.Permission, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*model.Permission, error)
	BatchCreate(ctx context.Context, perms []model.Permission) error
}

// UserRoleRepository 用户角色仓库接口
type UserRoleRepository interface {
	Assign(ctx context.Context, userID, roleID string) error
	Revoke(ctx context.Context, userID, roleID string) error
	GetUserRoles(ctx context.Context, userID string) ([]*model.Role, error)
	HasRole(ctx context.Context, userID, roleCode string) (bool, error)
}

// roleRepository 角色仓库实现
type roleRepository struct {
	db *gorm.DB
}

// NewRoleRepository 创建角色仓库
func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	return r.db.WithContext(ctx).Create(role).Error
}

func (r *roleRepository) GetByID(ctx context.Context, id string) (*model.Role, error) {
	var role model.Role
	if err := r.db.WithContext(ctx).First(&role, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) GetByCode(ctx context.Context, code string) (*model.Role, error) {
	var role model.Role
	if err := r.db.WithContext(ctx).First(&role, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	return r.db.WithContext(ctx).Save(role).Error
}

func (r *roleRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Role{}, "id = ?", id).Error
}

func (r *roleRepository) List(ctx context.Context, page *Pagination) ([]*model.Role, int64, error) {
	var roles []*model.Role
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Role{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page != nil {
		query = query.Offset((page.Page - 1) * page.PageSize).Limit(page.PageSize)
	}

	if err := query.Order("hierarchy_level").Find(&roles).Error; err != nil {
		return nil, 0, err
	}

	return roles, total, nil
}

func (r *roleRepository) AddHierarchyEdge(ctx context.Context, edge *model.RoleHierarchy) error {
	return r.db.WithContext(ctx).Create(edge).Error
}

func (r *roleRepository) RemoveHierarchyEdge(ctx context.Context, childRoleID, parentRoleID string) error {
	return r.db.WithContext(ctx).
		Where("child_role_id = ? AND parent_role_id = ?", childRoleID, parentRoleID).
		Delete(&model.RoleHierarchy{}).Error
}

func (r *roleRepository) GetParentEdges(ctx context.Context, childRoleID string) ([]*model.RoleHierarchy, error) {
	var edges []*model.RoleHierarchy
	if err := r.db.WithContext(ctx).Preload("ParentRole").
		Where("child_role_id = ?", childRoleID).Find(&edges).Error; err != nil {
		return nil, err
	}
	return edges, nil
}

func (r *roleRepository) ListHierarchyEdges(ctx context.Context) ([]*model.RoleHierarchy, error) {
	var edges []*model.RoleHierarchy
	if err := r.db.WithContext(ctx).Find(&edges).Error; err != nil {
		return nil, err
	}
	return edges, nil
}

func (r *roleRepository) AddPermission(ctx context.Context, grant *model.RolePermission) error {
	return r.db.WithContext(ctx).Create(grant).Error
}

// RevokePermission 撤销授权边
// 授权边不做物理删除，置 is_granted=false 保留审计痕迹
func (r *roleRepository) RevokePermission(ctx context.Context, roleID, permissionID string) error {
	return r.db.WithContext(ctx).Model(&model.RolePermission{}).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Update("is_granted", false).Error
}

func (r *roleRepository) GetPermissions(ctx context.Context, roleID string) ([]*model.RolePermission, error) {
	var grants []*model.RolePermission
	if err := r.db.WithContext(ctx).Preload("Permission").
		Where("role_id = ?", roleID).Find(&grants).Error; err != nil {
		return nil, err
	}
	return grants, nil
}

// permissionRepository 权限仓库实现
type permissionRepository struct {
	db *gorm.DB
}

// NewPermissionRepository 创建权限仓库
func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) Create(ctx context.Context, perm *model.Permission) error {
	return r.db.WithContext(ctx).Create(perm).Error
}

func (r *permissionRepository) GetByID(ctx context.Context, id string) (*model.Permission, error) {
	var perm model.Permission
	if err := r.db.WithContext(ctx).First(&perm, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *permissionRepository) GetByCode(ctx context.Context, code string) (*model.Permission, error) {
	var perm model.Permission
	if err := r.db.WithContext(ctx).First(&perm, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *permissionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Permission{}, "id = ?", id).Error
}

func (r *permissionRepository) List(ctx context.Context) ([]*model.Permission, error) {
	var perms []*model.Permission
	if err := r.db.WithContext(ctx).Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *permissionRepository) BatchCreate(ctx context.Context, perms []model.Permission) error {
	return r.db.WithContext(ctx).CreateInBatches(perms, 100).Error
}

// userRoleRepository 用户角色仓库实现
type userRoleRepository struct {
	db *gorm.DB
}

// NewUserRoleRepository 创建用户角色仓库
func NewUserRoleRepository(db *gorm.DB) UserRoleRepository {
	return &userRoleRepository{db: db}
}

func (r *userRoleRepository) Assign(ctx context.Context, userID, roleID string) error {
	userRole := &model.UserRole{
		UserID: userID,
		RoleID: roleID,
	}
	return r.db.WithContext(ctx).Create(userRole).Error
}

func (r *userRoleRepository) Revoke(ctx context.Context, userID, roleID string) error {
	return r.db.WithContext(ctx).Where("user_id = ? AND role_id = ?", userID, roleID).Delete(&model.UserRole{}).Error
}

func (r *userRoleRepository) GetUserRoles(ctx context.Context, userID string) ([]*model.Role, error) {
	var userRoles []model.UserRole
	if err := r.db.WithContext(ctx).Preload("Role").Where("user_id = ?", userID).Find(&userRoles).Error; err != nil {
		return nil, err
	}

	roles := make([]*model.Role, 0, len(userRoles))
	for _, ur := range userRoles {
		if ur.Role != nil {
			roles = append(roles, ur.Role)
		}
	}
	return roles, nil
}

func (r *userRoleRepository) HasRole(ctx context.Context, userID, roleCode string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserRole{}).
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ? AND roles.code = ?", userID, roleCode).
		Count(&count).Error
	return count > 0, err
}
