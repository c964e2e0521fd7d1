package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/sxedu-cn/perm-backend/internal/model"
	"github.com/sxedu-cn/perm-backend/internal/repository"
)

// MockRoleRepository 角色仓库 Mock
type MockRoleRepository struct {
	mock.Mock
}

func (m *MockRoleRepository) Create(ctx context.Context, role *model.Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *MockRoleRepository) GetByID(ctx context.Context, id string) (*model.Role, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Role), args.Error(1)
}

func (m *MockRoleRepository) GetByCode(ctx context.Context, code string) (*model.Role, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Role), args.Error(1)
}

func (m *MockRoleRepository) Update(ctx context.Context, role *model.Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *MockRoleRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRoleRepository) List(ctx context.Context, page *repository.Pagination) ([]*model.Role, int64, error) {
	args := m.Called(ctx, page)
	return args.Get(0).([]*model.Role), args.Get(1).(int64), args.Error(2)
}

func (m *MockRoleRepository) AddHierarchyEdge(ctx context.Context, edge *model.RoleHierarchy) error {
	args := m.Called(ctx, edge)
	return args.Error(0)
}

func (m *MockRoleRepository) RemoveHierarchyEdge(ctx context.Context, childRoleID, parentRoleID string) error {
	args := m.Called(ctx, childRoleID, parentRoleID)
	return args.Error(0)
}

func (m *MockRoleRepository) GetParentEdges(ctx context.Context, childRoleID string) ([]*model.RoleHierarchy, error) {
	args := m.Called(ctx, childRoleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.RoleHierarchy), args.Error(1)
}

func (m *MockRoleRepository) ListHierarchyEdges(ctx context.Context) ([]*model.RoleHierarchy, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.RoleHierarchy), args.Error(1)
}

func (m *MockRoleRepository) AddPermission(ctx context.Context, grant *model.RolePermission) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}

func (m *MockRoleRepository) RevokePermission(ctx context.Context, roleID, permissionID string) error {
	args := m.Called(ctx, roleID, permissionID)
	return args.Error(0)
}

func (m *MockRoleRepository) GetPermissions(ctx context.Context, roleID string) ([]*model.RolePermission, error) {
	args := m.Called(ctx, roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.RolePermission), args.Error(1)
}

// MockPermissionRepository 权限仓库 Mock
type MockPermissionRepository struct {
	mock.Mock
}

func (m *MockPermissionRepository) Create(ctx context.Context, perm *model.Permission) error {
	args := m.Called(ctx, perm)
	return args.Error(0)
}

func (m *MockPermissionRepository) GetByID(ctx context.Context, id string) (*model.Permission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Permission), args.Error(1)
}

func (m *MockPermissionRepository) GetByCode(ctx context.Context, code string) (*model.Permission, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Permission), args.Error(1)
}

func (m *MockPermissionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPermissionRepository) List(ctx context.Context) ([]*model.Permission, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Permission), args.Error(1)
}

func (m *MockPermissionRepository) BatchCreate(ctx context.Context, perms []model.Permission) error {
	args := m.Called(ctx, perms)
	return args.Error(0)
}

// MockUserRoleRepository 用户角色仓库 Mock
type MockUserRoleRepository struct {
	mock.Mock
}

func (m *MockUserRoleRepository) Assign(ctx context.Context, userID, roleID string) error {
	args := m.Called(ctx, userID, roleID)
	return args.Error(0)
}

func (m *MockUserRoleRepository) Revoke(ctx context.Context, userID, roleID string) error {
	args := m.Called(ctx, userID, roleID)
	return args.Error(0)
}

func (m *MockUserRoleRepository) GetUserRoles(ctx context.Context, userID string) ([]*model.Role, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Role), args.Error(1)
}

func (m *MockUserRoleRepository) HasRole(ctx context.Context, userID, roleCode string) (bool, error) {
	args := m.Called(ctx, userID, roleCode)
	return args.Bool(0), args.Error(1)
}

// MockUserPermissionRepository 用户直接授权仓库 Mock
type MockUserPermissionRepository struct {
	mock.Mock
}

func (m *MockUserPermissionRepository) Create(ctx context.Context, grant *model.UserPermission) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}

func (m *MockUserPermissionRepository) ListByUser(ctx context.Context, userID string) ([]*model.UserPermission, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.UserPermission), args.Error(1)
}

func (m *MockUserPermissionRepository) Revoke(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserPermissionRepository) ExistsGrant(ctx context.Context, userID, permissionID, sourceType string) (bool, error) {
	args := m.Called(ctx, userID, permissionID, sourceType)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserPermissionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockDelegationRepository 委托仓库 Mock
type MockDelegationRepository struct {
	mock.Mock
}

func (m *MockDelegationRepository) Create(ctx context.Context, d *model.Delegation) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDelegationRepository) GetByID(ctx context.Context, id string) (*model.Delegation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Delegation), args.Error(1)
}

func (m *MockDelegationRepository) Update(ctx context.Context, d *model.Delegation) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDelegationRepository) ListActiveByType(ctx context.Context, delegType string) ([]*model.Delegation, error) {
	args := m.Called(ctx, delegType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Delegation), args.Error(1)
}

func (m *MockDelegationRepository) ListExpired(ctx context.Context, now time.Time) ([]*model.Delegation, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Delegation), args.Error(1)
}

// MockUserDirectory 用户影子目录 Mock
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserDirectory) Ensure(ctx context.Context, userID, displayName string) error {
	args := m.Called(ctx, userID, displayName)
	return args.Error(0)
}

// MockModuleRepository 模块仓库 Mock
type MockModuleRepository struct {
	mock.Mock
}

func (m *MockModuleRepository) Create(ctx context.Context, mod *model.Module) error {
	args := m.Called(ctx, mod)
	return args.Error(0)
}

func (m *MockModuleRepository) GetByID(ctx context.Context, id string) (*model.Module, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Module), args.Error(1)
}

func (m *MockModuleRepository) GetByCode(ctx context.Context, code string) (*model.Module, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Module), args.Error(1)
}

func (m *MockModuleRepository) List(ctx context.Context) ([]*model.Module, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Module), args.Error(1)
}

// MockTemplateRepository 权限模板仓库 Mock
type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) Create(ctx context.Context, t *model.PermissionTemplate) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTemplateRepository) GetByID(ctx context.Context, id string) (*model.PermissionTemplate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PermissionTemplate), args.Error(1)
}

func (m *MockTemplateRepository) GetByCode(ctx context.Context, code string) (*model.PermissionTemplate, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PermissionTemplate), args.Error(1)
}

func (m *MockTemplateRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTemplateRepository) List(ctx context.Context) ([]*model.PermissionTemplate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PermissionTemplate), args.Error(1)
}

// MockHierarchyService 角色继承服务 Mock
type MockHierarchyService struct {
	mock.Mock
}

func (m *MockHierarchyService) EffectivePermissions(ctx context.Context, roleID string) ([]model.GrantCandidate, error) {
	args := m.Called(ctx, roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.GrantCandidate), args.Error(1)
}

func (m *MockHierarchyService) AddEdge(ctx context.Context, childRoleID, parentRoleID string, inheritPermissions bool, grantedBy string) error {
	args := m.Called(ctx, childRoleID, parentRoleID, inheritPermissions, grantedBy)
	return args.Error(0)
}

func (m *MockHierarchyService) RemoveEdge(ctx context.Context, childRoleID, parentRoleID string) error {
	args := m.Called(ctx, childRoleID, parentRoleID)
	return args.Error(0)
}

// MockResolverService 权限解析服务 Mock
type MockResolverService struct {
	mock.Mock
}

func (m *MockResolverService) Resolve(ctx context.Context, userID string, req CheckRequest) (model.Decision, error) {
	args := m.Called(ctx, userID, req)
	return args.Get(0).(model.Decision), args.Error(1)
}

func (m *MockResolverService) ResolveBatch(ctx context.Context, userID string, reqs []CheckRequest) (map[string]model.Decision, error) {
	args := m.Called(ctx, userID, reqs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]model.Decision), args.Error(1)
}

func (m *MockResolverService) Snapshot(ctx context.Context, userID string) (*model.PermissionSnapshot, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PermissionSnapshot), args.Error(1)
}
