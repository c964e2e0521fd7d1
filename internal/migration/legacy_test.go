package migration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/sxedu-cn/perm-backend/internal/model"
	"github.com/sxedu-cn/perm-backend/internal/repository"
)

type mockLegacyRepo struct {
	mock.Mock
}

func (m *mockLegacyRepo) ListRoleModuleAccess(ctx context.Context) ([]*model.RoleModuleAccess, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.RoleModuleAccess), args.Error(1)
}

func (m *mockLegacyRepo) ListUserModuleAccess(ctx context.Context) ([]*model.UserModuleAccess, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.UserModuleAccess), args.Error(1)
}

func (m *mockLegacyRepo) ListUserOverrides(ctx context.Context) ([]*model.UserOverride, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.UserOverride), args.Error(1)
}

type mockModuleRepo struct {
	mock.Mock
}

func (m *mockModuleRepo) Create(ctx context.Context, mod *model.Module) error {
	args := m.Called(ctx, mod)
	return args.Error(0)
}

func (m *mockModuleRepo) GetByID(ctx context.Context, id string) (*model.Module, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Module), args.Error(1)
}

func (m *mockModuleRepo) GetByCode(ctx context.Context, code string) (*model.Module, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Module), args.Error(1)
}

func (m *mockModuleRepo) List(ctx context.Context) ([]*model.Module, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Module), args.Error(1)
}

type mockRoleRepo struct {
	mock.Mock
}

func (m *mockRoleRepo) Create(ctx context.Context, role *model.Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *mockRoleRepo) GetByID(ctx context.Context, id string) (*model.Role, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Role), args.Error(1)
}

func (m *mockRoleRepo) GetByCode(ctx context.Context, code string) (*model.Role, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Role), args.Error(1)
}

func (m *mockRoleRepo) Update(ctx context.Context, role *model.Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *mockRoleRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRoleRepo) List(ctx context.Context, page *repository.Pagination) ([]*model.Role, int64, error) {
	args := m.Called(ctx, page)
	return args.Get(0).([]*model.Role), args.Get(1).(int64), args.Error(2)
}

func (m *mockRoleRepo) AddHierarchyEdge(ctx context.Context, edge *model.RoleHierarchy) error {
	args := m.Called(ctx, edge)
	return args.Error(0)
}

func (m *mockRoleRepo) RemoveHierarchyEdge(ctx context.Context, childRoleID, parentRoleID string) error {
	args := m.Called(ctx, childRoleID, parentRoleID)
	return args.Error(0)
}

func (m *mockRoleRepo) GetParentEdges(ctx context.Context, childRoleID string) ([]*model.RoleHierarchy, error) {
	args := m.Called(ctx, childRoleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.RoleHierarchy), args.Error(1)
}

func (m *mockRoleRepo) ListHierarchyEdges(ctx context.Context) ([]*model.RoleHierarchy, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.RoleHierarchy), args.Error(1)
}

func (m *mockRoleRepo) AddPermission(ctx context.Context, grant *model.RolePermission) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}

func (m *mockRoleRepo) RevokePermission(ctx context.Context, roleID, permissionID string) error {
	args := m.Called(ctx, roleID, permissionID)
	return args.Error(0)
}

func (m *mockRoleRepo) GetPermissions(ctx context.Context, roleID string) ([]*model.RolePermission, error) {
	args := m.Called(ctx, roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.RolePermission), args.Error(1)
}

type mockPermRepo struct {
	mock.Mock
}

func (m *mockPermRepo) Create(ctx context.Context, perm *model.Permission) error {
	args := m.Called(ctx, perm)
	return args.Error(0)
}

func (m *mockPermRepo) GetByID(ctx context.Context, id string) (*model.Permission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Permission), args.Error(1)
}

func (m *mockPermRepo) GetByCode(ctx context.Context, code string) (*model.Permission, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Permission), args.Error(1)
}

func (m *mockPermRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPermRepo) List(ctx context.Context) ([]*model.Permission, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Permission), args.Error(1)
}

func (m *mockPermRepo) BatchCreate(ctx context.Context, perms []model.Permission) error {
	args := m.Called(ctx, perms)
	return args.Error(0)
}

type mockUserPermRepo struct {
	mock.Mock
}

func (m *mockUserPermRepo) Create(ctx context.Context, grant *model.UserPermission) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}

func (m *mockUserPermRepo) ListByUser(ctx context.Context, userID string) ([]*model.UserPermission, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.UserPermission), args.Error(1)
}

func (m *mockUserPermRepo) Revoke(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockUserPermRepo) ExistsGrant(ctx context.Context, userID, permissionID, sourceType string) (bool, error) {
	args := m.Called(ctx, userID, permissionID, sourceType)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserPermRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type migratorFixture struct {
	legacyRepo   *mockLegacyRepo
	moduleRepo   *mockModuleRepo
	roleRepo     *mockRoleRepo
	permRepo     *mockPermRepo
	userPermRepo *mockUserPermRepo
	migrator     *Migrator
}

func newMigratorFixture() *migratorFixture {
	f := &migratorFixture{
		legacyRepo:   new(mockLegacyRepo),
		moduleRepo:   new(mockModuleRepo),
		roleRepo:     new(mockRoleRepo),
		permRepo:     new(mockPermRepo),
		userPermRepo: new(mockUserPermRepo),
	}
	f.migrator = NewMigrator(f.legacyRepo, f.moduleRepo, f.roleRepo, f.permRepo, f.userPermRepo, nil)
	return f
}

func kpiModule() *model.Module {
	return &model.Module{
		BaseModel: model.BaseModel{ID: "m-kpi"},
		Code:      "kpi",
		Name:      "绩效模块",
		Status:    model.StatusActive,
	}
}

func TestScopeForLevel(t *testing.T) {
	assert.Equal(t, model.ScopeAll, scopeForLevel(1))
	assert.Equal(t, model.ScopeAll, scopeForLevel(2))
	assert.Equal(t, model.ScopeSchool, scopeForLevel(3))
	assert.Equal(t, model.ScopeDepartment, scopeForLevel(4))
	assert.Equal(t, model.ScopeOwn, scopeForLevel(5))
	assert.Equal(t, model.ScopeOwn, scopeForLevel(9))
}

// 层级 4 的角色：kpi 模块的 read/approve 翻译为 DEPARTMENT 范围授权
func TestMigrateRoleModuleAccess(t *testing.T) {
	f := newMigratorFixture()
	ctx := context.Background()

	f.legacyRepo.On("ListRoleModuleAccess", mock.Anything).Return([]*model.RoleModuleAccess{
		{
			BaseModel:   model.BaseModel{ID: "rma-1"},
			RoleID:      "dept-head",
			ModuleID:    "m-kpi",
			Permissions: []string{"read", "approve"},
			IsActive:    true,
		},
	}, nil)
	f.moduleRepo.On("GetByID", mock.Anything, "m-kpi").Return(kpiModule(), nil)
	f.roleRepo.On("GetByID", mock.Anything, "dept-head").Return(&model.Role{
		BaseModel:      model.BaseModel{ID: "dept-head"},
		Code:           "department_head",
		HierarchyLevel: 4,
		Status:         model.StatusActive,
	}, nil)
	f.permRepo.On("GetByCode", mock.Anything, "kpi.read.department").Return(&model.Permission{
		BaseModel: model.BaseModel{ID: "p-read"}, Code: "kpi.read.department", IsActive: true,
	}, nil)
	f.permRepo.On("GetByCode", mock.Anything, "kpi.approve.department").Return(nil, errors.New("记录不存在"))
	// 缺失的权限现场创建为非系统权限
	f.permRepo.On("Create", mock.Anything, mock.MatchedBy(func(p *model.Permission) bool {
		return p.Code == "kpi.approve.department" &&
			p.Action == model.ActionApprove &&
			p.Scope == model.ScopeDepartment &&
			!p.IsSystem && p.IsActive
	})).Return(nil).Once()
	f.roleRepo.On("GetPermissions", mock.Anything, "dept-head").Return([]*model.RolePermission{}, nil)
	f.roleRepo.On("AddPermission", mock.Anything, mock.MatchedBy(func(g *model.RolePermission) bool {
		return g.RoleID == "dept-head" && g.IsGranted &&
			g.SourceType == model.SourceRole && g.GrantedBy == "legacy-migration"
	})).Return(nil).Twice()

	summary, err := f.migrator.MigrateRoleModuleAccess(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, summary.Migrated)
	assert.Equal(t, 0, summary.Skipped)
	assert.Empty(t, summary.Errors)
	f.roleRepo.AssertExpectations(t)
	f.permRepo.AssertExpectations(t)
}

// 二次执行：授权边已存在时全部跳过
func TestMigrateRoleModuleAccessIdempotent(t *testing.T) {
	f := newMigratorFixture()

	f.legacyRepo.On("ListRoleModuleAccess", mock.Anything).Return([]*model.RoleModuleAccess{
		{
			BaseModel:   model.BaseModel{ID: "rma-1"},
			RoleID:      "dept-head",
			ModuleID:    "m-kpi",
			Permissions: []string{"read"},
			IsActive:    true,
		},
	}, nil)
	f.moduleRepo.On("GetByID", mock.Anything, "m-kpi").Return(kpiModule(), nil)
	f.roleRepo.On("GetByID", mock.Anything, "dept-head").Return(&model.Role{
		BaseModel:      model.BaseModel{ID: "dept-head"},
		HierarchyLevel: 4,
	}, nil)
	f.permRepo.On("GetByCode", mock.Anything, "kpi.read.department").Return(&model.Permission{
		BaseModel: model.BaseModel{ID: "p-read"}, Code: "kpi.read.department", IsActive: true,
	}, nil)
	f.roleRepo.On("GetPermissions", mock.Anything, "dept-head").Return([]*model.RolePermission{
		{RoleID: "dept-head", PermissionID: "p-read", IsGranted: true},
	}, nil)

	summary, err := f.migrator.MigrateRoleModuleAccess(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, summary.Migrated)
	assert.Equal(t, 1, summary.Skipped)
	f.roleRepo.AssertNotCalled(t, "AddPermission", mock.Anything, mock.Anything)
}

// 单行失败不中断批处理，错误逐行记录
func TestMigrateRoleModuleAccessRowErrorContinues(t *testing.T) {
	f := newMigratorFixture()

	f.legacyRepo.On("ListRoleModuleAccess", mock.Anything).Return([]*model.RoleModuleAccess{
		{
			BaseModel:   model.BaseModel{ID: "rma-bad"},
			RoleID:      "ghost",
			ModuleID:    "m-missing",
			Permissions: []string{"read"},
			IsActive:    true,
		},
		{
			BaseModel:   model.BaseModel{ID: "rma-good"},
			RoleID:      "staff",
			ModuleID:    "m-kpi",
			Permissions: []string{"read"},
			IsActive:    true,
		},
	}, nil)
	f.moduleRepo.On("GetByID", mock.Anything, "m-missing").Return(nil, errors.New("记录不存在"))
	f.moduleRepo.On("GetByID", mock.Anything, "m-kpi").Return(kpiModule(), nil)
	f.roleRepo.On("GetByID", mock.Anything, "staff").Return(&model.Role{
		BaseModel:      model.BaseModel{ID: "staff"},
		HierarchyLevel: 5,
	}, nil)
	f.permRepo.On("GetByCode", mock.Anything, "kpi.read.own").Return(&model.Permission{
		BaseModel: model.BaseModel{ID: "p-read"}, Code: "kpi.read.own", IsActive: true,
	}, nil)
	f.roleRepo.On("GetPermissions", mock.Anything, "staff").Return([]*model.RolePermission{}, nil)
	f.roleRepo.On("AddPermission", mock.Anything, mock.Anything).Return(nil).Once()

	summary, err := f.migrator.MigrateRoleModuleAccess(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Migrated)
	assert.Len(t, summary.Errors, 1)
	assert.Equal(t, "rma-bad", summary.Errors[0].RowID)
}

// 用户模块访问固定映射到 DEPARTMENT 范围
func TestMigrateUserModuleAccess(t *testing.T) {
	f := newMigratorFixture()

	f.legacyRepo.On("ListUserModuleAccess", mock.Anything).Return([]*model.UserModuleAccess{
		{
			BaseModel:   model.BaseModel{ID: "uma-1"},
			UserID:      "u1",
			ModuleID:    "m-kpi",
			Permissions: []string{"read"},
			IsActive:    true,
		},
	}, nil)
	f.moduleRepo.On("GetByID", mock.Anything, "m-kpi").Return(kpiModule(), nil)
	f.permRepo.On("GetByCode", mock.Anything, "kpi.read.department").Return(&model.Permission{
		BaseModel: model.BaseModel{ID: "p1"}, Code: "kpi.read.department", IsActive: true,
	}, nil)
	f.userPermRepo.On("ExistsGrant", mock.Anything, "u1", "p1", model.SourceDirect).Return(false, nil)
	f.userPermRepo.On("Create", mock.Anything, mock.MatchedBy(func(g *model.UserPermission) bool {
		return g.UserID == "u1" && g.Priority == 0 && g.SourceType == model.SourceDirect
	})).Return(nil).Once()

	summary, err := f.migrator.MigrateUserModuleAccess(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Migrated)
	f.userPermRepo.AssertExpectations(t)
}

// 用户覆盖固定映射到 ALL 范围、覆盖优先级
func TestMigrateUserOverrides(t *testing.T) {
	f := newMigratorFixture()

	f.legacyRepo.On("ListUserOverrides", mock.Anything).Return([]*model.UserOverride{
		{
			BaseModel:   model.BaseModel{ID: "ov-1"},
			UserID:      "u1",
			ModuleID:    "m-kpi",
			Permissions: []string{"export"},
			IsActive:    true,
		},
	}, nil)
	f.moduleRepo.On("GetByID", mock.Anything, "m-kpi").Return(kpiModule(), nil)
	f.permRepo.On("GetByCode", mock.Anything, "kpi.export.all").Return(&model.Permission{
		BaseModel: model.BaseModel{ID: "p1"}, Code: "kpi.export.all", IsActive: true,
	}, nil)
	f.userPermRepo.On("ExistsGrant", mock.Anything, "u1", "p1", model.SourceDirect).Return(false, nil)
	f.userPermRepo.On("Create", mock.Anything, mock.MatchedBy(func(g *model.UserPermission) bool {
		return g.Priority == model.PriorityOverride
	})).Return(nil).Once()

	summary, err := f.migrator.MigrateUserOverrides(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Migrated)
	f.userPermRepo.AssertExpectations(t)
}

func TestMigrateAll(t *testing.T) {
	f := newMigratorFixture()
	f.legacyRepo.On("ListRoleModuleAccess", mock.Anything).Return([]*model.RoleModuleAccess{}, nil)
	f.legacyRepo.On("ListUserModuleAccess", mock.Anything).Return([]*model.UserModuleAccess{}, nil)
	f.legacyRepo.On("ListUserOverrides", mock.Anything).Return([]*model.UserOverride{}, nil)

	results, err := f.migrator.MigrateAll(context.Background())
	assert.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Contains(t, results, "role_module_accesses")
	assert.Contains(t, results, "user_module_accesses")
	assert.Contains(t, results, "user_overrides")
}
