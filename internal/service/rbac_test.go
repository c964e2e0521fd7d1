package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/sxedu-cn/perm-backend/internal/model"
)

type rbacFixture struct {
	roleRepo     *MockRoleRepository
	permRepo     *MockPermissionRepository
	userRoleRepo *MockUserRoleRepository
	userPermRepo *MockUserPermissionRepository
	svc          RBACService
}

func newRBACFixture() *rbacFixture {
	f := &rbacFixture{
		roleRepo:     new(MockRoleRepository),
		permRepo:     new(MockPermissionRepository),
		userRoleRepo: new(MockUserRoleRepository),
		userPermRepo: new(MockUserPermissionRepository),
	}
	f.svc = NewRBACService(f.roleRepo, f.permRepo, f.userRoleRepo, f.userPermRepo)
	return f
}

func TestCreateRole(t *testing.T) {
	f := newRBACFixture()
	role := &model.Role{Name: "教务专员", Code: "academic_clerk", HierarchyLevel: 5}
	f.roleRepo.On("GetByCode", mock.Anything, "academic_clerk").Return(nil, ErrRoleNotFound)
	f.roleRepo.On("Create", mock.Anything, role).Return(nil).Once()

	err := f.svc.CreateRole(context.Background(), role)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusActive, role.Status)
}

func TestCreateRoleDuplicateCode(t *testing.T) {
	f := newRBACFixture()
	f.roleRepo.On("GetByCode", mock.Anything, "admin").Return(testRole("admin", "系统管理员", 1), nil)

	err := f.svc.CreateRole(context.Background(), &model.Role{Name: "另一个管理员", Code: "admin"})
	assert.ErrorIs(t, err, ErrRoleCodeExists)
	f.roleRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDeleteSystemRole(t *testing.T) {
	f := newRBACFixture()
	role := testRole("admin", "系统管理员", 1)
	role.IsSystem = true
	f.roleRepo.On("GetByID", mock.Anything, "admin").Return(role, nil)

	err := f.svc.DeleteRole(context.Background(), "admin")
	assert.ErrorIs(t, err, ErrSystemRole)
	f.roleRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestUpdateSystemRoleCodeRejected(t *testing.T) {
	f := newRBACFixture()
	existing := testRole("admin", "系统管理员", 1)
	existing.IsSystem = true
	f.roleRepo.On("GetByID", mock.Anything, "admin").Return(existing, nil)

	changed := testRole("admin", "系统管理员", 1)
	changed.Code = "superuser"
	err := f.svc.UpdateRole(context.Background(), changed)
	assert.ErrorIs(t, err, ErrSystemRole)
}

func TestCreatePermissionInvalidScope(t *testing.T) {
	f := newRBACFixture()
	err := f.svc.CreatePermission(context.Background(), &model.Permission{
		Resource: "employee",
		Action:   model.ActionRead,
		Scope:    "COUNTRY",
	})
	assert.ErrorIs(t, err, ErrInvalidScope)
}

// 权限代码缺省时按 resource.action.scope 自动生成
func TestCreatePermissionAutoCode(t *testing.T) {
	f := newRBACFixture()
	perm := &model.Permission{
		Resource: "employee",
		Action:   model.ActionRead,
		Scope:    model.ScopeAll,
	}
	f.permRepo.On("GetByCode", mock.Anything, "employee.read.all").Return(nil, ErrPermissionNotFound)
	f.permRepo.On("Create", mock.Anything, perm).Return(nil).Once()

	err := f.svc.CreatePermission(context.Background(), perm)
	assert.NoError(t, err)
	assert.Equal(t, "employee.read.all", perm.Code)
	assert.True(t, perm.IsActive)
}

func TestDeleteSystemPermission(t *testing.T) {
	f := newRBACFixture()
	f.permRepo.On("GetByID", mock.Anything, "p1").Return(&model.Permission{
		BaseModel: model.BaseModel{ID: "p1"},
		IsSystem:  true,
	}, nil)

	err := f.svc.DeletePermission(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrSystemPermission)
}

func TestGrantToRole(t *testing.T) {
	f := newRBACFixture()
	f.roleRepo.On("GetByID", mock.Anything, "staff").Return(testRole("staff", "普通员工", 5), nil)
	f.permRepo.On("GetByID", mock.Anything, "p1").Return(&model.Permission{
		BaseModel: model.BaseModel{ID: "p1"},
	}, nil)
	f.roleRepo.On("AddPermission", mock.Anything, mock.MatchedBy(func(g *model.RolePermission) bool {
		return g.RoleID == "staff" && g.PermissionID == "p1" && !g.IsGranted
	})).Return(nil).Once()

	// 显式拒绝边照常写入
	err := f.svc.GrantToRole(context.Background(), "staff", "p1", false, "admin", "限制访问")
	assert.NoError(t, err)
	f.roleRepo.AssertExpectations(t)
}

func TestGrantToRoleMissingRole(t *testing.T) {
	f := newRBACFixture()
	f.roleRepo.On("GetByID", mock.Anything, "ghost").Return(nil, ErrRoleNotFound)

	err := f.svc.GrantToRole(context.Background(), "ghost", "p1", true, "admin", "")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestGrantToUserDefaultsSourceType(t *testing.T) {
	f := newRBACFixture()
	grant := &model.UserPermission{UserID: "u1", PermissionID: "p1", IsGranted: true}
	f.permRepo.On("GetByID", mock.Anything, "p1").Return(&model.Permission{
		BaseModel: model.BaseModel{ID: "p1"},
	}, nil)
	f.userPermRepo.On("Create", mock.Anything, grant).Return(nil).Once()

	err := f.svc.GrantToUser(context.Background(), grant)
	assert.NoError(t, err)
	assert.Equal(t, model.SourceDirect, grant.SourceType)
}

func TestAssignRoleMissingRole(t *testing.T) {
	f := newRBACFixture()
	f.roleRepo.On("GetByID", mock.Anything, "ghost").Return(nil, ErrRoleNotFound)

	err := f.svc.AssignRole(context.Background(), "u1", "ghost")
	assert.ErrorIs(t, err, ErrRoleNotFound)
	f.userRoleRepo.AssertNotCalled(t, "Assign", mock.Anything, mock.Anything, mock.Anything)
}
