// Package migration 遗留模型一次性迁移
// 把粗粒度模块访问模型翻译为 resource/action/scope 细粒度模型。
// 单线程顺序执行，只允许手工触发，不得并发运行于同一张遗留表
package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/sxedu-cn/perm-backend/internal/model"
	"github.com/sxedu-cn/perm-backend/internal/repository"
	"go.uber.org/zap"
)

// scopeMapping hierarchyLevel 到数据范围的映射
// 业务策略表示为有序查找表而非嵌套条件，便于测试与调整
type scopeMapping struct {
	maxLevel int
	scope    model.Scope
}

var levelScopeTable = []scopeMapping{
	{maxLevel: 2, scope: model.ScopeAll},
	{maxLevel: 3, scope: model.ScopeSchool},
	{maxLevel: 4, scope: model.ScopeDepartment},
}

// scopeForLevel 按角色层级查范围，层级 ≥5 落到 OWN
func scopeForLevel(level int) model.Scope {
	for _, m := range levelScopeTable {
		if level <= m.maxLevel {
			return m.scope
		}
	}
	return model.ScopeOwn
}

// 用户级遗留记录的固定范围
// UserModuleAccess 固定 DEPARTMENT、UserOverride 固定 ALL 是既有业务
// 约定（覆盖按惯例建模为宽范围授权），必须原样保留，调整前需先与
// 业务方确认
const (
	userAccessScope   = model.ScopeDepartment
	userOverrideScope = model.ScopeAll
)

// RowError 单行迁移失败记录
type RowError struct {
	Table string `json:"table"`
	RowID string `json:"row_id"`
	Err   string `json:"error"`
}

// Summary 迁移结果汇总
type Summary struct {
	Migrated int        `json:"migrated"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors"`
}

// Migrator 遗留模型迁移器
type Migrator struct {
	legacyRepo   repository.LegacyAccessRepository
	moduleRepo   repository.ModuleRepository
	roleRepo     repository.RoleRepository
	permRepo     repository.PermissionRepository
	userPermRepo repository.UserPermissionRepository
	logger       *zap.Logger
}

// NewMigrator 创建迁移器
func NewMigrator(
	legacyRepo repository.LegacyAccessRepository,
	moduleRepo repository.ModuleRepository,
	roleRepo repository.RoleRepository,
	permRepo repository.PermissionRepository,
	userPermRepo repository.UserPermissionRepository,
	logger *zap.Logger,
) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{
		legacyRepo:   legacyRepo,
		moduleRepo:   moduleRepo,
		roleRepo:     roleRepo,
		permRepo:     permRepo,
		userPermRepo: userPermRepo,
		logger:       logger,
	}
}

// MigrateAll 迁移全部三张遗留表，返回各表汇总
func (m *Migrator) MigrateAll(ctx context.Context) (map[string]*Summary, error) {
	results := make(map[string]*Summary, 3)

	roleSummary, err := m.MigrateRoleModuleAccess(ctx)
	if err != nil {
		return nil, err
	}
	results["role_module_accesses"] = roleSummary

	userSummary, err := m.MigrateUserModuleAccess(ctx)
	if err != nil {
		return nil, err
	}
	results["user_module_accesses"] = userSummary

	overrideSummary, err := m.MigrateUserOverrides(ctx)
	if err != nil {
		return nil, err
	}
	results["user_overrides"] = overrideSummary

	return results, nil
}

// MigrateRoleModuleAccess 迁移角色模块访问记录
// 范围由角色 hierarchyLevel 推导
func (m *Migrator) MigrateRoleModuleAccess(ctx context.Context) (*Summary, error) {
	rows, err := m.legacyRepo.ListRoleModuleAccess(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取 role_module_accesses 失败: %w", err)
	}

	summary := &Summary{}
	for _, row := range rows {
		if err := m.migrateRoleRow(ctx, row, summary); err != nil {
			// 单行失败不中断批处理，记录后继续
			summary.Errors = append(summary.Errors, RowError{
				Table: "role_module_accesses",
				RowID: row.ID,
				Err:   err.Error(),
			})
		}
	}
	return summary, nil
}

func (m *Migrator) migrateRoleRow(ctx context.Context, row *model.RoleModuleAccess, summary *Summary) error {
	module, err := m.moduleRepo.GetByID(ctx, row.ModuleID)
	if err != nil {
		return fmt.Errorf("模块缺失: %w", err)
	}
	role, err := m.roleRepo.GetByID(ctx, row.RoleID)
	if err != nil {
		return fmt.Errorf("角色缺失: %w", err)
	}

	scope := scopeForLevel(role.HierarchyLevel)
	for _, legacyAction := range row.Permissions {
		perm, err := m.ensurePermission(ctx, module.Code, legacyAction, scope)
		if err != nil {
			return err
		}

		// 幂等：已有对应授权边则跳过
		existing, err := m.roleRepo.GetPermissions(ctx, row.RoleID)
		if err != nil {
			return err
		}
		if hasRoleGrant(existing, perm.ID) {
			summary.Skipped++
			continue
		}

		err = m.roleRepo.AddPermission(ctx, &model.RolePermission{
			RoleID:       row.RoleID,
			PermissionID: perm.ID,
			IsGranted:    true,
			SourceType:   model.SourceRole,
			GrantedBy:    "legacy-migration",
			GrantReason:  "遗留迁移 role_module_access " + row.ID,
		})
		if err != nil {
			return err
		}
		summary.Migrated++
	}
	return nil
}

// MigrateUserModuleAccess 迁移用户模块访问记录
// 范围固定 DEPARTMENT，不随层级变化
func (m *Migrator) MigrateUserModuleAccess(ctx context.Context) (*Summary, error) {
	rows, err := m.legacyRepo.ListUserModuleAccess(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取 user_module_accesses 失败: %w", err)
	}

	summary := &Summary{}
	for _, row := range rows {
		if err := m.migrateUserRow(ctx, "user_module_accesses", row.ID, row.UserID, row.ModuleID, row.Permissions, userAccessScope, 0, summary); err != nil {
			summary.Errors = append(summary.Errors, RowError{
				Table: "user_module_accesses",
				RowID: row.ID,
				Err:   err.Error(),
			})
		}
	}
	return summary, nil
}

// MigrateUserOverrides 迁移用户覆盖记录
// 范围固定 ALL，优先级为覆盖层级
func (m *Migrator) MigrateUserOverrides(ctx context.Context) (*Summary, error) {
	rows, err := m.legacyRepo.ListUserOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取 user_overrides 失败: %w", err)
	}

	summary := &Summary{}
	for _, row := range rows {
		if err := m.migrateUserRow(ctx, "user_overrides", row.ID, row.UserID, row.ModuleID, row.Permissions, userOverrideScope, model.PriorityOverride, summary); err != nil {
			summary.Errors = append(summary.Errors, RowError{
				Table: "user_overrides",
				RowID: row.ID,
				Err:   err.Error(),
			})
		}
	}
	return summary, nil
}

func (m *Migrator) migrateUserRow(ctx context.Context, table, rowID, userID, moduleID string, actions []string, scope model.Scope, priority int, summary *Summary) error {
	module, err := m.moduleRepo.GetByID(ctx, moduleID)
	if err != nil {
		return fmt.Errorf("模块缺失: %w", err)
	}

	for _, legacyAction := range actions {
		perm, err := m.ensurePermission(ctx, module.Code, legacyAction, scope)
		if err != nil {
			return err
		}

		exists, err := m.userPermRepo.ExistsGrant(ctx, userID, perm.ID, model.SourceDirect)
		if err != nil {
			return err
		}
		if exists {
			summary.Skipped++
			continue
		}

		err = m.userPermRepo.Create(ctx, &model.UserPermission{
			UserID:       userID,
			PermissionID: perm.ID,
			IsGranted:    true,
			Priority:     priority,
			SourceType:   model.SourceDirect,
			GrantedBy:    "legacy-migration",
			GrantReason:  "遗留迁移 " + table + " " + rowID,
		})
		if err != nil {
			return err
		}
		summary.Migrated++
	}
	return nil
}

// ensurePermission 查找目标权限，不存在则按非系统权限现场创建
// 遗留动作名大写化，模块代码小写化组合成权限代码
func (m *Migrator) ensurePermission(ctx context.Context, moduleCode, legacyAction string, scope model.Scope) (*model.Permission, error) {
	action := model.Action(strings.ToUpper(strings.TrimSpace(legacyAction)))
	resource := strings.ToLower(moduleCode)
	code := model.BuildPermissionCode(resource, action, scope)

	perm, err := m.permRepo.GetByCode(ctx, code)
	if err == nil && perm != nil {
		return perm, nil
	}

	created := &model.Permission{
		Resource:    resource,
		Action:      action,
		Scope:       scope,
		Code:        code,
		Description: "遗留迁移生成",
		IsSystem:    false,
		IsActive:    true,
	}
	if err := m.permRepo.Create(ctx, created); err != nil {
		return nil, fmt.Errorf("创建权限失败: %w", err)
	}
	m.logger.Info("迁移过程中创建缺失权限", zap.String("code", code))
	return created, nil
}

func hasRoleGrant(grants []*model.RolePermission, permissionID string) bool {
	for _, g := range grants {
		if g.PermissionID == permissionID {
			return true
		}
	}
	return false
}
