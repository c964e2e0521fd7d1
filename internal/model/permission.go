// Package model 定义数据模型
package model

import "strings"

// Action 权限操作
type Action string

// 权限操作枚举
const (
	ActionCreate  Action = "CREATE"  // 创建
	ActionRead    Action = "READ"    // 读取
	ActionUpdate  Action = "UPDATE"  // 更新
	ActionDelete  Action = "DELETE"  // 删除
	ActionApprove Action = "APPROVE" // 审批
	ActionExport  Action = "EXPORT"  // 导出
	ActionImport  Action = "IMPORT"  // 导入
	ActionClose   Action = "CLOSE"   // 关闭
	ActionAssign  Action = "ASSIGN"  // 指派
	ActionPrint   Action = "PRINT"   // 打印
)

// AllActions 所有权限操作
func AllActions() []Action {
	return []Action{
		ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionApprove,
		ActionExport, ActionImport, ActionClose, ActionAssign, ActionPrint,
	}
}

// Scope 数据范围，从窄到宽排序
type Scope string

// 数据范围枚举
const (
	ScopeOwn        Scope = "OWN"        // 本人
	ScopeDepartment Scope = "DEPARTMENT" // 本部门
	ScopeSchool     Scope = "SCHOOL"     // 本校区
	ScopeAll        Scope = "ALL"        // 全部
)

// scopeRank 范围宽度排序，数值越大范围越宽
var scopeRank = map[Scope]int{
	ScopeOwn:        1,
	ScopeDepartment: 2,
	ScopeSchool:     3,
	ScopeAll:        4,
}

// Valid 检查范围是否合法
func (s Scope) Valid() bool {
	_, ok := scopeRank[s]
	return ok
}

// Covers 检查授权范围是否覆盖请求范围
// 范围覆盖是单向的：宽覆盖窄（ALL 覆盖 OWN），窄不覆盖宽
func (s Scope) Covers(requested Scope) bool {
	sr, ok1 := scopeRank[s]
	rr, ok2 := scopeRank[requested]
	if !ok1 || !ok2 {
		return false
	}
	return sr >= rr
}

// ParseScope 解析范围字符串，空串返回 false
func ParseScope(raw string) (Scope, bool) {
	s := Scope(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", false
	}
	return s, true
}

// 授权来源
const (
	SourceRole       = "role"       // 角色授权（含继承）
	SourceDirect     = "direct"     // 用户直接授权
	SourceModule     = "module"     // 模块访问（遗留模型）
	SourceDelegation = "delegation" // 授权委托
	SourceTemplate   = "template"   // 权限模板
	SourceNone       = "none"       // 无授权
)

// 优先级层级，业务策略常量
// 相对顺序不可改变：覆盖/委托 > 模板 > 角色 > 模块
const (
	PriorityOverride = 200  // 用户覆盖与委托落地授权
	PriorityTemplate = 100  // 模板应用产生的授权
	PriorityRole     = 0    // 普通角色授权（自身层级）
	PriorityModule   = -100 // 遗留模块访问折算

	// HierarchyHopPenalty 角色继承每上溯一层的优先级衰减
	// 保证冲突时近端角色总是胜过远端祖先
	HierarchyHopPenalty = 10
)

// Permission 权限模型
// 一旦被授权边引用即视为不可变；系统权限不能删除或修改 resource/action
type Permission struct {
	BaseModel
	Resource    string `gorm:"type:varchar(100);not null;index" json:"resource"` // 资源名，小写名词，如 workorder
	Action      Action `gorm:"type:varchar(20);not null" json:"action"`          // 操作
	Scope       Scope  `gorm:"type:varchar(20);not null" json:"scope"`           // 数据范围
	Code        string `gorm:"type:varchar(150);uniqueIndex" json:"code"`        // 权限代码，格式：resource.action.scope
	Description string `gorm:"type:varchar(500)" json:"description"`             // 权限描述
	IsSystem    bool   `gorm:"default:false" json:"is_system"`                   // 是否系统内置权限
	IsActive    bool   `gorm:"default:true" json:"is_active"`                    // 是否启用
}

// TableName 指定表名
func (Permission) TableName() string {
	return "permissions"
}

// BuildPermissionCode 构建权限代码
func BuildPermissionCode(resource string, action Action, scope Scope) string {
	return strings.ToLower(resource) + "." + strings.ToLower(string(action)) + "." + strings.ToLower(string(scope))
}

// DefaultSystemPermissions 系统默认权限列表
// 按 HR 管理域的核心资源生成 resource × action × scope 矩阵
func DefaultSystemPermissions() []Permission {
	resources := []string{"employee", "department", "school", "position", "workorder", "workflow", "kpi"}
	actions := []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionApprove, ActionExport}
	scopes := []Scope{ScopeOwn, ScopeDepartment, ScopeSchool, ScopeAll}

	var permissions []Permission
	for _, resource := range resources {
		for _, action := range actions {
			for _, scope := range scopes {
				permissions = append(permissions, Permission{
					Resource:    resource,
					Action:      action,
					Scope:       scope,
					Code:        BuildPermissionCode(resource, action, scope),
					Description: resource + " " + string(action) + " " + string(scope) + " 权限",
					IsSystem:    true,
					IsActive:    true,
				})
			}
		}
	}
	return permissions
}
