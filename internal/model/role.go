// Package model 定义数据模型
package model

// Role 角色模型
// hierarchyLevel 数值越小权限越高（1 = 最高管理层）
type Role struct {
	BaseModel
	Name           string `gorm:"type:varchar(100);not null" json:"name"`        // 角色名称
	Code           string `gorm:"type:varchar(50);uniqueIndex" json:"code"`      // 角色代码，如 admin, manager
	Description    string `gorm:"type:varchar(500)" json:"description"`          // 角色描述
	HierarchyLevel int    `gorm:"not null;default:5" json:"hierarchy_level"`     // 层级，越小权限越高
	IsSystem       bool   `gorm:"default:false" json:"is_system"`                // 是否系统内置角色
	Status         string `gorm:"type:varchar(20);default:active" json:"status"` // 状态
}

// TableName 指定表名
func (Role) TableName() string {
	return "roles"
}

// IsActive 检查角色是否启用
func (r *Role) IsActive() bool {
	return r.Status == StatusActive
}

// RoleHierarchy 角色继承边
// 角色继承是图结构而非单继承：一个角色可以有多个父角色
// 每条边独立携带 inherit_permissions 开关
type RoleHierarchy struct {
	BaseModel
	ChildRoleID        string `gorm:"type:char(36);index;not null" json:"child_role_id"`  // 子角色 ID
	ParentRoleID       string `gorm:"type:char(36);index;not null" json:"parent_role_id"` // 父角色 ID
	InheritPermissions bool   `gorm:"default:true" json:"inherit_permissions"`            // 是否沿此边继承权限

	// 关联
	ChildRole  *Role `gorm:"foreignKey:ChildRoleID" json:"child_role,omitempty"`
	ParentRole *Role `gorm:"foreignKey:ParentRoleID" json:"parent_role,omitempty"`
}

// TableName 指定表名
func (RoleHierarchy) TableName() string {
	return "role_hierarchies"
}

// RolePermission 角色权限授权边
// is_granted=false 表示显式拒绝；授权边不做物理删除，只改 is_granted 或软删除
type RolePermission struct {
	BaseModel
	RoleID       string `gorm:"type:char(36);index;not null" json:"role_id"`
	PermissionID string `gorm:"type:char(36);index;not null" json:"permission_id"`
	IsGranted    bool   `gorm:"default:true" json:"is_granted"`                       // true=允许 false=显式拒绝
	SourceType   string `gorm:"type:varchar(20);default:role" json:"source_type"`     // 来源：role / template
	GrantedBy    string `gorm:"type:varchar(100)" json:"granted_by"`                  // 授权人
	GrantReason  string `gorm:"type:varchar(500)" json:"grant_reason"`                // 授权理由（审计）

	// 关联
	Permission *Permission `gorm:"foreignKey:PermissionID" json:"permission,omitempty"`
}

// TableName 指定表名
func (RolePermission) TableName() string {
	return "role_permissions"
}

// UserRole 用户角色关联模型
type UserRole struct {
	BaseModel
	UserID string `gorm:"type:char(36);index;not null" json:"user_id"` // 用户 ID
	RoleID string `gorm:"type:char(36);index;not null" json:"role_id"` // 角色 ID

	// 关联
	Role *Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

// TableName 指定表名
func (UserRole) TableName() string {
	return "user_roles"
}

// 系统内置角色代码
const (
	RoleAdmin          = "admin"           // 系统管理员
	RoleSchoolManager  = "school_manager"  // 校区负责人
	RoleDeptHead       = "department_head" // 部门主管
	RoleStaff          = "staff"           // 普通员工
)

// DefaultSystemRoles 系统默认角色列表
func DefaultSystemRoles() []Role {
	return []Role{
		{
			Name:           "系统管理员",
			Code:           RoleAdmin,
			Description:    "拥有系统所有权限",
			HierarchyLevel: 1,
			IsSystem:       true,
			Status:         StatusActive,
		},
		{
			Name:           "校区负责人",
			Code:           RoleSchoolManager,
			Description:    "管理本校区内的人事数据",
			HierarchyLevel: 3,
			IsSystem:       true,
			Status:         StatusActive,
		},
		{
			Name:           "部门主管",
			Code:           RoleDeptHead,
			Description:    "管理本部门内的人事数据",
			HierarchyLevel: 4,
			IsSystem:       true,
			Status:         StatusActive,
		},
		{
			Name:           "普通员工",
			Code:           RoleStaff,
			Description:    "基本访问权限",
			HierarchyLevel: 5,
			IsSystem:       true,
			Status:         StatusActive,
		},
	}
}
