// Package model 定义数据模型
package model

import "time"

// UserPermission 用户直接授权模型
// 绕过角色直接授予个人，既用于个别覆盖，也用于委托落地
type UserPermission struct {
	BaseModel
	UserID       string     `gorm:"type:char(36);index;not null" json:"user_id"`
	PermissionID string     `gorm:"type:char(36);index;not null" json:"permission_id"`
	IsGranted    bool       `gorm:"default:true" json:"is_granted"`                     // true=允许 false=显式拒绝
	ValidFrom    *time.Time `json:"valid_from"`                                         // 生效时间，空表示立即生效
	ValidUntil   *time.Time `json:"valid_until"`                                        // 失效时间，空表示永久有效
	Priority     int        `gorm:"default:0" json:"priority"`                          // 优先级，数值越大越优先
	SourceType   string     `gorm:"type:varchar(20);default:direct" json:"source_type"` // 来源：direct / delegation / template
	GrantedBy    string     `gorm:"type:varchar(100)" json:"granted_by"`                // 授权人
	GrantReason  string     `gorm:"type:varchar(500)" json:"grant_reason"`              // 授权理由（审计）

	// 关联
	Permission *Permission `gorm:"foreignKey:PermissionID" json:"permission,omitempty"`
}

// TableName 指定表名
func (UserPermission) TableName() string {
	return "user_permissions"
}

// IsTemporary 是否临时授权（设置了失效时间即为临时）
func (p *UserPermission) IsTemporary() bool {
	return p.ValidUntil != nil
}

// ValidAt 检查授权在指定时刻是否处于有效期内
func (p *UserPermission) ValidAt(now time.Time) bool {
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && now.After(*p.ValidUntil) {
		return false
	}
	return true
}

// 委托类型
const (
	DelegationTypeApproval   = "APPROVAL"   // 审批权委托
	DelegationTypePermission = "PERMISSION" // 权限委托
	DelegationTypeWorkflow   = "WORKFLOW"   // 工作流委托
)

// Delegation 授权委托模型
// 在有效期内把委托人的某项能力转交给受托人
// PERMISSION 类型的委托在落地时生成优先级 PriorityOverride 的用户授权
type Delegation struct {
	BaseModel
	Type           string     `gorm:"type:varchar(20);not null" json:"type"`              // 委托类型
	DelegatorID    string     `gorm:"type:char(36);index;not null" json:"delegator_id"`   // 委托人
	DelegateID     string     `gorm:"type:char(36);index;not null" json:"delegate_id"`    // 受托人
	PermissionCode string     `gorm:"type:varchar(150)" json:"permission_code"`           // 委托的权限代码（PERMISSION 类型）
	EffectiveFrom  time.Time  `gorm:"not null" json:"effective_from"`                     // 生效时间
	EffectiveUntil time.Time  `gorm:"not null" json:"effective_until"`                    // 失效时间
	IsActive       bool       `gorm:"default:true" json:"is_active"`                      // 是否有效
	Context        string     `gorm:"type:varchar(1000)" json:"context"`                  // 自由上下文说明
	MaterializedAt *time.Time `json:"materialized_at"`                                    // 落地为用户授权的时间
}

// TableName 指定表名
func (Delegation) TableName() string {
	return "delegations"
}

// EffectiveAt 检查委托在指定时刻是否生效
func (d *Delegation) EffectiveAt(now time.Time) bool {
	return d.IsActive && !now.Before(d.EffectiveFrom) && !now.After(d.EffectiveUntil)
}

// PermissionTemplate 权限模板模型
// 命名的 (permission, scope) 捆绑包，应用到角色/用户等价于批量创建授权边
type PermissionTemplate struct {
	BaseModel
	Name        string `gorm:"type:varchar(100);not null" json:"name"`
	Code        string `gorm:"type:varchar(50);uniqueIndex" json:"code"`
	Description string `gorm:"type:varchar(500)" json:"description"`
	Version     int    `gorm:"default:1" json:"version"`       // 模板版本
	IsSystem    bool   `gorm:"default:false" json:"is_system"` // 系统模板不能删除

	// 关联
	Items []PermissionTemplateItem `gorm:"foreignKey:TemplateID" json:"items,omitempty"`
}

// TableName 指定表名
func (PermissionTemplate) TableName() string {
	return "permission_templates"
}

// PermissionTemplateItem 模板条目
// module_code 非空时为遗留 moduleAccess 条目，仅用于菜单可见性
type PermissionTemplateItem struct {
	BaseModel
	TemplateID     string `gorm:"type:char(36);index;not null" json:"template_id"`
	PermissionCode string `gorm:"type:varchar(150)" json:"permission_code"` // 细粒度权限代码
	ModuleCode     string `gorm:"type:varchar(50)" json:"module_code"`      // 遗留模块代码
}

// TableName 指定表名
func (PermissionTemplateItem) TableName() string {
	return "permission_template_items"
}

// 系统内置模板代码
const (
	TemplateViewer   = "viewer"          // 只读
	TemplateEditor   = "editor"          // 编辑
	TemplateDeptHead = "department_head" // 部门主管
	TemplateAdmin    = "admin"           // 管理员
)

// UserRef 用户影子记录
// 员工档案由外部系统维护，这里只保留身份提供方下发的用户标识
// 用于解析时判定用户是否存在
type UserRef struct {
	BaseModel
	DisplayName string `gorm:"type:varchar(100)" json:"display_name"`
	Status      string `gorm:"type:varchar(20);default:active" json:"status"`
}

// TableName 指定表名
func (UserRef) TableName() string {
	return "user_refs"
}
