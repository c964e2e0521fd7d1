// Package model 定义数据模型
package model

// 遗留粗粒度模块访问模型
// 仅供一次性迁移工具读取，新代码不再写入这些表

// RoleModuleAccess 遗留角色模块访问记录
type RoleModuleAccess struct {
	BaseModel
	RoleID      string   `gorm:"type:char(36);index;not null" json:"role_id"`
	ModuleID    string   `gorm:"type:char(36);index;not null" json:"module_id"`
	Permissions []string `gorm:"serializer:json" json:"permissions"` // 动作列表，如 ["read","approve"]
	IsActive    bool     `gorm:"default:true" json:"is_active"`
}

// TableName 指定表名
func (RoleModuleAccess) TableName() string {
	return "role_module_accesses"
}

// UserModuleAccess 遗留用户模块访问记录
type UserModuleAccess struct {
	BaseModel
	UserID      string   `gorm:"type:char(36);index;not null" json:"user_id"`
	ModuleID    string   `gorm:"type:char(36);index;not null" json:"module_id"`
	Permissions []string `gorm:"serializer:json" json:"permissions"`
	IsActive    bool     `gorm:"default:true" json:"is_active"`
}

// TableName 指定表名
func (UserModuleAccess) TableName() string {
	return "user_module_accesses"
}

// UserOverride 遗留用户覆盖记录
// 按约定覆盖建模为宽范围授权，迁移时固定映射到 ALL 范围
type UserOverride struct {
	BaseModel
	UserID      string   `gorm:"type:char(36);index;not null" json:"user_id"`
	ModuleID    string   `gorm:"type:char(36);index;not null" json:"module_id"`
	Permissions []string `gorm:"serializer:json" json:"permissions"`
	Reason      string   `gorm:"type:varchar(500)" json:"reason"`
	IsActive    bool     `gorm:"default:true" json:"is_active"`
}

// TableName 指定表名
func (UserOverride) TableName() string {
	return "user_overrides"
}
