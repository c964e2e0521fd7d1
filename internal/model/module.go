// Package model 定义数据模型
package model

// Module 功能模块模型
// 模块构成树形导航结构，permissions 为遗留的粗粒度动作列表
// 只用于菜单可见性，不参与细粒度鉴权（解析时仅折算为 READ 类权限）
type Module struct {
	BaseModel
	Code        string   `gorm:"type:varchar(50);uniqueIndex" json:"code"`      // 模块代码，如 kpi, workorder
	Name        string   `gorm:"type:varchar(100);not null" json:"name"`        // 模块名称
	ParentID    string   `gorm:"type:char(36);index" json:"parent_id"`          // 父模块 ID，空表示顶级
	Permissions []string `gorm:"serializer:json" json:"permissions"`            // 遗留动作列表，如 ["read","create"]
	SortOrder   int      `gorm:"default:0" json:"sort_order"`                   // 排序
	Status      string   `gorm:"type:varchar(20);default:active" json:"status"` // 状态

	// 关联
	Children []*Module `gorm:"-" json:"children,omitempty"` // 树形结构在内存中组装
}

// TableName 指定表名
func (Module) TableName() string {
	return "modules"
}

// IsActive 检查模块是否启用
func (m *Module) IsActive() bool {
	return m.Status == StatusActive
}

// HasLegacyAction 检查模块是否携带指定的遗留动作
func (m *Module) HasLegacyAction(action string) bool {
	for _, p := range m.Permissions {
		if p == action {
			return true
		}
	}
	return false
}

// BuildModuleTree 把平铺的模块列表组装为树
// 返回顶级模块列表，子节点挂在 Children 上
func BuildModuleTree(modules []*Module) []*Module {
	byID := make(map[string]*Module, len(modules))
	for _, m := range modules {
		byID[m.ID] = m
	}

	var roots []*Module
	for _, m := range modules {
		if m.ParentID == "" {
			roots = append(roots, m)
			continue
		}
		parent, ok := byID[m.ParentID]
		if !ok {
			// 父模块缺失时按顶级处理，避免整棵树不可见
			roots = append(roots, m)
			continue
		}
		parent.Children = append(parent.Children, m)
	}
	return roots
}
