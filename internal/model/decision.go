// Package model 定义数据模型
package model

// Decision 权限解析结果（运行时结构，不落库）
type Decision struct {
	Allowed    bool   `json:"allowed"`               // 是否允许
	Source     string `json:"source"`                // 授权来源：role/direct/module/delegation/template/none
	SourceID   string `json:"source_id,omitempty"`   // 来源记录 ID
	SourceName string `json:"source_name,omitempty"` // 来源名称，如角色名
	Priority   int    `json:"priority"`              // 胜出候选的优先级
}

// DenyDecision 默认拒绝结果
// 无满足条件的授权、解析错误、依赖短路都必须落到拒绝（fail-closed）
func DenyDecision() Decision {
	return Decision{Allowed: false, Source: SourceNone}
}

// GrantCandidate 统一的候选授权值类型
// 角色/直授/模板/委托/模块各来源全部折算成同一种候选再统一合并
// 避免按来源分支比较导致的检查顺序缺陷
type GrantCandidate struct {
	PermissionCode string // 权限代码
	Resource       string // 资源
	Action         Action // 操作
	Scope          Scope  // 授权范围
	Granted        bool   // false 表示显式拒绝
	Priority       int    // 优先级，数值越大越优先
	Source         string // 来源标签
	SourceID       string // 来源记录 ID
	SourceName     string // 来源名称
}

// sourceRank 来源平级时的先后顺序，数值越小越优先
// 直授（含委托落地）优先于角色，模块折算最后
var sourceRank = map[string]int{
	SourceDirect:     0,
	SourceDelegation: 0,
	SourceTemplate:   1,
	SourceRole:       2,
	SourceModule:     3,
}

// Better 比较两个候选，返回 true 表示 c 应当胜出 other
// 规则：优先级高者胜；平级时显式拒绝压制允许；再平级按来源顺序 direct > role
func (c GrantCandidate) Better(other GrantCandidate) bool {
	if c.Priority != other.Priority {
		return c.Priority > other.Priority
	}
	if c.Granted != other.Granted {
		return !c.Granted
	}
	return sourceRank[c.Source] < sourceRank[other.Source]
}

// Decision 把胜出候选转换为解析结果
func (c GrantCandidate) Decision() Decision {
	return Decision{
		Allowed:    c.Granted,
		Source:     c.Source,
		SourceID:   c.SourceID,
		SourceName: c.SourceName,
		Priority:   c.Priority,
	}
}
