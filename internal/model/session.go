// Package model 定义数据模型
package model

import (
	"time"
)

// Session 用户会话
// 认证由外部身份提供方完成，这里只跟踪权限快照的生命周期：
// 登录（首次请求）时构建，登出时整体丢弃
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	DeviceInfo string    `json:"device_info"`
	IPAddress  string    `json:"ip_address"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsExpired 检查会话是否过期
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// PermissionSnapshot 会话级权限快照
// 角色、已解析权限集与模块树的一次性拉取结果，整体写入 Redis，
// 登出时与决策缓存一起整体丢弃，不跨身份复用
type PermissionSnapshot struct {
	UserID    string    `json:"user_id"`
	RoleCodes []string  `json:"role_codes"` // 用户持有的角色代码
	Grants    []Grant   `json:"grants"`     // 已解析的授权列表
	Modules   []*Module `json:"modules"`    // 可见模块树
	FetchedAt time.Time `json:"fetched_at"` // 拉取时间
}

// Grant 快照中的单条授权
type Grant struct {
	PermissionCode string `json:"permission_code"`
	Resource       string `json:"resource"`
	Action         Action `json:"action"`
	Scope          Scope  `json:"scope"`
	Granted        bool   `json:"granted"`
	Source         string `json:"source"`
	Priority       int    `json:"priority"`
}
