// Package service 业务逻辑层
package service

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sxedu-cn/perm-backend/internal/metrics"
	"github.com/sxedu-cn/perm-backend/internal/model"
	"go.uber.org/zap"
)

// CachedDecision 带时间戳的缓存决策
type CachedDecision struct {
	Decision model.Decision `json:"decision"`
	CachedAt time.Time      `json:"cached_at"`
}

// PermissionCacheConfig 决策缓存配置
type PermissionCacheConfig struct {
	MaxEntries int           // 缓存条目上限
	FreshTTL   time.Duration // 新鲜窗口，默认 60 分钟
	StaleTTL   time.Duration // 过期兜底窗口，默认 24 小时
}

// PermissionCache 权限决策缓存
// 键为 resource:action[:scope]，带范围与不带范围是两个独立槽位，
// 不做层级查找。条目在新鲜窗口内随时可用，超过新鲜窗口但在兜底
// 窗口内仅当解析器不可用时作为降级返回，超过兜底窗口一律视为未命中。
// 缓存对象有明确生命周期：会话开始构建、整体重建、登出销毁，
// 通过依赖注入传递，不做进程级单例。
type PermissionCache struct {
	mu     sync.RWMutex
	lru    *expirable.LRU[string, CachedDecision]
	config PermissionCacheConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewPermissionCache 创建决策缓存
func NewPermissionCache(config PermissionCacheConfig, logger *zap.Logger) *PermissionCache {
	if config.MaxEntries <= 0 {
		config.MaxEntries = 4096
	}
	if config.FreshTTL <= 0 {
		config.FreshTTL = time.Hour
	}
	if config.StaleTTL <= 0 {
		config.StaleTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionCache{
		// LRU 的硬过期即兜底窗口，超过后条目物理淘汰
		lru:    expirable.NewLRU[string, CachedDecision](config.MaxEntries, nil, config.StaleTTL),
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// CacheKey 构建缓存键
// 调用方应先带范围探测，再显式决定是否回落到不带范围的槽位
func CacheKey(resource string, action model.Action, scope model.Scope) string {
	key := strings.ToLower(resource) + ":" + strings.ToLower(string(action))
	if scope != "" {
		key += ":" + strings.ToLower(string(scope))
	}
	return key
}

// Get 默认读取路径，仅返回新鲜条目
func (c *PermissionCache) Get(key string) (model.Decision, bool) {
	c.mu.RLock()
	entry, ok := c.lru.Get(key)
	c.mu.RUnlock()
	if !ok {
		metrics.CacheMisses.Inc()
		return model.Decision{}, false
	}

	age := c.now().Sub(entry.CachedAt)
	if age > c.config.FreshTTL {
		// 新鲜窗口之外走默认路径一律算未命中，兜底由 GetStale 显式承担
		metrics.CacheMisses.Inc()
		return model.Decision{}, false
	}
	metrics.CacheHits.Inc()
	return entry.Decision, true
}

// GetStale 降级读取路径，解析器不可达时调用
// 兜底窗口内的条目可用但必须记录告警；超过兜底窗口仍然是未命中
func (c *PermissionCache) GetStale(key string) (model.Decision, bool) {
	c.mu.RLock()
	entry, ok := c.lru.Get(key)
	c.mu.RUnlock()
	if !ok {
		metrics.CacheMisses.Inc()
		return model.Decision{}, false
	}

	age := c.now().Sub(entry.CachedAt)
	if age > c.config.StaleTTL {
		metrics.CacheMisses.Inc()
		return model.Decision{}, false
	}
	if age > c.config.FreshTTL {
		c.logger.Warn("使用过期缓存条目兜底",
			zap.String("key", key),
			zap.Duration("age", age))
		metrics.CacheStaleHits.Inc()
		return entry.Decision, true
	}
	metrics.CacheHits.Inc()
	return entry.Decision, true
}

// Put 写入单个决策，用于未命中后的单键回填
func (c *PermissionCache) Put(key string, decision model.Decision) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.lru.Add(key, CachedDecision{Decision: decision, CachedAt: c.now()})
}

// Rebuild 从授权快照整体重建缓存
// 新结构构建完成后原子替换，并发读方要么看到旧缓存要么看到新缓存
func (c *PermissionCache) Rebuild(snapshot *model.PermissionSnapshot) {
	fresh := expirable.NewLRU[string, CachedDecision](c.config.MaxEntries, nil, c.config.StaleTTL)
	now := c.now()

	// 每个键只保留胜出候选，带范围与不带范围槽位各自独立
	best := make(map[string]model.GrantCandidate)
	for _, g := range snapshot.Grants {
		candidate := model.GrantCandidate{
			PermissionCode: g.PermissionCode,
			Resource:       g.Resource,
			Action:         g.Action,
			Scope:          g.Scope,
			Granted:        g.Granted,
			Priority:       g.Priority,
			Source:         g.Source,
		}
		for _, key := range []string{
			CacheKey(g.Resource, g.Action, g.Scope),
			CacheKey(g.Resource, g.Action, ""),
		} {
			existing, ok := best[key]
			if !ok || candidate.Better(existing) {
				best[key] = candidate
			}
		}
	}
	for key, candidate := range best {
		fresh.Add(key, CachedDecision{Decision: candidate.Decision(), CachedAt: now})
	}

	c.mu.Lock()
	c.lru = fresh
	c.mu.Unlock()
}

// InvalidateAll 整体失效，登出时调用
// 原子替换为空结构而非逐键清理
func (c *PermissionCache) InvalidateAll() {
	fresh := expirable.NewLRU[string, CachedDecision](c.config.MaxEntries, nil, c.config.StaleTTL)
	c.mu.Lock()
	c.lru = fresh
	c.mu.Unlock()
}

// Len 当前条目数
func (c *PermissionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}
