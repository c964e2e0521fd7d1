// Package metrics Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits 决策缓存新鲜命中数
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "perm",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "决策缓存新鲜命中次数",
	})

	// CacheStaleHits 决策缓存过期兜底命中数
	CacheStaleHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "perm",
		Subsystem: "cache",
		Name:      "stale_hits_total",
		Help:      "决策缓存过期兜底命中次数（仅解析器不可用时）",
	})

	// CacheMisses 决策缓存未命中数
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "perm",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "决策缓存未命中次数",
	})

	// ResolveDuration 权限解析耗时
	ResolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "perm",
		Subsystem: "resolver",
		Name:      "resolve_duration_seconds",
		Help:      "单次权限解析耗时",
		Buckets:   prometheus.DefBuckets,
	})

	// CycleAlerts 角色继承环告警数
	CycleAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "perm",
		Subsystem: "hierarchy",
		Name:      "cycle_alerts_total",
		Help:      "角色继承遍历检测到环的次数",
	})

	// BreakerState 熔断器当前状态（0=CLOSED 1=OPEN 2=HALF_OPEN）
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "perm",
		Subsystem: "breaker",
		Name:      "state",
		Help:      "各熔断器当前状态",
	}, []string{"name"})

	// BreakerRejections 熔断器短路拒绝数
	BreakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "perm",
		Subsystem: "breaker",
		Name:      "rejections_total",
		Help:      "各熔断器短路拒绝次数",
	}, []string{"name"})
)
