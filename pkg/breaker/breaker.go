// Package breaker 通用熔断器
// 保护对易波动外部依赖（通知发送、远程权限存储等）的调用，
// 与具体业务无关，按名字区分多个电路
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State 熔断器状态
type State int

// 状态枚举
const (
	StateClosed   State = iota // 正常：尝试调用并统计失败
	StateOpen                  // 熔断：立即短路，不调用被保护操作
	StateHalfOpen              // 半开：冷却后放行有限试探请求
)

// String 状态名
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen 电路处于熔断状态且无降级路径
var ErrCircuitOpen = errors.New("熔断器已打开，请求被短路")

// Config 熔断器配置
type Config struct {
	FailureThreshold         int           // 连续失败次数阈值，达到即熔断
	SuccessThreshold         int           // 半开状态连续成功次数阈值，达到即恢复
	Timeout                  time.Duration // 熔断后的冷却时长
	ErrorThresholdPercentage float64       // 错误率阈值（百分比）
	VolumeThreshold          int           // 错误率判定所需的最小请求量
	MaxHalfOpenProbes        int           // 半开状态并发试探上限
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		FailureThreshold:         5,
		SuccessThreshold:         2,
		Timeout:                  30 * time.Second,
		ErrorThresholdPercentage: 50,
		VolumeThreshold:          10,
		MaxHalfOpenProbes:        1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.ErrorThresholdPercentage <= 0 {
		c.ErrorThresholdPercentage = d.ErrorThresholdPercentage
	}
	if c.VolumeThreshold <= 0 {
		c.VolumeThreshold = d.VolumeThreshold
	}
	if c.MaxHalfOpenProbes <= 0 {
		c.MaxHalfOpenProbes = d.MaxHalfOpenProbes
	}
	return c
}

// Metrics 单个电路的运行指标
type Metrics struct {
	State                State         `json:"state"`
	TotalRequests        int64         `json:"total_requests"`
	SuccessfulRequests   int64         `json:"successful_requests"`
	FailedRequests       int64         `json:"failed_requests"`
	RejectedRequests     int64         `json:"rejected_requests"`
	ConsecutiveFailures  int           `json:"consecutive_failures"`
	ConsecutiveSuccesses int           `json:"consecutive_successes"`
	AvgResponseTime      time.Duration `json:"avg_response_time"`
	LastStateChange      time.Time     `json:"last_state_change"`
}

// StateChange 状态迁移事件
type StateChange struct {
	Name string `json:"name"`
	From State  `json:"from"`
	To   State  `json:"to"`
}

// Circuit 单个电路
type Circuit struct {
	name     string
	config   Config
	onChange func(StateChange)
	now      func() time.Time

	mu                   sync.Mutex
	state                State
	openedAt             time.Time
	totalRequests        int64
	successfulRequests   int64
	failedRequests       int64
	rejectedRequests     int64
	windowRequests       int64 // 本轮关闭周期内的请求量，错误率判定用
	windowFailures       int64 // 本轮关闭周期内的失败量，恢复闭合时清零
	consecutiveFailures  int
	consecutiveSuccesses int
	totalResponseTime    time.Duration
	lastStateChange      time.Time
	halfOpenProbes       int // 当前在途试探数
}

// NewCircuit 创建电路
func NewCircuit(name string, config Config, onChange func(StateChange)) *Circuit {
	return &Circuit{
		name:     name,
		config:   config.withDefaults(),
		onChange: onChange,
		now:      time.Now,
		state:    StateClosed,
	}
}

// Execute 通过熔断器执行操作
// 熔断时若提供了 fallback 则调用降级路径，否则返回 ErrCircuitOpen
func (c *Circuit) Execute(ctx context.Context, fn func(ctx context.Context) error, fallback func(ctx context.Context) error) error {
	if !c.allow() {
		if fallback != nil {
			return fallback(ctx)
		}
		return fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
	}

	start := c.now()
	err := fn(ctx)
	c.record(err, c.now().Sub(start))
	return err
}

// allow 判定当前请求是否放行，必要时完成 OPEN→HALF_OPEN 迁移
func (c *Circuit) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return true
	case StateOpen:
		if c.now().Sub(c.openedAt) < c.config.Timeout {
			c.rejectedRequests++
			return false
		}
		// 冷却结束，进入半开并放行首个试探
		c.transition(StateHalfOpen)
		c.halfOpenProbes = 1
		return true
	case StateHalfOpen:
		// 试探数量有界，避免恢复期雪崩再次触发熔断
		if c.halfOpenProbes >= c.config.MaxHalfOpenProbes {
			c.rejectedRequests++
			return false
		}
		c.halfOpenProbes++
		return true
	default:
		return false
	}
}

// record 记录一次调用结果并推进状态机
func (c *Circuit) record(err error, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests++
	c.windowRequests++
	c.totalResponseTime += elapsed

	if c.state == StateHalfOpen && c.halfOpenProbes > 0 {
		c.halfOpenProbes--
	}

	if err != nil {
		c.failedRequests++
		c.windowFailures++
		c.consecutiveFailures++
		c.consecutiveSuccesses = 0

		switch c.state {
		case StateHalfOpen:
			// 半开期间任何失败立即回到熔断
			c.trip()
		case StateClosed:
			if c.shouldTrip() {
				c.trip()
			}
		}
		return
	}

	c.successfulRequests++
	c.consecutiveSuccesses++
	c.consecutiveFailures = 0

	if c.state == StateHalfOpen && c.consecutiveSuccesses >= c.config.SuccessThreshold {
		c.transition(StateClosed)
		c.halfOpenProbes = 0
	}
}

// shouldTrip 熔断判定：连续失败达阈值，或本轮请求量足够时错误率超标
// 错误率只看当前关闭周期的窗口计数，历史失败不影响恢复后的判定
func (c *Circuit) shouldTrip() bool {
	if c.consecutiveFailures >= c.config.FailureThreshold {
		return true
	}
	if c.windowRequests >= int64(c.config.VolumeThreshold) {
		errorRate := float64(c.windowFailures) / float64(c.windowRequests) * 100
		if errorRate > c.config.ErrorThresholdPercentage {
			return true
		}
	}
	return false
}

func (c *Circuit) trip() {
	c.transition(StateOpen)
	c.openedAt = c.now()
	c.consecutiveSuccesses = 0
}

// transition 状态迁移并发出事件，调用方必须持有锁
func (c *Circuit) transition(to State) {
	if c.state == to {
		return
	}
	from := c.state
	c.state = to
	c.lastStateChange = c.now()
	if to == StateClosed {
		c.windowRequests = 0
		c.windowFailures = 0
	}
	if c.onChange != nil {
		c.onChange(StateChange{Name: c.name, From: from, To: to})
	}
}

// Metrics 当前指标快照
func (c *Circuit) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	var avg time.Duration
	if c.totalRequests > 0 {
		avg = c.totalResponseTime / time.Duration(c.totalRequests)
	}
	return Metrics{
		State:                c.state,
		TotalRequests:        c.totalRequests,
		SuccessfulRequests:   c.successfulRequests,
		FailedRequests:       c.failedRequests,
		RejectedRequests:     c.rejectedRequests,
		ConsecutiveFailures:  c.consecutiveFailures,
		ConsecutiveSuccesses: c.consecutiveSuccesses,
		AvgResponseTime:      avg,
		LastStateChange:      c.lastStateChange,
	}
}

// State 当前状态
func (c *Circuit) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Manager 电路管理器，按名字懒创建电路
type Manager struct {
	mu       sync.Mutex
	circuits map[string]*Circuit
	config   Config
	onChange func(StateChange)
}

// NewManager 创建电路管理器
func NewManager(config Config, onChange func(StateChange)) *Manager {
	return &Manager{
		circuits: make(map[string]*Circuit),
		config:   config.withDefaults(),
		onChange: onChange,
	}
}

// Execute 在命名电路上执行操作
func (m *Manager) Execute(ctx context.Context, name string, fn func(ctx context.Context) error, fallback func(ctx context.Context) error) error {
	return m.circuit(name).Execute(ctx, fn, fallback)
}

// GetMetrics 获取命名电路的指标
func (m *Manager) GetMetrics(name string) Metrics {
	return m.circuit(name).Metrics()
}

// Names 所有已注册电路名
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.circuits))
	for name := range m.circuits {
		names = append(names, name)
	}
	return names
}

func (m *Manager) circuit(name string) *Circuit {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.circuits[name]
	if !ok {
		c = NewCircuit(name, m.config, m.onChange)
		m.circuits[name] = c
	}
	return c
}
