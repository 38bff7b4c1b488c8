// Package resilience 提供通用的可靠性原语
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen 熔断器处于断开状态，调用被直接拒绝
// 这就是熔断器的全部价值：不把时间耗在大概率失败的调用上
var ErrCircuitOpen = errors.New("service unavailable: circuit breaker is open")

// BreakerState 熔断器状态
type BreakerState int

const (
	// StateClosed 正常状态，统计连续失败次数
	StateClosed BreakerState = iota

	// StateOpen 断开状态，调用不经过底层操作直接失败
	StateOpen

	// StateHalfOpen 半开状态，放行一次探测调用
	StateHalfOpen
)

// String 返回状态名称
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker 熔断器
// 守护对单个不稳定依赖的重复调用。状态转移:
//   - closed → open: 连续失败次数达到 threshold
//   - open → half-open: 距最后一次失败超过 cooldown 后的下一次调用放行探测
//   - half-open → closed: 探测成功，失败计数清零
//   - half-open → open: 探测失败
//
// 状态用互斥锁保护：Go 下多个 goroutine 可能共用同一个实例
type CircuitBreaker struct {
	mu          sync.Mutex
	threshold   int           // 触发熔断的连续失败次数
	cooldown    time.Duration // open 状态的冷却时间
	failures    int           // 当前连续失败计数
	state       BreakerState
	lastFailure time.Time // 最后一次失败时间
}

// NewCircuitBreaker 创建熔断器
// threshold 为触发熔断的连续失败次数，cooldown 为断开后的冷却时间
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     StateClosed,
	}
}

// Execute 经熔断器执行 op
// 断开且冷却未结束时不调用 op，直接返回 ErrCircuitOpen
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := op(ctx)
	cb.afterCall(err)
	return err
}

// State 返回当前状态（供监控和测试）
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures 返回当前连续失败计数
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// beforeCall 调用前的状态检查
func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastFailure) > cb.cooldown {
			// 冷却结束，放行一次探测
			cb.state = StateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	}
	return nil
}

// afterCall 根据调用结果更新状态
func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		// 成功：半开转闭合，失败计数清零
		cb.state = StateClosed
		cb.failures = 0
		return
	}

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.state == StateHalfOpen || cb.failures >= cb.threshold {
		cb.state = StateOpen
	}
}
