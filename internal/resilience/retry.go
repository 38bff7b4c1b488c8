// Package resilience 提供通用的可靠性原语
// 重试退避、超时竞速、熔断器，用于加固对外部服务
//（LLM 调用、远程存储、搜索 API）的访问
package resilience

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// RetryConfig 重试配置
type RetryConfig struct {
	// MaxRetries 尝试次数预算（含首次尝试）
	MaxRetries int

	// BaseDelay 首次重试前的基础等待时间
	BaseDelay time.Duration

	// MaxDelay 退避等待的上限
	MaxDelay time.Duration

	// BackoffMultiplier 每次尝试的指数增长因子
	BackoffMultiplier float64

	// ShouldRetry 判断错误是否值得重试
	// 返回 false 的错误立即上浮，不再等待
	ShouldRetry func(error) bool
}

// DefaultRetryConfig 返回默认重试配置
// 3 次尝试，1s 起步、2 倍指数退避、10s 封顶
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		BaseDelay:         time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2,
		ShouldRetry:       IsRetryable,
	}
}

// IsRetryable 默认的可重试判定
// 网络故障、超时、限流和 5xx 服务端错误视为瞬时故障，其余不重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	for _, marker := range []string{
		"network",
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"rate limit",
		"too many requests",
		"status 429",
		"status 500",
		"status 502",
		"status 503",
		"status 504",
		"internal server error",
		"bad gateway",
		"service unavailable",
		"gateway timeout",
	} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// ExhaustedError 重试预算耗尽
// 包装最后一次的底层错误，可通过 errors.Unwrap / errors.As 取出
type ExhaustedError struct {
	Attempts int   // 实际尝试次数
	Last     error // 最后一次失败的错误
}

// Error 实现 error 接口
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap 返回底层错误
func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Retry 以指数退避重试执行 op
// 算法:
//  1. 执行 op，成功则返回
//  2. 失败且判定为不可重试 → 立即上浮原始错误
//  3. 还有尝试次数 → 等待 min(BaseDelay * Multiplier^attempt, MaxDelay) 后重试
//  4. 预算耗尽 → 返回包装了最后错误的 *ExhaustedError
//
// 最后一次尝试之后不再等待；等待期间 ctx 取消则提前返回 ctx 错误
func Retry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !cfg.ShouldRetry(lastErr) {
			return lastErr
		}
		// 最后一次尝试之后不等待
		if attempt == cfg.MaxRetries-1 {
			break
		}

		select {
		case <-time.After(backoffDelay(cfg, attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return &ExhaustedError{Attempts: cfg.MaxRetries, Last: lastErr}
}

// backoffDelay 计算第 attempt 次失败后的等待时间
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := time.Duration(float64(cfg.BaseDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}
