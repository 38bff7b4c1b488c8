// Package resilience 提供通用的可靠性原语
package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrTimedOut 超时竞速中计时器先到
// 与被包装操作自身的失败可以通过 errors.Is 区分
var ErrTimedOut = errors.New("operation timed out")

// WithTimeout 让 op 与计时器竞速，先结束者胜出
// 超时返回 ErrTimedOut；此时 op 的 goroutine 仍在运行，
// 只是结果被丢弃——这是竞速而不是真正的取消
func WithTimeout(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	done := make(chan error, 1) // 缓冲 1，落败方写入后可直接退出

	go func() {
		done <- op(ctx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return ErrTimedOut
	case <-ctx.Done():
		return ctx.Err()
	}
}
