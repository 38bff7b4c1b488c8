package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetryConfig 返回退避时间很短的重试配置，避免拖慢测试
func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		BaseDelay:         10 * time.Millisecond,
		MaxDelay:          40 * time.Millisecond,
		BackoffMultiplier: 2,
		ShouldRetry:       func(error) bool { return true },
	}
}

func TestRetry_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls, "成功后不应再尝试")
}

func TestRetry_SuccessAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("network error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_NonRetryableError(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.ShouldRetry = IsRetryable

	permanent := errors.New("invalid request body")
	calls := 0
	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return permanent
	})

	// 不可重试的错误应该原样上浮，不包装
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls, "不可重试错误不应再次尝试")
}

func TestRetry_Exhausted(t *testing.T) {
	last := errors.New("connection refused")
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) error {
		calls++
		return last
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	// 预算耗尽返回 ExhaustedError，底层错误可以解包
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, last)
}

func TestRetry_BackoffGrowth(t *testing.T) {
	// 3 次尝试之间等待 10ms、20ms，总耗时应不少于 25ms
	cfg := fastRetryConfig()
	start := time.Now()
	_ = Retry(context.Background(), cfg, func(ctx context.Context) error {
		return errors.New("timeout")
	})
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 25*time.Millisecond, "退避等待应指数增长")
}

func TestRetry_MaxDelayCap(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:        5,
		BaseDelay:         10 * time.Millisecond,
		MaxDelay:          15 * time.Millisecond,
		BackoffMultiplier: 10,
		ShouldRetry:       func(error) bool { return true },
	}

	// 每次等待都被封顶在 15ms，4 次等待总共约 60ms
	start := time.Now()
	_ = Retry(context.Background(), cfg, func(ctx context.Context) error {
		return errors.New("timeout")
	})
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 200*time.Millisecond, "等待时间应被 MaxDelay 封顶")
}

func TestRetry_ContextCanceledDuringWait(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.BaseDelay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Retry(ctx, cfg, func(ctx context.Context) error {
		return errors.New("timeout")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "取消应中断退避等待")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"空错误", nil, false},
		{"网络错误", errors.New("network is unreachable"), true},
		{"连接拒绝", errors.New("dial tcp: connection refused"), true},
		{"超时", errors.New("request timeout"), true},
		{"限流", errors.New("rate limit exceeded"), true},
		{"502", errors.New("request failed with status 502"), true},
		{"服务不可用", errors.New("service unavailable"), true},
		{"参数错误", errors.New("invalid argument"), false},
		{"鉴权失败", errors.New("unauthorized"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}
