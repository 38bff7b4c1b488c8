package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// failTimes 让熔断器连续失败指定次数
func failTimes(t *testing.T, cb *CircuitBreaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			return errBoom
		})
	}
}

func TestCircuitBreaker_ClosedPassthrough(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	failTimes(t, cb, 2)
	assert.Equal(t, StateClosed, cb.State(), "未达阈值前保持闭合")

	failTimes(t, cb, 1)
	assert.Equal(t, StateOpen, cb.State(), "连续失败达到阈值后断开")
}

func TestCircuitBreaker_OpenRejectsWithoutCalling(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	failTimes(t, cb, 2)

	called := false
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})

	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "断开状态不应调用底层操作")
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	failTimes(t, cb, 2)
	require.Equal(t, 2, cb.Failures())

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	// 阈值统计的是连续失败，一次成功清零
	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbeSuccess(t *testing.T) {
	cb := NewCircuitBreaker(2, 20*time.Millisecond)
	failTimes(t, cb, 2)
	require.Equal(t, StateOpen, cb.State())

	// 等待冷却结束
	time.Sleep(30 * time.Millisecond)

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})

	require.NoError(t, err, "冷却结束后应放行探测调用")
	assert.Equal(t, StateClosed, cb.State(), "探测成功应恢复闭合")
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_HalfOpenProbeFailure(t *testing.T) {
	cb := NewCircuitBreaker(2, 20*time.Millisecond)
	failTimes(t, cb, 2)

	time.Sleep(30 * time.Millisecond)

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateOpen, cb.State(), "探测失败应重新断开")

	// 冷却未结束时继续拒绝
	err = cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
