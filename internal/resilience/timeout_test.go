package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTimeout_FastOperation(t *testing.T) {
	err := WithTimeout(context.Background(), 100*time.Millisecond, func(ctx context.Context) error {
		return nil
	})

	require.NoError(t, err)
}

func TestWithTimeout_OperationError(t *testing.T) {
	opErr := errors.New("operation failed")
	err := WithTimeout(context.Background(), 100*time.Millisecond, func(ctx context.Context) error {
		return opErr
	})

	// 操作自身的错误应原样返回，与超时可区分
	require.ErrorIs(t, err, opErr)
	assert.NotErrorIs(t, err, ErrTimedOut)
}

func TestWithTimeout_SlowOperation(t *testing.T) {
	start := time.Now()
	err := WithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	require.ErrorIs(t, err, ErrTimedOut)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "计时器到期应立即返回，不等待慢操作")
}

func TestWithTimeout_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := WithTimeout(ctx, time.Second, func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
}
