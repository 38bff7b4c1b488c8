package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCounter_Singleton(t *testing.T) {
	c1, err := GetCounter()
	require.NoError(t, err)
	require.NotNil(t, c1)

	c2, err := GetCounter()
	require.NoError(t, err)
	assert.Same(t, c1, c2, "多次获取应返回同一实例")
}

func TestCounter_CountTokens(t *testing.T) {
	counter, err := GetCounter()
	require.NoError(t, err)

	tests := []struct {
		name string
		text string
	}{
		{"英文短句", "Hello, world!"},
		{"中文文本", "你好，世界"},
		{"混合文本", "LLM 的上下文窗口以 token 计"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count := counter.CountTokens(tt.text)
			assert.Greater(t, count, 0)
			// Token 数不应超过字节数
			assert.LessOrEqual(t, count, len(tt.text))
		})
	}

	t.Run("空字符串", func(t *testing.T) {
		assert.Equal(t, 0, counter.CountTokens(""))
	})
}

func TestCounter_CountTokensBatch(t *testing.T) {
	counter, err := GetCounter()
	require.NoError(t, err)

	texts := []string{"Hello", "world", ""}
	expected := counter.CountTokens("Hello") + counter.CountTokens("world")
	assert.Equal(t, expected, counter.CountTokensBatch(texts))

	assert.Equal(t, 0, counter.CountTokensBatch(nil))
}
