package util

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "secret123", hash)

	// bcrypt 每次加盐，两次哈希结果不同
	hash2, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash2)

	assert.True(t, CheckPassword("secret123", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

func TestGenerateUUID(t *testing.T) {
	id := GenerateUUID()
	assert.Len(t, id, 32, "去掉连字符后应为32位")
	assert.NotContains(t, id, "-")
	assert.NotEqual(t, id, GenerateUUID())
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"不超长原样返回", "hello", 10, "hello"},
		{"刚好等于上限", "hello", 5, "hello"},
		{"超长截断加省略号", "hello world", 8, "hello..."},
		{"上限太小不加省略号", "hello", 3, "hel"},
		{"空字符串", "", 5, ""},
		{"中文按字符计数", "这是一个很长的会话标题需要截断", 8, "这是一个很..."},
		{"中文不超长", "你好世界", 10, "你好世界"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateString(tt.input, tt.maxLen)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}

	t.Run("多字节字符不被切断", func(t *testing.T) {
		// 会话标题取自用户首条消息，内容里常有表情符号
		inputs := []string{
			"周末想去露营🏕️🏕️🏕️ 帮我列装备清单",
			"日本京都五日游🗾计划一下行程安排如何",
			"héllo wörld with ümlauts and more text",
		}
		for _, input := range inputs {
			got := TruncateString(input, 10)
			assert.True(t, utf8.ValidString(got), "截断结果必须是合法 UTF-8: %q", got)
			assert.LessOrEqual(t, len([]rune(got)), 10)
		}
	})
}
