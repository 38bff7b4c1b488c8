package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/config"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Storage: config.StorageConfig{
			Driver:  "file",
			DataDir: t.TempDir(),
			Key:     "test-conversations",
		},
	}
}

func TestNewChatStorage_ZeroConfig(t *testing.T) {
	// 未配置 MySQL 时直接使用本地适配器，不是降级
	store, db, err := NewChatStorage(localConfig(t), nil)
	require.NoError(t, err)
	assert.Nil(t, db)
	assert.IsType(t, &LocalStore{}, store)

	// 拿到的存储可以直接用
	conv, err := store.CreateConversation(context.Background(), "零配置")
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
}

func TestNewChatStorage_RedisDriverWithoutClient(t *testing.T) {
	cfg := localConfig(t)
	cfg.Storage.Driver = "redis"

	// redis 驱动但客户端不可用，回落到文件后端
	store, db, err := NewChatStorage(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, db)
	assert.IsType(t, &LocalStore{}, store)
}

func TestFileStore(t *testing.T) {
	kv, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("key 不存在返回 nil", func(t *testing.T) {
		data, err := kv.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("写入后能读回", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "doc", []byte(`{"hello":"world"}`)))

		data, err := kv.Get(ctx, "doc")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"hello":"world"}`), data)
	})

	t.Run("覆盖写入", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "doc", []byte("v1")))
		require.NoError(t, kv.Set(ctx, "doc", []byte("v2")))

		data, err := kv.Get(ctx, "doc")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), data)
	})

	t.Run("删除后读不到", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "gone", []byte("x")))
		require.NoError(t, kv.Delete(ctx, "gone"))

		data, err := kv.Get(ctx, "gone")
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("删除不存在的 key 不报错", func(t *testing.T) {
		assert.NoError(t, kv.Delete(ctx, "never-existed"))
	})
}
