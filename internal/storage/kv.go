// Package storage 提供聊天历史的持久化抽象
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

// KeyValueStore 本地适配器依赖的键值存储
// 本地适配器把整个会话文档序列化后存在单个固定的 key 下，
// 这里抽象出底层 KV，便于在文件和 Redis 之间切换，也便于测试隔离
type KeyValueStore interface {
	// Get 读取 key 对应的数据，key 不存在时返回 (nil, nil)
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 覆盖写入 key 对应的数据
	Set(ctx context.Context, key string, data []byte) error

	// Delete 删除 key，key 不存在时不报错
	Delete(ctx context.Context, key string) error
}

// FileStore 基于本地文件的 KV 存储
// 每个 key 对应数据目录下的一个 JSON 文件，零配置模式下的默认后端
type FileStore struct {
	dir string
}

// NewFileStore 创建 FileStore 实例
// 数据目录不存在时自动创建（0700，仅当前用户可访问）
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{dir: dataDir}, nil
}

// Get 读取 key 对应的文件内容
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // 首次运行，文件还不存在
		}
		return nil, err
	}
	return data, nil
}

// Set 覆盖写入 key 对应的文件
// 聊天记录属于敏感数据，文件权限 0600
func (s *FileStore) Set(_ context.Context, key string, data []byte) error {
	return os.WriteFile(s.path(key), data, 0600)
}

// Delete 删除 key 对应的文件
func (s *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// path 返回 key 对应的文件路径
func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// RedisStore 基于 Redis 的 KV 存储
// 多实例部署时让本地适配器的文档随 Redis 共享
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 创建 RedisStore 实例
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get 读取 key 对应的值
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // key 不存在
	}
	return data, err
}

// Set 覆盖写入 key 对应的值，不设置过期时间
func (s *RedisStore) Set(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, key, data, 0).Err()
}

// Delete 删除 key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
