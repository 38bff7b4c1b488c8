// Package cache 提供 Redis 缓存操作的封装
// 处理 JWT 黑名单、跨实例消息广播等需要快速访问的数据
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/config"
)

// RedisCache 封装 Redis 客户端，提供业务相关的缓存操作
type RedisCache struct {
	client *redis.Client // Redis 客户端实例
}

// NewRedisCache 创建 RedisCache 实例
// 参数:
//   - cfg: 应用配置（包含 Redis 连接信息）
//
// 返回:
//   - *RedisCache: 缓存实例
//   - error: 连接错误
func NewRedisCache(cfg *config.Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Client 返回底层 Redis 客户端
// 供需要直接操作 Redis 的组件（如键值存储适配器）使用
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Close 关闭 Redis 连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping 检查 Redis 连接
// 参数:
//   - ctx: 上下文
//
// 返回:
//   - error: 如果连接失败返回错误
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ==================== JWT 黑名单 ====================
// 用于实现 Token 强制失效（登出）功能

// BlacklistToken 将 Token 加入黑名单
// 登出时调用，使当前 Token 失效
// 参数:
//   - ctx: 上下文
//   - tokenHash: Token 的哈希值（不存储原始 Token）
//   - expireAt: Token 的原始过期时间
//
// 返回:
//   - error: Redis 操作错误
func (c *RedisCache) BlacklistToken(ctx context.Context, tokenHash string, expireAt time.Time) error {
	// 计算剩余有效时间
	ttl := time.Until(expireAt)
	if ttl <= 0 {
		// Token 已过期，无需加入黑名单
		return nil
	}

	// TTL 设置为 Token 的剩余有效期，过期后自动删除（因为 Token 本身也过期了）
	return c.client.Set(ctx, fmt.Sprintf("jwt:blacklist:%s", tokenHash), "1", ttl).Err()
}

// IsTokenBlacklisted 检查 Token 是否在黑名单中
// JWT 验证中间件调用
// 参数:
//   - ctx: 上下文
//   - tokenHash: Token 的哈希值
//
// 返回:
//   - bool: 是否在黑名单中
func (c *RedisCache) IsTokenBlacklisted(ctx context.Context, tokenHash string) bool {
	// EXISTS 命令返回存在的 Key 数量
	return c.client.Exists(ctx, fmt.Sprintf("jwt:blacklist:%s", tokenHash)).Val() > 0
}

// ==================== Pub/Sub ====================
// 用于多服务实例间的消息广播

// PublishUserEvent 发布用户事件
// 用于多实例部署时的跨实例通信，把聊天事件推送给
// 连接在其他实例上的同一用户
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//   - event: 事件内容（会被 JSON 序列化）
//
// 返回:
//   - error: Redis 操作错误
func (c *RedisCache) PublishUserEvent(ctx context.Context, userID string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// PUBLISH 发布消息到指定频道
	// 所有订阅该频道的客户端都会收到消息
	return c.client.Publish(ctx, fmt.Sprintf("user:%s:events", userID), data).Err()
}

// SubscribeUserEvents 订阅用户事件
// 返回 PubSub 对象，调用方负责关闭
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//
// 返回:
//   - *redis.PubSub: PubSub 订阅对象
func (c *RedisCache) SubscribeUserEvents(ctx context.Context, userID string) *redis.PubSub {
	return c.client.Subscribe(ctx, fmt.Sprintf("user:%s:events", userID))
}
