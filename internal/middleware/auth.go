// Package middleware 提供 HTTP 请求的中间件
// 包括 JWT 认证、CORS 跨域、日志记录等
package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/cache"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/pkg/jwt"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/pkg/response"
)

// AuthMiddleware 创建 JWT 认证中间件
// 验证请求头中的 Bearer Token，并将用户信息存入上下文
// 参数:
//   - jwtService: JWT 服务实例，用于解析和验证 Token
//   - redisCache: Redis 缓存实例，用于检查 Token 黑名单，可为 nil（零配置模式）
//
// 返回:
//   - gin.HandlerFunc: Gin 中间件函数
func AuthMiddleware(jwtService *jwt.JWTService, redisCache *cache.RedisCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 从请求头获取 Authorization 字段
		// 格式: "Bearer <token>"
		tokenString := extractBearerToken(c)
		if tokenString == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		// 2. 验证 Token
		// 解析 JWT 并验证签名和过期时间
		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Token 无效或已过期")
			c.Abort()
			return
		}

		// 3. 检查 Token 是否在黑名单中
		// 用户登出后，Token 会被加入黑名单
		// 计算 Token 的哈希值（不存储原始 Token）
		if redisCache != nil {
			tokenHash := HashToken(tokenString)
			if redisCache.IsTokenBlacklisted(c.Request.Context(), tokenHash) {
				response.Unauthorized(c, "Token 已失效，请重新登录")
				c.Abort()
				return
			}
		}

		// 4. 将用户信息存入上下文
		// 后续的 Handler 可以通过 GetUserID(c) 获取
		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("token", tokenString)          // 存储原始 Token，用于登出时计算哈希
		c.Set("token_exp", claims.ExpiresAt) // 存储过期时间，用于登出时设置黑名单 TTL

		c.Next()
	}
}

// OptionalAuthMiddleware 创建可选的 JWT 认证中间件
// 与 AuthMiddleware 类似，但不强制要求认证
// 如果提供了有效 Token，会将用户信息存入上下文
// 如果没有提供或 Token 无效，仍然继续处理请求
func OptionalAuthMiddleware(jwtService *jwt.JWTService, redisCache *cache.RedisCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractBearerToken(c)
		if tokenString == "" {
			c.Next()
			return
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.Next()
			return
		}

		if redisCache != nil && redisCache.IsTokenBlacklisted(c.Request.Context(), HashToken(tokenString)) {
			c.Next()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("token", tokenString)
		c.Set("token_exp", claims.ExpiresAt)

		c.Next()
	}
}

// extractBearerToken 从 Authorization 请求头解析 Bearer Token
// 格式不正确时返回空字符串
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// HashToken 计算 Token 的 SHA256 哈希值
// 用于黑名单存储，避免存储原始 Token
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// GetUserID 从上下文获取用户 ID 的辅助函数
// 参数:
//   - c: Gin 上下文
//
// 返回:
//   - string: 用户 ID，如果未认证返回空字符串
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get("user_id")
	if !exists {
		return ""
	}
	return userID.(string)
}

// GetUsername 从上下文获取用户名的辅助函数
func GetUsername(c *gin.Context) string {
	username, exists := c.Get("username")
	if !exists {
		return ""
	}
	return username.(string)
}
