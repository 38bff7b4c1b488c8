// Package main 是服务端的入口点
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/cache"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/config"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/handler"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/middleware"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/model"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/repository"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/service"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/storage"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/websocket"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/pkg/jwt"
)

// localUserID 零配置模式下的固定用户身份
// 没有数据库就没有账号体系，所有请求都归属这个用户
const localUserID = "local"

func main() {
	// 加载配置
	cfg, err := config.Load("./configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化 Redis（可选，连不上时继续以无缓存模式运行）
	var redisCache *cache.RedisCache
	if rc, err := cache.NewRedisCache(cfg); err != nil {
		log.Printf("Redis unavailable, continuing without cache: %v", err)
	} else {
		redisCache = rc
	}

	// 初始化聊天存储
	// 配置了 MySQL 时使用远程适配器并返回数据库连接；
	// 否则使用本地适配器（文件或 Redis 的单文档 KV 存储）
	chatStorage, db, err := newChatStorage(cfg, redisCache)
	if err != nil {
		log.Fatalf("Failed to init chat storage: %v", err)
	}

	// 远程模式下迁移表结构
	if db != nil {
		if err := autoMigrate(db); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	// 初始化 JWT 服务
	jwtService := jwt.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.AccessExpire,
		cfg.JWT.RefreshExpire,
	)

	// 初始化 AI 服务
	aiService, err := service.NewAIService(cfg)
	if err != nil {
		log.Fatalf("Failed to init AI service: %v", err)
	}

	// 初始化 WebSocket Hub
	wsHub := websocket.NewHub(redisCache)
	go wsHub.Run() // 在单独的 goroutine 中运行

	// 初始化核心服务
	chatService := service.NewChatService(chatStorage, aiService, wsHub)
	searchService := service.NewSearchService(cfg)

	// 初始化 Handler 层
	chatHandler := handler.NewChatHandler(chatService)
	searchHandler := handler.NewSearchHandler(searchService)
	wsHandler := websocket.NewHandler(wsHub, cfg.JWT.Secret)

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建 Gin 引擎
	router := gin.New()

	// 全局中间件
	router.Use(middleware.RecoveryMiddleware()) // 恢复 panic
	router.Use(middleware.LoggerMiddleware())   // 请求日志
	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.Server.CORS) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORS
	}
	router.Use(middleware.CORSMiddleware(corsConfig)) // CORS

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 路由组
	v1 := router.Group("/api/v1")

	// 认证保护
	// 远程模式: 完整的账号体系 + JWT 认证
	// 零配置模式: 没有账号，所有请求归属固定的本地用户
	var authRequired gin.HandlerFunc
	if db != nil {
		registerAccountRoutes(v1, db, redisCache, jwtService)
		authRequired = middleware.AuthMiddleware(jwtService, redisCache)
	} else {
		authRequired = func(c *gin.Context) {
			c.Set("user_id", localUserID)
			c.Next()
		}
	}

	// 会话与消息
	conversations := v1.Group("/conversations")
	conversations.Use(authRequired)
	{
		conversations.GET("", chatHandler.ListConversations)
		conversations.POST("", chatHandler.CreateConversation)
		conversations.DELETE("", chatHandler.ClearConversations)
		conversations.GET("/:id", chatHandler.GetConversation)
		conversations.PUT("/:id", chatHandler.RenameConversation)
		conversations.DELETE("/:id", chatHandler.DeleteConversation)
		conversations.GET("/:id/messages", chatHandler.GetMessages)
	}

	messages := v1.Group("/messages")
	messages.Use(authRequired)
	{
		messages.PUT("/:id", chatHandler.UpdateMessage)
		messages.DELETE("/:id", chatHandler.DeleteMessage)
	}

	// 发送消息
	chat := v1.Group("/chat")
	chat.Use(authRequired)
	{
		chat.POST("/send", chatHandler.SendMessage)
	}

	// 网页搜索
	search := v1.Group("/search")
	search.Use(authRequired)
	{
		search.POST("", searchHandler.Search)
	}

	// WebSocket 路由（token 在 query 中验证）
	if db != nil {
		wsHandler.RegisterRoutes(router)
	}

	// 创建 HTTP 服务器
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("Server starting on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			log.Printf("Failed to close redis: %v", err)
		}
	}

	log.Println("Server exited")
}

// newChatStorage 构建聊天存储，Redis 客户端按需传入
func newChatStorage(cfg *config.Config, redisCache *cache.RedisCache) (storage.ChatStorage, *gorm.DB, error) {
	if redisCache != nil {
		return storage.NewChatStorage(cfg, redisCache.Client())
	}
	return storage.NewChatStorage(cfg, nil)
}

// autoMigrate 自动迁移数据库表
func autoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	if err := db.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.Message{},
		&model.Task{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	log.Println("Database migrations completed")
	return nil
}

// registerAccountRoutes 注册依赖数据库的账号和任务路由
func registerAccountRoutes(
	v1 *gin.RouterGroup,
	db *gorm.DB,
	redisCache *cache.RedisCache,
	jwtService *jwt.JWTService,
) {
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	authService := service.NewAuthService(userRepo, redisCache, jwtService)
	userService := service.NewUserService(userRepo)
	taskService := service.NewTaskService(taskRepo)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	taskHandler := handler.NewTaskHandler(taskService)

	authRequired := middleware.AuthMiddleware(jwtService, redisCache)

	// 认证相关（注册/登录/刷新无需登录）
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
		auth.POST("/logout", authRequired, authHandler.Logout)
	}

	// 用户相关（需要登录）
	user := v1.Group("/user")
	user.Use(authRequired)
	{
		user.GET("/profile", userHandler.GetProfile)
		user.PUT("/profile", userHandler.UpdateProfile)
		user.PUT("/password", userHandler.ChangePassword)
	}

	// 任务相关（需要登录）
	tasks := v1.Group("/tasks")
	tasks.Use(authRequired)
	{
		tasks.GET("", taskHandler.ListTasks)
		tasks.POST("", taskHandler.CreateTask)
		tasks.PUT("/:id", taskHandler.UpdateTask)
		tasks.DELETE("/:id", taskHandler.DeleteTask)
	}
}
