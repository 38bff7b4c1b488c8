// Package storage 提供聊天历史的持久化抽象
package storage

import (
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/config"
)

// NewChatStorage 存储工厂
// 进程启动时调用一次，决定之后所有操作使用哪个适配器：
//   - 配置了 MySQL 连接地址和凭据 → 尝试构建远程适配器；
//     构建失败（数据库不可达等）记录诊断日志并回落到本地适配器
//   - 未配置 → 直接使用本地适配器（零配置是受支持的模式，不是降级）
//
// redisClient 可以为 nil；storage.driver 为 redis 但客户端不可用时
// 同样回落到文件后端。
// 返回的 *gorm.DB 供任务/用户等其他仓库复用，本地模式下为 nil
func NewChatStorage(cfg *config.Config, redisClient *redis.Client) (ChatStorage, *gorm.DB, error) {
	if cfg.RemoteStorageConfigured() {
		db, err := openDatabase(cfg)
		if err != nil {
			log.Printf("chat storage: remote store unavailable, falling back to local: %v", err)
		} else {
			log.Println("chat storage: using remote adapter (MySQL)")
			return NewRemoteStore(db, ""), db, nil
		}
	}

	kv, err := newKeyValueStore(cfg, redisClient)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("chat storage: using local adapter (driver=%s)", cfg.Storage.Driver)
	return NewLocalStore(kv, cfg.Storage.Key), nil, nil
}

// newKeyValueStore 选择本地适配器的 KV 后端
func newKeyValueStore(cfg *config.Config, redisClient *redis.Client) (KeyValueStore, error) {
	if cfg.Storage.Driver == "redis" {
		if redisClient != nil {
			return NewRedisStore(redisClient), nil
		}
		log.Println("chat storage: redis driver requested but client unavailable, using file store")
	}
	return NewFileStore(cfg.Storage.DataDir)
}

// openDatabase 建立 MySQL 连接并配置连接池
// 表结构迁移由 cmd/server 在启动时统一执行
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		cfg.MySQL.Username,
		cfg.MySQL.Password,
		cfg.MySQL.Host,
		cfg.MySQL.Port,
		cfg.MySQL.Database,
		cfg.MySQL.Charset,
	)

	logLevel := gormlogger.Info
	if cfg.Server.Mode == "release" {
		logLevel = gormlogger.Warn
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MySQL.MaxLifetime) * time.Second)

	return db, nil
}
