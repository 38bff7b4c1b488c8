// Package config 负责加载和管理应用程序的配置
// 使用 viper 库支持 YAML 配置文件和环境变量覆盖
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 是应用程序的根配置结构
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`  // 服务器配置
	MySQL   MySQLConfig   `mapstructure:"mysql"`   // MySQL 配置（远程存储）
	Redis   RedisConfig   `mapstructure:"redis"`   // Redis 配置
	Storage StorageConfig `mapstructure:"storage"` // 本地存储配置
	JWT     JWTConfig     `mapstructure:"jwt"`     // JWT 配置
	Log     LogConfig     `mapstructure:"log"`     // 日志配置
	AI      AIConfig      `mapstructure:"ai"`      // LLM 服务配置
	Search  SearchConfig  `mapstructure:"search"`  // Web 搜索工具配置
}

// ServerConfig 服务器相关配置
type ServerConfig struct {
	Port int      `mapstructure:"port"` // 监听端口，默认 8080
	Mode string   `mapstructure:"mode"` // 运行模式: debug / release
	CORS []string `mapstructure:"cors"` // CORS 允许的域名
}

// MySQLConfig MySQL 数据库连接配置
// Host 和 Password 同时存在时启用远程存储适配器，
// 否则回落到零配置的本地存储
type MySQLConfig struct {
	Host         string `mapstructure:"host"`           // 数据库主机地址
	Port         int    `mapstructure:"port"`           // 数据库端口
	Username     string `mapstructure:"username"`       // 数据库用户名
	Password     string `mapstructure:"password"`       // 数据库密码
	Database     string `mapstructure:"database"`       // 数据库名称
	Charset      string `mapstructure:"charset"`        // 字符集
	MaxIdleConns int    `mapstructure:"max_idle_conns"` // 最大空闲连接数
	MaxOpenConns int    `mapstructure:"max_open_conns"` // 最大打开连接数
	MaxLifetime  int    `mapstructure:"max_lifetime"`   // 连接最大生命周期（秒）
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string `mapstructure:"host"`      // Redis 主机地址
	Port     int    `mapstructure:"port"`      // Redis 端口
	Username string `mapstructure:"username"`  // Redis 用户名
	Password string `mapstructure:"password"`  // Redis 密码
	DB       int    `mapstructure:"db"`        // 数据库索引 (0-15)
	PoolSize int    `mapstructure:"pool_size"` // 连接池大小
}

// StorageConfig 本地存储适配器配置
type StorageConfig struct {
	Driver  string `mapstructure:"driver"`   // KV 后端: file / redis
	DataDir string `mapstructure:"data_dir"` // file 后端的数据目录
	Key     string `mapstructure:"key"`      // 会话文档使用的存储 key
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret        string        `mapstructure:"secret"`         // JWT 签名密钥，至少32字符
	AccessExpire  time.Duration `mapstructure:"access_expire"`  // Access Token 过期时间
	RefreshExpire time.Duration `mapstructure:"refresh_expire"` // Refresh Token 过期时间
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug/info/warn/error
	Format string `mapstructure:"format"` // 日志格式: json/text
}

// AIConfig LLM 服务配置
// 使用 OpenAI 兼容的 Chat Completions 接口
type AIConfig struct {
	BaseURL string `mapstructure:"base_url"` // API 地址，默认官方端点
	APIKey  string `mapstructure:"api_key"`  // API Key
	Model   string `mapstructure:"model"`    // 模型名称
}

// SearchConfig Web 搜索工具配置
type SearchConfig struct {
	Endpoint string `mapstructure:"endpoint"` // 搜索 API 地址
	APIKey   string `mapstructure:"api_key"`  // 搜索 API Key
}

// Load 从指定路径加载配置文件
// 支持环境变量覆盖配置项；配置文件不存在时使用默认值和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	// 启用环境变量，例如 MYSQL_HOST -> mysql.host
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVariables(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bindEnvVariables 绑定环境变量到配置项
func bindEnvVariables(v *viper.Viper) {
	// 服务器配置
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// MySQL 配置
	v.BindEnv("mysql.host", "MYSQL_HOST")
	v.BindEnv("mysql.port", "MYSQL_PORT")
	v.BindEnv("mysql.username", "MYSQL_USERNAME")
	v.BindEnv("mysql.password", "MYSQL_PASSWORD")
	v.BindEnv("mysql.database", "MYSQL_DATABASE")

	// Redis 配置
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.username", "REDIS_USERNAME")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// 本地存储配置
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.data_dir", "STORAGE_DATA_DIR")

	// JWT 配置
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// AI 配置
	v.BindEnv("ai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("ai.api_key", "OPENAI_API_KEY")
	v.BindEnv("ai.model", "OPENAI_MODEL")

	// 搜索配置
	v.BindEnv("search.api_key", "SEARCH_API_KEY")
}

// setDefaults 设置配置项的默认值
// 所有默认值共同构成零配置模式：不连数据库、本地文件存储
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors", []string{"http://localhost:3000", "http://localhost:5173"})

	// MySQL 默认配置（host 留空 = 不启用远程存储）
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.charset", "utf8mb4")
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.max_open_conns", 100)
	v.SetDefault("mysql.max_lifetime", 3600)

	// Redis 默认配置
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)

	// 本地存储默认配置
	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.key", "chat-conversations")

	// JWT 默认配置
	v.SetDefault("jwt.access_expire", "24h")
	v.SetDefault("jwt.refresh_expire", "168h")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// AI 默认配置
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o-mini")

	// 搜索默认配置
	v.SetDefault("search.endpoint", "https://api.tavily.com/search")
}

// RemoteStorageConfigured 判断是否提供了远程存储所需的连接配置
// 连接地址和凭据缺一不可
func (c *Config) RemoteStorageConfigured() bool {
	return c.MySQL.Host != "" && c.MySQL.Password != ""
}
