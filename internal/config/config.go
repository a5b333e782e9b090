package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App          AppConfig
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Auth         AuthConfig
	Log          LogConfig
	Conversation ConversationConfig
	Maintenance  MaintenanceConfig
	Storage      StorageConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig 数据库配置
// Driver 支持 postgres、mysql、sqlite
type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	Path         string // sqlite 文件路径
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis配置，Host 为空时不启用
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret string
	AdminRole string
	TokenTTL  int // 小时
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string
	Format string // text 或 json
}

// ConversationConfig 对话记录配置
type ConversationConfig struct {
	LogEnabled          bool // 开关的初始默认值，数据库中有记录时以数据库为准
	GateRefreshInterval int  // 秒，开关跨实例的最大陈旧时间
	DefaultPageSize     int
	MaxPageSize         int
	RecorderWorkers     int
	RecorderQueueSize   int
	RecordIP            bool
}

// MaintenanceConfig 维护任务配置
type MaintenanceConfig struct {
	Enabled     bool
	ArchiveDays int
	CleanupDays int
	BatchSize   int
}

// StorageConfig 导出文件存储配置
// Type 支持 local、minio
type StorageConfig struct {
	Type      string
	LocalPath string
	URLPrefix string
	MinIO     MinIOConfig
}

// MinIOConfig MinIO 配置
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

var globalConfig *Config

// Load 加载配置
// path 指向的文件不存在时使用默认配置
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	// 环境变量
	v.SetEnvPrefix("CONVLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("config not loaded")
	}
	return globalConfig
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Conversation.DefaultPageSize <= 0 || c.Conversation.MaxPageSize < c.Conversation.DefaultPageSize {
		return fmt.Errorf("invalid page size settings: default=%d max=%d",
			c.Conversation.DefaultPageSize, c.Conversation.MaxPageSize)
	}
	switch c.Storage.Type {
	case "", "local":
	case "minio":
		if c.Storage.MinIO.Endpoint == "" || c.Storage.MinIO.Bucket == "" {
			return fmt.Errorf("storage.minio.endpoint and storage.minio.bucket are required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %q", c.Storage.Type)
	}
	if c.Conversation.GateRefreshInterval <= 0 {
		return fmt.Errorf("conversation.gateRefreshInterval must be positive")
	}
	return nil
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	switch c.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	case "sqlite":
		return c.Path
	default:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Enabled Redis 是否启用
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// RefreshInterval 开关刷新间隔
func (c *ConversationConfig) RefreshInterval() time.Duration {
	return time.Duration(c.GateRefreshInterval) * time.Second
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "convlog")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", false)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Database
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "convlog")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "convlog.db")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Auth
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.adminRole", "admin")
	v.SetDefault("auth.tokenTTL", 24)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Conversation
	v.SetDefault("conversation.logEnabled", false)
	v.SetDefault("conversation.gateRefreshInterval", 5)
	v.SetDefault("conversation.defaultPageSize", 10)
	v.SetDefault("conversation.maxPageSize", 100)
	v.SetDefault("conversation.recorderWorkers", 4)
	v.SetDefault("conversation.recorderQueueSize", 1024)
	v.SetDefault("conversation.recordIP", false)

	// Maintenance
	v.SetDefault("maintenance.enabled", false)
	v.SetDefault("maintenance.archiveDays", 30)
	v.SetDefault("maintenance.cleanupDays", 365)
	v.SetDefault("maintenance.batchSize", 1000)

	// Storage
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.localPath", "exports")
	v.SetDefault("storage.urlPrefix", "")
	v.SetDefault("storage.minio.endpoint", "")
	v.SetDefault("storage.minio.accessKey", "")
	v.SetDefault("storage.minio.secretKey", "")
	v.SetDefault("storage.minio.bucket", "convlog-exports")
	v.SetDefault("storage.minio.useSSL", false)
}
