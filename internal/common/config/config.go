package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Consul   ConsulConfig   `json:"consul"`
	Jaeger   JaegerConfig   `json:"jaeger"`
	Auth     AuthConfig     `json:"auth"`
	Storage  StorageConfig  `json:"storage"`
	Log      LogConfig      `json:"log"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Name     string `json:"name"`      // 服务名称
	Host     string `json:"host"`      // 服务地址
	GRPCPort int    `json:"grpc_port"` // gRPC端口
	// 限流：每秒补充令牌数与桶容量（<=0 表示不限流）
	RateLimitPerSecond int64 `json:"rate_limit_per_second"`
	RateLimitBurst     int64 `json:"rate_limit_burst"`
}

// DatabaseConfig 数据库配置（MySQL）
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	MaxIdle  int    `json:"max_idle"`
	MaxOpen  int    `json:"max_open"`
}

// ConsulConfig Consul配置
type ConsulConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// 非空时启动从 Consul KV 读取配置（覆盖本地文件）
	ConfigKey string `json:"config_key"`
}

// JaegerConfig Jaeger配置
type JaegerConfig struct {
	Endpoint string  `json:"endpoint"`
	Sampler  float64 `json:"sampler"` // 采样率 0.0-1.0
}

// AuthConfig 鉴权配置（JWT + 按方法的 RBAC）
type AuthConfig struct {
	Enabled       bool                `json:"enabled"`
	JWTSecret     string              `json:"jwt_secret"`
	Issuer        string              `json:"issuer"`
	Audience      string              `json:"audience"`
	PublicMethods []string            `json:"public_methods"` // 免鉴权的 full method 列表
	RBAC          map[string][]string `json:"rbac"`           // full method -> 要求角色
}

// StorageConfig 对象存储配置（供货凭证照片等，只存 URL 不存二进制）
type StorageConfig struct {
	Bucket       string `json:"bucket"`
	Region       string `json:"region"`
	Endpoint     string `json:"endpoint"` // 兼容 MinIO 等 S3 兼容存储
	AccessKey    string `json:"access_key"`
	SecretKey    string `json:"secret_key"`
	URLTTLMinute int    `json:"url_ttl_minute"` // 预签名 URL 有效期（分钟）
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, file
	Path   string `json:"path"`   // 日志文件路径
	Engine string `json:"engine"` // logrus, zap
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// LoadConfig 加载配置：
// 1) 先尝试加载 .env（存在才生效，用于本地开发注入敏感项）
// 2) 读取 JSON 配置文件（缺失则用默认配置）
// 3) 用环境变量覆盖敏感字段（DB_PASSWORD / JWT_SECRET / S3_* 等）
func LoadConfig(configPath string) (*Config, error) {
	var err error
	configOnce.Do(func() {
		_ = godotenv.Load()

		globalConfig = defaultConfig()
		if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
			logrus.Warnf("Config file not found: %s, using default config", configPath)
		} else {
			data, readErr := os.ReadFile(configPath)
			if readErr != nil {
				err = fmt.Errorf("failed to read config file: %w", readErr)
				return
			}
			if unmarshalErr := json.Unmarshal(data, globalConfig); unmarshalErr != nil {
				err = fmt.Errorf("failed to parse config file: %w", unmarshalErr)
				return
			}
		}

		applyEnvOverrides(globalConfig)
	})

	if err != nil {
		return nil, err
	}

	return globalConfig, nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	if globalConfig == nil {
		return defaultConfig()
	}
	return globalConfig
}

// applyEnvOverrides 环境变量优先于配置文件（只覆盖部署时常变/敏感的字段）。
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, convErr := strconv.Atoi(v); convErr == nil {
			cfg.Database.Port = p
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("CONSUL_CONFIG_KEY"); v != "" {
		cfg.Consul.ConfigKey = v
	}
}

// defaultConfig 默认配置（开发环境）
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:               "fuel-service",
			Host:               "0.0.0.0",
			GRPCPort:           50051,
			RateLimitPerSecond: 200,
			RateLimitBurst:     400,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     3306,
			User:     "root",
			Password: "root",
			Database: "consumo_combustible",
			MaxIdle:  10,
			MaxOpen:  100,
		},
		Consul: ConsulConfig{
			Host: "localhost",
			Port: 8500,
		},
		Jaeger: JaegerConfig{
			Endpoint: "http://localhost:14268/api/traces",
			Sampler:  1.0,
		},
		Auth: AuthConfig{
			Enabled:   false,
			Issuer:    "fuel-service",
			Audience:  "flota",
			JWTSecret: "",
		},
		Storage: StorageConfig{
			Bucket:       "combustible-evidencias",
			Region:       "us-east-1",
			URLTTLMinute: 60,
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
			Output: "stdout",
			Path:   "logs/fuel-service.log",
			Engine: "logrus",
		},
	}
}
