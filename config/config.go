package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fyerfyer/doc-chunk-system/internal/chunker"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Segment  SegmentConfig  `mapstructure:"segment"`
	Chunking ChunkingConfig `mapstructure:"chunking"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type"`     // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`     // 本地存储路径
	Bucket    string `mapstructure:"bucket"`   // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"` // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // 数据库类型: sqlite
	DSN  string `mapstructure:"dsn"`  // 数据源名称
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`         // 是否启用分布式任务队列
	Type          string `mapstructure:"type"`           // 队列类型：redis
	RedisAddr     string `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string `mapstructure:"redis_password"` // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`       // Redis数据库编号
	Concurrency   int    `mapstructure:"concurrency"`    // 任务处理并发数
	RetryLimit    int    `mapstructure:"retry_limit"`    // 任务最大重试次数
	WaitTimeout   int    `mapstructure:"wait_timeout"`   // 等待任务结果的超时(秒)
}

// SegmentConfig 分块分析服务配置
type SegmentConfig struct {
	BaseURL string        `mapstructure:"base_url"` // 分析服务基础URL
	Timeout time.Duration `mapstructure:"timeout"`  // 单个分块的请求超时
}

// ChunkingConfig 分块策略配置
type ChunkingConfig struct {
	Strategy        string  `mapstructure:"strategy"`          // 分块策略：fixed-pages, token-based, hybrid
	PageThreshold   int     `mapstructure:"page_threshold"`    // 页数阈值
	TokenThreshold  int     `mapstructure:"token_threshold"`   // token数阈值
	MaxConcurrency  int     `mapstructure:"max_concurrency"`   // 分块处理最大并发
	MinSuccessRatio float64 `mapstructure:"min_success_ratio"` // 聚合结果的最低成功比例

	FixedPages FixedPagesConfig `mapstructure:"fixed_pages"`
	TokenBased TokenBasedConfig `mapstructure:"token_based"`
	Hybrid     HybridConfig     `mapstructure:"hybrid"`
}

// FixedPagesConfig 固定页数策略参数
type FixedPagesConfig struct {
	ChunkSizePages int `mapstructure:"chunk_size_pages"` // 每块页数
	OverlapPages   int `mapstructure:"overlap_pages"`    // 相邻块重叠页数
}

// TokenBasedConfig token策略参数
type TokenBasedConfig struct {
	MaxTokensPerChunk int `mapstructure:"max_tokens_per_chunk"` // 每块最大token数
	OverlapTokens     int `mapstructure:"overlap_tokens"`       // 相邻块重叠token数
}

// HybridConfig 混合策略参数
type HybridConfig struct {
	TargetTokensPerChunk int `mapstructure:"target_tokens_per_chunk"` // 每块目标token数
	MaxPagesPerChunk     int `mapstructure:"max_pages_per_chunk"`     // 每块最大页数
	OverlapTokens        int `mapstructure:"overlap_tokens"`          // 相邻块重叠token数
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // 日志级别
	File       string `mapstructure:"file"`        // 日志文件路径，为空时输出到stderr
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // 单个日志文件大小上限(MB)
	MaxBackups int    `mapstructure:"max_backups"` // 保留的滚动文件数
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"` // 是否压缩滚动文件
}

// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	var config Config

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	// 支持环境变量覆盖，如STORAGE_ENDPOINT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	return &config, nil
}

// ToChunkerConfig 把分块配置转换为分块引擎的配置
// 只填充选中策略对应的参数块，其余留空
func (c *ChunkingConfig) ToChunkerConfig() *chunker.Config {
	cfg := &chunker.Config{
		Strategy:        chunker.Strategy(c.Strategy),
		PageThreshold:   c.PageThreshold,
		TokenThreshold:  c.TokenThreshold,
		MaxConcurrency:  c.MaxConcurrency,
		MinSuccessRatio: c.MinSuccessRatio,
	}

	switch cfg.Strategy {
	case chunker.StrategyFixedPages:
		cfg.FixedPages = &chunker.FixedPagesConfig{
			ChunkSizePages: c.FixedPages.ChunkSizePages,
			OverlapPages:   c.FixedPages.OverlapPages,
		}
	case chunker.StrategyTokenBased:
		cfg.TokenBased = &chunker.TokenBasedConfig{
			MaxTokensPerChunk: c.TokenBased.MaxTokensPerChunk,
			OverlapTokens:     c.TokenBased.OverlapTokens,
		}
	case chunker.StrategyHybrid:
		cfg.Hybrid = &chunker.HybridConfig{
			TargetTokensPerChunk: c.Hybrid.TargetTokensPerChunk,
			MaxPagesPerChunk:     c.Hybrid.MaxPagesPerChunk,
			OverlapTokens:        c.Hybrid.OverlapTokens,
		}
	}

	return cfg
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./data/storage")
	v.SetDefault("storage.bucket", "doc-chunks")
	v.SetDefault("storage.use_ssl", false)

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/chunking.db")

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.type", "redis")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.retry_limit", 3)
	v.SetDefault("queue.wait_timeout", 600)

	// 分析服务默认配置
	v.SetDefault("segment.base_url", "http://localhost:8000/api")
	v.SetDefault("segment.timeout", "5m")

	// 分块策略默认配置
	v.SetDefault("chunking.strategy", "hybrid")
	v.SetDefault("chunking.page_threshold", 100)
	v.SetDefault("chunking.token_threshold", 150000)
	v.SetDefault("chunking.max_concurrency", 10)
	v.SetDefault("chunking.min_success_ratio", 0.5)
	v.SetDefault("chunking.fixed_pages.chunk_size_pages", 50)
	v.SetDefault("chunking.fixed_pages.overlap_pages", 5)
	v.SetDefault("chunking.token_based.max_tokens_per_chunk", 100000)
	v.SetDefault("chunking.token_based.overlap_tokens", 5000)
	v.SetDefault("chunking.hybrid.target_tokens_per_chunk", 80000)
	v.SetDefault("chunking.hybrid.max_pages_per_chunk", 99)
	v.SetDefault("chunking.hybrid.overlap_tokens", 5000)

	// 日志默认配置
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", true)
}
