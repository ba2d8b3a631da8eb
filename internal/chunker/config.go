package chunker

import (
	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/go-playground/validator/v10"
)

// Strategy 分块策略类型
type Strategy string

const (
	// StrategyFixedPages 固定页数分块策略
	StrategyFixedPages Strategy = "fixed-pages"
	// StrategyTokenBased 基于token数的分块策略
	StrategyTokenBased Strategy = "token-based"
	// StrategyHybrid 混合分块策略（推荐）：以token数为软目标，页数为硬上限
	StrategyHybrid Strategy = "hybrid"
)

// validate 配置校验器实例
var validate = validator.New()

// FixedPagesConfig 固定页数策略配置
type FixedPagesConfig struct {
	ChunkSizePages int `mapstructure:"chunk_size_pages" json:"chunk_size_pages" validate:"gt=0"`           // 每个分块的页数
	OverlapPages   int `mapstructure:"overlap_pages" json:"overlap_pages" validate:"gte=0,ltfield=ChunkSizePages"` // 相邻分块重叠页数
}

// TokenBasedConfig 基于token数策略配置
type TokenBasedConfig struct {
	MaxTokensPerChunk int `mapstructure:"max_tokens_per_chunk" json:"max_tokens_per_chunk" validate:"gt=0"`        // 每个分块的最大token数
	OverlapTokens     int `mapstructure:"overlap_tokens" json:"overlap_tokens" validate:"gte=0,ltfield=MaxTokensPerChunk"` // 相邻分块重叠token数
}

// HybridConfig 混合策略配置
type HybridConfig struct {
	TargetTokensPerChunk int `mapstructure:"target_tokens_per_chunk" json:"target_tokens_per_chunk" validate:"gt=0"`     // 每个分块的目标token数（软限制）
	MaxPagesPerChunk     int `mapstructure:"max_pages_per_chunk" json:"max_pages_per_chunk" validate:"gt=0"`             // 每个分块的最大页数（硬限制）
	OverlapTokens        int `mapstructure:"overlap_tokens" json:"overlap_tokens" validate:"gte=0,ltfield=TargetTokensPerChunk"` // 相邻分块重叠token数
}

// Config 分块配置
// 按策略标签选择一个变体配置段，未选中策略的配置段必须为nil。
// 每次文档处理请求构建一次，构建时立即校验，之后不再修改。
type Config struct {
	Strategy        Strategy          `mapstructure:"strategy" json:"strategy" validate:"required,oneof=fixed-pages token-based hybrid"` // 分块策略
	FixedPages      *FixedPagesConfig `mapstructure:"fixed_pages" json:"fixed_pages,omitempty"`                                          // 固定页数策略配置段
	TokenBased      *TokenBasedConfig `mapstructure:"token_based" json:"token_based,omitempty"`                                          // token策略配置段
	Hybrid          *HybridConfig     `mapstructure:"hybrid" json:"hybrid,omitempty"`                                                    // 混合策略配置段
	PageThreshold   int               `mapstructure:"page_threshold" json:"page_threshold" validate:"gt=0"`                              // 页数阈值，超过才分块
	TokenThreshold  int               `mapstructure:"token_threshold" json:"token_threshold" validate:"gt=0"`                            // token数阈值，超过才分块
	MaxConcurrency  int               `mapstructure:"max_concurrency" json:"max_concurrency" validate:"gt=0"`                            // 分块处理最大并发数
	MinSuccessRatio float64           `mapstructure:"min_success_ratio" json:"min_success_ratio" validate:"gt=0,lte=1"`                  // 最小成功比例(0,1]
}

// DefaultConfig 返回默认分块配置（hybrid策略）
func DefaultConfig() *Config {
	return &Config{
		Strategy: StrategyHybrid,
		Hybrid: &HybridConfig{
			TargetTokensPerChunk: 80000,
			MaxPagesPerChunk:     99,
			OverlapTokens:        5000,
		},
		PageThreshold:   100,
		TokenThreshold:  150000,
		MaxConcurrency:  10,
		MinSuccessRatio: 0.5,
	}
}

// Validate 校验分块配置
// 所有尺寸和阈值必须为正，重叠必须小于对应的尺寸，
// 且只允许设置当前策略对应的配置段（拒绝多余的配置段）
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return models.NewConfigurationError("%v", err)
	}

	switch c.Strategy {
	case StrategyFixedPages:
		if c.FixedPages == nil {
			return models.NewConfigurationError("fixed-pages strategy requires a fixed_pages config section")
		}
		if c.TokenBased != nil || c.Hybrid != nil {
			return models.NewConfigurationError("fixed-pages strategy must not carry other strategy config sections")
		}
		if err := validate.Struct(c.FixedPages); err != nil {
			return models.NewConfigurationError("%v", err)
		}
	case StrategyTokenBased:
		if c.TokenBased == nil {
			return models.NewConfigurationError("token-based strategy requires a token_based config section")
		}
		if c.FixedPages != nil || c.Hybrid != nil {
			return models.NewConfigurationError("token-based strategy must not carry other strategy config sections")
		}
		if err := validate.Struct(c.TokenBased); err != nil {
			return models.NewConfigurationError("%v", err)
		}
	case StrategyHybrid:
		if c.Hybrid == nil {
			return models.NewConfigurationError("hybrid strategy requires a hybrid config section")
		}
		if c.FixedPages != nil || c.TokenBased != nil {
			return models.NewConfigurationError("hybrid strategy must not carry other strategy config sections")
		}
		if err := validate.Struct(c.Hybrid); err != nil {
			return models.NewConfigurationError("%v", err)
		}
	default:
		return models.NewConfigurationError("unknown chunking strategy: %s", c.Strategy)
	}

	return nil
}
