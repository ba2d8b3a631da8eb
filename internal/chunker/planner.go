package chunker

import (
	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/sirupsen/logrus"
)

// Planner 分块规划器接口
// 根据每页的token画像计算分块边界，不接触文档内容本身
type Planner interface {
	// Plan 计算分块方案
	Plan(pages []models.PageProfile) (*models.ChunkPlan, error)
}

// NewPlanner 根据配置创建对应策略的分块规划器
// 配置必须已通过Validate校验
func NewPlanner(cfg *Config, logger *logrus.Logger) (Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Strategy {
	case StrategyFixedPages:
		return &fixedPagesPlanner{cfg: cfg.FixedPages, logger: logger}, nil
	case StrategyTokenBased:
		return &tokenBasedPlanner{cfg: cfg.TokenBased, logger: logger}, nil
	case StrategyHybrid:
		return &hybridPlanner{cfg: cfg.Hybrid, logger: logger}, nil
	default:
		return nil, models.NewConfigurationError("unknown chunking strategy: %s", cfg.Strategy)
	}
}

// sumTokens 计算页区间[start, end]（含两端）的token总数
func sumTokens(pages []models.PageProfile, start, end int) int {
	total := 0
	for i := start; i <= end && i < len(pages); i++ {
		total += pages[i].EstimatedTokens
	}
	return total
}
