package chunker

import (
	"fmt"

	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/sirupsen/logrus"
)

// Decision 分块决策结果
type Decision struct {
	RequiresChunking       bool     `json:"requires_chunking"`        // 是否需要分块
	Strategy               Strategy `json:"strategy"`                 // 使用的策略
	Reason                 string   `json:"reason"`                   // 决策原因（人类可读）
	DocumentPages          int      `json:"document_pages"`           // 文档总页数
	DocumentTokens         int      `json:"document_tokens"`          // 文档总token数
	PageThresholdExceeded  bool     `json:"page_threshold_exceeded"`  // 是否超过页数阈值
	TokenThresholdExceeded bool     `json:"token_threshold_exceeded"` // 是否超过token阈值
}

// Decide 根据策略和阈值判断文档是否需要分块
// fixed-pages只看页数，token-based只看token数，hybrid任一超过即分块
func Decide(cfg *Config, analysis models.TokenAnalysis, logger *logrus.Logger) Decision {
	d := Decision{
		Strategy:       cfg.Strategy,
		DocumentPages:  analysis.TotalPages,
		DocumentTokens: analysis.TotalTokens,
	}

	switch cfg.Strategy {
	case StrategyFixedPages:
		d.PageThresholdExceeded = analysis.TotalPages > cfg.PageThreshold
		d.RequiresChunking = d.PageThresholdExceeded
		if d.RequiresChunking {
			d.Reason = fmt.Sprintf("Document has %d pages, exceeding threshold of %d pages (fixed-pages strategy)",
				analysis.TotalPages, cfg.PageThreshold)
		} else {
			d.Reason = fmt.Sprintf("Document has %d pages, below threshold of %d pages (fixed-pages strategy)",
				analysis.TotalPages, cfg.PageThreshold)
		}

	case StrategyTokenBased:
		d.TokenThresholdExceeded = analysis.TotalTokens > cfg.TokenThreshold
		d.RequiresChunking = d.TokenThresholdExceeded
		if d.RequiresChunking {
			d.Reason = fmt.Sprintf("Document has %d tokens, exceeding threshold of %d tokens (token-based strategy)",
				analysis.TotalTokens, cfg.TokenThreshold)
		} else {
			d.Reason = fmt.Sprintf("Document has %d tokens, below threshold of %d tokens (token-based strategy)",
				analysis.TotalTokens, cfg.TokenThreshold)
		}

	default: // hybrid
		d.PageThresholdExceeded = analysis.TotalPages > cfg.PageThreshold
		d.TokenThresholdExceeded = analysis.TotalTokens > cfg.TokenThreshold
		d.RequiresChunking = d.PageThresholdExceeded || d.TokenThresholdExceeded
		switch {
		case d.PageThresholdExceeded && d.TokenThresholdExceeded:
			d.Reason = fmt.Sprintf("Document has %d pages (threshold: %d) and %d tokens (threshold: %d), both thresholds exceeded (hybrid strategy)",
				analysis.TotalPages, cfg.PageThreshold, analysis.TotalTokens, cfg.TokenThreshold)
		case d.PageThresholdExceeded:
			d.Reason = fmt.Sprintf("Document has %d pages, exceeding threshold of %d pages; %d tokens below threshold of %d (hybrid strategy)",
				analysis.TotalPages, cfg.PageThreshold, analysis.TotalTokens, cfg.TokenThreshold)
		case d.TokenThresholdExceeded:
			d.Reason = fmt.Sprintf("Document has %d tokens, exceeding threshold of %d tokens; %d pages below threshold of %d (hybrid strategy)",
				analysis.TotalTokens, cfg.TokenThreshold, analysis.TotalPages, cfg.PageThreshold)
		default:
			d.Reason = fmt.Sprintf("Document has %d pages and %d tokens, below thresholds of %d pages and %d tokens (hybrid strategy)",
				analysis.TotalPages, analysis.TotalTokens, cfg.PageThreshold, cfg.TokenThreshold)
		}
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"strategy":                 string(d.Strategy),
			"requires_chunking":        d.RequiresChunking,
			"document_pages":           d.DocumentPages,
			"document_tokens":          d.DocumentTokens,
			"page_threshold":           cfg.PageThreshold,
			"token_threshold":          cfg.TokenThreshold,
			"page_threshold_exceeded":  d.PageThresholdExceeded,
			"token_threshold_exceeded": d.TokenThresholdExceeded,
		}).Info(d.Reason)
	}

	return d
}
