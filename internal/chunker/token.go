package chunker

import (
	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/sirupsen/logrus"
)

// tokenBasedPlanner 基于token数的分块规划器
// 逐页累加token，累加即将越过上限时封闭当前分块，
// 并从尾部回溯若干页作为下一个分块的重叠部分
type tokenBasedPlanner struct {
	cfg    *TokenBasedConfig
	logger *logrus.Logger
}

// Plan 实现Planner接口
func (p *tokenBasedPlanner) Plan(pages []models.PageProfile) (*models.ChunkPlan, error) {
	if len(pages) == 0 {
		return &models.ChunkPlan{Chunks: []models.ChunkSpec{}}, nil
	}

	maxTokens := p.cfg.MaxTokensPerChunk
	overlapTokens := p.cfg.OverlapTokens

	var chunks []models.ChunkSpec
	chunkStart := 0
	chunkTokens := 0
	chunkIndex := 0

	for pageNum, page := range pages {
		pageTokens := page.EstimatedTokens

		// 单页超限时无法再细分，该页自成一块并会超出上限
		if pageTokens > maxTokens && chunkTokens == 0 && p.logger != nil {
			p.logger.WithFields(logrus.Fields{
				"page":        pageNum,
				"page_tokens": pageTokens,
				"max_tokens":  maxTokens,
			}).Warn("Single page exceeds max tokens per chunk, chunk will exceed limit")
		}

		if chunkTokens+pageTokens > maxTokens && chunkTokens > 0 {
			chunks = append(chunks, models.ChunkSpec{
				ChunkIndex:      chunkIndex,
				StartPage:       chunkStart,
				EndPage:         pageNum - 1,
				PageCount:       pageNum - chunkStart,
				EstimatedTokens: chunkTokens,
			})

			// 从刚封闭的分块尾部回溯，凑够重叠token数
			overlapStart := pageNum - 1
			overlapAccumulated := 0
			for overlapStart >= chunkStart && overlapAccumulated < overlapTokens {
				overlapAccumulated += pages[overlapStart].EstimatedTokens
				overlapStart--
			}

			chunkStart = overlapStart + 1
			if chunkStart < 0 {
				chunkStart = 0
			}
			chunkTokens = overlapAccumulated + pageTokens
			chunkIndex++
		} else {
			chunkTokens += pageTokens
		}
	}

	// 收尾分块无条件追加，保证每一页都被覆盖（包括零token的尾页）
	chunks = append(chunks, models.ChunkSpec{
		ChunkIndex:      chunkIndex,
		StartPage:       chunkStart,
		EndPage:         len(pages) - 1,
		PageCount:       len(pages) - chunkStart,
		EstimatedTokens: chunkTokens,
	})

	if p.logger != nil {
		p.logger.WithFields(logrus.Fields{
			"strategy":       string(StrategyTokenBased),
			"total_pages":    len(pages),
			"max_tokens":     maxTokens,
			"overlap_tokens": overlapTokens,
			"chunk_count":    len(chunks),
		}).Info("Calculated token-based chunk plan")
	}

	return &models.ChunkPlan{Chunks: chunks}, nil
}
