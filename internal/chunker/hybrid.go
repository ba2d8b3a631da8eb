package chunker

import (
	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/sirupsen/logrus"
)

// 分块封闭原因
const (
	// FinalizeReasonTokenLimit 达到目标token数（软限制）
	FinalizeReasonTokenLimit = "token_limit"
	// FinalizeReasonPageLimit 达到最大页数（硬限制）
	FinalizeReasonPageLimit = "page_limit"
	// FinalizeReasonFinalChunk 文档末尾的收尾分块
	FinalizeReasonFinalChunk = "final_chunk"
)

// maxOverlapPages 重叠回溯最多跨越的页数
const maxOverlapPages = 10

// hybridPlanner 混合分块规划器（推荐）
// 以目标token数为软限制、最大页数为硬限制，
// 下游按页处理分块，硬限制保证任何分块都不会超出下游的页数上限
type hybridPlanner struct {
	cfg    *HybridConfig
	logger *logrus.Logger
}

// Plan 实现Planner接口
func (p *hybridPlanner) Plan(pages []models.PageProfile) (*models.ChunkPlan, error) {
	if len(pages) == 0 {
		return &models.ChunkPlan{Chunks: []models.ChunkSpec{}}, nil
	}

	targetTokens := p.cfg.TargetTokensPerChunk
	maxPages := p.cfg.MaxPagesPerChunk
	overlapTokens := p.cfg.OverlapTokens

	var chunks []models.ChunkSpec
	chunkStart := 0
	chunkTokens := 0
	chunkPages := 0
	chunkIndex := 0

	for pageNum, page := range pages {
		pageTokens := page.EstimatedTokens

		// 页数上限用>=判断，在加入这一页之前就封闭，确保不越过硬限制
		shouldFinalize := (chunkTokens+pageTokens > targetTokens && chunkTokens > 0) ||
			(chunkPages >= maxPages && chunkPages > 0)

		if shouldFinalize {
			reason := FinalizeReasonTokenLimit
			if chunkPages >= maxPages {
				reason = FinalizeReasonPageLimit
			}

			chunks = append(chunks, models.ChunkSpec{
				ChunkIndex:      chunkIndex,
				StartPage:       chunkStart,
				EndPage:         pageNum - 1,
				PageCount:       chunkPages,
				EstimatedTokens: chunkTokens,
				FinalizeReason:  reason,
			})

			overlapStart, overlapAccumulated, overlapPages := p.backtrackOverlap(pages, chunkStart, pageNum-1)
			// 全零token页上回溯可能退回到分块起点，强制前进保证起始页严格递增
			if overlapStart <= chunkStart {
				overlapStart = chunkStart + 1
				overlapPages = pageNum - overlapStart
				overlapAccumulated = sumTokens(pages, overlapStart, pageNum-1)
			}

			chunkStart = overlapStart
			chunkTokens = overlapAccumulated + pageTokens
			chunkPages = overlapPages + 1
			chunkIndex++
		} else {
			chunkTokens += pageTokens
			chunkPages++
		}
	}

	// 收尾分块可能仍超过页数硬限制，需要继续按最大页数切分
	for chunkPages > maxPages {
		splitEnd := chunkStart + maxPages - 1
		chunks = append(chunks, models.ChunkSpec{
			ChunkIndex:      chunkIndex,
			StartPage:       chunkStart,
			EndPage:         splitEnd,
			PageCount:       maxPages,
			EstimatedTokens: sumTokens(pages, chunkStart, splitEnd),
			FinalizeReason:  FinalizeReasonPageLimit,
		})

		overlapStart, _, _ := p.backtrackOverlap(pages, chunkStart, splitEnd)
		// 全零token页上回溯可能退回到分块起点，强制前进保证循环收敛
		if overlapStart <= chunkStart {
			overlapStart = chunkStart + 1
		}

		chunkStart = overlapStart
		chunkPages = len(pages) - chunkStart
		chunkTokens = sumTokens(pages, chunkStart, len(pages)-1)
		chunkIndex++
	}

	// 收尾分块无条件追加，保证每一页都被覆盖
	chunks = append(chunks, models.ChunkSpec{
		ChunkIndex:      chunkIndex,
		StartPage:       chunkStart,
		EndPage:         len(pages) - 1,
		PageCount:       chunkPages,
		EstimatedTokens: chunkTokens,
		FinalizeReason:  FinalizeReasonFinalChunk,
	})

	if p.logger != nil {
		p.logger.WithFields(logrus.Fields{
			"strategy":       string(StrategyHybrid),
			"total_pages":    len(pages),
			"target_tokens":  targetTokens,
			"max_pages":      maxPages,
			"overlap_tokens": overlapTokens,
			"chunk_count":    len(chunks),
		}).Info("Calculated hybrid chunk plan")
	}

	return &models.ChunkPlan{Chunks: chunks}, nil
}

// backtrackOverlap 从封闭分块的末页向前回溯，凑够重叠token数
// 回溯不越过分块起始页，且最多跨越maxOverlapPages页
// 返回下一个分块的起始页、重叠token数和重叠页数
func (p *hybridPlanner) backtrackOverlap(pages []models.PageProfile, chunkStart, lastPage int) (int, int, int) {
	overlapStart := lastPage
	overlapAccumulated := 0
	overlapPages := 0

	for overlapStart >= chunkStart && overlapAccumulated < p.cfg.OverlapTokens && overlapPages < maxOverlapPages {
		overlapAccumulated += pages[overlapStart].EstimatedTokens
		overlapPages++
		overlapStart--
	}

	nextStart := overlapStart + 1
	if nextStart < 0 {
		nextStart = 0
	}
	return nextStart, overlapAccumulated, overlapPages
}
