package chunker

import (
	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/sirupsen/logrus"
)

// fixedPagesPlanner 固定页数分块规划器
// 每个分块固定C页，相邻分块共享O页重叠，
// 分块数为 ceil((P-O)/(C-O))，P为总页数
type fixedPagesPlanner struct {
	cfg    *FixedPagesConfig
	logger *logrus.Logger
}

// Plan 实现Planner接口
func (p *fixedPagesPlanner) Plan(pages []models.PageProfile) (*models.ChunkPlan, error) {
	totalPages := len(pages)
	if totalPages == 0 {
		return &models.ChunkPlan{Chunks: []models.ChunkSpec{}}, nil
	}

	chunkSize := p.cfg.ChunkSizePages
	stride := chunkSize - p.cfg.OverlapPages

	var chunks []models.ChunkSpec
	start := 0
	for chunkIndex := 0; ; chunkIndex++ {
		end := start + chunkSize - 1
		if end > totalPages-1 {
			end = totalPages - 1
		}

		chunks = append(chunks, models.ChunkSpec{
			ChunkIndex:      chunkIndex,
			StartPage:       start,
			EndPage:         end,
			PageCount:       end - start + 1,
			EstimatedTokens: sumTokens(pages, start, end),
		})

		if end >= totalPages-1 {
			break
		}
		start += stride
	}

	if p.logger != nil {
		p.logger.WithFields(logrus.Fields{
			"strategy":      string(StrategyFixedPages),
			"total_pages":   totalPages,
			"chunk_size":    chunkSize,
			"overlap_pages": p.cfg.OverlapPages,
			"chunk_count":   len(chunks),
		}).Info("Calculated fixed-pages chunk plan")
	}

	return &models.ChunkPlan{Chunks: chunks}, nil
}
