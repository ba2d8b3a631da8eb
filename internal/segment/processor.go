package segment

import (
	"context"

	"github.com/fyerfyer/doc-chunk-system/internal/models"
)

// Processor 分块分析处理器接口
// 对一个物化后的分块执行分类和实体提取，每个分块恰好调用一次；
// 瞬时失败（限流、临时IO故障）返回标记为transient的错误供调用方重试，
// 永久失败返回普通错误，由调用方记为失败的分块结果
type Processor interface {
	// Process 处理单个分块，返回分类标签和提取的实体
	Process(ctx context.Context, documentID string, chunk models.ChunkMetadata) (*models.ChunkResult, error)
}
