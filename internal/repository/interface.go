package repository

import (
	"github.com/fyerfyer/doc-chunk-system/internal/models"
)

// ChunkingRepository 分块记录仓储接口
// 负责分块处理记录的持久化，供外部元数据消费方查询
type ChunkingRepository interface {
	// Create 创建分块记录
	Create(record *models.ChunkingRecord) error

	// Update 更新分块记录
	Update(record *models.ChunkingRecord) error

	// GetByDocumentID 根据文档ID获取分块记录
	GetByDocumentID(documentID string) (*models.ChunkingRecord, error)

	// UpdateStatus 更新记录的状态和阶段
	UpdateStatus(documentID string, status models.RecordStatus, stage string, errMsg string) error

	// List 列出分块记录，支持分页和状态筛选
	List(offset, limit int, status models.RecordStatus) ([]*models.ChunkingRecord, int64, error)

	// Delete 删除分块记录
	Delete(documentID string) error
}
