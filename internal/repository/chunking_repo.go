package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyerfyer/doc-chunk-system/internal/database"
	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"gorm.io/gorm"
)

// chunkingRepository 分块记录仓储实现
type chunkingRepository struct {
	db *gorm.DB // 数据库连接
}

// NewChunkingRepository 创建分块记录仓储实例
func NewChunkingRepository() ChunkingRepository {
	return &chunkingRepository{
		db: database.MustDB(),
	}
}

// NewChunkingRepositoryWithDB 使用指定的数据库连接创建分块记录仓储实例
func NewChunkingRepositoryWithDB(db *gorm.DB) ChunkingRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &chunkingRepository{
		db: db,
	}
}

// Create 创建分块记录
func (r *chunkingRepository) Create(record *models.ChunkingRecord) error {
	if record.DocumentID == "" {
		return errors.New("document ID cannot be empty")
	}

	return r.db.Create(record).Error
}

// Update 更新分块记录
func (r *chunkingRepository) Update(record *models.ChunkingRecord) error {
	if record.DocumentID == "" {
		return errors.New("document ID cannot be empty")
	}

	return r.db.Save(record).Error
}

// GetByDocumentID 根据文档ID获取分块记录
func (r *chunkingRepository) GetByDocumentID(documentID string) (*models.ChunkingRecord, error) {
	var record models.ChunkingRecord
	err := r.db.Where("document_id = ?", documentID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("chunking record not found: %s", documentID)
		}
		return nil, err
	}
	return &record, nil
}

// UpdateStatus 更新记录的状态和阶段
func (r *chunkingRepository) UpdateStatus(documentID string, status models.RecordStatus, stage string, errMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"stage":      stage,
		"updated_at": time.Now(),
	}

	if errMsg != "" {
		updates["error"] = errMsg
	}

	// 终态时记录处理完成时间
	if status == models.RecordStatusCompleted || status == models.RecordStatusFailed {
		now := time.Now()
		updates["processed_at"] = &now
	}

	result := r.db.Model(&models.ChunkingRecord{}).
		Where("document_id = ?", documentID).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("chunking record not found: %s", documentID)
	}

	return nil
}

// List 列出分块记录，支持分页和状态筛选
func (r *chunkingRepository) List(offset, limit int, status models.RecordStatus) ([]*models.ChunkingRecord, int64, error) {
	var records []*models.ChunkingRecord
	var total int64

	query := r.db.Model(&models.ChunkingRecord{})

	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error

	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// Delete 删除分块记录
func (r *chunkingRepository) Delete(documentID string) error {
	result := r.db.Where("document_id = ?", documentID).Delete(&models.ChunkingRecord{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("chunking record not found: %s", documentID)
	}

	return nil
}
