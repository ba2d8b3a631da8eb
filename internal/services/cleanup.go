package services

import (
	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/fyerfyer/doc-chunk-system/pkg/storage"
	"github.com/sirupsen/logrus"
)

// Cleaner 分块产物清理器
// 聚合成功后删除物化的分块产物；清理是尽力而为，
// 失败只记日志，绝不影响已产生的聚合结果
type Cleaner struct {
	store  storage.Storage // 对象存储
	logger *logrus.Logger  // 日志记录器
}

// NewCleaner 创建清理器
func NewCleaner(store storage.Storage, logger *logrus.Logger) *Cleaner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Cleaner{
		store:  store,
		logger: logger,
	}
}

// Cleanup 删除文档的所有分块产物
func (c *Cleaner) Cleanup(documentID string, chunks []models.ChunkMetadata) *models.CleanupSummary {
	summary := &models.CleanupSummary{}

	for _, chunk := range chunks {
		if err := c.store.Delete(chunk.Location); err != nil {
			summary.Errors = append(summary.Errors, err.Error())
			c.logger.WithError(err).WithFields(logrus.Fields{
				"document_id": documentID,
				"chunk_id":    chunk.ChunkID,
				"key":         chunk.Location,
			}).Warn("Failed to delete chunk artifact")
			continue
		}
		summary.Deleted++
	}

	c.logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"deleted":     summary.Deleted,
		"errors":      len(summary.Errors),
	}).Info("Chunk artifact cleanup finished")

	return summary
}
