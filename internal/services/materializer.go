package services

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyerfyer/doc-chunk-system/internal/document"
	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/fyerfyer/doc-chunk-system/pkg/storage"
	"github.com/sirupsen/logrus"
)

// ChunkKey 返回分块产物的存储键
// 分块产物统一放在chunks/{documentID}/前缀下，便于按文档清理
func ChunkKey(documentID, chunkID string) string {
	return fmt.Sprintf("chunks/%s/%s.pdf", documentID, chunkID)
}

// ChunkID 返回分块的唯一标识
func ChunkID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, chunkIndex)
}

// Materializer 分块物化器
// 按分块规划从源文档切出子文档，上传到对象存储并生成分块元数据
type Materializer struct {
	source document.Source // 源文档读取接口
	store  storage.Storage // 对象存储
	logger *logrus.Logger  // 日志记录器
}

// NewMaterializer 创建分块物化器
func NewMaterializer(source document.Source, store storage.Storage, logger *logrus.Logger) *Materializer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Materializer{
		source: source,
		store:  store,
		logger: logger,
	}
}

// Materialize 物化分块规划中的所有分块
// 任何一个分块物化失败都会中止整个物化过程并清掉已产生的产物，
// 不给下游留下不完整的产物集合
func (m *Materializer) Materialize(documentID, srcPath string, plan *models.ChunkPlan) ([]models.ChunkMetadata, error) {
	if plan == nil || len(plan.Chunks) == 0 {
		return nil, models.NewSourceDocumentError(documentID, "chunk plan is empty, nothing to materialize", nil)
	}

	tmpDir, err := os.MkdirTemp("", "chunk_materialize_")
	if err != nil {
		return nil, models.NewSourceDocumentError(documentID, "failed to create temp directory", err)
	}
	defer os.RemoveAll(tmpDir)

	totalChunks := len(plan.Chunks)
	chunks := make([]models.ChunkMetadata, 0, totalChunks)

	for _, spec := range plan.Chunks {
		chunkID := ChunkID(documentID, spec.ChunkIndex)
		key := ChunkKey(documentID, chunkID)
		tmpPath := filepath.Join(tmpDir, chunkID+".pdf")

		if err := m.source.WriteRange(srcPath, tmpPath, spec.StartPage, spec.EndPage); err != nil {
			m.rollback(chunks)
			return nil, models.NewSourceDocumentError(documentID,
				fmt.Sprintf("failed to extract pages %d-%d", spec.StartPage, spec.EndPage), err)
		}

		file, err := os.Open(tmpPath)
		if err != nil {
			m.rollback(chunks)
			return nil, models.NewSourceDocumentError(documentID, "failed to open chunk artifact", err)
		}

		info, err := m.store.Save(file, key)
		file.Close()
		if err != nil {
			m.rollback(chunks)
			return nil, models.NewSourceDocumentError(documentID, "failed to upload chunk artifact", err)
		}

		m.logger.WithFields(logrus.Fields{
			"document_id": documentID,
			"chunk_id":    chunkID,
			"chunk_index": spec.ChunkIndex,
			"start_page":  spec.StartPage,
			"end_page":    spec.EndPage,
			"size":        info.Size,
		}).Info("Materialized chunk artifact")

		chunks = append(chunks, models.ChunkMetadata{
			ChunkID:         chunkID,
			ChunkIndex:      spec.ChunkIndex,
			TotalChunks:     totalChunks,
			StartPage:       spec.StartPage,
			EndPage:         spec.EndPage,
			PageCount:       spec.PageCount,
			EstimatedTokens: spec.EstimatedTokens,
			Location:        key,
			Status:          models.ChunkStatusPending,
		})
	}

	return chunks, nil
}

// rollback 物化中止时清掉已上传的分块产物，失败只记日志
func (m *Materializer) rollback(chunks []models.ChunkMetadata) {
	for _, chunk := range chunks {
		if err := m.store.Delete(chunk.Location); err != nil {
			m.logger.WithError(err).WithField("key", chunk.Location).Warn("Failed to roll back chunk artifact")
		}
	}
}
