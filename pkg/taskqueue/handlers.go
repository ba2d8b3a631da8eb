package taskqueue

import (
	"context"
	"fmt"

	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// ChunkProcessFunc 分块处理函数
// 对一个物化后的分块执行分析，返回分块结果
type ChunkProcessFunc func(ctx context.Context, documentID string, chunk models.ChunkMetadata) (*models.ChunkResult, error)

// ChunkProcessHandler 分块分析任务处理器
// 从任务载荷中还原分块元数据，调用处理函数并把结果写回任务存储
type ChunkProcessHandler struct {
	queue   Queue            // 任务队列，用于写回结果
	process ChunkProcessFunc // 实际的分块处理函数
	logger  *logrus.Logger   // 日志记录器
}

// NewChunkProcessHandler 创建分块分析任务处理器
func NewChunkProcessHandler(queue Queue, process ChunkProcessFunc, logger *logrus.Logger) *ChunkProcessHandler {
	if logger == nil {
		logger = logrus.New()
	}

	return &ChunkProcessHandler{
		queue:   queue,
		process: process,
		logger:  logger,
	}
}

// GetTaskTypes 返回此处理器支持的任务类型
func (h *ChunkProcessHandler) GetTaskTypes() []TaskType {
	return []TaskType{TaskChunkProcess}
}

// ProcessTask 处理分块分析任务
// 瞬时错误返回error触发asynq重试；永久错误包装asynq.SkipRetry，
// 由调用方把该任务记为失败的分块结果
func (h *ChunkProcessHandler) ProcessTask(ctx context.Context, task *Task) error {
	var payload ChunkProcessPayload
	if err := UnmarshalPayload(task.Payload, &payload); err != nil {
		h.logger.WithError(err).WithField("task_id", task.ID).Error("Failed to unmarshal chunk process payload")
		return fmt.Errorf("%w: %v", ErrInvalidPayload, asynq.SkipRetry)
	}

	h.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"document_id": payload.DocumentID,
		"chunk_id":    payload.Chunk.ChunkID,
		"chunk_index": payload.Chunk.ChunkIndex,
	}).Info("Processing chunk task")

	result, err := h.process(ctx, payload.DocumentID, payload.Chunk)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"task_id":     task.ID,
			"document_id": payload.DocumentID,
			"chunk_index": payload.Chunk.ChunkIndex,
		}).Error("Chunk processing failed")

		if models.IsTransient(err) {
			// 返回普通错误，交给asynq按重试配置重试
			return err
		}
		return fmt.Errorf("chunk processing failed permanently: %v: %w", err, asynq.SkipRetry)
	}

	// 把分块结果写回任务存储，状态由工作者统一推进
	taskResult := ChunkProcessResult{
		DocumentID: payload.DocumentID,
		Result:     *result,
	}
	if err := h.queue.UpdateTaskStatus(ctx, task.ID, StatusProcessing, taskResult, ""); err != nil {
		h.logger.WithError(err).WithField("task_id", task.ID).Error("Failed to store chunk result")
		return err
	}

	return nil
}
