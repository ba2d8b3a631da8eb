package services

import (
	"context"
	"time"

	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/fyerfyer/doc-chunk-system/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// QueueDispatcher 分布式队列分发器
// 把分块任务提交到Redis任务队列，由独立的工作者进程处理，
// 并发度由工作者端的配置控制
type QueueDispatcher struct {
	queue       taskqueue.Queue // 任务队列
	waitTimeout time.Duration   // 单个分块任务的等待超时
	logger      *logrus.Logger  // 日志记录器
}

// NewQueueDispatcher 创建队列分发器
func NewQueueDispatcher(queue taskqueue.Queue, waitTimeout time.Duration, logger *logrus.Logger) *QueueDispatcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &QueueDispatcher{
		queue:       queue,
		waitTimeout: waitTimeout,
		logger:      logger,
	}
}

// Dispatch 实现Dispatcher接口
// 先把所有分块任务入队，再逐个等待终态；
// 入队失败、等待超时和任务失败都记为该分块的失败结果
func (d *QueueDispatcher) Dispatch(ctx context.Context, documentID string, chunks []models.ChunkMetadata) []models.ChunkResult {
	taskIDs := make(map[int]string, len(chunks))

	for i := range chunks {
		payload := &taskqueue.ChunkProcessPayload{
			DocumentID: documentID,
			Chunk:      chunks[i],
		}

		taskID, err := d.queue.Enqueue(ctx, taskqueue.TaskChunkProcess, documentID, payload)
		if err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"document_id": documentID,
				"chunk_index": chunks[i].ChunkIndex,
			}).Error("Failed to enqueue chunk task")
			continue
		}
		chunks[i].Status = models.ChunkStatusProcessing
		taskIDs[i] = taskID
	}

	results := make([]models.ChunkResult, 0, len(chunks))
	for i := range chunks {
		chunk := &chunks[i]

		taskID, ok := taskIDs[i]
		if !ok {
			chunk.Status = models.ChunkStatusFailed
			results = append(results, d.failedResult(documentID, chunk.ChunkIndex, "failed to enqueue chunk task"))
			continue
		}

		task, err := d.queue.WaitForTask(ctx, taskID, d.waitTimeout)
		if err != nil {
			chunk.Status = models.ChunkStatusFailed
			results = append(results, d.failedResult(documentID, chunk.ChunkIndex, err.Error()))
			continue
		}

		if task.Status == taskqueue.StatusFailed {
			chunk.Status = models.ChunkStatusFailed
			results = append(results, d.failedResult(documentID, chunk.ChunkIndex, task.Error))
			continue
		}

		var taskResult taskqueue.ChunkProcessResult
		if err := taskqueue.UnmarshalPayload(task.Result, &taskResult); err != nil {
			chunk.Status = models.ChunkStatusFailed
			results = append(results, d.failedResult(documentID, chunk.ChunkIndex, "invalid chunk task result"))
			continue
		}

		chunk.Status = models.ChunkStatusComplete
		results = append(results, taskResult.Result)
	}

	return results
}

// failedResult 合成一个失败的分块结果
func (d *QueueDispatcher) failedResult(documentID string, chunkIndex int, errMsg string) models.ChunkResult {
	d.logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"chunk_index": chunkIndex,
		"error":       errMsg,
	}).Error("Chunk task failed")

	return models.ChunkResult{
		ChunkIndex: chunkIndex,
		Error:      errMsg,
	}
}
