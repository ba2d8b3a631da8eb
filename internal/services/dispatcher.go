package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/fyerfyer/doc-chunk-system/internal/segment"
	"github.com/sirupsen/logrus"
)

// Dispatcher 分块分发器接口
// 把物化后的分块交给分析处理器执行，收齐所有分块的终态结果后返回；
// 单个分块的失败不会中止其余分块
type Dispatcher interface {
	// Dispatch 处理所有分块并返回每个分块的结果
	Dispatch(ctx context.Context, documentID string, chunks []models.ChunkMetadata) []models.ChunkResult
}

// PoolDispatcher 进程内工作池分发器
// 最多maxConcurrency个worker并发处理分块，每个分块独立超时和重试
type PoolDispatcher struct {
	processor    segment.Processor // 分块分析处理器
	concurrency  int               // 最大并发数
	chunkTimeout time.Duration     // 单个分块的处理超时
	maxRetries   int               // 单个分块的最大尝试次数
	backoff      backoffFunc       // 重试退避策略
	logger       *logrus.Logger    // 日志记录器
}

// NewPoolDispatcher 创建工作池分发器
// concurrency为1时退化为顺序处理
func NewPoolDispatcher(processor segment.Processor, concurrency int, chunkTimeout time.Duration, logger *logrus.Logger) *PoolDispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &PoolDispatcher{
		processor:    processor,
		concurrency:  concurrency,
		chunkTimeout: chunkTimeout,
		maxRetries:   defaultMaxRetries,
		backoff:      backoff,
		logger:       logger,
	}
}

// Dispatch 实现Dispatcher接口
// 每个分块的状态字段只由处理它的worker修改，结果通过channel收集
func (d *PoolDispatcher) Dispatch(ctx context.Context, documentID string, chunks []models.ChunkMetadata) []models.ChunkResult {
	jobs := make(chan int)
	resultCh := make(chan models.ChunkResult, len(chunks))

	var wg sync.WaitGroup
	for w := 0; w < d.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				resultCh <- d.processChunk(ctx, documentID, &chunks[i])
			}
		}()
	}

	for i := range chunks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(resultCh)

	results := make([]models.ChunkResult, 0, len(chunks))
	for r := range resultCh {
		results = append(results, r)
	}
	return results
}

// processChunk 处理单个分块，带超时和瞬时错误重试
// 重试只作用于这个分块，不影响其他分块
func (d *PoolDispatcher) processChunk(ctx context.Context, documentID string, chunk *models.ChunkMetadata) models.ChunkResult {
	chunk.Status = models.ChunkStatusProcessing

	var lastErr error
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
			case <-time.After(d.backoff(attempt)):
			}
			if ctx.Err() != nil {
				break
			}

			d.logger.WithFields(logrus.Fields{
				"document_id": documentID,
				"chunk_index": chunk.ChunkIndex,
				"attempt":     attempt + 1,
			}).Info("Retrying chunk processing")
		}

		chunkCtx := ctx
		var cancel context.CancelFunc
		if d.chunkTimeout > 0 {
			chunkCtx, cancel = context.WithTimeout(ctx, d.chunkTimeout)
		}

		result, err := d.processor.Process(chunkCtx, documentID, *chunk)
		// 在cancel前捕获超时状态，cancel后chunkCtx.Err()恒为非nil
		timedOut := errors.Is(chunkCtx.Err(), context.DeadlineExceeded)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			chunk.Status = models.ChunkStatusComplete
			return *result
		}

		lastErr = err
		d.logger.WithError(err).WithFields(logrus.Fields{
			"document_id": documentID,
			"chunk_index": chunk.ChunkIndex,
			"attempt":     attempt + 1,
		}).Warn("Chunk processing attempt failed")

		// 超时当作普通的分块级失败处理，可以重试；其他永久错误立即终止
		if !isRetryable(err) && !timedOut {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	chunk.Status = models.ChunkStatusFailed
	procErr := &models.ChunkProcessingError{
		DocumentID: documentID,
		ChunkIndex: chunk.ChunkIndex,
		Err:        lastErr,
	}

	d.logger.WithError(procErr).WithFields(logrus.Fields{
		"document_id": documentID,
		"chunk_index": chunk.ChunkIndex,
	}).Error("Chunk processing failed after retries")

	return models.ChunkResult{
		ChunkIndex: chunk.ChunkIndex,
		Error:      procErr.Error(),
	}
}
