package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProcessor 可编程的分块处理桩
type stubProcessor struct {
	mu      sync.Mutex
	calls   map[int]int // 每个分块索引的调用次数
	process func(chunkIndex, attempt int) (*models.ChunkResult, error)

	active    int32 // 当前并发执行数
	maxActive int32 // 观测到的最大并发数
}

func newStubProcessor(process func(chunkIndex, attempt int) (*models.ChunkResult, error)) *stubProcessor {
	return &stubProcessor{
		calls:   make(map[int]int),
		process: process,
	}
}

func (p *stubProcessor) Process(ctx context.Context, documentID string, chunk models.ChunkMetadata) (*models.ChunkResult, error) {
	cur := atomic.AddInt32(&p.active, 1)
	defer atomic.AddInt32(&p.active, -1)
	for {
		max := atomic.LoadInt32(&p.maxActive)
		if cur <= max || atomic.CompareAndSwapInt32(&p.maxActive, max, cur) {
			break
		}
	}

	p.mu.Lock()
	p.calls[chunk.ChunkIndex]++
	attempt := p.calls[chunk.ChunkIndex]
	p.mu.Unlock()

	return p.process(chunk.ChunkIndex, attempt)
}

func (p *stubProcessor) callCount(chunkIndex int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[chunkIndex]
}

func testChunks(n int) []models.ChunkMetadata {
	chunks := make([]models.ChunkMetadata, n)
	for i := range chunks {
		chunks[i] = models.ChunkMetadata{
			ChunkID:     fmt.Sprintf("doc1_chunk_%d", i),
			ChunkIndex:  i,
			TotalChunks: n,
			StartPage:   i * 10,
			EndPage:     i*10 + 9,
			PageCount:   10,
			Status:      models.ChunkStatusPending,
		}
	}
	return chunks
}

// fastBackoff 测试用的退避策略，避免真实的指数等待
func fastBackoff(attempt int) time.Duration {
	return time.Millisecond
}

func successResult(chunkIndex int) *models.ChunkResult {
	return &models.ChunkResult{
		ChunkIndex:     chunkIndex,
		Classification: "contract",
		Entities: []models.Entity{
			{Type: "party", Value: fmt.Sprintf("entity-%d", chunkIndex)},
		},
	}
}

func TestPoolDispatcher_AllSuccess(t *testing.T) {
	processor := newStubProcessor(func(chunkIndex, attempt int) (*models.ChunkResult, error) {
		return successResult(chunkIndex), nil
	})

	dispatcher := NewPoolDispatcher(processor, 4, time.Second*5, logrus.New())
	chunks := testChunks(6)

	results := dispatcher.Dispatch(context.Background(), "doc1", chunks)

	require.Len(t, results, 6)
	for _, r := range results {
		assert.Empty(t, r.Error)
		assert.Equal(t, "contract", r.Classification)
	}
	for _, c := range chunks {
		assert.Equal(t, models.ChunkStatusComplete, c.Status)
	}
}

func TestPoolDispatcher_ConcurrencyBound(t *testing.T) {
	processor := newStubProcessor(func(chunkIndex, attempt int) (*models.ChunkResult, error) {
		time.Sleep(time.Millisecond * 20)
		return successResult(chunkIndex), nil
	})

	dispatcher := NewPoolDispatcher(processor, 3, time.Second*5, logrus.New())
	results := dispatcher.Dispatch(context.Background(), "doc1", testChunks(12))

	require.Len(t, results, 12)
	assert.LessOrEqual(t, atomic.LoadInt32(&processor.maxActive), int32(3),
		"worker pool must not exceed configured concurrency")
}

func TestPoolDispatcher_RetriesTransientError(t *testing.T) {
	processor := newStubProcessor(func(chunkIndex, attempt int) (*models.ChunkResult, error) {
		if attempt < 3 {
			return nil, models.MarkTransient(errors.New("service unavailable"))
		}
		return successResult(chunkIndex), nil
	})

	dispatcher := NewPoolDispatcher(processor, 1, time.Second*5, logrus.New())
	dispatcher.backoff = fastBackoff
	results := dispatcher.Dispatch(context.Background(), "doc1", testChunks(1))

	require.Len(t, results, 1)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, 3, processor.callCount(0))
}

func TestPoolDispatcher_PermanentErrorNoRetry(t *testing.T) {
	processor := newStubProcessor(func(chunkIndex, attempt int) (*models.ChunkResult, error) {
		return nil, errors.New("invalid chunk payload")
	})

	dispatcher := NewPoolDispatcher(processor, 1, time.Second*5, logrus.New())
	chunks := testChunks(1)
	results := dispatcher.Dispatch(context.Background(), "doc1", chunks)

	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Error)
	assert.Equal(t, 1, processor.callCount(0), "permanent errors must not be retried")
	assert.Equal(t, models.ChunkStatusFailed, chunks[0].Status)
}

func TestPoolDispatcher_TimeoutRetries(t *testing.T) {
	processor := newStubProcessor(func(chunkIndex, attempt int) (*models.ChunkResult, error) {
		time.Sleep(time.Millisecond * 50)
		return nil, errors.New("processing aborted")
	})

	// 单分块超时远小于处理耗时，每次尝试都超时
	dispatcher := NewPoolDispatcher(processor, 1, time.Millisecond*10, logrus.New())
	dispatcher.backoff = fastBackoff
	results := dispatcher.Dispatch(context.Background(), "doc1", testChunks(1))

	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Error)
	assert.Equal(t, defaultMaxRetries, processor.callCount(0), "timeouts must be retried")
}

func TestPoolDispatcher_ExhaustedRetriesFails(t *testing.T) {
	processor := newStubProcessor(func(chunkIndex, attempt int) (*models.ChunkResult, error) {
		return nil, models.MarkTransient(errors.New("still unavailable"))
	})

	dispatcher := NewPoolDispatcher(processor, 1, time.Second*5, logrus.New())
	dispatcher.backoff = fastBackoff
	results := dispatcher.Dispatch(context.Background(), "doc1", testChunks(1))

	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Error)
	assert.Equal(t, defaultMaxRetries, processor.callCount(0))
}

func TestPoolDispatcher_PartialFailure(t *testing.T) {
	processor := newStubProcessor(func(chunkIndex, attempt int) (*models.ChunkResult, error) {
		if chunkIndex == 1 {
			return nil, errors.New("corrupt chunk")
		}
		return successResult(chunkIndex), nil
	})

	dispatcher := NewPoolDispatcher(processor, 2, time.Second*5, logrus.New())
	results := dispatcher.Dispatch(context.Background(), "doc1", testChunks(3))

	require.Len(t, results, 3)
	var failed int
	for _, r := range results {
		if r.Error != "" {
			failed++
			assert.Equal(t, 1, r.ChunkIndex)
		}
	}
	assert.Equal(t, 1, failed, "one chunk failure must not affect the others")
}

func TestPoolDispatcher_ContextCancelled(t *testing.T) {
	processor := newStubProcessor(func(chunkIndex, attempt int) (*models.ChunkResult, error) {
		return nil, models.MarkTransient(errors.New("unavailable"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dispatcher := NewPoolDispatcher(processor, 1, time.Second*5, logrus.New())
	results := dispatcher.Dispatch(ctx, "doc1", testChunks(2))

	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotEmpty(t, r.Error)
	}
}
