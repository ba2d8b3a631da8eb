package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fyerfyer/doc-chunk-system/internal/chunker"
	"github.com/fyerfyer/doc-chunk-system/internal/document"
	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/fyerfyer/doc-chunk-system/internal/repository"
	"github.com/fyerfyer/doc-chunk-system/pkg/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// fakeSource 测试用的源文档实现，页内容在内存里构造
type fakeSource struct {
	pages   []document.PageText
	readErr error
}

func (f *fakeSource) PageCount(path string) (int, error) {
	return len(f.pages), nil
}

func (f *fakeSource) ReadPages(documentID, path string) ([]document.PageText, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.pages, nil
}

func (f *fakeSource) WriteRange(src, dst string, startPage, endPage int) error {
	content := fmt.Sprintf("chunk pages %d-%d", startPage, endPage)
	return os.WriteFile(dst, []byte(content), 0644)
}

// makePages 构造n页，每页wordsPerPage个单词
func makePages(n, wordsPerPage int) []document.PageText {
	pages := make([]document.PageText, n)
	text := strings.TrimSpace(strings.Repeat("word ", wordsPerPage))
	for i := range pages {
		pages[i] = document.PageText{Index: i, Text: text}
	}
	return pages
}

func setupOrchestratorTest(t *testing.T, source *fakeSource) (*ChunkingService, storage.Storage, *stubProcessor) {
	t.Helper()

	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	// 把"源文档"放进存储，内容无所谓，页数由fakeSource决定
	_, err = store.Save(bytes.NewReader([]byte("fake pdf content")), "uploads/doc1.pdf")
	require.NoError(t, err)

	processor := newStubProcessor(func(chunkIndex, attempt int) (*models.ChunkResult, error) {
		return successResult(chunkIndex), nil
	})

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	dispatcher := NewPoolDispatcher(processor, 2, time.Second*5, logger)
	srv := NewChunkingService(source, store, dispatcher, WithChunkingLogger(logger))
	return srv, store, processor
}

func TestProcessDocument_NoChunkingNeeded(t *testing.T) {
	// 10页小文档，两个阈值都不超过
	source := &fakeSource{pages: makePages(10, 100)}
	srv, _, processor := setupOrchestratorTest(t, source)

	result, err := srv.ProcessDocument(context.Background(), "doc1", "uploads/doc1.pdf", chunker.DefaultConfig())
	require.NoError(t, err)

	assert.False(t, result.RequiresChunking)
	assert.Contains(t, result.Reason, "below thresholds")
	assert.Equal(t, 10, result.TokenAnalysis.TotalPages)
	assert.Empty(t, result.Chunks)
	assert.Nil(t, result.Aggregated)
	assert.Equal(t, 0, processor.callCount(0), "no chunks must be dispatched")
}

func TestProcessDocument_FullPipeline(t *testing.T) {
	// 120页超过默认页数阈值100，触发hybrid分块
	source := &fakeSource{pages: makePages(120, 50)}
	srv, store, _ := setupOrchestratorTest(t, source)

	result, err := srv.ProcessDocument(context.Background(), "doc1", "uploads/doc1.pdf", chunker.DefaultConfig())
	require.NoError(t, err)

	assert.True(t, result.RequiresChunking)
	assert.True(t, result.PageThresholdExceeded)
	assert.False(t, result.TokenThresholdExceeded)
	assert.Equal(t, "hybrid", result.Strategy)
	require.NotEmpty(t, result.Chunks)
	require.NotNil(t, result.Aggregated)

	assert.Equal(t, len(result.Chunks), result.Aggregated.TotalChunks)
	assert.Equal(t, len(result.Chunks), result.Aggregated.SuccessfulChunks)
	assert.Zero(t, result.Aggregated.FailedChunks)
	assert.False(t, result.Aggregated.Partial)
	assert.Equal(t, "contract", result.Aggregated.Classification)

	// 首块从第0页开始，末块覆盖到最后一页
	assert.Equal(t, 0, result.Chunks[0].StartPage)
	assert.Equal(t, 119, result.Chunks[len(result.Chunks)-1].EndPage)

	// 聚合完成后分块产物已被清理
	require.NotNil(t, result.Cleanup)
	assert.Equal(t, len(result.Chunks), result.Cleanup.Deleted)
	leftover, err := store.List("chunks/doc1/")
	require.NoError(t, err)
	assert.Empty(t, leftover, "chunk artifacts must be removed after aggregation")
}

func TestProcessDocument_PartialFailure(t *testing.T) {
	source := &fakeSource{pages: makePages(120, 50)}
	srv, _, processor := setupOrchestratorTest(t, source)

	// 索引0的分块永久失败，其余成功
	processor.process = func(chunkIndex, attempt int) (*models.ChunkResult, error) {
		if chunkIndex == 0 {
			return nil, errors.New("unreadable chunk")
		}
		return successResult(chunkIndex), nil
	}

	result, err := srv.ProcessDocument(context.Background(), "doc1", "uploads/doc1.pdf", chunker.DefaultConfig())
	require.NoError(t, err, "chunk-level failures must not fail the document")

	require.NotNil(t, result.Aggregated)
	assert.Equal(t, 1, result.Aggregated.FailedChunks)
	assert.Equal(t, len(result.Chunks)-1, result.Aggregated.SuccessfulChunks)
}

func TestProcessDocument_MissingSource(t *testing.T) {
	source := &fakeSource{pages: makePages(10, 100)}
	srv, _, _ := setupOrchestratorTest(t, source)

	_, err := srv.ProcessDocument(context.Background(), "doc1", "uploads/missing.pdf", chunker.DefaultConfig())
	require.Error(t, err)
	assert.True(t, models.IsSourceDocumentError(err))
}

func TestProcessDocument_ReadFailure(t *testing.T) {
	source := &fakeSource{readErr: errors.New("corrupt document")}
	srv, _, _ := setupOrchestratorTest(t, source)

	_, err := srv.ProcessDocument(context.Background(), "doc1", "uploads/doc1.pdf", chunker.DefaultConfig())
	require.Error(t, err)
}

func TestProcessDocument_InvalidConfig(t *testing.T) {
	source := &fakeSource{pages: makePages(10, 100)}
	srv, _, _ := setupOrchestratorTest(t, source)

	cfg := chunker.DefaultConfig()
	cfg.MinSuccessRatio = 2.0

	_, err := srv.ProcessDocument(context.Background(), "doc1", "uploads/doc1.pdf", cfg)
	require.Error(t, err)
	assert.True(t, models.IsConfigurationError(err))
}

func TestProcessDocument_RecordPersistence(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:orchestrator_test?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ChunkingRecord{}))

	repo := repository.NewChunkingRepositoryWithDB(db)

	source := &fakeSource{pages: makePages(120, 50)}
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)
	_, err = store.Save(bytes.NewReader([]byte("fake pdf content")), "uploads/doc1.pdf")
	require.NoError(t, err)

	processor := newStubProcessor(func(chunkIndex, attempt int) (*models.ChunkResult, error) {
		return successResult(chunkIndex), nil
	})
	dispatcher := NewPoolDispatcher(processor, 2, time.Second*5, logrus.New())
	srv := NewChunkingService(source, store, dispatcher, WithChunkingRepository(repo))

	result, err := srv.ProcessDocument(context.Background(), "doc1", "uploads/doc1.pdf", chunker.DefaultConfig())
	require.NoError(t, err)

	record, err := repo.GetByDocumentID("doc1")
	require.NoError(t, err)

	assert.True(t, record.ChunkingEnabled)
	assert.Equal(t, models.RecordStatusCompleted, record.Status)
	assert.Equal(t, string(StageDone), record.Stage)
	require.NotNil(t, record.ProcessedAt)

	storedChunks, err := record.GetChunkMetadata()
	require.NoError(t, err)
	assert.Len(t, storedChunks, len(result.Chunks))

	storedAgg, err := record.GetAggregatedResult()
	require.NoError(t, err)
	require.NotNil(t, storedAgg)
	assert.Equal(t, result.Aggregated.Classification, storedAgg.Classification)
}

func TestMaterializer_RollbackOnFailure(t *testing.T) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	source := &failAfterSource{failAt: 2}
	materializer := NewMaterializer(source, store, logrus.New())

	plan := &models.ChunkPlan{
		Chunks: []models.ChunkSpec{
			{ChunkIndex: 0, StartPage: 0, EndPage: 49, PageCount: 50},
			{ChunkIndex: 1, StartPage: 50, EndPage: 99, PageCount: 50},
			{ChunkIndex: 2, StartPage: 100, EndPage: 119, PageCount: 20},
		},
	}

	_, err = materializer.Materialize("doc1", "/tmp/doc1.pdf", plan)
	require.Error(t, err)
	assert.True(t, models.IsSourceDocumentError(err))

	// 失败前上传的产物已回滚
	leftover, err := store.List("chunks/doc1/")
	require.NoError(t, err)
	assert.Empty(t, leftover)
}

func TestMaterializer_EmptyPlan(t *testing.T) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)
	materializer := NewMaterializer(&fakeSource{}, store, logrus.New())

	_, err = materializer.Materialize("doc1", "/tmp/doc1.pdf", &models.ChunkPlan{})
	require.Error(t, err)
	assert.True(t, models.IsSourceDocumentError(err))
}

func TestCleaner_ReportsFailures(t *testing.T) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	_, err = store.Save(bytes.NewReader([]byte("artifact")), "chunks/doc1/doc1_chunk_0.pdf")
	require.NoError(t, err)

	cleaner := NewCleaner(store, logrus.New())
	chunks := []models.ChunkMetadata{
		{ChunkID: "doc1_chunk_0", Location: "chunks/doc1/doc1_chunk_0.pdf"},
		{ChunkID: "doc1_chunk_1", Location: "chunks/doc1/doc1_chunk_1.pdf"}, // 不存在
	}

	summary := cleaner.Cleanup("doc1", chunks)
	assert.Equal(t, 1, summary.Deleted)
	assert.Len(t, summary.Errors, 1)
}

// failAfterSource 在第failAt次WriteRange调用时失败
type failAfterSource struct {
	fakeSource
	calls  int
	failAt int
}

func (f *failAfterSource) WriteRange(src, dst string, startPage, endPage int) error {
	if f.calls == f.failAt {
		return errors.New("page extraction failed")
	}
	f.calls++
	return os.WriteFile(dst, []byte("chunk"), 0644)
}
