package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fyerfyer/doc-chunk-system/internal/aggregator"
	"github.com/fyerfyer/doc-chunk-system/internal/chunker"
	"github.com/fyerfyer/doc-chunk-system/internal/document"
	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/fyerfyer/doc-chunk-system/internal/repository"
	"github.com/fyerfyer/doc-chunk-system/pkg/storage"
	"github.com/sirupsen/logrus"
)

// Stage 文档处理阶段
type Stage string

const (
	// StagePlanning 规划阶段：token分析和分块决策
	StagePlanning Stage = "planning"
	// StageNoChunkingNeeded 文档低于阈值，不需要分块
	StageNoChunkingNeeded Stage = "no_chunking_needed"
	// StageMaterializing 物化阶段：切分并上传分块产物
	StageMaterializing Stage = "materializing"
	// StageDispatching 分发阶段：并发处理所有分块
	StageDispatching Stage = "dispatching"
	// StageAggregating 聚合阶段：合并分块结果
	StageAggregating Stage = "aggregating"
	// StageDone 处理完成
	StageDone Stage = "done"
	// StageFailed 处理失败（配置或源文档级错误）
	StageFailed Stage = "failed"
)

// ChunkingService 文档分块处理服务
// 串联 token分析 → 分块决策 → 物化 → 并发分发 → 结果聚合 的完整流程，
// 是外部管道使用的唯一入口
type ChunkingService struct {
	source       document.Source                // 源文档读取接口
	store        storage.Storage                // 对象存储
	dispatcher   Dispatcher                     // 分块分发器
	materializer *Materializer                  // 分块物化器
	cleaner      *Cleaner                       // 产物清理器
	agg          *aggregator.Aggregator         // 结果聚合器
	repo         repository.ChunkingRepository  // 分块记录仓储（可选）
	logger       *logrus.Logger                 // 日志记录器
}

// ChunkingOption 分块服务配置选项
type ChunkingOption func(*ChunkingService)

// NewChunkingService 创建分块处理服务
func NewChunkingService(
	source document.Source,
	store storage.Storage,
	dispatcher Dispatcher,
	opts ...ChunkingOption,
) *ChunkingService {
	srv := &ChunkingService{
		source:     source,
		store:      store,
		dispatcher: dispatcher,
		logger:     logrus.New(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.materializer = NewMaterializer(source, store, srv.logger)
	srv.cleaner = NewCleaner(store, srv.logger)
	srv.agg = aggregator.NewAggregator(srv.logger)

	return srv
}

// WithChunkingRepository 设置分块记录仓储
func WithChunkingRepository(repo repository.ChunkingRepository) ChunkingOption {
	return func(s *ChunkingService) {
		s.repo = repo
	}
}

// WithChunkingLogger 设置日志记录器
func WithChunkingLogger(logger *logrus.Logger) ChunkingOption {
	return func(s *ChunkingService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// ProcessDocument 处理一个文档
// documentKey是源文档在对象存储中的键；配置错误和源文档错误作为显式失败返回，
// 分块级失败被吸收进聚合结果，永远不会让整个文档失败
func (s *ChunkingService) ProcessDocument(ctx context.Context, documentID, documentKey string, cfg *chunker.Config) (*models.ProcessResult, error) {
	if cfg == nil {
		cfg = chunker.DefaultConfig()
	}

	// 配置在读取任何页面之前校验，快速失败
	planner, err := chunker.NewPlanner(cfg, s.logger)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"strategy":    string(cfg.Strategy),
	})
	log.Info("Starting document processing")

	s.createRecord(documentID, documentKey, cfg)
	s.updateStage(documentID, models.RecordStatusProcessing, StagePlanning, "")

	// 从对象存储取回源文档到本地临时文件
	srcPath, cleanupSrc, err := s.fetchDocument(documentID, documentKey)
	if err != nil {
		s.updateStage(documentID, models.RecordStatusFailed, StageFailed, err.Error())
		return nil, err
	}
	defer cleanupSrc()

	// 逐页提取文本并估算token
	pages, err := s.source.ReadPages(documentID, srcPath)
	if err != nil {
		s.updateStage(documentID, models.RecordStatusFailed, StageFailed, err.Error())
		return nil, err
	}

	profiles, analysis := document.Profile(pages)
	decision := chunker.Decide(cfg, analysis, s.logger)

	result := &models.ProcessResult{
		DocumentID:             documentID,
		RequiresChunking:       decision.RequiresChunking,
		Strategy:               string(cfg.Strategy),
		TokenAnalysis:          analysis,
		Reason:                 decision.Reason,
		PageThresholdExceeded:  decision.PageThresholdExceeded,
		TokenThresholdExceeded: decision.TokenThresholdExceeded,
	}

	if !decision.RequiresChunking {
		log.WithField("reason", decision.Reason).Info("No chunking needed")
		s.finishRecord(documentID, StageNoChunkingNeeded, false, decision.Reason, analysis, nil, nil)
		return result, nil
	}

	// 计算分块方案
	plan, err := planner.Plan(profiles)
	if err != nil {
		s.updateStage(documentID, models.RecordStatusFailed, StageFailed, err.Error())
		return nil, err
	}

	// 物化分块产物
	s.updateStage(documentID, models.RecordStatusProcessing, StageMaterializing, "")
	chunks, err := s.materializer.Materialize(documentID, srcPath, plan)
	if err != nil {
		s.updateStage(documentID, models.RecordStatusFailed, StageFailed, err.Error())
		return nil, err
	}

	// 并发分发处理，收齐所有分块的终态结果
	s.updateStage(documentID, models.RecordStatusProcessing, StageDispatching, "")
	log.WithField("chunk_count", len(chunks)).Info("Dispatching chunks for processing")
	chunkResults := s.dispatcher.Dispatch(ctx, documentID, chunks)

	// 聚合
	s.updateStage(documentID, models.RecordStatusProcessing, StageAggregating, "")
	aggregated := s.agg.Aggregate(chunkResults, len(chunks), cfg.MinSuccessRatio)

	result.Chunks = chunks
	result.Aggregated = aggregated

	s.finishRecord(documentID, StageDone, true, "", analysis, chunks, aggregated)

	// 聚合成功后尽力清理分块产物，失败不影响结果
	result.Cleanup = s.cleaner.Cleanup(documentID, chunks)

	log.WithFields(logrus.Fields{
		"total_chunks":      aggregated.TotalChunks,
		"successful_chunks": aggregated.SuccessfulChunks,
		"failed_chunks":     aggregated.FailedChunks,
		"partial":           aggregated.Partial,
	}).Info("Document processing finished")

	return result, nil
}

// fetchDocument 从对象存储取回源文档到本地临时文件
// 返回本地路径和清理函数
func (s *ChunkingService) fetchDocument(documentID, documentKey string) (string, func(), error) {
	reader, err := s.store.Get(documentKey)
	if err != nil {
		return "", nil, models.NewSourceDocumentError(documentID, "failed to fetch source document", err)
	}
	defer reader.Close()

	tmpDir, err := os.MkdirTemp("", "chunk_source_")
	if err != nil {
		return "", nil, models.NewSourceDocumentError(documentID, "failed to create temp directory", err)
	}

	srcPath := filepath.Join(tmpDir, filepath.Base(documentKey))
	file, err := os.Create(srcPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		return "", nil, models.NewSourceDocumentError(documentID, "failed to create temp file", err)
	}

	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		os.RemoveAll(tmpDir)
		return "", nil, models.NewSourceDocumentError(documentID, "failed to copy source document", err)
	}
	file.Close()

	return srcPath, func() { os.RemoveAll(tmpDir) }, nil
}

// createRecord 创建初始分块记录，仓储未配置时跳过
func (s *ChunkingService) createRecord(documentID, documentKey string, cfg *chunker.Config) {
	if s.repo == nil {
		return
	}

	record := &models.ChunkingRecord{
		DocumentID: documentID,
		FileName:   filepath.Base(documentKey),
		Strategy:   string(cfg.Strategy),
		Status:     models.RecordStatusPending,
		Stage:      string(StagePlanning),
	}

	if err := s.repo.Create(record); err != nil {
		s.logger.WithError(err).WithField("document_id", documentID).Warn("Failed to create chunking record")
	}
}

// updateStage 推进分块记录的状态和阶段，仓储未配置时跳过
func (s *ChunkingService) updateStage(documentID string, status models.RecordStatus, stage Stage, errMsg string) {
	if s.repo == nil {
		return
	}

	if err := s.repo.UpdateStatus(documentID, status, string(stage), errMsg); err != nil {
		s.logger.WithError(err).WithField("document_id", documentID).Warn("Failed to update chunking record status")
	}
}

// finishRecord 写入终态分块记录，仓储未配置时跳过
func (s *ChunkingService) finishRecord(documentID string, stage Stage, enabled bool, reason string, analysis models.TokenAnalysis, chunks []models.ChunkMetadata, aggregated *models.AggregatedResult) {
	if s.repo == nil {
		return
	}

	record, err := s.repo.GetByDocumentID(documentID)
	if err != nil {
		s.logger.WithError(err).WithField("document_id", documentID).Warn("Failed to load chunking record")
		return
	}

	record.ChunkingEnabled = enabled
	record.Reason = reason
	record.Status = models.RecordStatusCompleted
	record.Stage = string(stage)
	now := time.Now()
	record.ProcessedAt = &now

	if err := record.SetTokenAnalysis(analysis); err != nil {
		s.logger.WithError(err).Warn("Failed to serialize token analysis")
	}
	if chunks != nil {
		if err := record.SetChunkMetadata(chunks); err != nil {
			s.logger.WithError(err).Warn("Failed to serialize chunk metadata")
		}
	}
	if err := record.SetAggregatedResult(aggregated); err != nil {
		s.logger.WithError(err).Warn("Failed to serialize aggregated result")
	}

	if err := s.repo.Update(record); err != nil {
		s.logger.WithError(err).WithField("document_id", documentID).Warn("Failed to update chunking record")
	}
}
