package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/sirupsen/logrus"
)

// HTTPProcessor 通过HTTP调用分析服务的分块处理器实现
// 不在客户端内重试，重试策略由分发器统一控制
type HTTPProcessor struct {
	client *http.Client
	config *Config
	logger *logrus.Logger
}

// APIError 表示分析服务返回的错误
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status code: %d): %s - %s", e.StatusCode, e.Message, e.Detail)
}

// processRequest 分块分析请求体
type processRequest struct {
	DocumentID string `json:"document_id"` // 文档ID
	ChunkID    string `json:"chunk_id"`    // 分块唯一标识
	ChunkIndex int    `json:"chunk_index"` // 分块索引
	Location   string `json:"location"`    // 分块产物的存储位置
	StartPage  int    `json:"start_page"`  // 分块起始页
	EndPage    int    `json:"end_page"`    // 分块结束页
}

// processResponse 分块分析响应体
type processResponse struct {
	Classification string          `json:"classification"` // 分类标签
	Entities       []models.Entity `json:"entities"`       // 提取的实体
}

// NewHTTPProcessor 创建HTTP分块处理器
func NewHTTPProcessor(config *Config, logger *logrus.Logger) *HTTPProcessor {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}

	client := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &HTTPProcessor{
		client: client,
		config: config,
		logger: logger,
	}
}

// Process 实现Processor接口
// 网络错误、429和5xx视为瞬时错误；其余4xx视为永久错误
func (p *HTTPProcessor) Process(ctx context.Context, documentID string, chunk models.ChunkMetadata) (*models.ChunkResult, error) {
	reqBody := processRequest{
		DocumentID: documentID,
		ChunkID:    chunk.ChunkID,
		ChunkIndex: chunk.ChunkIndex,
		Location:   chunk.Location,
		StartPage:  chunk.StartPage,
		EndPage:    chunk.EndPage,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal process request: %w", err)
	}

	url := fmt.Sprintf("%s/segments/process", p.config.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		// 网络层失败视为瞬时错误
		return nil, models.MarkTransient(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.MarkTransient(fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    "segment processing failed",
		}

		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Detail != "" {
			apiErr.Detail = errResp.Detail
		} else {
			apiErr.Detail = string(body)
		}

		p.logger.WithFields(logrus.Fields{
			"document_id": documentID,
			"chunk_index": chunk.ChunkIndex,
			"status_code": resp.StatusCode,
		}).Warn("Segment processing request rejected")

		// 限流和服务端错误可以重试
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, models.MarkTransient(apiErr)
		}
		return nil, apiErr
	}

	var result processResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response JSON: %w", err)
	}

	return &models.ChunkResult{
		ChunkIndex:     chunk.ChunkIndex,
		Classification: result.Classification,
		Entities:       result.Entities,
	}, nil
}
