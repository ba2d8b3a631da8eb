package models

import (
	"errors"
	"fmt"
)

// ConfigurationError 无效的分块配置错误
// 在任何页面被读取之前拒绝配置（快速失败）
type ConfigurationError struct {
	Message string // 错误消息
}

// Error 实现error接口
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid chunking configuration: %s", e.Message)
}

// NewConfigurationError 创建配置错误
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// SourceDocumentError 源文档级致命错误
// 源文档无法读取、格式损坏或访问失败，整个文档处理终止
type SourceDocumentError struct {
	DocumentID string // 文档ID
	Message    string // 错误消息
	Err        error  // 原始错误
}

// Error 实现error接口
func (e *SourceDocumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("source document error (document=%s): %s: %v", e.DocumentID, e.Message, e.Err)
	}
	return fmt.Sprintf("source document error (document=%s): %s", e.DocumentID, e.Message)
}

// Unwrap 返回原始错误
func (e *SourceDocumentError) Unwrap() error {
	return e.Err
}

// NewSourceDocumentError 创建源文档错误
func NewSourceDocumentError(documentID, message string, err error) *SourceDocumentError {
	return &SourceDocumentError{DocumentID: documentID, Message: message, Err: err}
}

// PageContentError 单页内容错误（可恢复）
// 单个页面无法提取文本，跳过该页继续处理
type PageContentError struct {
	DocumentID string // 文档ID
	Page       int    // 页索引
	Err        error  // 原始错误
}

// Error 实现error接口
func (e *PageContentError) Error() string {
	return fmt.Sprintf("page content error (document=%s, page=%d): %v", e.DocumentID, e.Page, e.Err)
}

// Unwrap 返回原始错误
func (e *PageContentError) Unwrap() error {
	return e.Err
}

// ChunkProcessingError 分块处理错误（可恢复，限于单个分块）
// 重试耗尽后记录为失败的ChunkResult，不影响其他分块
type ChunkProcessingError struct {
	DocumentID string // 文档ID
	ChunkIndex int    // 分块索引
	Err        error  // 原始错误
}

// Error 实现error接口
func (e *ChunkProcessingError) Error() string {
	return fmt.Sprintf("chunk processing error (document=%s, chunk=%d): %v", e.DocumentID, e.ChunkIndex, e.Err)
}

// Unwrap 返回原始错误
func (e *ChunkProcessingError) Unwrap() error {
	return e.Err
}

// TransientError 瞬时错误包装
// 标记可以重试的错误（限流、临时IO故障等）
type TransientError struct {
	Err error // 原始错误
}

// Error 实现error接口
func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error: %v", e.Err)
}

// Unwrap 返回原始错误
func (e *TransientError) Unwrap() error {
	return e.Err
}

// MarkTransient 将错误标记为瞬时错误
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient 判断错误是否为瞬时错误（可重试）
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsConfigurationError 判断是否为配置错误
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsSourceDocumentError 判断是否为源文档错误
func IsSourceDocumentError(err error) bool {
	var se *SourceDocumentError
	return errors.As(err, &se)
}
