package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RecordStatus 分块记录的处理状态
type RecordStatus string

const (
	// RecordStatusPending 记录已创建，等待处理
	RecordStatusPending RecordStatus = "pending"
	// RecordStatusProcessing 文档处理中
	RecordStatusProcessing RecordStatus = "processing"
	// RecordStatusCompleted 文档处理完成
	RecordStatusCompleted RecordStatus = "completed"
	// RecordStatusFailed 文档处理失败
	RecordStatusFailed RecordStatus = "failed"
)

// ChunkingRecord 文档分块处理记录
// 外部元数据存储消费的持久化记录，包含分块决策、分块元数据和聚合结果
type ChunkingRecord struct {
	DocumentID       string         `gorm:"primaryKey"`         // 文档ID，主键
	FileName         string         `gorm:"size:255"`           // 源文件名
	ChunkingEnabled  bool           `gorm:"not null"`           // 是否执行了分块
	Strategy         string         `gorm:"size:20;index"`      // 使用的分块策略
	Status           RecordStatus   `gorm:"not null;index"`     // 处理状态
	Stage            string         `gorm:"size:20"`            // 当前处理阶段（状态机状态）
	Reason           string         `gorm:"type:text"`          // 不分块时的原因说明
	TokenAnalysis    datatypes.JSON `gorm:"type:json"`          // token分析结果，JSON格式
	ChunkMetadata    datatypes.JSON `gorm:"type:json"`          // 分块元数据列表，JSON格式
	AggregatedResult datatypes.JSON `gorm:"type:json"`          // 聚合结果，JSON格式
	Error            string         `gorm:"type:text"`          // 错误信息
	RetryCount       int            `gorm:"default:0"`          // 重试次数
	CreatedAt        time.Time      `gorm:"not null;index"`     // 创建时间
	UpdatedAt        time.Time      `gorm:"not null"`           // 更新时间
	ProcessedAt      *time.Time     `gorm:"index"`              // 处理完成时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (r *ChunkingRecord) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (r *ChunkingRecord) BeforeUpdate(tx *gorm.DB) (err error) {
	r.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (ChunkingRecord) TableName() string {
	return "chunking_records"
}

// SetTokenAnalysis 序列化并设置token分析结果
func (r *ChunkingRecord) SetTokenAnalysis(a TokenAnalysis) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	r.TokenAnalysis = data
	return nil
}

// SetChunkMetadata 序列化并设置分块元数据列表
func (r *ChunkingRecord) SetChunkMetadata(chunks []ChunkMetadata) error {
	data, err := json.Marshal(chunks)
	if err != nil {
		return err
	}
	r.ChunkMetadata = data
	return nil
}

// SetAggregatedResult 序列化并设置聚合结果
func (r *ChunkingRecord) SetAggregatedResult(agg *AggregatedResult) error {
	if agg == nil {
		return nil
	}
	data, err := json.Marshal(agg)
	if err != nil {
		return err
	}
	r.AggregatedResult = data
	return nil
}

// GetTokenAnalysis 反序列化token分析结果
func (r *ChunkingRecord) GetTokenAnalysis() (TokenAnalysis, error) {
	var a TokenAnalysis
	if len(r.TokenAnalysis) == 0 {
		return a, nil
	}
	err := json.Unmarshal(r.TokenAnalysis, &a)
	return a, err
}

// GetChunkMetadata 反序列化分块元数据列表
func (r *ChunkingRecord) GetChunkMetadata() ([]ChunkMetadata, error) {
	if len(r.ChunkMetadata) == 0 {
		return nil, nil
	}
	var chunks []ChunkMetadata
	if err := json.Unmarshal(r.ChunkMetadata, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// GetAggregatedResult 反序列化聚合结果
func (r *ChunkingRecord) GetAggregatedResult() (*AggregatedResult, error) {
	if len(r.AggregatedResult) == 0 {
		return nil, nil
	}
	var agg AggregatedResult
	if err := json.Unmarshal(r.AggregatedResult, &agg); err != nil {
		return nil, err
	}
	return &agg, nil
}
