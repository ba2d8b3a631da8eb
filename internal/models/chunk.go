package models

// ChunkStatus 分块处理状态类型
type ChunkStatus string

const (
	// ChunkStatusPending 分块已生成，等待处理
	ChunkStatusPending ChunkStatus = "pending"
	// ChunkStatusProcessing 分块处理中
	ChunkStatusProcessing ChunkStatus = "processing"
	// ChunkStatusComplete 分块处理完成
	ChunkStatusComplete ChunkStatus = "complete"
	// ChunkStatusFailed 分块处理失败
	ChunkStatusFailed ChunkStatus = "failed"
)

// PageProfile 单页的token估算信息
// 由token估算器生成，按页索引升序排列，页索引从0开始且连续
type PageProfile struct {
	PageIndex       int `json:"page_index"`       // 页索引（0开始）
	EstimatedTokens int `json:"estimated_tokens"` // 估算token数
}

// TokenAnalysis 文档级token分析结果
type TokenAnalysis struct {
	TotalTokens      int     `json:"total_tokens"`        // 文档总token数
	TotalPages       int     `json:"total_pages"`         // 文档总页数
	TokensPerPage    []int   `json:"tokens_per_page"`     // 每页token数
	AvgTokensPerPage float64 `json:"avg_tokens_per_page"` // 平均每页token数
}

// ChunkSpec 单个分块的边界规格
// 由分块规划器生成后不再修改
type ChunkSpec struct {
	ChunkIndex      int    `json:"chunk_index"`               // 分块索引（0开始，连续递增）
	StartPage       int    `json:"start_page"`                // 起始页（0开始）
	EndPage         int    `json:"end_page"`                  // 结束页（包含）
	PageCount       int    `json:"page_count"`                // 分块页数
	EstimatedTokens int    `json:"estimated_tokens"`          // 分块估算token数
	FinalizeReason  string `json:"finalize_reason,omitempty"` // 分块结束原因（仅hybrid策略）
}

// ChunkPlan 分块规划结果，分块规格的有序列表
type ChunkPlan struct {
	Chunks []ChunkSpec `json:"chunks"` // 分块规格列表
}

// ChunkMetadata 分块元数据
// 在分块物化时创建，状态字段由处理该分块的工作者更新
type ChunkMetadata struct {
	ChunkID         string      `json:"chunk_id"`         // 分块唯一标识：{documentID}_chunk_{index}
	ChunkIndex      int         `json:"chunk_index"`      // 分块索引
	TotalChunks     int         `json:"total_chunks"`     // 文档分块总数
	StartPage       int         `json:"start_page"`       // 起始页
	EndPage         int         `json:"end_page"`         // 结束页（包含）
	PageCount       int         `json:"page_count"`       // 分块页数
	EstimatedTokens int         `json:"estimated_tokens"` // 估算token数
	Location        string      `json:"location"`         // 物化后的存储位置句柄
	Status          ChunkStatus `json:"status"`           // 处理状态
}

// Entity 从分块中提取的实体
type Entity struct {
	Type  string `json:"type"`           // 实体类型
	Value string `json:"value"`          // 实体值
	Page  *int   `json:"page,omitempty"` // 实体所在页（可选）
}

// ChunkResult 单个分块的处理结果
// 每个分块恰好产生一个结果；处理失败时Error字段非空
type ChunkResult struct {
	ChunkIndex     int      `json:"chunk_index"`              // 分块索引
	Classification string   `json:"classification,omitempty"` // 分类标签（可选）
	Entities       []Entity `json:"entities,omitempty"`       // 提取的实体列表
	Error          string   `json:"error,omitempty"`          // 错误信息（失败时）
}

// AggregatedEntity 聚合后的实体，附带来源分块索引用于排序
type AggregatedEntity struct {
	Entity
	ChunkIndex int `json:"chunk_index"` // 来源分块索引
}

// AggregatedResult 文档级聚合结果
// 由结果聚合器一次性生成，生成后不再修改
type AggregatedResult struct {
	Classification           string             `json:"classification"`            // 多数投票得出的分类
	ClassificationConfidence float64            `json:"classification_confidence"` // 分类置信度（0-1）
	Entities                 []AggregatedEntity `json:"entities"`                  // 去重后的实体列表
	TotalChunks              int                `json:"total_chunks"`              // 分块总数
	SuccessfulChunks         int                `json:"successful_chunks"`         // 成功分块数
	FailedChunks             int                `json:"failed_chunks"`             // 失败分块数
	Partial                  bool               `json:"partial"`                   // 是否为部分结果
}

// CleanupSummary 分块产物清理结果
type CleanupSummary struct {
	Deleted int      `json:"deleted"`          // 成功删除的分块产物数
	Errors  []string `json:"errors,omitempty"` // 删除失败的错误信息
}

// ProcessResult 文档处理的最终返回结果
// 当RequiresChunking为false时，仅包含token分析和原因说明；
// 否则包含分块元数据和聚合结果
type ProcessResult struct {
	DocumentID             string            `json:"document_id"`                 // 文档ID
	RequiresChunking       bool              `json:"requires_chunking"`           // 是否执行了分块
	Strategy               string            `json:"strategy"`                    // 使用的分块策略
	TokenAnalysis          TokenAnalysis     `json:"token_analysis"`              // token分析结果
	Reason                 string            `json:"reason,omitempty"`            // 分块决策的原因说明
	PageThresholdExceeded  bool              `json:"page_threshold_exceeded"`     // 页数是否超过阈值
	TokenThresholdExceeded bool              `json:"token_threshold_exceeded"`    // token数是否超过阈值
	Chunks                 []ChunkMetadata   `json:"chunks,omitempty"`            // 分块元数据列表
	Aggregated             *AggregatedResult `json:"aggregated_result,omitempty"` // 聚合结果
	Cleanup                *CleanupSummary   `json:"cleanup,omitempty"`           // 清理结果
}
