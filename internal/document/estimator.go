package document

import (
	"regexp"

	"github.com/fyerfyer/doc-chunk-system/internal/models"
)

// tokensPerWord 每个单词的token估算系数
// 保守估计1.3，覆盖复合词、标点和特殊字符带来的额外token
const tokensPerWord = 1.3

// wordPattern 单词匹配模式（字母数字序列）
var wordPattern = regexp.MustCompile(`\b\w+\b`)

// EstimateTokens 快速估算文本的token数量
// 基于单词计数的启发式方法，对英文文本约有85-90%的准确率，
// 远快于真实的子词分词。相同输入总是返回相同结果，无任何IO。
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	words := wordPattern.FindAllStringIndex(text, -1)
	return int(float64(len(words)) * tokensPerWord)
}

// Profile 对文档各页执行token估算
// 返回按页索引排列的PageProfile列表和文档级分析结果
func Profile(pages []PageText) ([]models.PageProfile, models.TokenAnalysis) {
	profiles := make([]models.PageProfile, 0, len(pages))
	tokensPerPage := make([]int, 0, len(pages))
	totalTokens := 0

	for i, page := range pages {
		tokens := EstimateTokens(page.Text)
		profiles = append(profiles, models.PageProfile{
			PageIndex:       i,
			EstimatedTokens: tokens,
		})
		tokensPerPage = append(tokensPerPage, tokens)
		totalTokens += tokens
	}

	avg := 0.0
	if len(pages) > 0 {
		avg = float64(totalTokens) / float64(len(pages))
	}

	return profiles, models.TokenAnalysis{
		TotalTokens:      totalTokens,
		TotalPages:       len(pages),
		TokensPerPage:    tokensPerPage,
		AvgTokensPerPage: avg,
	}
}
