package aggregator

import (
	"sort"

	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/sirupsen/logrus"
)

// Aggregator 分块结果聚合器
// 在所有分块得到终态结果后调用一次，将每个分块的分类和实体
// 合并为文档级结果；聚合规则与分块完成顺序无关
type Aggregator struct {
	logger *logrus.Logger
}

// NewAggregator 创建结果聚合器
func NewAggregator(logger *logrus.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Aggregate 聚合所有分块结果为文档级结果
// 分类采用多数投票（平局取字母序最小），实体按规则去重排序，
// 成功比例低于minSuccessRatio时标记为部分结果但仍返回成功部分的聚合
func (a *Aggregator) Aggregate(results []models.ChunkResult, totalChunks int, minSuccessRatio float64) *models.AggregatedResult {
	// 按分块索引排序，保证聚合与完成顺序无关
	sorted := make([]models.ChunkResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ChunkIndex < sorted[j].ChunkIndex
	})

	successful := 0
	failed := 0
	for _, r := range sorted {
		if r.Error != "" {
			failed++
		} else {
			successful++
		}
	}

	classification, confidence := a.voteClassification(sorted)
	entities := a.mergeEntities(sorted)

	partial := totalChunks == 0 || float64(successful)/float64(totalChunks) < minSuccessRatio

	result := &models.AggregatedResult{
		Classification:           classification,
		ClassificationConfidence: confidence,
		Entities:                 entities,
		TotalChunks:              totalChunks,
		SuccessfulChunks:         successful,
		FailedChunks:             failed,
		Partial:                  partial,
	}

	if a.logger != nil {
		a.logger.WithFields(logrus.Fields{
			"total_chunks":      totalChunks,
			"successful_chunks": successful,
			"failed_chunks":     failed,
			"classification":    classification,
			"confidence":        confidence,
			"entity_count":      len(entities),
			"partial":           partial,
		}).Info("Aggregated chunk results")
	}

	return result
}

// voteClassification 对各分块的分类标签做多数投票
// 置信度 = 得票最高标签的票数 / 产生分类的分块数；
// 平局时取字母序最小的标签，保证结果可复现
func (a *Aggregator) voteClassification(results []models.ChunkResult) (string, float64) {
	counts := make(map[string]int)
	considered := 0
	for _, r := range results {
		if r.Error != "" || r.Classification == "" {
			continue
		}
		counts[r.Classification]++
		considered++
	}

	if considered == 0 {
		return "", 0
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	winner := ""
	winnerCount := 0
	for _, label := range labels {
		if counts[label] > winnerCount {
			winner = label
			winnerCount = counts[label]
		}
	}

	return winner, float64(winnerCount) / float64(considered)
}

// mergeEntities 合并所有成功分块的实体
// 带页码的实体全部保留（同一实体出现在多页是合法的，重叠窗口也会产生预期的重复）；
// 不带页码的实体按(type, value)去重，保留分块顺序中的首次出现；
// 最终按(分块索引, 页码)升序排列
func (a *Aggregator) mergeEntities(results []models.ChunkResult) []models.AggregatedEntity {
	seen := make(map[[2]string]bool)
	entities := make([]models.AggregatedEntity, 0)

	for _, r := range results {
		if r.Error != "" {
			continue
		}
		for _, e := range r.Entities {
			if e.Page == nil {
				key := [2]string{e.Type, e.Value}
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			entities = append(entities, models.AggregatedEntity{
				Entity:     e,
				ChunkIndex: r.ChunkIndex,
			})
		}
	}

	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].ChunkIndex != entities[j].ChunkIndex {
			return entities[i].ChunkIndex < entities[j].ChunkIndex
		}
		return entityPage(entities[i]) < entityPage(entities[j])
	})

	return entities
}

// entityPage 实体排序用页码，无页码按0处理
func entityPage(e models.AggregatedEntity) int {
	if e.Page == nil {
		return 0
	}
	return *e.Page
}
