package services

import (
	"math/rand"
	"time"

	"github.com/fyerfyer/doc-chunk-system/internal/models"
)

// defaultMaxRetries 分块处理的默认最大尝试次数
const defaultMaxRetries = 3

// maxBackoff 退避时间上限
const maxBackoff = 30 * time.Second

// backoffFunc 计算第attempt次重试前的等待时间
type backoffFunc func(attempt int) time.Duration

// isRetryable 判断分块处理错误是否可以重试
// 只有标记为瞬时的错误（限流、临时IO故障）才重试
func isRetryable(err error) bool {
	return models.IsTransient(err)
}

// backoff 计算第attempt次重试前的等待时间
// 指数退避加随机抖动，避免重试风暴
func backoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 2))
	return d/2 + jitter
}
