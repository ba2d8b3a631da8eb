package segment

import (
	"time"
)

// Config 分块分析服务连接配置
type Config struct {
	BaseURL     string        // 分析服务基础URL
	Timeout     time.Duration // 请求超时时间
	DialTimeout time.Duration // 连接超时
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "http://localhost:8000/api",
		Timeout:     5 * time.Minute,
		DialTimeout: 5 * time.Second,
	}
}

// WithBaseURL 设置基础URL
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithTimeout 设置请求超时时间
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}
