package storage

import (
	"errors"
	"io"
)

// ErrObjectNotFound 对象不存在
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo 存储对象元数据
type ObjectInfo struct {
	Key      string // 对象键（含路径前缀）
	Size     int64  // 对象大小(字节)
	MimeType string // MIME类型
}

// Storage 对象存储接口
// 以键为标识存储文档和分块产物，可以有不同实现(本地文件系统、MinIO等)
// 分块产物统一放在 chunks/{documentID}/ 前缀下，便于按文档清理
type Storage interface {
	// Save 按键保存对象并返回对象信息
	Save(reader io.Reader, key string) (ObjectInfo, error)

	// Get 获取对象内容
	Get(key string) (io.ReadCloser, error)

	// Delete 删除对象
	Delete(key string) error

	// List 列出指定前缀下的所有对象
	List(prefix string) ([]ObjectInfo, error)

	// Exists 检查对象是否存在
	Exists(key string) (bool, error)
}
