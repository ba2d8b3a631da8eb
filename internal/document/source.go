package document

// PageText 单页的提取文本
type PageText struct {
	Index int    // 页索引（0开始）
	Text  string // 页文本内容（提取失败时为空）
}

// Source 源文档访问接口
// 负责按页读取文档文本和提取页范围子文档，可以有不同实现（PDF等）
type Source interface {
	// PageCount 返回文档的总页数
	PageCount(path string) (int, error)

	// ReadPages 按页读取文档文本
	// 返回的切片每个物理页对应一项，索引连续；单页提取失败时
	// 该页文本为空并记录警告，不中断整个文档的读取
	ReadPages(documentID, path string) ([]PageText, error)

	// WriteRange 提取页范围[startPage, endPage]（包含）到目标文件
	// 页索引从0开始
	WriteRange(src, dst string, startPage, endPage int) error
}
