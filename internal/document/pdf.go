package document

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"
)

// pdfMagic PDF文件魔数，所有合法PDF文件以此开头
const pdfMagic = "%PDF-"

// contentPagePattern 提取内容文件名中的页码
var contentPagePattern = regexp.MustCompile(`_page_(\d+)\.txt$`)

// trailingNumberPattern 文件名末尾页码的后备匹配
var trailingNumberPattern = regexp.MustCompile(`(\d+)\.txt$`)

// PDFSource PDF源文档实现
// 使用pdfcpu按页提取文本和切分页范围
type PDFSource struct {
	conf   *model.Configuration // pdfcpu配置
	logger *logrus.Logger       // 日志记录器
}

// NewPDFSource 创建PDF源文档实例
func NewPDFSource(logger *logrus.Logger) *PDFSource {
	if logger == nil {
		logger = logrus.New()
	}
	return &PDFSource{
		conf:   model.NewDefaultConfiguration(),
		logger: logger,
	}
}

// ValidateHeader 校验文件是否以PDF魔数开头
// 在解析前快速检查文件格式，避免把非PDF文件交给解析器
func ValidateHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, len(pdfMagic))
	n, err := f.Read(header)
	if err != nil || n < len(pdfMagic) {
		return fmt.Errorf("file too short to be a valid PDF")
	}
	if string(header) != pdfMagic {
		return fmt.Errorf("file does not start with PDF magic bytes (%%PDF-)")
	}
	return nil
}

// PageCount 返回PDF文档的总页数
func (s *PDFSource) PageCount(path string) (int, error) {
	count, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to count PDF pages: %w", err)
	}
	return count, nil
}

// ReadPages 流式按页提取PDF文本
// 先把各页内容提取到临时目录，再逐个文件读取，避免把整个文档载入内存。
// 单页提取失败只记录警告并留空该页，不中断文档读取。
func (s *PDFSource) ReadPages(documentID, path string) ([]PageText, error) {
	if err := ValidateHeader(path); err != nil {
		return nil, err
	}

	pageCount, err := s.PageCount(path)
	if err != nil {
		return nil, err
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("PDF contains no pages")
	}

	// 创建临时目录用于存放提取的文本
	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := api.ExtractContentFile(path, tmpDir, nil, s.conf); err != nil {
		return nil, fmt.Errorf("failed to extract text from PDF: %w", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted text dir: %w", err)
	}

	pages := make([]PageText, pageCount)
	for i := range pages {
		pages[i].Index = i
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".txt") {
			continue
		}

		pageNum, ok := parsePageNumber(name)
		if !ok || pageNum < 1 || pageNum > pageCount {
			continue
		}

		data, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil {
			// 单页读取失败，跳过该页继续处理
			s.logger.WithFields(logrus.Fields{
				"document_id": documentID,
				"page":        pageNum - 1,
				"error":       err.Error(),
			}).Warn("Skipping unreadable page content")
			continue
		}

		pages[pageNum-1].Text = string(data)
	}

	return pages, nil
}

// WriteRange 提取页范围[startPage, endPage]到目标PDF文件
// 页索引从0开始，pdfcpu的页选择从1开始
func (s *PDFSource) WriteRange(src, dst string, startPage, endPage int) error {
	if startPage < 0 || endPage < startPage {
		return fmt.Errorf("invalid page range [%d, %d]", startPage, endPage)
	}

	selection := []string{fmt.Sprintf("%d-%d", startPage+1, endPage+1)}
	if err := api.TrimFile(src, dst, selection, s.conf); err != nil {
		return fmt.Errorf("failed to extract pages %d-%d: %w", startPage, endPage, err)
	}
	return nil
}

// parsePageNumber 从提取内容的文件名中解析页码
func parsePageNumber(name string) (int, bool) {
	m := contentPagePattern.FindStringSubmatch(name)
	if m == nil {
		m = trailingNumberPattern.FindStringSubmatch(name)
	}
	if m == nil {
		return 0, false
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
