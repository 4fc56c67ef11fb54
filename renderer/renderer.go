package renderer

import "github.com/ByLCY/qrsheet/layout"

// Align 是文本相对锚点的水平对齐方式。
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Document 按顺序接收绘制指令，坐标与尺寸单位均为毫米，原点位于页面左上角。
// Close 之前文档不产生任何输出；调用方放弃文档时直接丢弃即可。
type Document interface {
	// NewPage 结束当前页并开始新的一页。
	NewPage() error
	// DrawImage 在 (x, y) 处绘制 PNG 图像并缩放到 w×h。
	DrawImage(png []byte, x, y, w, h float64) error
	// DrawText 以 (x, y) 为锚点（基线）绘制单行标签文本。
	DrawText(text string, x, y float64, align Align) error
	// TextWidth 返回文本在标签字体下的宽度（mm）。
	TextWidth(text string) float64
	// Close 完成文档并返回 PDF 字节。
	Close() ([]byte, error)
}

// Factory 为每次生成创建一份新文档。
type Factory interface {
	NewDocument(page layout.PageSize) (Document, error)
}
