// Package caption 从记录中提取二维码下方的单行标签。
package caption

import "github.com/ByLCY/qrsheet/record"

const (
	// MaxRunes 是超宽标签被截断后保留的字符数。
	MaxRunes = 15
	// Ellipsis 追加在截断后的标签末尾。
	Ellipsis = "..."
	// FontSizePt 是标签字号（pt）。
	FontSizePt = 8.0
	// BaselineOffset 是标签基线相对二维码底边的下移距离（mm）。
	BaselineOffset = 4.0
)

// Measure 返回文本在标签字体下的宽度（mm）。
type Measure func(text string) float64

// Format 返回记录中 field 字段的标签文本。
// 字段未指定或值为空时返回空串；测量宽度超过 maxWidth 时固定截取前 MaxRunes 个字符并追加省略号，
// 截断后不再重新测量，因此结果仍可能比 maxWidth 宽。
func Format(rec record.Record, field string, maxWidth float64, measure Measure) string {
	if field == "" {
		return ""
	}
	text := rec.Text(field)
	if text == "" {
		return ""
	}
	if measure == nil || measure(text) <= maxWidth {
		return text
	}
	runes := []rune(text)
	if len(runes) > MaxRunes {
		runes = runes[:MaxRunes]
	}
	return string(runes) + Ellipsis
}
