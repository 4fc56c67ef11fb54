package canvasrenderer

import (
	"bytes"
	"context"
	"testing"

	"github.com/ByLCY/qrsheet/fonts"
	"github.com/ByLCY/qrsheet/layout"
	"github.com/ByLCY/qrsheet/raster"
	"github.com/ByLCY/qrsheet/renderer"
)

func TestDocumentProducesPDF(t *testing.T) {
	doc, err := NewRenderer().NewDocument(layout.A4)
	if err != nil {
		t.Fatalf("NewDocument 错误: %v", err)
	}
	png, err := raster.QR{}.Rasterize(context.Background(), "ABC123", raster.DefaultOptions())
	if err != nil {
		t.Fatalf("Rasterize 错误: %v", err)
	}
	if err := doc.DrawImage(png, 27.5, 10, 35, 35); err != nil {
		t.Fatalf("DrawImage 错误: %v", err)
	}
	if err := doc.DrawText("ABC123", 45, 49, renderer.AlignCenter); err != nil {
		t.Fatalf("DrawText 错误: %v", err)
	}
	if err := doc.NewPage(); err != nil {
		t.Fatalf("NewPage 错误: %v", err)
	}
	if err := doc.DrawImage(png, 27.5, 10, 35, 35); err != nil {
		t.Fatalf("DrawImage 错误: %v", err)
	}
	data, err := doc.Close()
	if err != nil {
		t.Fatalf("Close 错误: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("输出不是 PDF")
	}
	if _, err := doc.Close(); err == nil {
		t.Fatalf("重复 Close 应报错")
	}
}

func TestTextWidthGrowsWithContent(t *testing.T) {
	doc, err := NewRenderer().NewDocument(layout.A4)
	if err != nil {
		t.Fatalf("NewDocument 错误: %v", err)
	}
	short := doc.TextWidth("ABC")
	long := doc.TextWidth("ABCABCABCABCABCABCABC")
	if short <= 0 || long <= short {
		t.Fatalf("文本宽度应随内容增长: short=%g long=%g", short, long)
	}
	// 8pt 字号下 21 个大写字母应在几十毫米量级，而不是 pt 数值。
	if long > 100 {
		t.Fatalf("文本宽度单位异常: %g", long)
	}
}

func TestDrawImageRejectsGarbage(t *testing.T) {
	doc, err := NewRenderer().NewDocument(layout.A4)
	if err != nil {
		t.Fatalf("NewDocument 错误: %v", err)
	}
	if err := doc.DrawImage([]byte("not a png"), 0, 0, 35, 35); err == nil {
		t.Fatalf("非法图像应报错")
	}
}

func TestNewDocumentRejectsEmptyPage(t *testing.T) {
	if _, err := NewRenderer().NewDocument(layout.PageSize{}); err == nil {
		t.Fatalf("零尺寸纸张应报错")
	}
}

func TestEmbeddedBoldFont(t *testing.T) {
	bold, err := NewRendererWithOptions(Options{Font: Resource{Path: "embed:" + fonts.Bold}}).NewDocument(layout.A4)
	if err != nil {
		t.Fatalf("加载内置粗体失败: %v", err)
	}
	regular, err := NewRenderer().NewDocument(layout.A4)
	if err != nil {
		t.Fatalf("NewDocument 错误: %v", err)
	}
	text := "WAREHOUSE-BIN-0042"
	if bold.TextWidth(text) == regular.TextWidth(text) {
		t.Fatalf("粗体与常规字体的宽度不应相同: %g", bold.TextWidth(text))
	}
	if err := bold.DrawText(text, 45, 49, renderer.AlignCenter); err != nil {
		t.Fatalf("DrawText 错误: %v", err)
	}
	if _, err := NewRendererWithOptions(Options{Font: Resource{Path: "embed:missing"}}).NewDocument(layout.A4); err == nil {
		t.Fatalf("未知的内置字体应报错")
	}
}
