// Package fpdfrenderer 使用 PDF 核心字体（Helvetica）输出文档，无需嵌入字体文件。
package fpdfrenderer

import (
	"bytes"
	"fmt"

	"codeberg.org/go-pdf/fpdf"

	"github.com/ByLCY/qrsheet/caption"
	"github.com/ByLCY/qrsheet/layout"
	"github.com/ByLCY/qrsheet/renderer"
)

// Renderer creates PDF documents via codeberg.org/go-pdf/fpdf.
type Renderer struct {
	FontFamily string
	FontSize   float64 // pt
	Title      string
	Creator    string
}

var _ renderer.Factory = (*Renderer)(nil)

// NewRenderer 返回使用 Helvetica 8pt 标签的渲染器。
func NewRenderer() *Renderer {
	return &Renderer{FontFamily: "Helvetica", FontSize: caption.FontSizePt, Creator: "qrsheet"}
}

// NewDocument implements renderer.Factory.
func (r *Renderer) NewDocument(page layout.PageSize) (renderer.Document, error) {
	if page.Width <= 0 || page.Height <= 0 {
		return nil, fmt.Errorf("纸张尺寸非法: %gx%g", page.Width, page.Height)
	}
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: page.Width, Ht: page.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if r.Title != "" {
		pdf.SetTitle(r.Title, true)
	}
	if r.Creator != "" {
		pdf.SetCreator(r.Creator, true)
	}
	family := r.FontFamily
	if family == "" {
		family = "Helvetica"
	}
	size := r.FontSize
	if size <= 0 {
		size = caption.FontSizePt
	}
	pdf.SetFont(family, "", size)
	pdf.AddPage()
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("初始化 PDF 失败: %w", err)
	}
	return &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}, nil
}

type document struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	images int
	closed bool
}

func (d *document) check() error {
	if d.closed {
		return fmt.Errorf("文档已关闭")
	}
	return d.pdf.Error()
}

func (d *document) NewPage() error {
	if err := d.check(); err != nil {
		return err
	}
	d.pdf.AddPage()
	return d.pdf.Error()
}

func (d *document) DrawImage(png []byte, x, y, w, h float64) error {
	if err := d.check(); err != nil {
		return err
	}
	d.images++
	name := fmt.Sprintf("qr-%d", d.images)
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	d.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
	if err := d.pdf.Error(); err != nil {
		return fmt.Errorf("注册二维码图像失败: %w", err)
	}
	d.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	return d.pdf.Error()
}

func (d *document) DrawText(text string, x, y float64, align renderer.Align) error {
	if err := d.check(); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	encoded := d.tr(text)
	switch align {
	case renderer.AlignCenter:
		x -= d.pdf.GetStringWidth(encoded) / 2
	case renderer.AlignRight:
		x -= d.pdf.GetStringWidth(encoded)
	}
	d.pdf.Text(x, y, encoded)
	return d.pdf.Error()
}

func (d *document) TextWidth(text string) float64 {
	return d.pdf.GetStringWidth(d.tr(text))
}

func (d *document) Close() ([]byte, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	d.closed = true
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}
