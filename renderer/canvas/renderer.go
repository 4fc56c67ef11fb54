package canvasrenderer

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/qrsheet/caption"
	"github.com/ByLCY/qrsheet/fonts"
	"github.com/ByLCY/qrsheet/layout"
	"github.com/ByLCY/qrsheet/renderer"
)

// Renderer creates PDF documents via github.com/tdewolff/canvas.
type Renderer struct {
	font     Resource
	fontSize float64 // pt
	meta     Meta

	fontMu sync.Mutex
	family *canvas.FontFamily
}

var _ renderer.Factory = (*Renderer)(nil)

// Options configures the canvas renderer.
type Options struct {
	// Font overrides the built-in caption font.
	Font     Resource
	FontSize float64 // pt, defaults to caption.FontSizePt
	Meta     Meta
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// Meta 是写入 PDF 的文档信息。
type Meta struct {
	Title    string
	Subject  string
	Author   string
	Creator  string
	Keywords []string
}

// NewRenderer creates a renderer using the built-in caption font.
func NewRenderer() *Renderer { return NewRendererWithOptions(Options{}) }

// NewRendererWithOptions creates a renderer with an injected font and metadata.
func NewRendererWithOptions(opts Options) *Renderer {
	size := opts.FontSize
	if size <= 0 {
		size = caption.FontSizePt
	}
	return &Renderer{font: opts.Font, fontSize: size, meta: opts.Meta}
}

// NewDocument implements renderer.Factory.
func (r *Renderer) NewDocument(page layout.PageSize) (renderer.Document, error) {
	if page.Width <= 0 || page.Height <= 0 {
		return nil, fmt.Errorf("纸张尺寸非法: %gx%g", page.Width, page.Height)
	}
	family, err := r.ensureFontFamily()
	if err != nil {
		return nil, err
	}
	d := &document{
		page: page,
		face: family.Face(r.fontSize, canvas.Black, canvas.FontRegular, canvas.FontNormal),
	}
	d.writer = pdf.New(&d.buf, page.Width, page.Height, nil)
	keywords := strings.Join(r.meta.Keywords, ", ")
	d.writer.SetInfo(r.meta.Title, r.meta.Subject, keywords, r.meta.Author, r.meta.Creator)
	d.startPage()
	return d, nil
}

func (r *Renderer) ensureFontFamily() (*canvas.FontFamily, error) {
	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	if r.family != nil {
		return r.family, nil
	}
	data, err := r.loadFontBytes()
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("qrsheet-caption")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("加载标签字体失败: %w", err)
	}
	r.family = family
	return family, nil
}

func (r *Renderer) loadFontBytes() ([]byte, error) {
	if len(r.font.Bytes) > 0 {
		return r.font.Bytes, nil
	}
	if r.font.Path != "" {
		if strings.HasPrefix(r.font.Path, "embed:") {
			return fonts.Load(r.font.Path)
		}
		data, err := os.ReadFile(r.font.Path)
		if err != nil {
			return nil, fmt.Errorf("读取字体 %s 失败: %w", r.font.Path, err)
		}
		return data, nil
	}
	return fonts.Load(fonts.Default)
}

// document 缓存当前页的画布，换页或关闭时才写入 PDF。
type document struct {
	page   layout.PageSize
	buf    bytes.Buffer
	writer *pdf.PDF
	face   *canvas.FontFace

	c      *canvas.Canvas
	ctx    *canvas.Context
	closed bool
}

func (d *document) startPage() {
	d.c = canvas.New(d.page.Width, d.page.Height)
	d.ctx = canvas.NewContext(d.c)
	d.ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点
}

func (d *document) NewPage() error {
	if d.closed {
		return fmt.Errorf("文档已关闭")
	}
	d.c.RenderTo(d.writer)
	d.writer.NewPage(d.page.Width, d.page.Height)
	d.startPage()
	return nil
}

func (d *document) DrawImage(png []byte, x, y, w, h float64) error {
	if d.closed {
		return fmt.Errorf("文档已关闭")
	}
	img, _, err := image.Decode(bytes.NewReader(png))
	if err != nil {
		return fmt.Errorf("解码二维码图像失败: %w", err)
	}
	if w <= 0 {
		return fmt.Errorf("图像宽度非法: %g", w)
	}
	// 二维码为正方形，按宽度换算分辨率即可同时满足 w 与 h。
	dpmm := float64(img.Bounds().Dx()) / w
	if dpmm <= 0 {
		dpmm = 1
	}
	d.ctx.DrawImage(x, y, img, canvas.DPMM(dpmm))
	return nil
}

func (d *document) DrawText(text string, x, y float64, align renderer.Align) error {
	if d.closed {
		return fmt.Errorf("文档已关闭")
	}
	if text == "" {
		return nil
	}
	var textAlign canvas.TextAlign
	switch align {
	case renderer.AlignCenter:
		textAlign = canvas.Center
	case renderer.AlignRight:
		textAlign = canvas.Right
	default:
		textAlign = canvas.Left
	}
	d.ctx.DrawText(x, y, canvas.NewTextLine(d.face, text, textAlign))
	return nil
}

func (d *document) TextWidth(text string) float64 {
	return d.face.TextWidth(text)
}

func (d *document) Close() ([]byte, error) {
	if d.closed {
		return nil, fmt.Errorf("文档已关闭")
	}
	d.closed = true
	d.c.RenderTo(d.writer)
	if err := d.writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return d.buf.Bytes(), nil
}
