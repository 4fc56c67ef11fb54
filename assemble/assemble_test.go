package assemble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ByLCY/qrsheet/layout"
	"github.com/ByLCY/qrsheet/metrics"
	"github.com/ByLCY/qrsheet/payload"
	"github.com/ByLCY/qrsheet/raster"
	"github.com/ByLCY/qrsheet/record"
	"github.com/ByLCY/qrsheet/renderer"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// stubRasterizer 把载荷原样作为“图像”返回；下标越小耗时越长，用于制造乱序完成。
type stubRasterizer struct {
	mu      sync.Mutex
	calls   int
	failOn  string
	block   chan struct{}
	started chan struct{}
}

func (s *stubRasterizer) Rasterize(ctx context.Context, payload string, _ raster.Options) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.failOn != "" && payload == s.failOn {
		return nil, errors.New("encoder exploded")
	}
	var idx int
	if _, err := fmt.Sscanf(payload, "R%d", &idx); err == nil {
		time.Sleep(time.Duration(10-idx%10) * time.Millisecond)
	}
	return []byte(payload), nil
}

type op struct {
	kind string
	arg  string
	x, y float64
}

type stubDocument struct {
	ops     []op
	closed  bool
	failArg string
}

func (d *stubDocument) NewPage() error {
	d.ops = append(d.ops, op{kind: "page"})
	return nil
}

func (d *stubDocument) DrawImage(png []byte, x, y, w, h float64) error {
	if d.failArg != "" && string(png) == d.failArg {
		return errors.New("disk full")
	}
	d.ops = append(d.ops, op{kind: "image", arg: string(png), x: x, y: y})
	return nil
}

func (d *stubDocument) DrawText(text string, x, y float64, align renderer.Align) error {
	d.ops = append(d.ops, op{kind: "text", arg: text, x: x, y: y})
	return nil
}

// TextWidth 每个字符 3mm。
func (d *stubDocument) TextWidth(text string) float64 { return float64(len([]rune(text))) * 3 }

func (d *stubDocument) Close() ([]byte, error) {
	d.closed = true
	return []byte("%PDF-stub"), nil
}

type stubFactory struct {
	docs    []*stubDocument
	failArg string
}

func (f *stubFactory) NewDocument(layout.PageSize) (renderer.Document, error) {
	d := &stubDocument{failArg: f.failArg}
	f.docs = append(f.docs, d)
	return d, nil
}

func singleFieldJob(n int) Job {
	recs := make(record.Set, n)
	for i := range recs {
		recs[i] = record.Record{"SKU": fmt.Sprintf("R%d", i)}
	}
	return Job{
		Schema:  record.NewSchema("SKU"),
		Records: recs,
		Config:  layout.Config{CodeSize: 35, Gap: 5, Margin: 10, ShowCaption: true, CaptionField: "SKU"},
		Page:    layout.A4,
	}
}

func newTestGenerator(t *testing.T, f renderer.Factory, r raster.Rasterizer, m *metrics.Recorder) *Generator {
	t.Helper()
	g, err := NewGenerator(Options{Renderer: f, Rasterizer: r, Concurrency: 8, Metrics: m})
	if err != nil {
		t.Fatalf("NewGenerator 错误: %v", err)
	}
	return g
}

func TestGenerateDrawsInRecordOrder(t *testing.T) {
	f := &stubFactory{}
	m := metrics.New()
	g := newTestGenerator(t, f, &stubRasterizer{}, m)

	res, err := g.Generate(context.Background(), singleFieldJob(24))
	if err != nil {
		t.Fatalf("Generate 错误: %v", err)
	}
	if string(res.PDF) != "%PDF-stub" || res.Pages != 2 || res.Records != 24 || res.RunID == "" {
		t.Fatalf("结果异常: %+v", res)
	}
	doc := f.docs[0]
	if !doc.closed {
		t.Fatalf("成功时应关闭文档")
	}

	placements := layout.Compute(24, singleFieldJob(24).Config, layout.A4)
	next := 0
	pages := 0
	for _, o := range doc.ops {
		switch o.kind {
		case "page":
			pages++
		case "image":
			want := fmt.Sprintf("R%d", next)
			if o.arg != want {
				t.Fatalf("第 %d 个图像期望 %s，实际 %s（绘制顺序被打乱）", next, want, o.arg)
			}
			p := placements[next]
			if p.Page != pages || o.x != p.X || o.y != p.Y {
				t.Fatalf("记录 %d 落位错误: page=%d op=%+v want=%+v", next, pages, o, p)
			}
			next++
		case "text":
			p := placements[next-1]
			if o.x != p.X+17.5 || o.y != p.Y+35+4 {
				t.Fatalf("标签位置错误: %+v", o)
			}
		}
	}
	if next != 24 || pages != 1 {
		t.Fatalf("期望 24 个图像、1 次换页，实际 %d、%d", next, pages)
	}
	if got := testutil.ToFloat64(m.Generations.WithLabelValues("success")); got != 1 {
		t.Fatalf("成功计数期望 1，实际 %g", got)
	}
}

func TestGenerateTruncatesWideCaptions(t *testing.T) {
	f := &stubFactory{}
	g := newTestGenerator(t, f, &stubRasterizer{}, nil)
	job := Job{
		Schema:  record.NewSchema("ID", "Name"),
		Records: record.Set{{"ID": "1", "Name": "Industrial Widget Assembly"}, {"ID": "2"}},
		Config:  layout.Config{CodeSize: 35, Gap: 5, Margin: 10, ShowCaption: true, CaptionField: "Name"},
	}
	if _, err := g.Generate(context.Background(), job); err != nil {
		t.Fatalf("Generate 错误: %v", err)
	}
	var texts []string
	var images []string
	for _, o := range f.docs[0].ops {
		switch o.kind {
		case "text":
			texts = append(texts, o.arg)
		case "image":
			images = append(images, o.arg)
		}
	}
	if len(texts) != 1 || texts[0] != "Industrial Widg..." {
		t.Fatalf("标签期望仅一条截断文本，实际 %v", texts)
	}
	if images[0] != `{"ID":"1","Name":"Industrial Widget Assembly"}` || images[1] != `{"ID":"2"}` {
		t.Fatalf("载荷错误: %v", images)
	}
}

func TestGenerateWithoutCaption(t *testing.T) {
	f := &stubFactory{}
	g := newTestGenerator(t, f, &stubRasterizer{}, nil)
	job := singleFieldJob(3)
	job.Config.ShowCaption = false
	if _, err := g.Generate(context.Background(), job); err != nil {
		t.Fatalf("Generate 错误: %v", err)
	}
	for _, o := range f.docs[0].ops {
		if o.kind == "text" {
			t.Fatalf("关闭标签时不应绘制文本: %+v", o)
		}
	}
}

func TestGenerateEmptyIsRefused(t *testing.T) {
	f := &stubFactory{}
	r := &stubRasterizer{}
	g := newTestGenerator(t, f, r, nil)
	_, err := g.Generate(context.Background(), Job{Schema: record.NewSchema("ID"), Config: layout.DefaultConfig()})
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("期望 ErrNoRecords，实际 %v", err)
	}
	if len(f.docs) != 0 || r.calls != 0 {
		t.Fatalf("空输入不应创建文档或栅格化")
	}
}

func TestGenerateRasterFailureDiscardsDocument(t *testing.T) {
	f := &stubFactory{}
	m := metrics.New()
	g := newTestGenerator(t, f, &stubRasterizer{failOn: "R13"}, m)
	res, err := g.Generate(context.Background(), singleFieldJob(30))
	if res != nil {
		t.Fatalf("失败时不应返回结果")
	}
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("期望 *RunError，实际 %T %v", err, err)
	}
	if runErr.Stage != StageRasterize || runErr.Index != 13 {
		t.Fatalf("错误定位不对: %+v", runErr)
	}
	if !strings.Contains(err.Error(), "encoder exploded") {
		t.Fatalf("错误信息应包含原因: %v", err)
	}
	if f.docs[0].closed {
		t.Fatalf("失败时不应关闭（输出）文档")
	}
	for _, o := range f.docs[0].ops {
		if o.kind == "image" && o.arg == "R13" {
			t.Fatalf("失败记录不应被绘制")
		}
	}
	if got := testutil.ToFloat64(m.Generations.WithLabelValues("failed")); got != 1 {
		t.Fatalf("失败计数期望 1，实际 %g", got)
	}
	if g.Busy() {
		t.Fatalf("失败后应释放运行标志")
	}
}

func TestGenerateDrawFailure(t *testing.T) {
	f := &stubFactory{failArg: "R2"}
	g := newTestGenerator(t, f, &stubRasterizer{}, nil)
	_, err := g.Generate(context.Background(), singleFieldJob(10))
	var runErr *RunError
	if !errors.As(err, &runErr) || runErr.Stage != StageDraw || runErr.Index != 2 {
		t.Fatalf("期望绘制阶段错误（记录 2），实际 %v", err)
	}
	if f.docs[0].closed {
		t.Fatalf("失败时不应关闭文档")
	}
}

func TestGenerateEncodeFailure(t *testing.T) {
	f := &stubFactory{}
	g := newTestGenerator(t, f, &stubRasterizer{}, nil)
	job := singleFieldJob(2)
	job.Schema = record.NewSchema("SKU", "Bad")
	job.Records[1]["Bad"] = []string{"x"}
	_, err := g.Generate(context.Background(), job)
	var runErr *RunError
	if !errors.As(err, &runErr) || runErr.Stage != StageEncode || runErr.Index != 1 {
		t.Fatalf("期望编码阶段错误（记录 1），实际 %v", err)
	}
	if !errors.Is(err, payload.ErrUnsupportedValue) {
		t.Fatalf("应能解包到 ErrUnsupportedValue: %v", err)
	}
	if len(f.docs) != 0 {
		t.Fatalf("编码失败时不应创建文档")
	}
}

func TestGenerateRejectsConcurrentRun(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	f := &stubFactory{}
	g := newTestGenerator(t, f, &stubRasterizer{block: block, started: started}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := g.Generate(context.Background(), singleFieldJob(3))
		done <- err
	}()
	<-started
	if !g.Busy() {
		t.Fatalf("运行中 Busy 应为 true")
	}
	if _, err := g.Generate(context.Background(), singleFieldJob(1)); !errors.Is(err, ErrBusy) {
		t.Fatalf("并发请求期望 ErrBusy，实际 %v", err)
	}
	close(block)
	if err := <-done; err != nil {
		t.Fatalf("首个任务不应失败: %v", err)
	}
	if _, err := g.Generate(context.Background(), singleFieldJob(1)); err != nil {
		t.Fatalf("任务结束后应可再次生成: %v", err)
	}
}

func TestGenerateCancelled(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	f := &stubFactory{}
	g := newTestGenerator(t, f, &stubRasterizer{block: block, started: started}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := g.Generate(ctx, singleFieldJob(5))
		done <- err
	}()
	<-started
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际 %v", err)
	}
	if f.docs[0].closed {
		t.Fatalf("取消时不应输出文档")
	}
}

func TestGenerateInvalidConfig(t *testing.T) {
	g := newTestGenerator(t, &stubFactory{}, &stubRasterizer{}, nil)
	job := singleFieldJob(1)
	job.Config.CodeSize = 0
	if _, err := g.Generate(context.Background(), job); !errors.Is(err, layout.ErrInvalidConfig) {
		t.Fatalf("期望 ErrInvalidConfig，实际 %v", err)
	}
}

func TestNewGeneratorRequiresRenderer(t *testing.T) {
	if _, err := NewGenerator(Options{}); err == nil {
		t.Fatalf("缺少 renderer 应报错")
	}
}
