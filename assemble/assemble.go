// Package assemble 串联载荷编码、二维码栅格化、网格布局与文档绘制，生成整份 PDF。
package assemble

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/qrsheet/caption"
	"github.com/ByLCY/qrsheet/layout"
	"github.com/ByLCY/qrsheet/metrics"
	"github.com/ByLCY/qrsheet/payload"
	"github.com/ByLCY/qrsheet/raster"
	"github.com/ByLCY/qrsheet/record"
	"github.com/ByLCY/qrsheet/renderer"
)

// - 栅格化是唯一并发的阶段，受 Concurrency 限制；绘制始终在调用方 goroutine 中串行进行。
// - 顺序门闩：栅格化结果按记录下标暂存，只有下一个期望下标就绪时才冲刷到文档。
// - 首错取消：任一阶段出错即取消整体，丢弃已绘制的页面，不输出半成品。

var (
	// ErrNoRecords 表示没有可打印的记录，属于提示而非故障。
	ErrNoRecords = errors.New("no records to print")
	// ErrBusy 表示已有生成任务在进行。
	ErrBusy = errors.New("generation already in progress")
)

// Stage 标识出错的阶段。
type Stage string

const (
	StageEncode    Stage = "encode"
	StageRasterize Stage = "rasterize"
	StageDraw      Stage = "draw"
	StageFinalize  Stage = "finalize"
)

// RunError 描述导致整次生成失败的首个错误。
type RunError struct {
	RunID string
	Index int // 出错记录下标；与单条记录无关时为 -1
	Stage Stage
	Err   error
}

func (e *RunError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("生成失败（%s）: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("生成失败（%s，记录 %d）: %v", e.Stage, e.Index, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Job 是一次生成所需的全部输入快照，组件不读取任何外部状态。
type Job struct {
	Schema  record.Schema
	Records record.Set
	Config  layout.Config
	// Page 为零值时使用 A4 纵向。
	Page layout.PageSize
}

// Result 是成功生成的文档。
type Result struct {
	RunID   string
	PDF     []byte
	Pages   int
	Records int
	Plan    *layout.Plan
}

// Options 注入生成所需的协作者。
type Options struct {
	Renderer    renderer.Factory
	Rasterizer  raster.Rasterizer
	Raster      raster.Options
	Concurrency int
	Logger      *zap.Logger
	Metrics     *metrics.Recorder
}

// Generator 执行生成任务；同一时刻最多一个任务在进行。
type Generator struct {
	opts    Options
	running atomic.Bool
}

// NewGenerator 校验依赖并填充默认值。
func NewGenerator(opts Options) (*Generator, error) {
	if opts.Renderer == nil {
		return nil, fmt.Errorf("renderer 不能为空")
	}
	if opts.Rasterizer == nil {
		opts.Rasterizer = raster.QR{}
	}
	if opts.Raster == (raster.Options{}) {
		opts.Raster = raster.DefaultOptions()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Generator{opts: opts}, nil
}

// Busy 报告当前是否有任务在进行。
func (g *Generator) Busy() bool { return g.running.Load() }

// Generate 依记录原始顺序生成整份文档。
func (g *Generator) Generate(ctx context.Context, job Job) (*Result, error) {
	if len(job.Records) == 0 {
		g.opts.Metrics.RunFinished("empty", 0, 0, 0)
		return nil, ErrNoRecords
	}
	if !g.running.CompareAndSwap(false, true) {
		g.opts.Metrics.RunFinished("busy", 0, 0, 0)
		return nil, ErrBusy
	}
	defer g.running.Store(false)

	if err := job.Config.Validate(); err != nil {
		return nil, err
	}
	page := job.Page
	if page == (layout.PageSize{}) {
		page = layout.A4
	}

	runID := uuid.NewString()
	log := g.opts.Logger.With(zap.String("run_id", runID))
	start := time.Now()
	log.Info("generation started",
		zap.Int("records", len(job.Records)),
		zap.Int("fields", len(job.Schema)),
		zap.Float64("code_size_mm", job.Config.CodeSize),
	)

	res, err := g.run(ctx, runID, job, page, log)
	elapsed := time.Since(start)
	if err != nil {
		g.opts.Metrics.RunFinished("failed", len(job.Records), 0, elapsed)
		log.Error("generation failed", zap.Error(err), zap.Duration("duration", elapsed))
		return nil, err
	}
	g.opts.Metrics.RunFinished("success", res.Records, res.Pages, elapsed)
	log.Info("generation finished",
		zap.Int("pages", res.Pages),
		zap.Int("bytes", len(res.PDF)),
		zap.Duration("duration", elapsed),
	)
	return res, nil
}

type rasterized struct {
	idx int
	png []byte
}

func (g *Generator) run(ctx context.Context, runID string, job Job, page layout.PageSize, log *zap.Logger) (*Result, error) {
	n := len(job.Records)
	plan := layout.BuildPlan(n, job.Config, page)
	if plan.Geometry.Clamped {
		log.Warn("code size plus gap exceeds printable width, using a single column",
			zap.Float64("content_width_mm", plan.Geometry.ContentWidth))
	}

	payloads, err := payload.EncodeAll(job.Records, job.Schema)
	if err != nil {
		var recErr *payload.RecordError
		if errors.As(err, &recErr) {
			return nil, &RunError{RunID: runID, Index: recErr.Index, Stage: StageEncode, Err: recErr.Err}
		}
		return nil, &RunError{RunID: runID, Index: -1, Stage: StageEncode, Err: err}
	}

	doc, err := g.opts.Renderer.NewDocument(page)
	if err != nil {
		return nil, &RunError{RunID: runID, Index: -1, Stage: StageFinalize, Err: err}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, egCtx := errgroup.WithContext(runCtx)
	eg.SetLimit(g.opts.Concurrency)
	results := make(chan rasterized, g.opts.Concurrency)
	waitCh := make(chan error, 1)

	go func() {
		for i := range payloads {
			if egCtx.Err() != nil {
				break
			}
			eg.Go(func() error {
				t0 := time.Now()
				png, err := g.opts.Rasterizer.Rasterize(egCtx, payloads[i], g.opts.Raster)
				g.opts.Metrics.ObserveRasterize(time.Since(t0))
				if err != nil {
					return &RunError{RunID: runID, Index: i, Stage: StageRasterize, Err: err}
				}
				select {
				case results <- rasterized{idx: i, png: png}:
					return nil
				case <-egCtx.Done():
					return egCtx.Err()
				}
			})
		}
		waitCh <- eg.Wait()
		close(results)
	}()

	d := &drawer{doc: doc, cfg: job.Config, placements: plan.Placements, records: job.Records}
	pending := make(map[int][]byte)
	next := 0
	var drawErr error
	for r := range results {
		if drawErr != nil {
			continue
		}
		pending[r.idx] = r.png
		for {
			png, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := d.draw(next, png); err != nil {
				drawErr = &RunError{RunID: runID, Index: next, Stage: StageDraw, Err: err}
				cancel()
				break
			}
			next++
		}
	}
	waitErr := <-waitCh

	// 出错时直接丢弃 doc，不调用 Close，已绘制的页面不会输出。
	switch {
	case drawErr != nil:
		return nil, drawErr
	case waitErr != nil:
		return nil, waitErr
	case next != n:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, &RunError{RunID: runID, Index: next, Stage: StageDraw, Err: fmt.Errorf("记录未全部绘制：%d/%d", next, n)}
	}

	pdf, err := doc.Close()
	if err != nil {
		return nil, &RunError{RunID: runID, Index: -1, Stage: StageFinalize, Err: err}
	}
	return &Result{
		RunID:   runID,
		PDF:     pdf,
		Pages:   plan.Pages,
		Records: n,
		Plan:    plan,
	}, nil
}

// drawer 按下标顺序把单条记录写入文档，并在页码前进时换页。
type drawer struct {
	doc        renderer.Document
	cfg        layout.Config
	placements []layout.Placement
	records    record.Set
	page       int
}

func (d *drawer) draw(idx int, png []byte) error {
	p := d.placements[idx]
	for d.page < p.Page {
		if err := d.doc.NewPage(); err != nil {
			return err
		}
		d.page++
	}
	size := d.cfg.CodeSize
	if err := d.doc.DrawImage(png, p.X, p.Y, size, size); err != nil {
		return err
	}
	if !d.cfg.ShowCaption || d.cfg.CaptionField == "" {
		return nil
	}
	text := caption.Format(d.records[idx], d.cfg.CaptionField, size, d.doc.TextWidth)
	if text == "" {
		return nil
	}
	return d.doc.DrawText(text, p.X+size/2, p.Y+size+caption.BaselineOffset, renderer.AlignCenter)
}
