package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ByLCY/qrsheet/assemble"
	"github.com/ByLCY/qrsheet/config"
	"github.com/ByLCY/qrsheet/dsl"
	"github.com/ByLCY/qrsheet/ingest"
	"github.com/ByLCY/qrsheet/layout"
	"github.com/ByLCY/qrsheet/logging"
	"github.com/ByLCY/qrsheet/metrics"
	"github.com/ByLCY/qrsheet/raster"
	"github.com/ByLCY/qrsheet/renderer"
	canvasrenderer "github.com/ByLCY/qrsheet/renderer/canvas"
	fpdfrenderer "github.com/ByLCY/qrsheet/renderer/fpdf"
	"github.com/ByLCY/qrsheet/session"
)

// 作业文件扩展名，其余输入按表格处理。
var jobFileExts = map[string]bool{".qrs": true, ".qrsheet": true}

type options struct {
	configPath  string
	out         string
	debug       string
	codeSize    string
	gap         string
	margin      string
	caption     string
	noCaption   bool
	renderer    string
	metricsFile string
	logLevel    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "qrsheet",
		Short:        "Print spreadsheet rows as a sheet of QR codes",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML 配置文件路径")
	root.PersistentFlags().StringVar(&opts.codeSize, "code-size", "", "二维码边长，如 35mm")
	root.PersistentFlags().StringVar(&opts.gap, "gap", "", "二维码间距，如 5mm")
	root.PersistentFlags().StringVar(&opts.margin, "margin", "", "页边距，如 10mm")
	root.PersistentFlags().StringVar(&opts.caption, "caption", "", "作为标签显示的字段")
	root.PersistentFlags().BoolVar(&opts.noCaption, "no-caption", false, "不显示标签")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "日志级别（debug/info/warn/error）")
	root.PersistentFlags().StringVar(&opts.debug, "debug", "", "布局调试 JSON 输出路径")

	generate := &cobra.Command{
		Use:   "generate [input...]",
		Short: "Render the records of the inputs into a PDF",
		Long: `generate reads spreadsheets (.xlsx, .xls, .csv) and job files (.qrs)
in order and writes one PDF with a QR code per record.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts, args)
		},
	}
	generate.Flags().StringVarP(&opts.out, "out", "o", "", "PDF 输出路径")
	generate.Flags().StringVar(&opts.renderer, "renderer", "", "渲染后端：canvas 或 fpdf")
	generate.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Prometheus textfile 指标输出路径")

	layoutCmd := &cobra.Command{
		Use:   "layout [input...]",
		Short: "Print the computed grid and placements as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayout(cmd, opts, args)
		},
	}

	root.AddCommand(generate, layoutCmd)
	return root
}

// prepared 是加载完配置与输入后的可执行状态。
type prepared struct {
	cfg     *config.Config
	log     *zap.Logger
	session session.Session
	page    layout.PageSize
}

func prepare(cmd *cobra.Command, opts *options, inputs []string) (*prepared, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	page, err := cfg.PageSize()
	if err != nil {
		return nil, err
	}
	s := session.New(cfg.Layout)
	for _, in := range inputs {
		s, page, err = loadInput(cmd.Context(), s, page, in, log)
		if err != nil {
			return nil, err
		}
	}
	if s.Config, err = applyLayoutFlags(s.Config, opts); err != nil {
		return nil, err
	}
	return &prepared{cfg: cfg, log: log, session: s, page: page}, nil
}

func loadInput(ctx context.Context, s session.Session, page layout.PageSize, path string, log *zap.Logger) (session.Session, layout.PageSize, error) {
	f, err := os.Open(path)
	if err != nil {
		return s, page, fmt.Errorf("无法打开输入文件 %s: %w", path, err)
	}
	defer f.Close()

	if jobFileExts[strings.ToLower(filepath.Ext(path))] {
		doc, err := dsl.Parse(f)
		if err != nil {
			return s, page, fmt.Errorf("解析作业文件 %s 失败: %w", path, err)
		}
		next, err := dsl.Apply(doc, s)
		if err != nil {
			return s, page, fmt.Errorf("%s: %w", path, err)
		}
		if doc.Page() != nil {
			if page, err = doc.PageSize(); err != nil {
				return s, page, fmt.Errorf("%s: %w", path, err)
			}
		}
		log.Info("job file applied",
			zap.String("source", path),
			zap.String("sheet", doc.Name),
			zap.Int("records", len(next.Records)),
		)
		return next, page, nil
	}

	tbl, err := ingest.Load(ctx, path, f)
	if err != nil {
		return s, page, err
	}
	next, err := s.Ingest(tbl)
	if err != nil {
		return s, page, err
	}
	log.Info("spreadsheet ingested",
		zap.String("source", path),
		zap.Int("rows", len(tbl.Records)),
		zap.Strings("fields", tbl.Schema),
	)
	return next, page, nil
}

func applyLayoutFlags(cfg layout.Config, opts *options) (layout.Config, error) {
	lengths := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"code-size", opts.codeSize, &cfg.CodeSize},
		{"gap", opts.gap, &cfg.Gap},
		{"margin", opts.margin, &cfg.Margin},
	}
	for _, l := range lengths {
		if l.raw == "" {
			continue
		}
		mm, err := layout.ParseMM(l.raw)
		if err != nil {
			return cfg, fmt.Errorf("--%s: %w", l.name, err)
		}
		*l.dst = mm
	}
	if opts.caption != "" {
		cfg.CaptionField = opts.caption
	}
	if opts.noCaption {
		cfg.ShowCaption = false
	}
	return cfg, cfg.Validate()
}

func newFactory(cfg *config.Config) (renderer.Factory, error) {
	switch cfg.Renderer {
	case config.RendererFPDF:
		r := fpdfrenderer.NewRenderer()
		r.Title = cfg.Document.Title
		return r, nil
	case config.RendererCanvas, "":
		var font canvasrenderer.Resource
		if cfg.Document.Font != "" {
			font.Path = cfg.Document.Font
		}
		return canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{
			Font: font,
			Meta: canvasrenderer.Meta{
				Title:   cfg.Document.Title,
				Author:  cfg.Document.Author,
				Creator: "qrsheet",
			},
		}), nil
	default:
		return nil, fmt.Errorf("未知的 renderer %q", cfg.Renderer)
	}
}

func runGenerate(cmd *cobra.Command, opts *options, inputs []string) error {
	p, err := prepare(cmd, opts, inputs)
	if err != nil {
		return err
	}
	defer func() { _ = p.log.Sync() }()

	if opts.out != "" {
		p.cfg.Output = opts.out
	}
	if opts.renderer != "" {
		p.cfg.Renderer = opts.renderer
	}
	if opts.metricsFile != "" {
		p.cfg.MetricsFile = opts.metricsFile
	}

	factory, err := newFactory(p.cfg)
	if err != nil {
		return err
	}
	rec := metrics.New()
	gen, err := assemble.NewGenerator(assemble.Options{
		Renderer:    factory,
		Rasterizer:  raster.QR{},
		Raster:      p.cfg.Raster,
		Concurrency: p.cfg.Concurrency,
		Logger:      p.log,
		Metrics:     rec,
	})
	if err != nil {
		return err
	}

	res, genErr := gen.Generate(cmd.Context(), p.session.Job(p.page))
	if p.cfg.MetricsFile != "" {
		if err := rec.WriteTextfile(p.cfg.MetricsFile); err != nil {
			p.log.Warn("write metrics textfile failed", zap.Error(err))
		}
	}
	if genErr != nil {
		if errors.Is(genErr, assemble.ErrNoRecords) {
			return fmt.Errorf("没有可打印的记录，请先导入表格或录入记录")
		}
		return genErr
	}

	if opts.debug != "" {
		if err := writeDebug(res.Plan, opts.debug); err != nil {
			return err
		}
	}
	if dir := filepath.Dir(p.cfg.Output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建输出目录失败: %w", err)
		}
	}
	if err := os.WriteFile(p.cfg.Output, res.PDF, 0o644); err != nil {
		return fmt.Errorf("写入 PDF 文件失败: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "已生成 PDF：%s（%d 条记录，%d 页）\n", p.cfg.Output, res.Records, res.Pages)
	return nil
}

func runLayout(cmd *cobra.Command, opts *options, inputs []string) error {
	p, err := prepare(cmd, opts, inputs)
	if err != nil {
		return err
	}
	defer func() { _ = p.log.Sync() }()

	plan := layout.BuildPlan(len(p.session.Records), p.session.Config, p.page)
	if opts.debug != "" {
		return writeDebug(plan, opts.debug)
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func writeDebug(plan *layout.Plan, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(plan, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
