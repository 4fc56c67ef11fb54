// Package metrics 记录生成任务的 Prometheus 指标，可导出为 node_exporter textfile 格式。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder 持有一组独立注册的指标，避免污染全局注册表。
type Recorder struct {
	registry *prometheus.Registry

	Generations       *prometheus.CounterVec
	RecordsRendered   prometheus.Counter
	PagesRendered     prometheus.Counter
	RasterizeDuration prometheus.Histogram
	RunDuration       prometheus.Histogram
}

// New 创建并注册全部指标。
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		Generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qrsheet_generations_total",
				Help: "Total number of generation runs by outcome",
			},
			[]string{"status"},
		),
		RecordsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qrsheet_records_rendered_total",
			Help: "Total number of QR codes drawn into finished documents",
		}),
		PagesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qrsheet_pages_rendered_total",
			Help: "Total number of pages in finished documents",
		}),
		RasterizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qrsheet_rasterize_duration_seconds",
			Help:    "Time taken to rasterize a single QR code",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qrsheet_run_duration_seconds",
			Help:    "Duration of generation runs",
			Buckets: prometheus.DefBuckets,
		}),
	}
	r.registry.MustRegister(r.Generations, r.RecordsRendered, r.PagesRendered, r.RasterizeDuration, r.RunDuration)
	return r
}

// ObserveRasterize 记录单次栅格化耗时。
func (r *Recorder) ObserveRasterize(d time.Duration) {
	if r == nil {
		return
	}
	r.RasterizeDuration.Observe(d.Seconds())
}

// RunFinished 记录一次生成任务的结果；status 为 success、failed、empty 或 busy。
func (r *Recorder) RunFinished(status string, records, pages int, d time.Duration) {
	if r == nil {
		return
	}
	r.Generations.WithLabelValues(status).Inc()
	if status == "success" {
		r.RecordsRendered.Add(float64(records))
		r.PagesRendered.Add(float64(pages))
		r.RunDuration.Observe(d.Seconds())
	}
}

// WriteTextfile 以 textfile collector 格式写出当前指标。
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
