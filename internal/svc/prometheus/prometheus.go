package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/seventv/image-resizer/internal/instance"
)

type Options struct {
	Labels prometheus.Labels
}

func copyLabels(p prometheus.Labels) prometheus.Labels {
	x := prometheus.Labels{}
	for k, v := range p {
		x[k] = v
	}

	return x
}

func withLabel(p prometheus.Labels, key, value string) prometheus.Labels {
	x := copyLabels(p)
	x[key] = value

	return x
}

func New(o Options) instance.Prometheus {
	return &Instance{
		totalSuccessfulRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "image_resizer",
			Name:        "total_runs",
			Help:        "The total number of rasterization runs by outcome",
			ConstLabels: withLabel(o.Labels, "state", "successful"),
		}),
		totalFailedRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "image_resizer",
			Name:        "total_runs",
			Help:        "The total number of rasterization runs by outcome",
			ConstLabels: withLabel(o.Labels, "state", "failed"),
		}),
		currentRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "image_resizer",
			Name:        "current_runs",
			Help:        "The current number of rasterization runs in flight",
			ConstLabels: copyLabels(o.Labels),
		}),
		runDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "image_resizer",
			Name:        "run_duration_seconds",
			Help:        "The seconds spent in rasterization runs",
			ConstLabels: copyLabels(o.Labels),
		}),
		decodeSourceDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "image_resizer",
			Name:        "decode_source_duration_seconds",
			Help:        "The seconds spent decoding source images",
			ConstLabels: copyLabels(o.Labels),
		}),
		rasterizeDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "image_resizer",
			Name:        "rasterize_duration_seconds",
			Help:        "The seconds spent scaling and encoding",
			ConstLabels: copyLabels(o.Labels),
		}),
		totalRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "image_resizer",
			Name:        "total_requests",
			Help:        "The total number of resize requests by state",
			ConstLabels: withLabel(o.Labels, "state", "requested"),
		}),
		totalCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "image_resizer",
			Name:        "total_requests",
			Help:        "The total number of resize requests by state",
			ConstLabels: withLabel(o.Labels, "state", "coalesced"),
		}),
		totalStale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "image_resizer",
			Name:        "total_requests",
			Help:        "The total number of resize requests by state",
			ConstLabels: withLabel(o.Labels, "state", "stale"),
		}),
		currentSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "image_resizer",
			Name:        "current_sessions",
			Help:        "The current number of open editing sessions",
			ConstLabels: copyLabels(o.Labels),
		}),
		totalBytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "image_resizer",
			Name:        "total_bytes",
			Help:        "The total number of bytes by state",
			ConstLabels: withLabel(o.Labels, "state", "in"),
		}),
		totalBytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "image_resizer",
			Name:        "total_bytes",
			Help:        "The total number of bytes by state",
			ConstLabels: withLabel(o.Labels, "state", "out"),
		}),
		totalBytesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "image_resizer",
			Name:        "total_bytes",
			Help:        "The total number of bytes by state",
			ConstLabels: withLabel(o.Labels, "state", "saved"),
		}),
		totalBytesExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "image_resizer",
			Name:        "total_bytes",
			Help:        "The total number of bytes by state",
			ConstLabels: withLabel(o.Labels, "state", "exported"),
		}),
		totalAnalyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "image_resizer",
			Name:        "total_analyses",
			Help:        "The total number of image analyses",
			ConstLabels: copyLabels(o.Labels),
		}, []string{"fallback", "cached"}),
	}
}

type Instance struct {
	totalSuccessfulRuns prometheus.Counter
	totalFailedRuns     prometheus.Counter
	currentRuns         prometheus.Gauge
	runDurationSeconds  prometheus.Histogram

	decodeSourceDurationSeconds prometheus.Histogram
	rasterizeDurationSeconds    prometheus.Histogram

	totalRequests  prometheus.Counter
	totalCoalesced prometheus.Counter
	totalStale     prometheus.Counter

	currentSessions prometheus.Gauge

	totalBytesIn       prometheus.Counter
	totalBytesOut      prometheus.Counter
	totalBytesSaved    prometheus.Counter
	totalBytesExported prometheus.Counter

	totalAnalyses *prometheus.CounterVec
}

func (m *Instance) Register(r prometheus.Registerer) {
	r.MustRegister(
		m.currentRuns,
		m.runDurationSeconds,
		m.totalFailedRuns,
		m.totalSuccessfulRuns,

		m.decodeSourceDurationSeconds,
		m.rasterizeDurationSeconds,

		m.totalRequests,
		m.totalCoalesced,
		m.totalStale,

		m.currentSessions,

		m.totalBytesIn,
		m.totalBytesOut,
		m.totalBytesSaved,
		m.totalBytesExported,

		m.totalAnalyses,
	)
}

func (m *Instance) StartRun() func(success bool) {
	start := time.Now()
	m.currentRuns.Inc()

	return func(success bool) {
		if success {
			m.totalSuccessfulRuns.Inc()
		} else {
			m.totalFailedRuns.Inc()
		}
		m.currentRuns.Dec()
		m.runDurationSeconds.Observe(float64(time.Since(start)/time.Millisecond) / 1000)
	}
}

func (m *Instance) DecodeSource() func() {
	start := time.Now()

	return func() {
		m.decodeSourceDurationSeconds.Observe(float64(time.Since(start)/time.Millisecond) / 1000)
	}
}

func (m *Instance) Rasterize() func() {
	start := time.Now()

	return func() {
		m.rasterizeDurationSeconds.Observe(float64(time.Since(start)/time.Millisecond) / 1000)
	}
}

func (m *Instance) Requested() {
	m.totalRequests.Inc()
}

func (m *Instance) Coalesced() {
	m.totalCoalesced.Inc()
}

func (m *Instance) StaleResult() {
	m.totalStale.Inc()
}

func (m *Instance) SessionOpened() {
	m.currentSessions.Inc()
}

func (m *Instance) SessionClosed() {
	m.currentSessions.Dec()
}

func (m *Instance) TotalBytesIn(bytes int) {
	m.totalBytesIn.Add(float64(bytes))
}

func (m *Instance) TotalBytesOut(bytes int) {
	m.totalBytesOut.Add(float64(bytes))
}

func (m *Instance) TotalBytesSaved(bytes int64) {
	if bytes > 0 {
		m.totalBytesSaved.Add(float64(bytes))
	}
}

func (m *Instance) TotalBytesExported(bytes int) {
	m.totalBytesExported.Add(float64(bytes))
}

func (m *Instance) Analysis(fallback bool, cached bool) {
	m.totalAnalyses.WithLabelValues(boolLabel(fallback), boolLabel(cached)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}

	return "false"
}
