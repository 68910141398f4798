package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/seventv/image-resizer/internal/global"
)

// NewRegistry registers the runtime collectors and the service metrics, with
// the configured labels attached to every series.
func NewRegistry(gCtx global.Context) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	r := prometheus.WrapRegistererWith(gCtx.Config().Monitoring.Labels.ToPrometheus(), registry)

	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if gCtx.Inst().Prometheus != nil {
		gCtx.Inst().Prometheus.Register(r)
	}

	return registry
}
